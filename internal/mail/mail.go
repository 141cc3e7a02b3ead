// Package mail renders Markdown notification bodies and delivers them
// through the configured provider.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/vedran77/taskflow/internal/config"
	"github.com/yuin/goldmark"
)

// Message is one outbound email. The body is Markdown and is rendered to
// HTML before delivery.
type Message struct {
	To       string
	Subject  string
	Markdown string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Render converts a Markdown body to HTML.
func Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// New picks the mailer for cfg.Provider.
func New(cfg config.MailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(logger), nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "resend":
		return NewResendMailer(cfg.From, cfg.ResendAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email", "to", msg.To, "subject", msg.Subject, "body", msg.Markdown)
	return nil
}
