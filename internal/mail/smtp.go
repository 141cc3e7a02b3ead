package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/vedran77/taskflow/internal/config"
)

type SMTPMailer struct {
	addr     string
	host     string
	from     string
	user     string
	password string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		host:     cfg.SMTPHost,
		from:     cfg.From,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := Render(msg.Markdown)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}

	if err := smtp.SendMail(m.addr, auth, envelopeAddress(m.from), []string{msg.To}, buildMIME(m.from, msg.To, msg.Subject, html)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMIME(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// envelopeAddress strips a display name: "Taskflow <a@b.c>" becomes "a@b.c".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}
