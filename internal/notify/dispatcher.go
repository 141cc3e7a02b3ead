// Package notify delivers notification intents in the background: it stores
// the in-app notification row and sends the email, retrying both.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/mail"
	"github.com/vedran77/taskflow/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/vedran77/taskflow/internal/notify")

type Config struct {
	QueueSize     int
	Workers       int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	// MailPerSecond caps outbound email across all workers; zero means unlimited.
	MailPerSecond float64
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		QueueSize:     cfg.Notify.QueueSize,
		Workers:       cfg.Notify.Workers,
		MaxAttempts:   cfg.Notify.MaxAttempts,
		RetryBackoff:  cfg.Notify.RetryBackoff,
		RetryMaxDelay: cfg.Notify.RetryMaxDelay,
		MailPerSecond: cfg.Mail.RatePerSecond,
	}
}

// Dispatcher is a bounded in-process outbox. Publish never blocks; a full
// queue drops the intent with a warning.
type Dispatcher struct {
	cfg           Config
	queue         chan domain.NotificationIntent
	notifications repository.NotificationRepository
	users         repository.UserRepository
	mailer        mail.Mailer
	limiter       *rate.Limiter
	logger        *slog.Logger
}

func NewDispatcher(
	cfg Config,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	mailer mail.Mailer,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.MailPerSecond > 0 {
		limit = rate.Limit(cfg.MailPerSecond)
	}

	return &Dispatcher{
		cfg:           cfg,
		queue:         make(chan domain.NotificationIntent, cfg.QueueSize),
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger.With("component", "notify"),
	}
}

func (d *Dispatcher) Publish(intent domain.NotificationIntent) {
	select {
	case d.queue <- intent:
	default:
		d.logger.Warn("notification queue full, dropping intent", "type", intent.Type, "title", intent.Title)
	}
}

// Run starts the workers and blocks until ctx is cancelled. Intents still
// queued at shutdown are dropped and counted in the log.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)

	g, ctx := errgroup.WithContext(ctx)
	for range d.cfg.Workers {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()

	if dropped := len(d.queue); dropped > 0 {
		d.logger.Warn("dispatcher stopped with pending intents", "dropped", dropped)
	}
	return err
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case intent := <-d.queue:
			d.deliver(ctx, intent)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, intent domain.NotificationIntent) {
	ctx, span := tracer.Start(ctx, "notify.deliver", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.type", string(intent.Type)),
		attribute.Bool("notification.email", intent.SendEmail),
	)

	if intent.RecipientID != nil {
		if err := d.persist(ctx, intent); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failed")
			d.logger.ErrorContext(ctx, "storing notification failed",
				"type", intent.Type, "user_id", *intent.RecipientID, "error", err)
		}
	}

	if intent.SendEmail {
		if err := d.email(ctx, intent); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "email failed")
			d.logger.ErrorContext(ctx, "sending notification email failed", "type", intent.Type, "error", err)
		}
	}
}

func (d *Dispatcher) persist(ctx context.Context, intent domain.NotificationIntent) error {
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    *intent.RecipientID,
		Type:      intent.Type,
		Title:     intent.Title,
		Body:      intent.Body,
		Link:      intent.Link,
		CreatedAt: time.Now().UTC(),
	}

	return d.retry(ctx, func() error {
		err := d.notifications.Create(ctx, n)
		if errors.Is(err, repository.ErrDuplicate) {
			// An earlier attempt committed before failing to report back.
			return nil
		}
		return err
	})
}

func (d *Dispatcher) email(ctx context.Context, intent domain.NotificationIntent) error {
	to := intent.Email
	if to == "" && intent.RecipientID != nil {
		user, err := d.users.GetByID(ctx, *intent.RecipientID)
		if err != nil {
			return fmt.Errorf("looking up recipient: %w", err)
		}
		if user != nil {
			to = user.Email
		}
	}
	if to == "" {
		return errors.New("no email address for recipient")
	}

	msg := mail.Message{To: to, Subject: intent.Title, Markdown: intent.Body}
	return d.retry(ctx, func() error {
		if err := d.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return d.mailer.Send(ctx, msg)
	})
}

func (d *Dispatcher) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if d.cfg.RetryBackoff > 0 {
		b.InitialInterval = d.cfg.RetryBackoff
	}
	if d.cfg.RetryMaxDelay > 0 {
		b.MaxInterval = d.cfg.RetryMaxDelay
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
	)
	return err
}
