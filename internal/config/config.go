package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`

	// DatabaseURL wins over the individual DB_* settings when set.
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"taskflow"`
	DBPassword  string `env:"DB_PASSWORD" envDefault:"taskflow_dev_password"`
	DBName      string `env:"DB_NAME" envDefault:"taskflow"`

	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Mail   MailConfig
	Notify NotifyConfig

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type MailConfig struct {
	Provider      string  `env:"MAIL_PROVIDER" envDefault:"log"`
	From          string  `env:"MAIL_FROM" envDefault:"Taskflow <no-reply@taskflow.local>"`
	SMTPHost      string  `env:"SMTP_HOST"`
	SMTPPort      string  `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string  `env:"SMTP_USER"`
	SMTPPassword  string  `env:"SMTP_PASSWORD"`
	ResendAPIKey  string  `env:"RESEND_API_KEY"`
	RatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"5"`
}

type NotifyConfig struct {
	QueueSize     int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"1024"`
	Workers       int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	MaxAttempts   int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBackoff  time.Duration `env:"NOTIFY_RETRY_BACKOFF" envDefault:"500ms"`
	RetryMaxDelay time.Duration `env:"NOTIFY_RETRY_MAX_DELAY" envDefault:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	switch c.Mail.Provider {
	case "log", "smtp", "resend":
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mail.Provider)
	}
	if c.Mail.Provider == "smtp" && c.Mail.SMTPHost == "" {
		return errors.New("SMTP_HOST is required when MAIL_PROVIDER=smtp")
	}
	if c.Mail.Provider == "resend" && c.Mail.ResendAPIKey == "" {
		return errors.New("RESEND_API_KEY is required when MAIL_PROVIDER=resend")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
