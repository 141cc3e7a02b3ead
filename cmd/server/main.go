package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/database"
	"github.com/vedran77/taskflow/internal/mail"
	"github.com/vedran77/taskflow/internal/notify"
	postgresrepo "github.com/vedran77/taskflow/internal/repository/postgres"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/telemetry"
	"github.com/vedran77/taskflow/internal/transport/http/router"
	"github.com/vedran77/taskflow/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	addr := pflag.String("addr", "", "listen address (defaults to :$SERVER_PORT)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if *addr == "" {
		*addr = ":" + cfg.ServerPort
	}

	if err := run(cfg, logger, *addr, *migrateOnly); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger, addr string, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "taskflow")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	// Database
	pool, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if migrateOnly {
		logger.Info("migrations applied")
		return nil
	}

	repos := postgresrepo.NewRepositories(pool)

	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.ConfigFrom(cfg), repos.Notifications, repos.Users, mailer, logger)
	hub := ws.NewHub(logger)
	services := service.NewServices(repos, cfg, dispatcher, hub)

	server := &http.Server{
		Addr:              addr,
		Handler:           router.New(services, hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting server", "addr", addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
