package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"charity-service/internal/config"
	"charity-service/internal/db"
	"charity-service/internal/events"
	"charity-service/internal/grpcserver"
	"charity-service/internal/health"
	"charity-service/internal/investment"
	"charity-service/internal/logger"
	"charity-service/internal/reconcile"
	"charity-service/internal/telemetry"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const healthCheckInterval = 15 * time.Second

type App struct {
	config    *config.Config
	server    *http.Server
	grpc      *grpcserver.Server
	db        *bun.DB
	telemetry *telemetry.Telemetry
	notifier  *events.Notifier
	scheduler *reconcile.Scheduler
	health    *health.Handler
	logger    *slog.Logger
}

func New(ctx context.Context) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Interval: cfg.Telemetry.Interval,
	}, ServiceName, Version, cfg.Env, slogLogger)
	if err != nil {
		return nil, err
	}
	m := tel.Metrics

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := m.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
		slogLogger.Warn("failed to register pool metrics", "error", err)
	}

	if err := Migrate(ctx, database); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	healthHandler := health.NewHandler(m, slogLogger)
	healthHandler.Add("database", func(ctx context.Context) error { return db.Ping(ctx, database) })

	publisher := NewPublisher(cfg, m, healthHandler, slogLogger)
	notifier := events.NewNotifier(publisher, m, slogLogger)

	if err := m.Health.RegisterDependencies(ctx, otel.Meter(ServiceName), healthHandler.Names()); err != nil {
		slogLogger.Warn("failed to register dependency metrics", "error", err)
	}

	services := NewServices(cfg.Auth, database, m, notifier, investment.SystemClock, slogLogger)

	if cfg.Auth.FirstSuperuserEmail != "" && cfg.Auth.FirstSuperuserPassword != "" {
		if _, err := services.Auth.EnsureSuperuser(ctx, cfg.Auth.FirstSuperuserEmail, cfg.Auth.FirstSuperuserPassword); err != nil {
			db.Close(database)
			return nil, fmt.Errorf("failed to create first superuser: %w", err)
		}
	}

	app := &App{
		config:    cfg,
		grpc:      grpcserver.New(cfg.Grpc.Port, m, slogLogger),
		db:        database,
		telemetry: tel,
		notifier:  notifier,
		health:    healthHandler,
		logger:    slogLogger,
	}

	if cfg.Reconcile.Enabled {
		app.scheduler, err = reconcile.NewScheduler(services.Checker, cfg.Reconcile.Interval, slogLogger)
		if err != nil {
			db.Close(database)
			return nil, fmt.Errorf("failed to create reconcile scheduler: %w", err)
		}
	}

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      NewRouter(services, cfg.Server.CORSOrigins, healthHandler, slogLogger),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	slogLogger.Info("application initialized successfully")

	return app, nil
}

// Run serves HTTP and gRPC until one of them fails or Shutdown is called.
func (a *App) Run() error {
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	var g errgroup.Group
	g.Go(func() error {
		a.logger.Info("server starting", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(a.grpc.Run)
	return g.Wait()
}

// StartHealthChecks keeps the dependency gauges and the gRPC serving status
// current until ctx is done.
func (a *App) StartHealthChecks(ctx context.Context) {
	a.health.Watch(ctx, healthCheckInterval, a.grpc.SetServing)
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.grpc.Stop()

	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("scheduler stop error", "error", err)
		}
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Error("publisher close error", "error", err)
	}

	db.Close(a.db)

	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
