package app

import (
	"context"
	"fmt"
	"log/slog"

	"charity-service/internal/auth"
	"charity-service/internal/config"
	"charity-service/internal/db"
	"charity-service/internal/donation"
	"charity-service/internal/events"
	"charity-service/internal/health"
	"charity-service/internal/investment"
	"charity-service/internal/kafka"
	"charity-service/internal/ledger"
	"charity-service/internal/messaging"
	"charity-service/internal/metrics"
	"charity-service/internal/middleware"
	"charity-service/internal/project"
	"charity-service/internal/reconcile"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
)

// Models lists every table the service owns.
func Models() []interface{} {
	return append(ledger.Models(), (*auth.User)(nil))
}

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, database bun.IDB) error {
	if err := db.RunMigrations(ctx, database, Models()...); err != nil {
		return err
	}
	if err := ledger.EnsureIndexes(ctx, database); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Services are the domain services shared by the HTTP surface and the CLI.
type Services struct {
	Store     *ledger.Store
	Tokens    *auth.TokenIssuer
	Auth      auth.Service
	Projects  project.Service
	Donations donation.Service
	Checker   *reconcile.Checker
}

func NewServices(cfg config.AuthConfig, database *bun.DB, m *metrics.Metrics, notifier *events.Notifier, clock investment.Clock, logger *slog.Logger) *Services {
	store := ledger.NewStore(database, m)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	return &Services{
		Store:     store,
		Tokens:    tokens,
		Auth:      auth.NewService(auth.NewRepository(database, m), tokens, logger),
		Projects:  project.NewService(store, notifier, clock, logger),
		Donations: donation.NewService(store, notifier, clock, logger),
		Checker:   reconcile.NewChecker(store, m, logger),
	}
}

// NewRouter mounts every HTTP endpoint.
func NewRouter(services *Services, corsOrigins []string, healthHandler *health.Handler, logger *slog.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.CORS(corsOrigins))

	// Health endpoints (no auth required)
	healthHandler.RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(services.Tokens, logger).Authenticate)

		auth.NewHandler(services.Auth, services.Tokens, logger).RegisterRoutes(r)
		project.NewHandler(services.Projects, logger).RegisterRoutes(r)
		donation.NewHandler(services.Donations, logger).RegisterRoutes(r)
		reconcile.NewHandler(services.Checker, logger).RegisterRoutes(r)
	})

	return router
}

// NewPublisher connects the configured event transport. A transport that
// cannot be reached is logged and replaced by a no-op publisher so the
// ledger keeps serving.
func NewPublisher(cfg *config.Config, m *metrics.Metrics, healthHandler *health.Handler, logger *slog.Logger) events.Publisher {
	switch cfg.Events.Driver {
	case "nats":
		producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, logger, m)
		if err != nil {
			logger.Warn("failed to initialize NATS producer", "error", err)
			return events.Noop{}
		}
		healthHandler.Add("nats", producer.HealthCheck)
		logger.Info("NATS producer initialized successfully", "url", cfg.NATS.URL)
		return producer

	case "kafka":
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger, m)
		if err != nil {
			logger.Warn("failed to initialize Kafka producer", "error", err)
			return events.Noop{}
		}
		logger.Info("Kafka producer initialized successfully", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		return producer
	}

	logger.Info("event publishing disabled")
	return events.Noop{}
}
