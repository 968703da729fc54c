package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ridehold/api"
	"github.com/Domenick1991/ridehold/config"
	"github.com/Domenick1991/ridehold/internal/cache"
	"github.com/Domenick1991/ridehold/internal/kafka"
	"github.com/Domenick1991/ridehold/internal/provider"
	"github.com/Domenick1991/ridehold/internal/provider/sandbox"
	"github.com/Domenick1991/ridehold/internal/rabbitmq"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/Domenick1991/ridehold/internal/service/holds"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the dependencies shared by the API and the worker.
type App struct {
	Store  repository.Store
	Holds  *holds.Service
	Checks map[string]api.Check

	closers []func() error
	logger  *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	app := &App{
		Store:   repository.NewStore(pool),
		closers: []func() error{func() error { pool.Close(); return nil }},
		logger:  logger,
		Checks: map[string]api.Check{
			"postgres": pool.Ping,
		},
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	app.closers = append(app.closers, redisClient.Close)
	app.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	publisher, err := app.newPublisher(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Holds = holds.NewService(
		app.Store,
		NewProviders(cfg.Providers, cfg.Holds.AuthorizationWindow(), logger),
		cache.NewRedisLocker(redisClient, cfg.Holds.LockTTL()),
		publisher,
		holds.WithAuthorizationWindow(cfg.Holds.AuthorizationWindow()),
		holds.WithLogger(logger),
	)
	return app, nil
}

// NewProviders registers both payment back ends, each behind a circuit breaker.
// window is the provider-side authorization lifetime.
func NewProviders(cfg config.ProvidersConfig, window time.Duration, logger *slog.Logger) *provider.Registry {
	var paypalOpts []sandbox.PayPalOption
	if cfg.PayPalManualApproval {
		paypalOpts = append(paypalOpts, sandbox.WithManualApproval())
	}
	breaker := provider.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout(),
		Logger:           logger,
	}
	expiry := sandbox.WithAuthorizationWindow(window)
	return provider.NewRegistry(
		provider.NewBreaker(provider.NewStripeAdapter(sandbox.NewStripe(expiry)), breaker),
		provider.NewBreaker(provider.NewPayPalAdapter(sandbox.NewPayPal(paypalOpts, expiry)), breaker),
	)
}

func (a *App) newPublisher(cfg *config.Config) (holds.Publisher, error) {
	switch cfg.Events.Driver {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, a.logger)
		a.closers = append(a.closers, producer.Close)
		a.Checks["kafka"] = producer.CheckConnection
		return kafka.NewHoldEventPublisher(producer, cfg.Kafka.NotificationsTopic), nil
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			a.logger.Warn("rabbitmq unavailable, hold events will be dropped", "error", err)
			return &rabbitmq.FallbackPublisher{Logger: a.logger}, nil
		}
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close dependency", "error", err)
		}
	}
}
