package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/events"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/meeting"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
	"github.com/Alijeyrad/rookie_backend/pkg/database"
	"github.com/Alijeyrad/rookie_backend/pkg/email"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/rookie_backend/pkg/redis"
	"github.com/Alijeyrad/rookie_backend/pkg/stripepay"
	"github.com/Alijeyrad/rookie_backend/pkg/zoom"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideDatabase),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideDomainMetrics),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvideEventBus),
	fx.Provide(ProvideTokenVerifier),
	fx.Provide(ProvideIdentityProvider),
	fx.Provide(ProvideStripeClient),
	fx.Provide(ProvideMeetingProvider),
)

func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewGorm(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return database.Close(db)
		},
	})
	return db, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg)
}

// ProvideNatsClient returns nil when NATS is disabled; consumers fall back to
// in-process delivery.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if !cfg.Nats.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(constants.AppName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

type EventBusResult struct {
	fx.Out

	Publisher booking.Publisher
	Queue     notification.EmailQueue
}

// ProvideEventBus exposes the NATS bus as the booking event publisher and the
// email queue. Both are nil without a connection.
func ProvideEventBus(nc *nats.Conn) EventBusResult {
	if nc == nil {
		return EventBusResult{}
	}
	bus := events.New(nc)
	return EventBusResult{Publisher: bus, Queue: bus}
}

func ProvideTokenVerifier(cfg *config.Config) (*idp.Verifier, error) {
	return idp.NewFromCentral(cfg.Identity)
}

// ProvideIdentityProvider returns nil when no provider URL is configured.
func ProvideIdentityProvider(cfg *config.Config) (*idp.Provider, error) {
	return idp.NewProviderFromCentral(cfg.Identity)
}

func ProvideStripeClient(cfg *config.Config) (*stripepay.Client, error) {
	return stripepay.NewFromCentral(cfg.Stripe)
}

// ProvideMeetingProvider returns a nil provider when Zoom is disabled, which
// makes every session use the fallback meeting.
func ProvideMeetingProvider(cfg *config.Config) (meeting.Provider, error) {
	if !cfg.Zoom.Enabled {
		slog.Warn("zoom disabled, sessions use fallback meetings")
		return nil, nil
	}
	client, err := zoom.NewFromCentral(cfg.Zoom)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.Init(context.Background(), cfg.Observability, cfg.Server.Environment)
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// ProvideDomainMetrics depends on the OTel provider so the global meter is
// installed before the instruments are created.
func ProvideDomainMetrics(_ *observability.Provider) (*observability.DomainMetrics, error) {
	return observability.NewDomainMetrics()
}
