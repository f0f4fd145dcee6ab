package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/rookie_backend/internal/events"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
)

// WorkerModule registers the NATS consumers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	NC       *nats.Conn `optional:"true"`
	NotifSvc notification.Service
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		slog.Info("NATS disabled, emails are delivered inline")
		return
	}

	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s, err := events.SubscribeEmail(p.NC, p.NotifSvc)
			if err != nil {
				return err
			}
			sub = s
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// the connection drain in ProvideNatsClient flushes in-flight jobs
			if sub != nil {
				return sub.Unsubscribe()
			}
			return nil
		},
	})
}
