package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/jobs"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
	"github.com/Alijeyrad/rookie_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/rookie_backend/pkg/redis"
)

// JobsModule provides the job runner. SchedulerModule additionally starts the
// embedded cron scheduler.
var JobsModule = fx.Module("jobs",
	fx.Provide(ProvideJobRunner),
)

var SchedulerModule = fx.Module("scheduler",
	fx.Invoke(StartScheduler),
)

type JobParams struct {
	fx.In

	Cfg      *config.Config
	Redis    *redis.Client
	Bookings booking.Service
	Notifier notification.Service
	Metrics  *observability.DomainMetrics `optional:"true"`
}

func ProvideJobRunner(p JobParams) *jobs.Runner {
	locker := jobs.RedisLocker{L: redispkg.NewLocker(p.Redis, constants.AppName+":lock:")}
	var metrics jobs.Metrics
	if p.Metrics != nil {
		metrics = p.Metrics
	}
	return jobs.NewRunner(p.Bookings, p.Notifier, locker, metrics, p.Cfg.Jobs)
}

func StartScheduler(lc fx.Lifecycle, runner *jobs.Runner) error {
	c, err := runner.Scheduler()
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			slog.Info("job scheduler started", "jobs", runner.Names())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
