package http

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/api/http/router"
	"github.com/Alijeyrad/rookie_backend/internal/app"
)

// Start runs the API server until the process is signalled. When jobs are
// enabled the cron scheduler runs in the same process.
func Start(cfg *config.Config, timeout time.Duration) {
	opts := []fx.Option{
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		app.WorkerModule,
		router.Module,
		Module, // This is the http.Module from server.go

		// IMPORTANT: Invoke *fiber.App because that's what NewServer returns
		// This forces the creation of fiber.App, triggering the OnStart hook
		fx.Invoke(func(*fiber.App) {}),

		fx.StopTimeout(timeout),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}
	if cfg.Jobs.Enabled {
		opts = append(opts, app.JobsModule, app.SchedulerModule)
	}

	fx.New(opts...).Run()
}
