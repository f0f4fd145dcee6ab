package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/rookie_backend/internal/api/http/router"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
	"github.com/Alijeyrad/rookie_backend/pkg/observability"
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	fiberCfg := fiber.Config{AppName: constants.AppName}
	if p.Cfg.Server.TimeoutSeconds > 0 {
		timeout := time.Duration(p.Cfg.Server.TimeoutSeconds) * time.Second
		fiberCfg.ReadTimeout = timeout
		fiberCfg.WriteTimeout = timeout
	}
	app := fiber.New(fiberCfg)

	if p.OTel != nil {
		metricsPath := p.Cfg.Observability.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		app.Use(observability.FiberMiddleware(metricsPath, "/livez", "/readyz", "/startupz"))
	}

	configureGlobalMiddleware(app, p.Cfg, p.Redis)

	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("HTTP server error", "error", err)
				}
			}()
			slog.Info("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.Server.Environment == "production" {
		app.Use(helmet.New())
	}
	if cfg.Server.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORS.AllowOrigins,
			AllowHeaders:     cfg.Server.CORS.AllowHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAgeSeconds,
		}))
	}
	if cfg.Server.RateLimit.Enabled {
		app.Use(middleware.NewLimiterWithRedis(rdb, cfg.Server.RateLimit))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${locals:requestId}] ${method} ${url} ${status} ${latency}\n",
	}))
}
