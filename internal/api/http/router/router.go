package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/api/http/handler"
	"github.com/Alijeyrad/rookie_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/expert"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/internal/service/review"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/observability"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg             *config.Config
	DB              *gorm.DB
	Verifier        *idp.Verifier
	IdentitySvc     identity.Service
	ExpertSvc       expert.Service
	SlotSvc         availability.Service
	BookingSvc      booking.Service
	ReviewSvc       review.Service
	NotificationSvc notification.Service
	PaymentSvc      payment.Service
	Metrics         *observability.DomainMetrics `optional:"true"`
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.Verifier, r.p.IdentitySvc)

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.IdentitySvc)
	expertH := handler.NewExpertHandler(r.p.ExpertSvc, r.p.SlotSvc, r.p.ReviewSvc)
	slotH := handler.NewSlotHandler(r.p.SlotSvc)
	bookingH := handler.NewBookingHandler(r.p.BookingSvc, r.p.ReviewSvc)
	notificationH := handler.NewNotificationHandler(r.p.NotificationSvc)
	var webhookMetrics handler.WebhookMetrics
	if r.p.Metrics != nil {
		webhookMetrics = r.p.Metrics
	}
	paymentH := handler.NewPaymentHandler(r.p.PaymentSvc, r.p.BookingSvc, webhookMetrics)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerAuthRoutes(api, authH, authRequired)
	r.registerExpertRoutes(api, expertH, slotH, authRequired)
	r.registerBookingRoutes(api, bookingH, authRequired)
	r.registerNotificationRoutes(api, notificationH, authRequired)
	r.registerPaymentRoutes(api, paymentH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			sqlDB, err := r.p.DB.DB()
			return err == nil && sqlDB.PingContext(c.Context()) == nil
		},
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		app.Get(metricsPath(r.p.Cfg), adaptor.HTTPHandler(promhttp.Handler()))
	}
}

func metricsPath(cfg *config.Config) string {
	if cfg.Observability.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Observability.Metrics.Path
}
