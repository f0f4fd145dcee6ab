package app

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/service/audit"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/expert"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/meeting"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/internal/service/review"
	"github.com/Alijeyrad/rookie_backend/pkg/crypto"
	"github.com/Alijeyrad/rookie_backend/pkg/email"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/observability"
	"github.com/Alijeyrad/rookie_backend/pkg/stripepay"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideIdentityService,
		ProvideAvailabilityService,
		ProvideExpertService,
		ProvideReviewService,
		ProvideAuditService,
		ProvidePaymentService,
		ProvideMeetingService,
		ProvideNotificationService,
		ProvideBookingService,
	),
)

func ProvideIdentityService(db *gorm.DB, cfg *config.Config, provider *idp.Provider) identity.Service {
	var accounts identity.Accounts
	if provider != nil {
		accounts = provider
	}
	return identity.New(db, cfg, accounts)
}

func ProvideAvailabilityService(db *gorm.DB, cfg *config.Config) availability.Service {
	return availability.New(db, cfg.Booking)
}

func ProvideExpertService(db *gorm.DB) expert.Service {
	return expert.New(db)
}

func ProvideReviewService(db *gorm.DB) review.Service {
	return review.New(db)
}

func ProvideAuditService(db *gorm.DB) audit.Service {
	return audit.New(db)
}

func ProvidePaymentService(client *stripepay.Client, cfg *config.Config) payment.Service {
	return payment.New(client, cfg)
}

func ProvideMeetingService(provider meeting.Provider, cfg *config.Config) meeting.Service {
	return meeting.New(provider, cfg.Zoom.Timezone)
}

func ProvideNotificationService(db *gorm.DB, mailer *email.Client, queue notification.EmailQueue, cfg *config.Config) notification.Service {
	return notification.New(db, mailer, queue, cfg)
}

type BookingParams struct {
	fx.In

	Cfg      *config.Config
	DB       *gorm.DB
	Ledger   availability.Service
	Payments payment.Service
	Meetings meeting.Service
	Notifier notification.Service
	Audit    audit.Service
	Events   booking.Publisher            `optional:"true"`
	Metrics  *observability.DomainMetrics `optional:"true"`
}

func ProvideBookingService(p BookingParams) (booking.Service, error) {
	var key []byte
	if p.Cfg.App.EncryptionKey != "" {
		k, err := crypto.KeyFromHex(p.Cfg.App.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("app.encryption_key: %w", err)
		}
		key = k
	}

	var metrics booking.Metrics
	if p.Metrics != nil {
		metrics = p.Metrics
	}

	return booking.New(booking.Deps{
		DB:            p.DB,
		Ledger:        p.Ledger,
		Payments:      p.Payments,
		Meetings:      p.Meetings,
		Notifier:      p.Notifier,
		Audit:         p.Audit,
		Events:        p.Events,
		Metrics:       metrics,
		EncryptionKey: key,
		Config:        p.Cfg.Booking,
	}), nil
}
