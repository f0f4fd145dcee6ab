package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateUserRequest struct {
	ExternalAuthID string
	Email          string
	Name           string
	Role           schema.Role
}

// ProviderEvent is the identity provider's user webhook payload.
type ProviderEvent struct {
	Type   string `json:"type"`
	Record struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"raw_user_meta_data"`
	} `json:"record"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Resolve returns the user behind verified claims, creating a learner on
	// first contact.
	Resolve(ctx context.Context, id idp.Identity) (*schema.User, error)
	// CreateUser registers a user explicitly. created is false when the user
	// already existed and was returned unchanged.
	CreateUser(ctx context.Context, req CreateUserRequest) (u *schema.User, created bool, err error)
	HandleProviderEvent(ctx context.Context, secret string, ev ProviderEvent) error

	// SignUp registers a password account with the provider and its learner
	// profile here.
	SignUp(ctx context.Context, req SignUpRequest) (*schema.User, error)
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	SignOut(ctx context.Context, accessToken string) error

	GetByID(ctx context.Context, id uuid.UUID) (*schema.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*schema.User, error)
	ActorFor(ctx context.Context, u *schema.User) (Actor, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type identityService struct {
	db            *gorm.DB
	currency      string
	webhookSecret string
	accounts      Accounts
}

// New builds the service. accounts may be nil, which disables the password
// flows.
func New(db *gorm.DB, cfg *config.Config, accounts Accounts) Service {
	currency := cfg.Booking.DefaultCurrency
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return &identityService{
		db:            db,
		currency:      currency,
		webhookSecret: cfg.Identity.WebhookSecret,
		accounts:      accounts,
	}
}

func (s *identityService) Resolve(ctx context.Context, id idp.Identity) (*schema.User, error) {
	if id.Subject == "" {
		return nil, ErrUnauthenticated
	}

	u, err := s.GetByExternalID(ctx, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if id.Email == "" {
		return nil, ErrUnauthenticated
	}
	u, _, err = s.CreateUser(ctx, CreateUserRequest{
		ExternalAuthID: id.Subject,
		Email:          id.Email,
		Name:           id.Name,
		Role:           schema.RoleLearner,
	})
	return u, err
}

func (s *identityService) CreateUser(ctx context.Context, req CreateUserRequest) (*schema.User, bool, error) {
	req.ExternalAuthID = strings.TrimSpace(req.ExternalAuthID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if req.ExternalAuthID == "" {
		return nil, false, ErrExternalIDRequired
	}
	if req.Email == "" {
		return nil, false, ErrEmailRequired
	}
	if !req.Role.Valid() {
		return nil, false, ErrInvalidRole
	}

	if u, err := s.GetByExternalID(ctx, req.ExternalAuthID); err == nil {
		return u, false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	var u schema.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A user created out-of-band by email gets linked to the subject.
		err := tx.Where("email = ? AND external_auth_id IS NULL", req.Email).First(&u).Error
		switch {
		case err == nil:
			if err := tx.Model(&u).Update("external_auth_id", req.ExternalAuthID).Error; err != nil {
				return fmt.Errorf("link user: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			ext := req.ExternalAuthID
			u = schema.User{
				ExternalAuthID: &ext,
				Email:          req.Email,
				Name:           req.Name,
				Role:           req.Role,
				Locale:         constants.DefaultLocale,
				Timezone:       constants.DefaultTimezone,
			}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
		default:
			return fmt.Errorf("query user by email: %w", err)
		}

		if u.Role == schema.RoleExpert {
			if _, err := s.ensureProfile(tx, u.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Lost a race on first contact: the winner's row is the answer.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := s.GetByExternalID(ctx, req.ExternalAuthID); lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user created", "user_id", u.ID, "role", u.Role)
	return &u, true, nil
}

func (s *identityService) HandleProviderEvent(ctx context.Context, secret string, ev ProviderEvent) error {
	if s.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.webhookSecret)) != 1 {
		return ErrInvalidSecret
	}

	switch strings.ToLower(ev.Type) {
	case "insert", "user.created":
	default:
		slog.Debug("identity event ignored", "type", ev.Type)
		return nil
	}

	name := ""
	for _, key := range []string{"name", "full_name"} {
		if v, ok := ev.Record.UserMetadata[key].(string); ok && v != "" {
			name = v
			break
		}
	}

	_, _, err := s.CreateUser(ctx, CreateUserRequest{
		ExternalAuthID: ev.Record.ID,
		Email:          ev.Record.Email,
		Name:           name,
		Role:           schema.RoleLearner,
	})
	return err
}

func (s *identityService) GetByID(ctx context.Context, id uuid.UUID) (*schema.User, error) {
	var u schema.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *identityService) GetByExternalID(ctx context.Context, externalID string) (*schema.User, error) {
	var u schema.User
	if err := s.db.WithContext(ctx).First(&u, "external_auth_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
