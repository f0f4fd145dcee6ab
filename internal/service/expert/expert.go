package expert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

const maxTags = 20

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// UpsertProfileRequest updates only the fields that are set.
type UpsertProfileRequest struct {
	DisplayName     *string
	Headline        *string
	Bio             *string
	Tags            []string
	HourlyRateMinor *int64
	Currency        *string
}

type ListFilter struct {
	Tag     string
	Page    int
	PerPage int
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	UpsertProfile(ctx context.Context, expertID uuid.UUID, req UpsertProfileRequest) (*schema.ExpertProfile, error)
	Publish(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error)
	Unpublish(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error)
	Get(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error)
	ListPublished(ctx context.Context, f ListFilter) ([]schema.ExpertProfile, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type expertService struct {
	db *gorm.DB
}

func New(db *gorm.DB) Service {
	return &expertService{db: db}
}

func (s *expertService) UpsertProfile(ctx context.Context, expertID uuid.UUID, req UpsertProfileRequest) (*schema.ExpertProfile, error) {
	p, err := s.Get(ctx, expertID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Headline != nil {
		updates["headline"] = strings.TrimSpace(*req.Headline)
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.Tags != nil {
		tags := lo.Uniq(lo.Compact(lo.Map(req.Tags, func(t string, _ int) string {
			return strings.ToLower(strings.TrimSpace(t))
		})))
		if len(tags) > maxTags {
			return nil, ErrTooManyTags
		}
		p.Tags = tags
		updates["tags"] = p.Tags
	}
	if req.HourlyRateMinor != nil {
		if *req.HourlyRateMinor <= 0 {
			return nil, ErrInvalidRate
		}
		updates["hourly_rate_minor"] = *req.HourlyRateMinor
	}
	if req.Currency != nil {
		c := strings.ToLower(strings.TrimSpace(*req.Currency))
		if len(c) != 3 {
			return nil, ErrInvalidCurrency
		}
		updates["currency"] = c
	}
	if len(updates) == 0 {
		return p, nil
	}

	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update expert profile: %w", err)
	}
	return s.Get(ctx, expertID)
}

func (s *expertService) Publish(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error) {
	p, err := s.Get(ctx, expertID)
	if err != nil {
		return nil, err
	}
	if p.HourlyRateMinor == nil || *p.HourlyRateMinor <= 0 {
		return nil, ErrRateRequired
	}
	return s.setPublished(ctx, p, true)
}

func (s *expertService) Unpublish(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error) {
	p, err := s.Get(ctx, expertID)
	if err != nil {
		return nil, err
	}
	return s.setPublished(ctx, p, false)
}

func (s *expertService) setPublished(ctx context.Context, p *schema.ExpertProfile, published bool) (*schema.ExpertProfile, error) {
	if err := s.db.WithContext(ctx).Model(p).Update("is_published", published).Error; err != nil {
		return nil, fmt.Errorf("update expert profile: %w", err)
	}
	p.IsPublished = published
	return p, nil
}

func (s *expertService) Get(ctx context.Context, expertID uuid.UUID) (*schema.ExpertProfile, error) {
	var p schema.ExpertProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", expertID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get expert profile: %w", err)
	}
	return &p, nil
}

func (s *expertService) ListPublished(ctx context.Context, f ListFilter) ([]schema.ExpertProfile, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	q := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = expert_profiles.user_id AND users.deleted_at IS NULL").
		Where("expert_profiles.is_published = ?", true)

	var all []schema.ExpertProfile
	if err := q.Order("expert_profiles.created_at DESC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}

	// Tags live in a JSON column; filter in memory to stay portable.
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		all = lo.Filter(all, func(p schema.ExpertProfile, _ int) bool {
			return lo.Contains(p.Tags, tag)
		})
	}

	start := (f.Page - 1) * f.PerPage
	if start >= len(all) {
		return []schema.ExpertProfile{}, nil
	}
	return all[start:min(start+f.PerPage, len(all))], nil
}
