package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

// Actor is the authenticated party of a request. It is either a Learner or
// an Expert; callers switch on the concrete type.
type Actor interface {
	UserID() uuid.UUID
	Account() *schema.User
	actor()
}

type Learner struct {
	User *schema.User
}

func (l Learner) UserID() uuid.UUID     { return l.User.ID }
func (l Learner) Account() *schema.User { return l.User }
func (Learner) actor()                  {}

type Expert struct {
	User    *schema.User
	Profile *schema.ExpertProfile
}

func (e Expert) UserID() uuid.UUID     { return e.User.ID }
func (e Expert) Account() *schema.User { return e.User }
func (Expert) actor()                  {}

// ActorFor builds the actor variant for u. Experts without a profile get an
// empty unpublished one.
func (s *identityService) ActorFor(ctx context.Context, u *schema.User) (Actor, error) {
	switch u.Role {
	case schema.RoleLearner:
		return Learner{User: u}, nil
	case schema.RoleExpert:
		p, err := s.ensureProfile(s.db.WithContext(ctx), u.ID)
		if err != nil {
			return nil, err
		}
		return Expert{User: u, Profile: p}, nil
	default:
		return nil, ErrUnknownRole
	}
}

func (s *identityService) ensureProfile(tx *gorm.DB, userID uuid.UUID) (*schema.ExpertProfile, error) {
	var p schema.ExpertProfile
	err := tx.Where("user_id = ?", userID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query expert profile: %w", err)
	}

	p = schema.ExpertProfile{
		UserID:   userID,
		Tags:     []string{},
		Currency: s.currency,
	}
	if err := tx.Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.ensureProfile(tx, userID)
		}
		return nil, fmt.Errorf("create expert profile: %w", err)
	}
	return &p, nil
}
