package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
)

const maxCommentLen = 2000

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, rating int, comment string) (*schema.Review, error)
	ListForUser(ctx context.Context, receiverID uuid.UUID, page, perPage int) ([]schema.Review, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type reviewService struct {
	db *gorm.DB
}

func New(db *gorm.DB) Service {
	return &reviewService{db: db}
}

func (s *reviewService) Create(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, rating int, comment string) (*schema.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLen {
		return nil, ErrCommentTooLong
	}

	var out schema.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b schema.Booking
		if err := tx.Preload("Session").First(&b, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("get booking: %w", err)
		}

		var receiver uuid.UUID
		switch a := actor.(type) {
		case identity.Learner:
			if a.UserID() != b.LearnerID {
				return ErrNotParticipant
			}
			receiver = b.ExpertID
		case identity.Expert:
			if a.UserID() != b.ExpertID {
				return ErrNotParticipant
			}
			receiver = b.LearnerID
		default:
			return ErrNotParticipant
		}

		if b.Status != schema.BookingCompleted {
			return ErrNotCompleted
		}
		if b.Session == nil {
			return ErrSessionNotFound
		}

		out = schema.Review{
			SessionID:  b.Session.ID,
			BookingID:  b.ID,
			GiverID:    actor.UserID(),
			ReceiverID: receiver,
			Rating:     rating,
			Comment:    comment,
		}
		if err := tx.Create(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("create review: %w", err)
		}

		if receiver == b.ExpertID {
			return refreshRating(tx, receiver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// refreshRating recomputes the expert's aggregate from all received reviews.
func refreshRating(tx *gorm.DB, expertID uuid.UUID) error {
	var agg struct {
		Avg   *float64
		Count int
	}
	if err := tx.Model(&schema.Review{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("receiver_id = ?", expertID).
		Scan(&agg).Error; err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	err := tx.Model(&schema.ExpertProfile{}).
		Where("user_id = ?", expertID).
		Updates(map[string]any{"average_rating": agg.Avg, "review_count": agg.Count}).Error
	if err != nil {
		return fmt.Errorf("update expert rating: %w", err)
	}
	return nil
}

func (s *reviewService) ListForUser(ctx context.Context, receiverID uuid.UUID, page, perPage int) ([]schema.Review, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var out []schema.Review
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}
