// Package audit keeps the append-only trail of booking transitions.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

var ErrInvalidEntry = errors.New("audit entry requires action, entity type and entity id")

type Entry struct {
	ActorID    *uuid.UUID
	BookingID  *uuid.UUID
	PaymentID  *uuid.UUID
	SessionID  *uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
}

type Service interface {
	// Record appends e using tx, so the entry commits or rolls back with the
	// change it describes. A nil tx writes directly.
	Record(ctx context.Context, tx *gorm.DB, e Entry) error
	ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]schema.AuditLog, error)
}

type auditService struct {
	db *gorm.DB
}

func New(db *gorm.DB) Service {
	return &auditService{db: db}
}

func (s *auditService) Record(ctx context.Context, tx *gorm.DB, e Entry) error {
	if e.Action == "" || e.EntityType == "" || e.EntityID == uuid.Nil {
		return ErrInvalidEntry
	}
	if tx == nil {
		tx = s.db
	}

	row := schema.AuditLog{
		ActorID:    e.ActorID,
		BookingID:  e.BookingID,
		PaymentID:  e.PaymentID,
		SessionID:  e.SessionID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (s *auditService) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]schema.AuditLog, error) {
	var out []schema.AuditLog
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return out, nil
}
