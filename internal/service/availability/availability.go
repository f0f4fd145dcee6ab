package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Range is either a concrete interval (Start, End) or, when Weekly is set, a
// weekly pattern expanded to concrete instances.
type Range struct {
	Start  time.Time
	End    time.Time
	Weekly *WeeklyPattern
}

type WeeklyPattern struct {
	Weekday     time.Weekday
	StartMinute int // minutes after local midnight
	EndMinute   int
	Timezone    string
	From        time.Time // zero means now
	Until       time.Time // zero means From plus the recurring horizon
}

type ListFilter struct {
	From   time.Time
	To     time.Time
	States []schema.SlotState
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// Service owns the state of availability slots. Every mutation is a single
// conditional update so concurrent callers cannot both win.
type Service interface {
	// WithTx returns a ledger bound to tx so callers can compose slot
	// mutations with their own writes.
	WithTx(tx *gorm.DB) Service

	PublishSlots(ctx context.Context, expertID uuid.UUID, ranges []Range) ([]schema.AvailabilitySlot, error)
	Hold(ctx context.Context, slotID uuid.UUID) (*schema.AvailabilitySlot, error)
	Release(ctx context.Context, slotID uuid.UUID) error
	Book(ctx context.Context, slotID uuid.UUID) error
	Unbook(ctx context.Context, slotID uuid.UUID) error
	Block(ctx context.Context, expertID, slotID uuid.UUID) error
	Unblock(ctx context.Context, expertID, slotID uuid.UUID) error

	ListSlots(ctx context.Context, expertID uuid.UUID, f ListFilter) ([]schema.AvailabilitySlot, error)
	Get(ctx context.Context, slotID uuid.UUID) (*schema.AvailabilitySlot, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type ledger struct {
	db       *gorm.DB
	horizon  time.Duration
	timezone string
	now      func() time.Time
}

func New(db *gorm.DB, cfg config.BookingConfig) Service {
	weeks := cfg.RecurringHorizonWeeks
	if weeks <= 0 {
		weeks = 8
	}
	tz := cfg.DefaultTimezone
	if tz == "" {
		tz = constants.DefaultTimezone
	}
	return &ledger{
		db:       db,
		horizon:  time.Duration(weeks) * 7 * 24 * time.Hour,
		timezone: tz,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *ledger) WithTx(tx *gorm.DB) Service {
	cp := *l
	cp.db = tx
	return &cp
}

// ---------------------------------------------------------------------------
// Publishing
// ---------------------------------------------------------------------------

func (l *ledger) PublishSlots(ctx context.Context, expertID uuid.UUID, ranges []Range) ([]schema.AvailabilitySlot, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}

	now := l.now()
	type pending struct {
		interval
		rule *schema.RecurringRule
	}
	var batch []pending

	for _, r := range ranges {
		if r.Weekly == nil {
			if !r.End.After(r.Start) {
				return nil, ErrInvalidTimeRange
			}
			if !r.Start.After(now) {
				return nil, ErrPastRange
			}
			batch = append(batch, pending{interval: interval{start: r.Start.UTC(), end: r.End.UTC()}})
			continue
		}

		p := *r.Weekly
		if p.Timezone == "" {
			p.Timezone = l.timezone
		}
		if p.From.IsZero() || p.From.Before(now) {
			p.From = now
		}
		if p.Until.IsZero() {
			p.Until = p.From.Add(l.horizon)
		}
		instances, err := expandWeekly(p)
		if err != nil {
			return nil, err
		}
		rule := &schema.RecurringRule{
			ExpertID:    expertID,
			Weekday:     int(p.Weekday),
			StartMinute: p.StartMinute,
			EndMinute:   p.EndMinute,
			Timezone:    p.Timezone,
			ValidFrom:   p.From.UTC(),
			ValidUntil:  p.Until.UTC(),
		}
		for _, in := range instances {
			batch = append(batch, pending{interval: in, rule: rule})
		}
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].start.Before(batch[j].start) })
	for i := 1; i < len(batch); i++ {
		if batch[i].overlaps(batch[i-1].interval) {
			return nil, ErrOverlap
		}
	}

	var created []schema.AvailabilitySlot
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize publishers of the same expert.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", expertID).
			Find(&[]schema.ExpertProfile{}).Error; err != nil {
			return fmt.Errorf("lock expert: %w", err)
		}

		for _, p := range batch {
			overlap, err := l.overlapsExisting(tx, expertID, p.interval, uuid.Nil)
			if err != nil {
				return err
			}
			if overlap {
				return ErrOverlap
			}
		}

		for _, p := range batch {
			if p.rule != nil && p.rule.ID == uuid.Nil {
				if err := tx.Create(p.rule).Error; err != nil {
					return fmt.Errorf("create recurring rule: %w", err)
				}
			}
			slot := schema.AvailabilitySlot{
				ExpertID: expertID,
				StartAt:  p.start,
				EndAt:    p.end,
				State:    schema.SlotOpen,
			}
			if p.rule != nil {
				id := p.rule.ID
				slot.RecurringRuleID = &id
			}
			if err := tx.Create(&slot).Error; err != nil {
				return fmt.Errorf("create slot: %w", err)
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// overlapsExisting reports whether in intersects a non-blocked slot of the
// expert other than exclude.
func (l *ledger) overlapsExisting(tx *gorm.DB, expertID uuid.UUID, in interval, exclude uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&schema.AvailabilitySlot{}).
		Where("expert_id = ? AND state <> ? AND id <> ?", expertID, schema.SlotBlocked, exclude).
		Where("start_at < ? AND end_at > ?", in.end, in.start).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// transition moves the slot from one of from to to. It reports whether a row
// changed; when none did, the current slot is returned for classification.
func (l *ledger) transition(ctx context.Context, slotID uuid.UUID, to schema.SlotState, from ...schema.SlotState) (bool, *schema.AvailabilitySlot, error) {
	res := l.db.WithContext(ctx).Model(&schema.AvailabilitySlot{}).
		Where("id = ? AND state IN ?", slotID, from).
		Updates(map[string]any{"state": to, "updated_at": l.now()})
	if res.Error != nil {
		return false, nil, fmt.Errorf("update slot state: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil, nil
	}

	cur, err := l.Get(ctx, slotID)
	if err != nil {
		return false, nil, err
	}
	return false, cur, nil
}

func (l *ledger) Hold(ctx context.Context, slotID uuid.UUID) (*schema.AvailabilitySlot, error) {
	ok, _, err := l.transition(ctx, slotID, schema.SlotHeld, schema.SlotOpen)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}
	return l.Get(ctx, slotID)
}

func (l *ledger) Release(ctx context.Context, slotID uuid.UUID) error {
	ok, cur, err := l.transition(ctx, slotID, schema.SlotOpen, schema.SlotHeld)
	if err != nil || ok {
		return err
	}
	if cur.State == schema.SlotOpen {
		return nil
	}
	return fmt.Errorf("release slot in state %s: %w", cur.State, ErrSlotUnavailable)
}

func (l *ledger) Book(ctx context.Context, slotID uuid.UUID) error {
	ok, cur, err := l.transition(ctx, slotID, schema.SlotBooked, schema.SlotHeld)
	if err != nil || ok {
		return err
	}
	return fmt.Errorf("book slot in state %s: %w", cur.State, ErrSlotUnavailable)
}

func (l *ledger) Unbook(ctx context.Context, slotID uuid.UUID) error {
	ok, cur, err := l.transition(ctx, slotID, schema.SlotOpen, schema.SlotBooked)
	if err != nil || ok {
		return err
	}
	if cur.State == schema.SlotOpen {
		return nil
	}
	return fmt.Errorf("unbook slot in state %s: %w", cur.State, ErrSlotUnavailable)
}

func (l *ledger) Block(ctx context.Context, expertID, slotID uuid.UUID) error {
	if err := l.checkOwner(ctx, expertID, slotID); err != nil {
		return err
	}
	ok, cur, err := l.transition(ctx, slotID, schema.SlotBlocked, schema.SlotOpen)
	if err != nil || ok {
		return err
	}
	if cur.State == schema.SlotBlocked {
		return nil
	}
	return ErrSlotInUse
}

func (l *ledger) Unblock(ctx context.Context, expertID, slotID uuid.UUID) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := l.WithTx(tx).(*ledger)

		slot, err := inner.Get(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.ExpertID != expertID {
			return ErrNotOwner
		}
		if slot.State != schema.SlotBlocked {
			return ErrSlotNotBlocked
		}

		overlap, err := inner.overlapsExisting(tx, expertID, interval{start: slot.StartAt, end: slot.EndAt}, slot.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrOverlap
		}

		ok, _, err := inner.transition(ctx, slotID, schema.SlotOpen, schema.SlotBlocked)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSlotNotBlocked
		}
		return nil
	})
}

func (l *ledger) checkOwner(ctx context.Context, expertID, slotID uuid.UUID) error {
	slot, err := l.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.ExpertID != expertID {
		return ErrNotOwner
	}
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (l *ledger) ListSlots(ctx context.Context, expertID uuid.UUID, f ListFilter) ([]schema.AvailabilitySlot, error) {
	if f.From.IsZero() {
		f.From = l.now()
	}
	if f.To.IsZero() {
		f.To = f.From.Add(l.horizon)
	}

	q := l.db.WithContext(ctx).
		Where("expert_id = ? AND start_at >= ? AND start_at < ?", expertID, f.From.UTC(), f.To.UTC())
	if len(f.States) > 0 {
		q = q.Where("state IN ?", f.States)
	}

	var slots []schema.AvailabilitySlot
	if err := q.Order("start_at").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (l *ledger) Get(ctx context.Context, slotID uuid.UUID) (*schema.AvailabilitySlot, error) {
	var slot schema.AvailabilitySlot
	if err := l.db.WithContext(ctx).First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return &slot, nil
}
