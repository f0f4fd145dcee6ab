package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/audit"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/meeting"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/pkg/crypto"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type RequestInput struct {
	SlotID        uuid.UUID
	PaymentMethod string
	Note          string
}

type ListFilter struct {
	Statuses []schema.BookingStatus
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// SessionView is the meeting of a booking as seen by one participant.
// HostURL is only filled for the expert.
type SessionView struct {
	BookingID  uuid.UUID `json:"booking_id"`
	Provider   string    `json:"provider"`
	JoinURL    string    `json:"join_url"`
	HostURL    string    `json:"host_url,omitempty"`
	IsFallback bool      `json:"is_fallback"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	CanJoin    bool      `json:"can_join"`
	IsActive   bool      `json:"is_active"`
}

type IntegrityIssue struct {
	BookingID uuid.UUID `json:"booking_id"`
	Problem   string    `json:"problem"`
}

// Publisher announces committed lifecycle events. Delivery is best-effort.
type Publisher interface {
	PublishBookingEvent(ctx context.Context, event string, b *schema.Booking) error
}

// Metrics counts applied transitions.
type Metrics interface {
	RecordTransition(ctx context.Context, from, to schema.BookingStatus)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Request(ctx context.Context, learner identity.Learner, in RequestInput) (*schema.Booking, error)
	Authorize(ctx context.Context, learner identity.Learner, bookingID uuid.UUID, paymentMethod string) (*schema.Booking, error)
	ConfirmAuthorization(ctx context.Context, ref string) (*schema.Booking, error)
	Accept(ctx context.Context, expert identity.Expert, bookingID uuid.UUID) (*schema.Booking, error)
	Decline(ctx context.Context, expert identity.Expert, bookingID uuid.UUID, reason string) (*schema.Booking, error)
	ProposeTime(ctx context.Context, expert identity.Expert, bookingID, slotID uuid.UUID) (*schema.Booking, error)
	RespondToProposal(ctx context.Context, learner identity.Learner, bookingID uuid.UUID, accept bool) (*schema.Booking, error)
	Cancel(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*schema.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID) (*schema.Booking, error)
	CompleteElapsed(ctx context.Context, now time.Time) (int, error)
	MarkNoShow(ctx context.Context, expert identity.Expert, bookingID uuid.UUID) (*schema.Booking, error)
	// Refund refunds a confirmed or completed booking. A nil actor is the
	// system acting on a lost dispute.
	Refund(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*schema.Booking, error)
	SweepAbandoned(ctx context.Context, now time.Time) (int, error)
	ReconcilePaymentEvent(ctx context.Context, ev payment.Event) (Outcome, error)

	Get(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*schema.Booking, error)
	List(ctx context.Context, actor identity.Actor, f ListFilter) ([]schema.Booking, error)
	GetSession(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*SessionView, error)
	CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

// Deps are the collaborators of the lifecycle manager. Events and Metrics
// may be nil. Without an EncryptionKey host links are not stored.
type Deps struct {
	DB            *gorm.DB
	Ledger        availability.Service
	Payments      payment.Service
	Meetings      meeting.Service
	Notifier      notification.Service
	Audit         audit.Service
	Events        Publisher
	Metrics       Metrics
	Policy        CancellationPolicy
	EncryptionKey []byte
	Config        config.BookingConfig
}

type bookingService struct {
	db       *gorm.DB
	ledger   availability.Service
	payments payment.Service
	meetings meeting.Service
	notifier notification.Service
	audit    audit.Service
	events   Publisher
	metrics  Metrics
	policy   CancellationPolicy
	key      []byte

	pendingTTL time.Duration
	authTTL    time.Duration
	joinLead   time.Duration
	now        func() time.Time
}

func New(d Deps) Service {
	policy := d.Policy
	if policy == nil {
		policy = WindowPolicy(d.Config.LearnerRefundWindow())
	}
	pendingTTL := d.Config.PendingTTL()
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	authTTL := d.Config.AuthorizationTTL()
	if authTTL <= 0 {
		authTTL = 7 * 24 * time.Hour
	}
	joinLead := d.Config.JoinLead()
	if joinLead <= 0 {
		joinLead = 5 * time.Minute
	}
	return &bookingService{
		db:         d.DB,
		ledger:     d.Ledger,
		payments:   d.Payments,
		meetings:   d.Meetings,
		notifier:   d.Notifier,
		audit:      d.Audit,
		events:     d.Events,
		metrics:    d.Metrics,
		policy:     policy,
		key:        d.EncryptionKey,
		pendingTTL: pendingTTL,
		authTTL:    authTTL,
		joinLead:   joinLead,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// transition moves b from its loaded status and version to the status to,
// writing fields in the same statement. b is reloaded afterwards and the
// slot owner invariant is checked; any failure must roll tx back.
func (s *bookingService) transition(ctx context.Context, tx *gorm.DB, b *schema.Booking, to schema.BookingStatus, fields map[string]any) error {
	from := b.Status
	updates := map[string]any{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": s.now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := tx.WithContext(ctx).Model(&schema.Booking{}).
		Where("id = ? AND status = ? AND version = ?", b.ID, from, b.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update booking status: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrStaleState
	}

	if err := s.refresh(ctx, tx, b); err != nil {
		return err
	}
	return s.checkInvariant(ctx, tx, b)
}

// refresh reloads b with its payment and session.
func (s *bookingService) refresh(ctx context.Context, tx *gorm.DB, b *schema.Booking) error {
	var fresh schema.Booking
	if err := tx.WithContext(ctx).Preload("Payment").Preload("Session").First(&fresh, "id = ?", b.ID).Error; err != nil {
		return fmt.Errorf("reload booking: %w", err)
	}
	*b = fresh
	return nil
}

func (s *bookingService) checkInvariant(ctx context.Context, tx *gorm.DB, b *schema.Booking) error {
	var slot schema.AvailabilitySlot
	if err := tx.WithContext(ctx).Select("id", "expert_id").First(&slot, "id = ?", b.SlotID).Error; err != nil {
		return fmt.Errorf("load booking slot: %w", err)
	}
	if slot.ExpertID != b.ExpertID {
		slog.Error("booking invariant violated",
			"booking_id", b.ID, "booking_expert_id", b.ExpertID,
			"slot_id", slot.ID, "slot_expert_id", slot.ExpertID)
		return fmt.Errorf("booking %s: %w", b.ID, ErrInvariantViolation)
	}
	return nil
}

func (s *bookingService) record(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, b *schema.Booking, action string, meta map[string]any) error {
	e := audit.Entry{
		ActorID:    actorID,
		BookingID:  &b.ID,
		Action:     action,
		EntityType: "booking",
		EntityID:   b.ID,
		Metadata:   meta,
	}
	if b.Payment != nil {
		e.PaymentID = &b.Payment.ID
	}
	if b.Session != nil {
		e.SessionID = &b.Session.ID
	}
	return s.audit.Record(ctx, tx, e)
}

// ---------------------------------------------------------------------------
// Loading and access
// ---------------------------------------------------------------------------

func (s *bookingService) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*schema.Booking, error) {
	var b schema.Booking
	err := tx.WithContext(ctx).Preload("Payment").Preload("Session").First(&b, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("query booking: %w", err)
	}
	return &b, nil
}

// loadFor loads the booking and checks that actor takes part in it.
func (s *bookingService) loadFor(ctx context.Context, actor identity.Actor, id uuid.UUID) (*schema.Booking, error) {
	b, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !participates(actor, b) {
		return nil, ErrForbidden
	}
	return b, nil
}

func participates(actor identity.Actor, b *schema.Booking) bool {
	switch a := actor.(type) {
	case identity.Learner:
		return a.UserID() == b.LearnerID
	case identity.Expert:
		return a.UserID() == b.ExpertID
	}
	return false
}

func requireStatus(b *schema.Booking, allowed ...schema.BookingStatus) error {
	for _, st := range allowed {
		if b.Status == st {
			return nil
		}
	}
	return fmt.Errorf("booking is %s: %w", b.Status, ErrInvalidState)
}

// ---------------------------------------------------------------------------
// After-commit effects
// ---------------------------------------------------------------------------

func (s *bookingService) notify(ctx context.Context, userID uuid.UUID, typ schema.NotificationType, b *schema.Booking, channels []schema.Channel, extra map[string]any) {
	data := s.notificationData(ctx, b)
	for k, v := range extra {
		data[k] = v
	}
	bookingID := b.ID
	req := notification.NotifyRequest{
		UserID:    userID,
		Type:      typ,
		Channels:  channels,
		Data:      data,
		BookingID: &bookingID,
	}
	if b.Payment != nil {
		req.PaymentID = &b.Payment.ID
	}
	if b.Session != nil {
		req.SessionID = &b.Session.ID
	}
	if _, err := s.notifier.Notify(ctx, req); err != nil {
		slog.Warn("booking notification failed", "booking_id", b.ID, "type", typ, "error", err)
	}
}

func (s *bookingService) notificationData(ctx context.Context, b *schema.Booking) map[string]any {
	data := map[string]any{
		notification.KeyBookingID: b.ID.String(),
		notification.KeyStartAt:   b.StartAt,
		notification.KeyEndAt:     b.EndAt,
		notification.KeyAmount:    b.AmountMinor,
		notification.KeyCurrency:  b.Currency,
	}

	var users []schema.User
	err := s.db.WithContext(ctx).Select("id", "name").
		Where("id IN ?", []uuid.UUID{b.LearnerID, b.ExpertID}).
		Find(&users).Error
	if err != nil {
		slog.Warn("load booking participants", "booking_id", b.ID, "error", err)
	}
	for _, u := range users {
		switch u.ID {
		case b.LearnerID:
			data[notification.KeyLearnerName] = u.Name
		case b.ExpertID:
			data[notification.KeyExpertName] = u.Name
		}
	}
	if b.Session != nil {
		data[notification.KeyJoinURL] = b.Session.JoinURL
	}
	return data
}

// committed runs the effects shared by every committed transition.
func (s *bookingService) committed(ctx context.Context, from schema.BookingStatus, b *schema.Booking) {
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, from, b.Status)
	}
	s.publish(ctx, string(b.Status), b)
}

func (s *bookingService) publish(ctx context.Context, event string, b *schema.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingEvent(ctx, event, b); err != nil {
		slog.Warn("publish booking event", "event", event, "booking_id", b.ID, "error", err)
	}
}

var (
	inApp     = []schema.Channel{schema.ChannelInApp}
	inAppMail = []schema.Channel{schema.ChannelInApp, schema.ChannelEmail}
	mailOnly  = []schema.Channel{schema.ChannelEmail}
)

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

func (s *bookingService) Get(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*schema.Booking, error) {
	return s.loadFor(ctx, actor, bookingID)
}

func (s *bookingService) List(ctx context.Context, actor identity.Actor, f ListFilter) ([]schema.Booking, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("status %q: %w", st, ErrInvalidFilter)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, fmt.Errorf("to must be after from: %w", ErrInvalidFilter)
	}

	q := s.db.WithContext(ctx).Model(&schema.Booking{}).Preload("Payment").Preload("Session")
	switch a := actor.(type) {
	case identity.Learner:
		q = q.Where("learner_id = ?", a.UserID())
	case identity.Expert:
		q = q.Where("expert_id = ?", a.UserID())
	default:
		return nil, ErrForbidden
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.From.IsZero() {
		q = q.Where("start_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("start_at < ?", f.To.UTC())
	}

	var out []schema.Booking
	err := q.Order("start_at DESC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

func (s *bookingService) GetSession(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*SessionView, error) {
	b, err := s.loadFor(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Session == nil {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	live := b.Status == schema.BookingConfirmed
	v := &SessionView{
		BookingID:  b.ID,
		Provider:   b.Session.Provider,
		JoinURL:    b.Session.JoinURL,
		IsFallback: b.Session.IsFallback,
		StartAt:    b.StartAt,
		EndAt:      b.EndAt,
		CanJoin:    live && !now.Before(b.StartAt.Add(-s.joinLead)) && now.Before(b.EndAt),
		IsActive:   live && !now.Before(b.StartAt) && now.Before(b.EndAt),
	}
	if _, ok := actor.(identity.Expert); ok && b.Session.HostURL != "" && len(s.key) > 0 {
		host, err := crypto.Decrypt(s.key, b.Session.HostURL, b.ID.String())
		if err != nil {
			slog.Warn("decrypt host url", "booking_id", b.ID, "error", err)
		} else {
			v.HostURL = host
		}
	}
	return v, nil
}

// CheckIntegrity reports bookings whose expert differs from the slot owner
// and confirmed bookings without a session.
func (s *bookingService) CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error) {
	var mismatched []uuid.UUID
	err := s.db.WithContext(ctx).Model(&schema.Booking{}).
		Joins("JOIN availability_slots ON availability_slots.id = bookings.slot_id").
		Where("availability_slots.expert_id <> bookings.expert_id").
		Pluck("bookings.id", &mismatched).Error
	if err != nil {
		return nil, fmt.Errorf("check slot owners: %w", err)
	}

	var sessionless []uuid.UUID
	err = s.db.WithContext(ctx).Model(&schema.Booking{}).
		Joins("LEFT JOIN sessions ON sessions.booking_id = bookings.id").
		Where("bookings.status = ? AND sessions.id IS NULL", schema.BookingConfirmed).
		Pluck("bookings.id", &sessionless).Error
	if err != nil {
		return nil, fmt.Errorf("check sessions: %w", err)
	}

	issues := make([]IntegrityIssue, 0, len(mismatched)+len(sessionless))
	for _, id := range mismatched {
		issues = append(issues, IntegrityIssue{BookingID: id, Problem: "expert differs from slot owner"})
	}
	for _, id := range sessionless {
		issues = append(issues, IntegrityIssue{BookingID: id, Problem: "confirmed without session"})
	}
	return issues, nil
}
