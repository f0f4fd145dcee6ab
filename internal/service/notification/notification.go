package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/pkg/email"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type NotifyRequest struct {
	UserID    uuid.UUID
	Type      schema.NotificationType
	Channels  []schema.Channel // defaults to in-app only
	Data      map[string]any
	BookingID *uuid.UUID
	PaymentID *uuid.UUID
	SessionID *uuid.UUID
}

// Mailer sends rendered emails. *email.Client implements it.
type Mailer interface {
	Send(ctx context.Context, m email.Message) error
	Branding() email.Branding
}

// EmailQueue hands email delivery to a worker. When nil, email is sent
// inline.
type EmailQueue interface {
	PublishEmail(ctx context.Context, notificationID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Notify stores and delivers a notification immediately. Delivery
	// failures are recorded on the row, never returned.
	Notify(ctx context.Context, req NotifyRequest) (*schema.Notification, error)
	// Schedule stores a notification for later dispatch. Times in the past
	// are skipped and yield nil.
	Schedule(ctx context.Context, req NotifyRequest, at time.Time) (*schema.Notification, error)
	ScheduleSessionReminders(ctx context.Context, b *schema.Booking, data map[string]any) error
	DispatchDue(ctx context.Context, now time.Time) (int, error)
	Deliver(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, perPage int) ([]schema.Notification, error)
	MarkRead(ctx context.Context, notifID, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type notificationService struct {
	db        *gorm.DB
	mailer    Mailer
	queue     EmailQueue
	offsets   []time.Duration
	baseURL   string
	batchSize int
	now       func() time.Time
}

func New(db *gorm.DB, mailer Mailer, queue EmailQueue, cfg *config.Config) Service {
	offsets := cfg.Booking.ReminderOffsets()
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour, time.Hour, 5 * time.Minute}
	}
	return &notificationService{
		db:        db,
		mailer:    mailer,
		queue:     queue,
		offsets:   offsets,
		baseURL:   strings.TrimRight(cfg.App.BaseURL, "/"),
		batchSize: 100,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Creating
// ---------------------------------------------------------------------------

func (s *notificationService) build(req NotifyRequest) (*schema.Notification, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrNoRecipient
	}
	data := normalize(req.Data)
	r, err := render(req.Type, data)
	if err != nil {
		return nil, err
	}
	channels := req.Channels
	if len(channels) == 0 {
		channels = []schema.Channel{schema.ChannelInApp}
	}
	userID := req.UserID
	return &schema.Notification{
		UserID:    &userID,
		BookingID: req.BookingID,
		PaymentID: req.PaymentID,
		SessionID: req.SessionID,
		Type:      req.Type,
		Title:     r.Title,
		Message:   r.Message,
		Channels:  channels,
		Data:      datatypes.JSONMap(data),
	}, nil
}

func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) (*schema.Notification, error) {
	n, err := s.build(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	n.DispatchedAt = &now

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if n.HasChannel(schema.ChannelEmail) {
		s.dispatchEmail(ctx, n.ID)
	}
	return n, nil
}

func (s *notificationService) Schedule(ctx context.Context, req NotifyRequest, at time.Time) (*schema.Notification, error) {
	if !at.After(s.now()) {
		return nil, nil
	}
	n, err := s.build(req)
	if err != nil {
		return nil, err
	}
	at = at.UTC()
	n.ScheduledFor = &at

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("schedule notification: %w", err)
	}
	return n, nil
}

func reminderType(offset time.Duration) schema.NotificationType {
	switch {
	case offset >= 24*time.Hour:
		return schema.NotifReminder24h
	case offset >= time.Hour:
		return schema.NotifReminder1h
	default:
		return schema.NotifReminder5m
	}
}

func (s *notificationService) ScheduleSessionReminders(ctx context.Context, b *schema.Booking, data map[string]any) error {
	bookingID := b.ID
	var errs []error
	for _, offset := range s.offsets {
		at := b.StartAt.Add(-offset)
		for _, userID := range []uuid.UUID{b.LearnerID, b.ExpertID} {
			d := map[string]any{KeyBookingID: b.ID.String(), KeyStartAt: b.StartAt, KeyEndAt: b.EndAt}
			for k, v := range data {
				d[k] = v
			}
			_, err := s.Schedule(ctx, NotifyRequest{
				UserID:    userID,
				Type:      reminderType(offset),
				Channels:  []schema.Channel{schema.ChannelInApp, schema.ChannelEmail},
				Data:      d,
				BookingID: &bookingID,
			}, at)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Dispatching
// ---------------------------------------------------------------------------

func (s *notificationService) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	var due []schema.Notification
	err := s.db.WithContext(ctx).
		Select("id", "channels").
		Where("scheduled_for IS NOT NULL AND scheduled_for <= ? AND dispatched_at IS NULL", now.UTC()).
		Order("scheduled_for").
		Limit(s.batchSize).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("query due notifications: %w", err)
	}

	dispatched := 0
	for _, n := range due {
		// Claim the row; a concurrent dispatcher that got here first wins.
		res := s.db.WithContext(ctx).Model(&schema.Notification{}).
			Where("id = ? AND dispatched_at IS NULL", n.ID).
			Update("dispatched_at", s.now())
		if res.Error != nil {
			return dispatched, fmt.Errorf("claim notification: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		dispatched++
		if n.HasChannel(schema.ChannelEmail) {
			s.dispatchEmail(ctx, n.ID)
		}
	}
	return dispatched, nil
}

func (s *notificationService) dispatchEmail(ctx context.Context, id uuid.UUID) {
	if s.queue != nil {
		err := s.queue.PublishEmail(ctx, id)
		if err == nil {
			return
		}
		slog.Warn("email queue unavailable, delivering inline", "notification_id", id, "error", err)
	}
	if err := s.Deliver(ctx, id); err != nil {
		slog.Warn("email delivery failed", "notification_id", id, "error", err)
	}
}

func (s *notificationService) Deliver(ctx context.Context, id uuid.UUID) error {
	var n schema.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get notification: %w", err)
	}
	if n.SentAt != nil || !n.HasChannel(schema.ChannelEmail) {
		return nil
	}
	if n.UserID == nil {
		return s.recordFailure(ctx, n.ID, ErrNoRecipient)
	}

	var u schema.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", *n.UserID).Error; err != nil {
		return s.recordFailure(ctx, n.ID, fmt.Errorf("get recipient: %w", err))
	}
	if s.mailer == nil {
		return s.recordFailure(ctx, n.ID, email.ErrDisabled{})
	}

	msg := s.compose(&n, u)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return s.recordFailure(ctx, n.ID, fmt.Errorf("send email: %w", err))
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("id = ?", n.ID).
		Updates(map[string]any{"sent_at": now, "error_log": ""}).Error; err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// recordFailure stores the error on the row. A disabled mailer is not a
// delivery error and yields nil.
func (s *notificationService) recordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("id = ?", id).
		Update("error_log", cause.Error()).Error; err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	if errors.As(cause, &email.ErrDisabled{}) {
		return nil
	}
	return cause
}

func (s *notificationService) compose(n *schema.Notification, u schema.User) email.Message {
	var branding email.Branding
	if s.mailer != nil {
		branding = s.mailer.Branding()
	}

	content := email.Content{
		Greeting:   "Hej " + orDefault(u.Name, "der"),
		Title:      n.Title,
		Paragraphs: []string{n.Message},
	}
	if r, err := render(n.Type, n.Data); err == nil && r.Action != "" && s.baseURL != "" {
		content.ActionLabel = r.Action
		if id := str(n.Data, KeyBookingID); id != "" {
			content.ActionURL = s.baseURL + "/bookings/" + id
		} else {
			content.ActionURL = s.baseURL + "/notifications"
		}
	}

	msg := email.Build(u.Email, n.Title, branding, content)

	if n.Type == schema.NotifBookingConfirmedICS {
		start, okStart := parseTime(n.Data[KeyStartAt])
		end, okEnd := parseTime(n.Data[KeyEndAt])
		if okStart && okEnd {
			msg.Attachments = append(msg.Attachments, email.Attachment{
				Filename:    "session.ics",
				ContentType: "text/calendar; charset=utf-8; method=REQUEST",
				Data: calendarInvite(
					str(n.Data, KeyBookingID)+"@rookie",
					orDefault(branding.AppName, "AI Rookie")+" session",
					n.Message,
					str(n.Data, KeyJoinURL),
					start, end, s.now(),
				),
			})
		}
	}
	return msg
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, perPage int) ([]schema.Notification, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("(scheduled_for IS NULL OR scheduled_for <= ?)", s.now())
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}

	var out []schema.Notification
	err := q.Order("COALESCE(scheduled_for, created_at) DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notifID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notifID, userID).
		Update("read_at", s.now())
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("id = ? AND user_id = ?", notifID, userID).
		Count(&n).Error; err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Where("(scheduled_for IS NULL OR scheduled_for <= ?)", s.now()).
		Update("read_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// normalize makes data JSON-stable: times become RFC 3339 strings.
func normalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case time.Time:
			out[k] = x.UTC().Format(time.RFC3339)
		case *time.Time:
			if x != nil {
				out[k] = x.UTC().Format(time.RFC3339)
			}
		case uuid.UUID:
			out[k] = x.String()
		default:
			out[k] = v
		}
	}
	return out
}
