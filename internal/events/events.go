// Package events publishes booking lifecycle events and email delivery jobs
// on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

const (
	SubjectBookingPrefix = "rookie.booking."
	SubjectEmailDeliver  = "rookie.email.deliver"

	emailQueueGroup = "rookie-email"
)

// BookingEvent is the payload published after every committed booking
// transition.
type BookingEvent struct {
	Event      string               `json:"event"`
	BookingID  uuid.UUID            `json:"booking_id"`
	Status     schema.BookingStatus `json:"status"`
	Version    int                  `json:"version"`
	LearnerID  uuid.UUID            `json:"learner_id"`
	ExpertID   uuid.UUID            `json:"expert_id"`
	SlotID     uuid.UUID            `json:"slot_id"`
	StartAt    time.Time            `json:"start_at"`
	EndAt      time.Time            `json:"end_at"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Publisher is the subset of *nats.Conn the bus needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Bus struct {
	pub Publisher
	now func() time.Time
}

func New(pub Publisher) *Bus {
	return &Bus{pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// BookingSubject is the subject a lifecycle event is published on.
func BookingSubject(event string) string {
	return SubjectBookingPrefix + strings.ToLower(event)
}

func (b *Bus) PublishBookingEvent(_ context.Context, event string, bk *schema.Booking) error {
	data, err := json.Marshal(BookingEvent{
		Event:      event,
		BookingID:  bk.ID,
		Status:     bk.Status,
		Version:    bk.Version,
		LearnerID:  bk.LearnerID,
		ExpertID:   bk.ExpertID,
		SlotID:     bk.SlotID,
		StartAt:    bk.StartAt,
		EndAt:      bk.EndAt,
		OccurredAt: b.now(),
	})
	if err != nil {
		return fmt.Errorf("encode booking event: %w", err)
	}
	if err := b.pub.Publish(BookingSubject(event), data); err != nil {
		return fmt.Errorf("publish booking event: %w", err)
	}
	return nil
}

// PublishEmail queues delivery of a stored notification.
func (b *Bus) PublishEmail(_ context.Context, notificationID uuid.UUID) error {
	if err := b.pub.Publish(SubjectEmailDeliver, []byte(notificationID.String())); err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	return nil
}

// Deliverer sends one stored notification by email.
type Deliverer interface {
	Deliver(ctx context.Context, id uuid.UUID) error
}

// SubscribeEmail starts the email worker. Replicas share the queue group so
// each job is handled once.
func SubscribeEmail(nc *nats.Conn, d Deliverer) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(SubjectEmailDeliver, emailQueueGroup, func(msg *nats.Msg) {
		HandleEmail(context.Background(), d, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectEmailDeliver, err)
	}
	slog.Info("email worker started", "subject", SubjectEmailDeliver)
	return sub, nil
}

// HandleEmail processes one email job payload.
func HandleEmail(ctx context.Context, d Deliverer, data []byte) {
	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		slog.Warn("email worker: bad notification id", "payload", string(data))
		return
	}
	if err := d.Deliver(ctx, id); err != nil {
		slog.Warn("email worker: delivery failed", "notification_id", id, "error", err)
	}
}
