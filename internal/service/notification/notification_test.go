package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/testdb"
	"github.com/Alijeyrad/rookie_backend/pkg/email"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) Branding() email.Branding { return email.Branding{AppName: "AI Rookie"} }

type fakeQueue struct{ ids []uuid.UUID }

func (q *fakeQueue) PublishEmail(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return nil
}

func newTestService(t *testing.T, mailer Mailer, queue EmailQueue) *notificationService {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.BaseURL = "https://rookie.example"
	cfg.Booking.ReminderOffsetsMinutes = []int{24 * 60, 60, 5}
	return New(testdb.New(t), mailer, queue, cfg).(*notificationService)
}

func TestRender_AllTypes(t *testing.T) {
	types := []schema.NotificationType{
		schema.NotifBookingCreated, schema.NotifBookingAwaitingConfirmation, schema.NotifBookingAccepted,
		schema.NotifBookingConfirmedICS, schema.NotifBookingDeclined, schema.NotifBookingRejected,
		schema.NotifBookingProposed, schema.NotifBookingCancelled, schema.NotifBookingRefunded,
		schema.NotifBookingNoShow, schema.NotifReminder24h, schema.NotifReminder1h,
		schema.NotifReminder5m, schema.NotifReviewRequest,
	}
	data := map[string]any{KeyStartAt: "2030-05-01T08:00:00Z", KeyReason: "syg", KeyAmount: float64(60000)}

	for _, typ := range types {
		t.Run(string(typ), func(t *testing.T) {
			r, err := render(typ, data)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if r.Title == "" || r.Message == "" {
				t.Errorf("Expected title and message, got %+v", r)
			}
		})
	}

	if _, err := render("NOPE", nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}

	r, _ := render(schema.NotifBookingDeclined, data)
	if !strings.Contains(r.Message, "syg") {
		t.Errorf("Expected decline reason in message, got %q", r.Message)
	}
	if !strings.Contains(r.Message, "01-05-2030 kl. 10:00") {
		t.Errorf("Expected Copenhagen local time in message, got %q", r.Message)
	}
}

func TestNotify_InAppOnly(t *testing.T) {
	m := &fakeMailer{}
	s := newTestService(t, m, nil)
	u := testdb.User(t, s.db, schema.RoleLearner)

	n, err := s.Notify(context.Background(), NotifyRequest{UserID: u.ID, Type: schema.NotifBookingCreated})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.Title == "" || n.DispatchedAt == nil {
		t.Errorf("Expected rendered, dispatched notification, got %+v", n)
	}
	if len(m.sent) != 0 {
		t.Errorf("Expected no email, got %d", len(m.sent))
	}
}

func TestNotify_Email(t *testing.T) {
	ctx := context.Background()

	t.Run("inline delivery", func(t *testing.T) {
		m := &fakeMailer{}
		s := newTestService(t, m, nil)
		u := testdb.User(t, s.db, schema.RoleLearner)
		bookingID := uuid.New()

		n, err := s.Notify(ctx, NotifyRequest{
			UserID:   u.ID,
			Type:     schema.NotifBookingAccepted,
			Channels: []schema.Channel{schema.ChannelInApp, schema.ChannelEmail},
			Data:     map[string]any{KeyBookingID: bookingID, KeyStartAt: time.Now().Add(48 * time.Hour)},
		})
		if err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(m.sent) != 1 || m.sent[0].To[0] != u.Email {
			t.Fatalf("Expected one email to %s, got %+v", u.Email, m.sent)
		}
		if !strings.Contains(m.sent[0].HTMLBody, "https://rookie.example/bookings/"+bookingID.String()) {
			t.Error("Expected booking link in email")
		}

		var stored schema.Notification
		s.db.First(&stored, "id = ?", n.ID)
		if stored.SentAt == nil {
			t.Error("Expected sent_at to be recorded")
		}
	})

	t.Run("failure is recorded not returned", func(t *testing.T) {
		m := &fakeMailer{err: errors.New("smtp down")}
		s := newTestService(t, m, nil)
		u := testdb.User(t, s.db, schema.RoleLearner)

		n, err := s.Notify(ctx, NotifyRequest{
			UserID: u.ID, Type: schema.NotifBookingCancelled,
			Channels: []schema.Channel{schema.ChannelEmail},
		})
		if err != nil {
			t.Fatalf("Expected Notify to succeed, got %v", err)
		}
		var stored schema.Notification
		s.db.First(&stored, "id = ?", n.ID)
		if stored.SentAt != nil || !strings.Contains(stored.ErrorLog, "smtp down") {
			t.Errorf("Expected error_log to be recorded, got %+v", stored)
		}
	})

	t.Run("queued delivery", func(t *testing.T) {
		m := &fakeMailer{}
		q := &fakeQueue{}
		s := newTestService(t, m, q)
		u := testdb.User(t, s.db, schema.RoleLearner)

		n, err := s.Notify(ctx, NotifyRequest{
			UserID: u.ID, Type: schema.NotifBookingCancelled,
			Channels: []schema.Channel{schema.ChannelEmail},
		})
		if err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(q.ids) != 1 || q.ids[0] != n.ID {
			t.Errorf("Expected notification to be queued, got %v", q.ids)
		}
		if len(m.sent) != 0 {
			t.Error("Expected no inline email when queued")
		}

		if err := s.Deliver(ctx, n.ID); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		if err := s.Deliver(ctx, n.ID); err != nil {
			t.Fatalf("second Deliver failed: %v", err)
		}
		if len(m.sent) != 1 {
			t.Errorf("Expected exactly one email after redelivery, got %d", len(m.sent))
		}
	})
}

func TestDeliver_AttachesCalendarInvite(t *testing.T) {
	m := &fakeMailer{}
	s := newTestService(t, m, nil)
	u := testdb.User(t, s.db, schema.RoleLearner)
	start := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)

	_, err := s.Notify(context.Background(), NotifyRequest{
		UserID:   u.ID,
		Type:     schema.NotifBookingConfirmedICS,
		Channels: []schema.Channel{schema.ChannelEmail},
		Data: map[string]any{
			KeyBookingID: uuid.NewString(), KeyStartAt: start, KeyEndAt: start.Add(time.Hour),
			KeyJoinURL: "https://zoom.us/j/1",
		},
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(m.sent) != 1 || len(m.sent[0].Attachments) != 1 {
		t.Fatalf("Expected one email with an attachment, got %+v", m.sent)
	}
	ics := string(m.sent[0].Attachments[0].Data)
	if !strings.Contains(ics, "DTSTART:20300501T080000Z") || !strings.Contains(ics, "DTEND:20300501T090000Z") {
		t.Errorf("Unexpected calendar body:\n%s", ics)
	}
}

func TestScheduleSessionReminders(t *testing.T) {
	s := newTestService(t, &fakeMailer{}, nil)
	ctx := context.Background()
	learner := testdb.User(t, s.db, schema.RoleLearner)
	expert := testdb.User(t, s.db, schema.RoleExpert)

	tests := []struct {
		name    string
		startIn time.Duration
		want    int64
	}{
		{"all reminders in the future", 48 * time.Hour, 6},
		{"only the five minute reminder left", 30 * time.Minute, 2},
		{"session about to start", 2 * time.Minute, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := testdb.Slot(t, s.db, expert.ID, time.Now().UTC().Add(tt.startIn), time.Hour, schema.SlotBooked)
			b := testdb.Booking(t, s.db, learner.ID, slot, schema.BookingConfirmed, 60000)

			if err := s.ScheduleSessionReminders(ctx, b, nil); err != nil {
				t.Fatalf("ScheduleSessionReminders failed: %v", err)
			}
			var n int64
			s.db.Model(&schema.Notification{}).Where("booking_id = ?", b.ID).Count(&n)
			if n != tt.want {
				t.Errorf("Expected %d reminders, got %d", tt.want, n)
			}
		})
	}
}

func TestDispatchDue_OnlyOnce(t *testing.T) {
	m := &fakeMailer{}
	s := newTestService(t, m, nil)
	ctx := context.Background()
	u := testdb.User(t, s.db, schema.RoleLearner)

	n, err := s.Schedule(ctx, NotifyRequest{
		UserID: u.ID, Type: schema.NotifReminder1h,
		Channels: []schema.Channel{schema.ChannelInApp, schema.ChannelEmail},
	}, time.Now().Add(time.Hour))
	if err != nil || n == nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if got, _ := s.DispatchDue(ctx, time.Now()); got != 0 {
		t.Errorf("Expected nothing due yet, got %d", got)
	}

	later := time.Now().Add(2 * time.Hour)
	got, err := s.DispatchDue(ctx, later)
	if err != nil {
		t.Fatalf("DispatchDue failed: %v", err)
	}
	if got != 1 || len(m.sent) != 1 {
		t.Errorf("Expected one dispatch and one email, got %d and %d", got, len(m.sent))
	}
	if got, _ := s.DispatchDue(ctx, later); got != 0 {
		t.Errorf("Expected second run to dispatch nothing, got %d", got)
	}
}

func TestSchedule_PastIsSkipped(t *testing.T) {
	s := newTestService(t, nil, nil)
	u := testdb.User(t, s.db, schema.RoleLearner)

	n, err := s.Schedule(context.Background(), NotifyRequest{UserID: u.ID, Type: schema.NotifReminder5m}, time.Now().Add(-time.Minute))
	if err != nil || n != nil {
		t.Errorf("Expected past schedule to be skipped, got %v, %v", n, err)
	}
}

func TestListAndRead(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()
	u := testdb.User(t, s.db, schema.RoleLearner)
	other := testdb.User(t, s.db, schema.RoleLearner)

	first, _ := s.Notify(ctx, NotifyRequest{UserID: u.ID, Type: schema.NotifBookingCreated})
	_, _ = s.Notify(ctx, NotifyRequest{UserID: u.ID, Type: schema.NotifBookingAccepted})
	_, _ = s.Schedule(ctx, NotifyRequest{UserID: u.ID, Type: schema.NotifReminder24h}, time.Now().Add(24*time.Hour))

	list, err := s.List(ctx, u.ID, false, 1, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 due notifications, got %d", len(list))
	}

	if err := s.MarkRead(ctx, first.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user's notification, got %v", err)
	}
	if err := s.MarkRead(ctx, first.ID, u.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := s.MarkRead(ctx, first.ID, u.ID); err != nil {
		t.Errorf("Expected MarkRead to be idempotent, got %v", err)
	}

	unread, _ := s.List(ctx, u.ID, true, 1, 20)
	if len(unread) != 1 {
		t.Errorf("Expected 1 unread, got %d", len(unread))
	}

	if err := s.MarkAllRead(ctx, u.ID); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	unread, _ = s.List(ctx, u.ID, true, 1, 20)
	if len(unread) != 0 {
		t.Errorf("Expected 0 unread, got %d", len(unread))
	}

	var future schema.Notification
	s.db.Where("user_id = ? AND type = ?", u.ID, schema.NotifReminder24h).First(&future)
	if future.ReadAt != nil {
		t.Error("Expected future reminders to stay unread")
	}
}
