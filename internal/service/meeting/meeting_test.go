package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Alijeyrad/rookie_backend/pkg/zoom"
)

type fakeProvider struct {
	err     error
	req     zoom.MeetingRequest
	deleted []string
}

func (f *fakeProvider) CreateMeeting(_ context.Context, req zoom.MeetingRequest) (*zoom.Meeting, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &zoom.Meeting{ID: 123, JoinURL: "https://zoom.us/j/123", StartURL: "https://zoom.us/s/123"}, nil
}

func (f *fakeProvider) DeleteMeeting(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func TestCreateMeeting(t *testing.T) {
	start := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("provider success", func(t *testing.T) {
		p := &fakeProvider{}
		m := New(p, "Europe/Copenhagen").CreateMeeting(context.Background(), "Coaching", start, 45*time.Minute)
		if m.Fallback || m.ID != "123" || m.HostURL != "https://zoom.us/s/123" {
			t.Errorf("Unexpected meeting %+v", m)
		}
		if p.req.Duration != 45 || p.req.Type != 2 || !p.req.Settings.WaitingRoom || p.req.Settings.JoinBeforeHost {
			t.Errorf("Unexpected request %+v", p.req)
		}
	})

	tests := []struct {
		name     string
		provider Provider
	}{
		{"provider error", &fakeProvider{err: errors.New("boom")}},
		{"provider disabled", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.provider, "Europe/Copenhagen").CreateMeeting(context.Background(), "Coaching", start, time.Hour)
			want := Fallback(start)
			if m != want {
				t.Errorf("Expected fallback %+v, got %+v", want, m)
			}
			if m.ID != "fallback-1903852800" {
				t.Errorf("Expected deterministic fallback id, got %s", m.ID)
			}
		})
	}
}

func TestDeleteMeeting(t *testing.T) {
	p := &fakeProvider{err: errors.New("gone")}
	s := New(p, "Europe/Copenhagen")

	s.DeleteMeeting(context.Background(), "fallback-1")
	s.DeleteMeeting(context.Background(), "555")

	if len(p.deleted) != 1 || p.deleted[0] != "555" {
		t.Errorf("Expected only the real meeting to be deleted, got %v", p.deleted)
	}
}
