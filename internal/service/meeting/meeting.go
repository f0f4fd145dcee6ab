// Package meeting provisions video meetings for confirmed bookings. It never
// fails: provider errors degrade to a deterministic fallback meeting.
package meeting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Alijeyrad/rookie_backend/pkg/zoom"
)

const (
	ProviderZoom     = "zoom"
	FallbackJoinURL  = "https://zoom.us/j/fallback"
	FallbackHostURL  = "https://zoom.us/s/fallback"
	fallbackIDPrefix = "fallback-"
)

type Meeting struct {
	ID       string
	JoinURL  string
	HostURL  string
	Fallback bool
}

// Provider is the video backend. *zoom.Client implements it.
type Provider interface {
	CreateMeeting(ctx context.Context, req zoom.MeetingRequest) (*zoom.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
}

type Service interface {
	CreateMeeting(ctx context.Context, topic string, start time.Time, duration time.Duration) Meeting
	DeleteMeeting(ctx context.Context, id string)
}

type meetingService struct {
	provider Provider // nil when the provider is disabled
	timezone string
}

func New(provider Provider, timezone string) Service {
	return &meetingService{provider: provider, timezone: timezone}
}

// Fallback returns the placeholder meeting used when provisioning fails.
func Fallback(start time.Time) Meeting {
	return Meeting{
		ID:       fallbackIDPrefix + strconv.FormatInt(start.Unix(), 10),
		JoinURL:  FallbackJoinURL,
		HostURL:  FallbackHostURL,
		Fallback: true,
	}
}

func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, fallbackIDPrefix)
}

func (s *meetingService) CreateMeeting(ctx context.Context, topic string, start time.Time, duration time.Duration) Meeting {
	if s.provider == nil {
		slog.Warn("meeting provider disabled, using fallback", "start", start)
		return Fallback(start)
	}

	m, err := s.provider.CreateMeeting(ctx, zoom.MeetingRequest{
		Topic:     topic,
		Type:      2, // scheduled
		StartTime: start.UTC().Format(time.RFC3339),
		Duration:  int(math.Ceil(duration.Minutes())),
		Timezone:  s.timezone,
		Settings: zoom.MeetingSettings{
			HostVideo:        true,
			ParticipantVideo: true,
			JoinBeforeHost:   false,
			MuteUponEntry:    true,
			WaitingRoom:      true,
			ApprovalType:     0,
			Audio:            "both",
			AutoRecording:    "none",
		},
	})
	if err != nil {
		slog.Warn("meeting provisioning failed, using fallback", "error", err, "start", start)
		return Fallback(start)
	}

	return Meeting{
		ID:      fmt.Sprint(m.ID),
		JoinURL: m.JoinURL,
		HostURL: m.StartURL,
	}
}

func (s *meetingService) DeleteMeeting(ctx context.Context, id string) {
	if s.provider == nil || id == "" || IsFallbackID(id) {
		return
	}
	if err := s.provider.DeleteMeeting(ctx, id); err != nil {
		slog.Warn("meeting deletion failed", "meeting_id", id, "error", err)
	}
}
