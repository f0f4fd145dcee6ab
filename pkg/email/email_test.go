package email

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBuildMessage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		msg     Message
		wantErr bool
	}{
		{"valid", "noreply@example.com", Message{To: []string{"a@example.com"}, Subject: "Hej", TextBody: "x"}, false},
		{"missing from", " ", Message{To: []string{"a@example.com"}, Subject: "Hej", TextBody: "x"}, true},
		{"missing recipient", "noreply@example.com", Message{To: []string{" "}, Subject: "Hej", TextBody: "x"}, true},
		{"missing subject", "noreply@example.com", Message{To: []string{"a@example.com"}, TextBody: "x"}, true},
		{"missing body", "noreply@example.com", Message{To: []string{"a@example.com"}, Subject: "Hej"}, true},
		{"with attachment", "noreply@example.com", Message{
			To: []string{"a@example.com"}, Subject: "Hej", HTMLBody: "<p>x</p>",
			Attachments: []Attachment{{Filename: "invite.ics", ContentType: "text/calendar", Data: []byte("BEGIN:VCALENDAR")}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMessage(tt.from, tt.msg)
			if tt.wantErr && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSend_Disabled(t *testing.T) {
	c, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = c.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "x", TextBody: "y"})
	if !errors.As(err, &ErrDisabled{}) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestBuild_EscapesAndBrands(t *testing.T) {
	m := Build("a@example.com", "Booking bekræftet", Branding{AppName: "AI Rookie"}, Content{
		Greeting:   "Hej <Ada>",
		Paragraphs: []string{"Din session er bekræftet."},
		ActionURL:  "https://example.com/bookings/1",
	})

	if !strings.Contains(m.HTMLBody, "AI Rookie") {
		t.Error("Expected app name in layout")
	}
	if strings.Contains(m.HTMLBody, "<Ada>") {
		t.Error("Expected greeting to be escaped")
	}
	if !strings.Contains(m.TextBody, "https://example.com/bookings/1") {
		t.Error("Expected action URL in text body")
	}
	if len(m.To) != 1 || m.To[0] != "a@example.com" {
		t.Errorf("Unexpected recipients %v", m.To)
	}
}
