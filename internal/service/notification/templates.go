package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
)

// Data keys understood by the templates.
const (
	KeyBookingID   = "booking_id"
	KeyStartAt     = "start_at"
	KeyEndAt       = "end_at"
	KeyExpertName  = "expert_name"
	KeyLearnerName = "learner_name"
	KeyReason      = "reason"
	KeyJoinURL     = "join_url"
	KeyAmount      = "amount_minor"
	KeyCurrency    = "currency"
)

type rendered struct {
	Title   string
	Message string
	Action  string // label of the call to action, empty for none
}

var copenhagen = mustLocation(constants.DefaultTimezone)

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func render(t schema.NotificationType, d map[string]any) (rendered, error) {
	when := formatTime(d[KeyStartAt])
	expert := orDefault(str(d, KeyExpertName), "din ekspert")
	learner := orDefault(str(d, KeyLearnerName), "din elev")
	reason := str(d, KeyReason)

	switch t {
	case schema.NotifBookingCreated:
		return rendered{
			Title:   "Din booking er oprettet",
			Message: fmt.Sprintf("Din anmodning om en session med %s den %s er sendt. Du får besked, når den er bekræftet.", expert, when),
			Action:  "Se booking",
		}, nil
	case schema.NotifBookingAwaitingConfirmation:
		return rendered{
			Title:   "Ny booking afventer din bekræftelse",
			Message: fmt.Sprintf("%s har booket en session den %s. Bekræft eller afvis bookingen.", capitalize(learner), when),
			Action:  "Bekræft booking",
		}, nil
	case schema.NotifBookingAccepted:
		return rendered{
			Title:   "Din booking er bekræftet",
			Message: fmt.Sprintf("%s har bekræftet jeres session den %s.", capitalize(expert), when),
			Action:  "Se session",
		}, nil
	case schema.NotifBookingConfirmedICS:
		return rendered{
			Title:   "Kalenderinvitation til din session",
			Message: fmt.Sprintf("Din session den %s er i kalenderen. Invitationen er vedhæftet.", when),
		}, nil
	case schema.NotifBookingDeclined:
		return rendered{
			Title:   "Din booking blev afvist",
			Message: withReason(fmt.Sprintf("%s kunne desværre ikke tage sessionen den %s. Reservationen på dit kort er frigivet.", capitalize(expert), when), reason),
			Action:  "Find et andet tidspunkt",
		}, nil
	case schema.NotifBookingRejected:
		return rendered{
			Title:   "Det foreslåede tidspunkt blev afvist",
			Message: fmt.Sprintf("%s har afvist det nye tidspunkt den %s. Bookingen er annulleret.", capitalize(learner), when),
		}, nil
	case schema.NotifBookingProposed:
		return rendered{
			Title:   "Nyt tidspunkt foreslået",
			Message: fmt.Sprintf("%s foreslår i stedet den %s. Accepter eller afvis forslaget.", capitalize(expert), when),
			Action:  "Svar på forslaget",
		}, nil
	case schema.NotifBookingCancelled:
		return rendered{
			Title:   "Booking aflyst",
			Message: withReason(fmt.Sprintf("Sessionen den %s er aflyst.", when), reason),
		}, nil
	case schema.NotifBookingRefunded:
		return rendered{
			Title:   "Din betaling er refunderet",
			Message: fmt.Sprintf("Betalingen for sessionen den %s på %s er refunderet.", when, formatAmount(d)),
		}, nil
	case schema.NotifBookingNoShow:
		return rendered{
			Title:   "Session markeret som udeblivelse",
			Message: fmt.Sprintf("Du mødte ikke op til sessionen den %s. Betalingen refunderes ikke.", when),
		}, nil
	case schema.NotifReminder24h:
		return reminder("24 timer", when), nil
	case schema.NotifReminder1h:
		return reminder("1 time", when), nil
	case schema.NotifReminder5m:
		return reminder("5 minutter", when), nil
	case schema.NotifReviewRequest:
		return rendered{
			Title:   "Hvordan gik din session?",
			Message: fmt.Sprintf("Din session den %s er afsluttet. Giv en anmeldelse, det tager kun et minut.", when),
			Action:  "Giv anmeldelse",
		}, nil
	}
	return rendered{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
}

func reminder(in, when string) rendered {
	return rendered{
		Title:   "Påmindelse: din session starter om " + in,
		Message: fmt.Sprintf("Din session den %s starter om %s.", when, in),
		Action:  "Gå til session",
	}
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + " Begrundelse: " + reason
}

func str(d map[string]any, key string) string {
	if v, ok := d[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// formatTime accepts a time.Time or an RFC 3339 string, since data maps
// come back from JSON columns as strings.
func formatTime(v any) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		parsed, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return x
		}
		t = parsed
	default:
		return "det aftalte tidspunkt"
	}
	return t.In(copenhagen).Format("02-01-2006 kl. 15:04")
}

func formatAmount(d map[string]any) string {
	var minor int64
	switch x := d[KeyAmount].(type) {
	case int64:
		minor = x
	case int:
		minor = int64(x)
	case float64:
		minor = int64(x)
	default:
		return "det fulde beløb"
	}
	cur := strings.ToUpper(orDefault(str(d, KeyCurrency), constants.DefaultCurrency))
	return fmt.Sprintf("%d,%02d %s", minor/100, minor%100, cur)
}
