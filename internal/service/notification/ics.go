package notification

import (
	"fmt"
	"strings"
	"time"
)

const icsTimeFormat = "20060102T150405Z"

// calendarInvite renders a minimal single-event iCalendar document.
func calendarInvite(uid, summary, description, location string, start, end, stamp time.Time) []byte {
	esc := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString(fmt.Sprintf(format, args...))
		b.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//AI Rookie//Booking//DA")
	line("METHOD:REQUEST")
	line("BEGIN:VEVENT")
	line("UID:%s", uid)
	line("DTSTAMP:%s", stamp.UTC().Format(icsTimeFormat))
	line("DTSTART:%s", start.UTC().Format(icsTimeFormat))
	line("DTEND:%s", end.UTC().Format(icsTimeFormat))
	line("SUMMARY:%s", esc.Replace(summary))
	if description != "" {
		line("DESCRIPTION:%s", esc.Replace(description))
	}
	if location != "" {
		line("LOCATION:%s", esc.Replace(location))
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return []byte(b.String())
}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339, x)
		return t, err == nil
	}
	return time.Time{}, false
}
