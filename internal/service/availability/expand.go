package availability

import (
	"fmt"
	"time"
)

// expandWeekly turns a weekly pattern into concrete UTC instances whose
// local date falls in [From, Until). Wall-clock times are resolved per date
// so DST changes keep the local time stable.
func expandWeekly(p WeeklyPattern) ([]interval, error) {
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		return nil, fmt.Errorf("%w: weekday %d", ErrInvalidWeekly, p.Weekday)
	}
	if p.StartMinute < 0 || p.StartMinute >= 24*60 || p.EndMinute <= p.StartMinute || p.EndMinute > 24*60 {
		return nil, fmt.Errorf("%w: minutes %d-%d", ErrInvalidWeekly, p.StartMinute, p.EndMinute)
	}
	if !p.Until.After(p.From) {
		return nil, ErrInvalidTimeRange
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, p.Timezone)
	}

	from := p.From.In(loc)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for day.Weekday() != p.Weekday {
		day = day.AddDate(0, 0, 1)
	}

	var out []interval
	for ; day.Before(p.Until); day = day.AddDate(0, 0, 7) {
		y, m, d := day.Date()
		start := time.Date(y, m, d, p.StartMinute/60, p.StartMinute%60, 0, 0, loc)
		end := time.Date(y, m, d, p.EndMinute/60, p.EndMinute%60, 0, 0, loc)
		if start.Before(p.From) || !start.Before(p.Until) {
			continue
		}
		out = append(out, interval{start: start.UTC(), end: end.UTC()})
	}
	return out, nil
}

type interval struct {
	start, end time.Time
}

func (a interval) overlaps(b interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}
