package search

import (
	"time"

	"knowledge-graph-service/internal/planner"
)

var koreanWeekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// seoul falls back to a fixed +09:00 zone when tzdata is unavailable.
func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

type timeContext struct {
	Now     string
	Weekday string
	Week    int
}

func newTimeContext(now time.Time, loc *time.Location) timeContext {
	local := now.In(loc)
	_, week := local.ISOWeek()
	return timeContext{
		Now:     local.Format(time.RFC3339),
		Weekday: koreanWeekdays[local.Weekday()],
		Week:    week,
	}
}

// normalizeSpan rewrites both bounds as RFC 3339 in loc. Unparseable bounds
// are dropped. A date-only end covers the whole day. Nil is returned when
// nothing is left to filter on.
func normalizeSpan(span *planner.TimeSpan, loc *time.Location) *planner.TimeSpan {
	if span == nil {
		return nil
	}
	out := &planner.TimeSpan{Description: span.Description}
	if t, _, ok := parseBound(span.Start, loc); ok {
		out.Start = t.Format(time.RFC3339)
	}
	if t, dateOnly, ok := parseBound(span.End, loc); ok {
		if dateOnly {
			t = t.Add(24*time.Hour - time.Second)
		}
		out.End = t.Format(time.RFC3339)
	}
	if out.IsZero() {
		return nil
	}
	return out
}

func parseBound(s string, loc *time.Location) (time.Time, bool, bool) {
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), false, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, false, true
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return t, false, true
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
