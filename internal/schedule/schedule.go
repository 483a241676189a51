// Package schedule holds the time-of-day math shared by the resolver's
// callers and the dispatch pollers. Everything here is pure and interpreted
// in an explicit *time.Location, never in the host's local timezone.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time with no date attached.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM:SS" or "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM[:SS]", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return TimeOfDay{}, fmt.Errorf("invalid second in %q", s)
		}
	}
	return TimeOfDay{Hour: h, Minute: m, Second: sec}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// HHMM renders minute precision, the routine-matching key.
func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextInstant places the time-of-day on now's calendar date in loc and, when
// the result is not strictly after now, advances exactly one calendar day.
// The result is always in (now, now+24h].
func NextInstant(tod TimeOfDay, now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	due := time.Date(n.Year(), n.Month(), n.Day(), tod.Hour, tod.Minute, tod.Second, 0, loc)
	if !due.After(now) {
		due = due.AddDate(0, 0, 1)
	}
	return due
}

// MinuteKey renders the instant's wall-clock minute in loc as "HH:MM".
func MinuteKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// DayKey renders the instant's calendar day in loc as "YYYY-MM-DD".
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// SameMonthDay reports whether the stored "YYYY-MM-DD" date falls on now's
// month and day in loc, ignoring the year.
func SameMonthDay(date string, now time.Time, loc *time.Location) bool {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return false
	}
	n := now.In(loc)
	return d.Month() == n.Month() && d.Day() == n.Day()
}
