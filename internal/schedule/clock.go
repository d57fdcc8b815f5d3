package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" and the "HH:MM:SS" form Postgres returns for time columns.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 && strings.HasSuffix(s, ":00") {
		s = s[:5]
	}
	if len(s) != 5 {
		return 0, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On places the time of day on the calendar date of d in loc.
func (t TimeOfDay) On(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, int(t)/60, int(t)%60, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q", s)
	}
	return d, nil
}

// Instant combines a date and an HH:MM time into one instant in loc.
func Instant(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := ParseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, err
	}
	return tod.On(d, loc), nil
}

// SameDate reports whether a and b fall on the same calendar day in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return a.In(loc).Format(DateLayout) == b.In(loc).Format(DateLayout)
}

func parseOptional(s *string) (*TimeOfDay, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
