package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open [Start, End) range within a day.
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t TimeOfDay) bool {
	return t >= w.Start && t < w.End
}

// DayHours are the parsed opening hours for one open day.
type DayHours struct {
	Open  TimeOfDay
	Close TimeOfDay
	Break *Window
}

// NewDayHours parses and validates open/close and an optional break.
// Open must precede close and the break, when present, must sit inside them.
func NewDayHours(openAt, closeAt, breakStart, breakEnd *string) (*DayHours, error) {
	o, err := parseOptional(openAt)
	if err != nil {
		return nil, err
	}
	c, err := parseOptional(closeAt)
	if err != nil {
		return nil, err
	}
	if o == nil || c == nil {
		return nil, fmt.Errorf("schedule: open and close times are required")
	}
	if *o >= *c {
		return nil, fmt.Errorf("schedule: open time %s must be before close time %s", o, c)
	}
	bs, err := parseOptional(breakStart)
	if err != nil {
		return nil, err
	}
	be, err := parseOptional(breakEnd)
	if err != nil {
		return nil, err
	}
	h := &DayHours{Open: *o, Close: *c}
	switch {
	case bs == nil && be == nil:
	case bs == nil || be == nil:
		return nil, fmt.Errorf("schedule: break needs both start and end")
	case *bs >= *be:
		return nil, fmt.Errorf("schedule: break start %s must be before break end %s", bs, be)
	case *bs < *o || *be > *c:
		return nil, fmt.Errorf("schedule: break %s-%s outside opening hours %s-%s", bs, be, o, c)
	default:
		h.Break = &Window{Start: *bs, End: *be}
	}
	return h, nil
}

// Slots enumerates the bookable slot starts for these hours.
func (h *DayHours) Slots(granularityMinutes int) []TimeOfDay {
	if h == nil {
		return nil
	}
	return GenerateSlots(&h.Open, &h.Close, h.Break, granularityMinutes)
}

// WeeklyHours is the standing schedule for one weekday.
type WeeklyHours struct {
	DayOfWeek  time.Weekday `json:"day_of_week"`
	IsOpen     bool         `json:"is_open"`
	OpenTime   *string      `json:"open_time"`
	CloseTime  *string      `json:"close_time"`
	BreakStart *string      `json:"break_start"`
	BreakEnd   *string      `json:"break_end"`
}

// Validate enforces that closed days carry no times and open days carry a consistent set.
func (w WeeklyHours) Validate() error {
	const op = "schedule.weekly_hours"
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return Validation(op, fmt.Sprintf("day_of_week %d out of range", w.DayOfWeek), "Día de la semana inválido")
	}
	if !w.IsOpen {
		if w.OpenTime != nil || w.CloseTime != nil || w.BreakStart != nil || w.BreakEnd != nil {
			return Validation(op, "closed day must not carry times", "Un día cerrado no debe tener horario")
		}
		return nil
	}
	if _, err := NewDayHours(w.OpenTime, w.CloseTime, w.BreakStart, w.BreakEnd); err != nil {
		return Validation(op, err.Error(), "El horario del día no es válido")
	}
	return nil
}

// Hours returns the parsed hours, or nil when the day is closed.
func (w WeeklyHours) Hours() (*DayHours, error) {
	if !w.IsOpen {
		return nil, nil
	}
	return NewDayHours(w.OpenTime, w.CloseTime, w.BreakStart, w.BreakEnd)
}

// Week holds one WeeklyHours per weekday, indexed by time.Weekday.
type Week [7]WeeklyHours

// WeekFrom builds a Week from stored rows. Days without a row are closed.
func WeekFrom(rows []WeeklyHours) Week {
	var w Week
	for d := time.Sunday; d <= time.Saturday; d++ {
		w[d] = WeeklyHours{DayOfWeek: d}
	}
	for _, r := range rows {
		if r.DayOfWeek >= time.Sunday && r.DayOfWeek <= time.Saturday {
			w[r.DayOfWeek] = r
		}
	}
	return w
}

// For returns the standing hours for a weekday.
func (w Week) For(day time.Weekday) WeeklyHours {
	return w[day]
}

// Days lists the week Monday first, the order the admin screens use.
func (w Week) Days() []WeeklyHours {
	out := make([]WeeklyHours, 0, 7)
	for i := 1; i <= 7; i++ {
		out = append(out, w[time.Weekday(i%7)])
	}
	return out
}

// DefaultWeek is the schedule seeded for a new clinic.
func DefaultWeek() Week {
	weekday := func(d time.Weekday) WeeklyHours {
		return WeeklyHours{
			DayOfWeek:  d,
			IsOpen:     true,
			OpenTime:   strPtr("09:00"),
			CloseTime:  strPtr("18:00"),
			BreakStart: strPtr("13:00"),
			BreakEnd:   strPtr("14:00"),
		}
	}
	return WeekFrom([]WeeklyHours{
		weekday(time.Monday),
		weekday(time.Tuesday),
		weekday(time.Wednesday),
		weekday(time.Thursday),
		weekday(time.Friday),
		{DayOfWeek: time.Saturday, IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("14:00")},
		{DayOfWeek: time.Sunday},
	})
}

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var spanishDayNames = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"miércoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
}

// DayName returns the lowercase English key used for a weekday.
func DayName(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return ""
	}
	return dayNames[d]
}

// ParseDayName accepts English or Spanish day names and 0-6 (0=Sunday).
func ParseDayName(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range dayNames {
		if key == name {
			return time.Weekday(i), nil
		}
	}
	if d, ok := spanishDayNames[key]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, Validation("schedule.day_name", fmt.Sprintf("unknown day %q", s), "Día de la semana inválido")
}

func strPtr(s string) *string { return &s }
