package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Exception overrides the weekly schedule for a date or an inclusive date range:
// a holiday closure, or one-off custom hours.
type Exception struct {
	ID         string    `json:"id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	IsOpen     bool      `json:"is_open"`
	OpenTime   *string   `json:"open_time,omitempty"`
	CloseTime  *string   `json:"close_time,omitempty"`
	BreakStart *string   `json:"break_start,omitempty"`
	BreakEnd   *string   `json:"break_end,omitempty"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Normalize trims inputs and defaults EndDate to StartDate for single-day exceptions.
func (e *Exception) Normalize() {
	e.StartDate = strings.TrimSpace(e.StartDate)
	e.EndDate = strings.TrimSpace(e.EndDate)
	if e.EndDate == "" {
		e.EndDate = e.StartDate
	}
	e.Reason = strings.TrimSpace(e.Reason)
}

// Covers reports whether the exception applies to date (YYYY-MM-DD).
func (e Exception) Covers(date string) bool {
	end := e.EndDate
	if end == "" {
		end = e.StartDate
	}
	return e.StartDate <= date && date <= end
}

// HasCustomHours reports whether the exception replaces the opening times.
func (e Exception) HasCustomHours() bool {
	return e.OpenTime != nil || e.CloseTime != nil
}

// Hours returns the custom hours, or nil when the exception keeps the weekly times.
func (e Exception) Hours() (*DayHours, error) {
	if !e.IsOpen || !e.HasCustomHours() {
		return nil, nil
	}
	return NewDayHours(e.OpenTime, e.CloseTime, e.BreakStart, e.BreakEnd)
}

// Validate checks the date range and the hours invariant.
func (e Exception) Validate() error {
	const op = "schedule.exception"
	start, err := ParseDate(e.StartDate, time.UTC)
	if err != nil {
		return Validation(op, err.Error(), "La fecha de inicio no es válida")
	}
	end := start
	if e.EndDate != "" {
		if end, err = ParseDate(e.EndDate, time.UTC); err != nil {
			return Validation(op, err.Error(), "La fecha de fin no es válida")
		}
	}
	if end.Before(start) {
		return Validation(op, fmt.Sprintf("end %s before start %s", e.EndDate, e.StartDate), "La fecha de fin debe ser posterior a la de inicio")
	}
	if !e.IsOpen {
		if e.HasCustomHours() || e.BreakStart != nil || e.BreakEnd != nil {
			return Validation(op, "closing exception must not carry times", "Un día cerrado no debe tener horario")
		}
		return nil
	}
	if !e.HasCustomHours() {
		if e.BreakStart != nil || e.BreakEnd != nil {
			return Validation(op, "break without custom hours", "Indica la hora de apertura y cierre")
		}
		return nil
	}
	if _, err := e.Hours(); err != nil {
		return Validation(op, err.Error(), "El horario especial no es válido")
	}
	return nil
}

// ValidateAgainst rejects an open exception without custom hours that covers
// a weekday the standing schedule keeps closed: those dates have no times to inherit.
func (e Exception) ValidateAgainst(week Week) error {
	if !e.IsOpen || e.HasCustomHours() {
		return nil
	}
	start, err := ParseDate(e.StartDate, time.UTC)
	if err != nil {
		return Validation("schedule.exception", err.Error(), "La fecha de inicio no es válida")
	}
	end := start
	if e.EndDate != "" {
		if end, err = ParseDate(e.EndDate, time.UTC); err != nil {
			return Validation("schedule.exception", err.Error(), "La fecha de fin no es válida")
		}
	}
	for d, n := start, 0; !d.After(end) && n < 7; d, n = d.AddDate(0, 0, 1), n+1 {
		if !week.For(d.Weekday()).IsOpen {
			return Validation("schedule.exception",
				fmt.Sprintf("%s is closed weekly and the exception has no hours", d.Format(DateLayout)),
				"Indica la hora de apertura y cierre para abrir un día que normalmente está cerrado")
		}
	}
	return nil
}
