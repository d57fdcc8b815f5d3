package schedule

import (
	"fmt"
	"time"
)

// Closure reasons surfaced with an empty availability result.
const (
	ReasonClosedByException = "closed by exception"
	ReasonClosedThisDay     = "clinic closed this day"
)

// Source tells which record produced the effective hours.
type Source string

const (
	SourceWeekly    Source = "weekly"
	SourceException Source = "exception"
)

// EffectiveHours is the outcome of applying exceptions to the weekly schedule for a date.
type EffectiveHours struct {
	Date      string
	IsOpen    bool
	Hours     *DayHours
	Source    Source
	Reason    string
	Exception *Exception
}

// ResolveHours picks the hours that govern date: a matching exception wins over
// the weekday's standing hours. exc may be nil.
func ResolveHours(date time.Time, week Week, exc *Exception) (EffectiveHours, error) {
	eff := EffectiveHours{Date: date.Format(DateLayout), Source: SourceWeekly}

	if exc != nil {
		eff.Exception = exc
		eff.Source = SourceException
		if !exc.IsOpen {
			eff.Reason = ReasonClosedByException
			return eff, nil
		}
		if exc.HasCustomHours() {
			hours, err := exc.Hours()
			if err != nil {
				return eff, fmt.Errorf("schedule: exception %s: %w", exc.ID, err)
			}
			eff.IsOpen = true
			eff.Hours = hours
			return eff, nil
		}
	}

	weekly := week.For(date.Weekday())
	if !weekly.IsOpen {
		eff.Reason = ReasonClosedThisDay
		return eff, nil
	}
	hours, err := weekly.Hours()
	if err != nil {
		return eff, fmt.Errorf("schedule: %s hours: %w", DayName(date.Weekday()), err)
	}
	eff.IsOpen = true
	eff.Hours = hours
	return eff, nil
}
