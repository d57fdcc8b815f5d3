// Package availability derives the bookable slots of a date from the
// effective business hours, existing bookings and the lead-time policy.
package availability

import (
	"time"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

const (
	DefaultMinLead = 30 * time.Minute
	// MaxRangeDays caps AvailableDays queries.
	MaxRangeDays = 62
)

// ReasonDateInPast is reported for dates before today in the clinic's timezone.
const ReasonDateInPast = "date in the past"

// Policy holds the tunables of slot resolution.
type Policy struct {
	GranularityMinutes int
	MinLead            time.Duration
	Location           *time.Location
}

// DefaultPolicy is 30-minute slots, 30 minutes lead time, UTC.
func DefaultPolicy() Policy {
	return Policy{GranularityMinutes: schedule.DefaultGranularityMinutes, MinLead: DefaultMinLead, Location: time.UTC}
}

func (p Policy) normalized() Policy {
	if p.GranularityMinutes <= 0 {
		p.GranularityMinutes = schedule.DefaultGranularityMinutes
	}
	if p.MinLead < 0 {
		p.MinLead = 0
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}

// HoursView is the business_hours block returned with availability.
type HoursView struct {
	IsOpen     bool            `json:"is_open"`
	OpenTime   string          `json:"open_time,omitempty"`
	CloseTime  string          `json:"close_time,omitempty"`
	BreakStart string          `json:"break_start,omitempty"`
	BreakEnd   string          `json:"break_end,omitempty"`
	Source     schedule.Source `json:"source"`
}

// Restriction explains why slots inside the open hours are not offered.
type Restriction struct {
	Type    string `json:"type"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Message string `json:"message"`
}

const (
	RestrictionBreak     = "break"
	RestrictionLeadTime  = "lead_time"
	RestrictionException = "exception"
)

// Result is the availability of one date.
type Result struct {
	Date          string        `json:"date"`
	Slots         []string      `json:"availableSlots"`
	Reason        string        `json:"reason,omitempty"`
	BusinessHours HoursView     `json:"business_hours"`
	Restrictions  []Restriction `json:"restrictions,omitempty"`
}

// Has reports whether clock (HH:MM) is bookable.
func (r Result) Has(clock string) bool {
	for _, s := range r.Slots {
		if s == clock {
			return true
		}
	}
	return false
}

func viewOf(eff schedule.EffectiveHours) HoursView {
	v := HoursView{IsOpen: eff.IsOpen, Source: eff.Source}
	if eff.Hours == nil {
		return v
	}
	v.OpenTime = eff.Hours.Open.String()
	v.CloseTime = eff.Hours.Close.String()
	if eff.Hours.Break != nil {
		v.BreakStart = eff.Hours.Break.Start.String()
		v.BreakEnd = eff.Hours.Break.End.String()
	}
	return v
}

// Compute is the pure core of resolution: generate slots for the effective
// hours, drop booked ones and, for today, those inside the lead-time window.
// booked holds HH:MM strings. The result is ordered ascending.
func Compute(eff schedule.EffectiveHours, booked []string, now time.Time, policy Policy) Result {
	policy = policy.normalized()
	res := Result{Date: eff.Date, Slots: []string{}, BusinessHours: viewOf(eff)}

	if eff.Exception != nil && eff.Exception.Reason != "" {
		res.Restrictions = append(res.Restrictions, Restriction{
			Type:    RestrictionException,
			Message: eff.Exception.Reason,
		})
	}
	if !eff.IsOpen || eff.Hours == nil {
		res.Reason = eff.Reason
		if res.Reason == "" {
			res.Reason = schedule.ReasonClosedThisDay
		}
		return res
	}

	date, err := schedule.ParseDate(eff.Date, policy.Location)
	if err != nil {
		return res
	}
	localNow := now.In(policy.Location)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, policy.Location)
	if date.Before(today) {
		res.Reason = ReasonDateInPast
		return res
	}

	if brk := eff.Hours.Break; brk != nil {
		res.Restrictions = append(res.Restrictions, Restriction{
			Type:    RestrictionBreak,
			Start:   brk.Start.String(),
			End:     brk.End.String(),
			Message: "Horario de comida",
		})
	}

	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	isToday := date.Equal(today)
	cutoff := localNow.Add(policy.MinLead)
	leadApplied := false
	for _, slot := range eff.Hours.Slots(policy.GranularityMinutes) {
		clock := slot.String()
		if _, ok := taken[clock]; ok {
			continue
		}
		if isToday && slot.On(date, policy.Location).Before(cutoff) {
			leadApplied = true
			continue
		}
		res.Slots = append(res.Slots, clock)
	}
	if leadApplied {
		res.Restrictions = append(res.Restrictions, Restriction{
			Type:    RestrictionLeadTime,
			End:     cutoff.Format("15:04"),
			Message: "Las citas deben reservarse con anticipación",
		})
	}
	return res
}
