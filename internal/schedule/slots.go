package schedule

// DefaultGranularityMinutes is the slot length used when none is configured.
const DefaultGranularityMinutes = 30

// GenerateSlots enumerates slot start times from openAt in steps of granularityMinutes,
// keeping every t with openAt <= t < closeAt and dropping t inside brk.
// A nil open or close means the day is closed and yields no slots.
func GenerateSlots(openAt, closeAt *TimeOfDay, brk *Window, granularityMinutes int) []TimeOfDay {
	if openAt == nil || closeAt == nil || *openAt >= *closeAt {
		return []TimeOfDay{}
	}
	step := TimeOfDay(granularityMinutes)
	if step <= 0 {
		step = DefaultGranularityMinutes
	}
	slots := make([]TimeOfDay, 0, int(*closeAt-*openAt)/int(step)+1)
	for t := *openAt; t < *closeAt; t += step {
		if brk != nil && brk.Contains(t) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// GenerateSlotStrings is GenerateSlots over HH:MM strings; "" means absent.
func GenerateSlotStrings(openAt, closeAt, breakStart, breakEnd string, granularityMinutes int) ([]string, error) {
	if openAt == "" || closeAt == "" {
		return []string{}, nil
	}
	var bs, be *string
	if breakStart != "" || breakEnd != "" {
		bs, be = &breakStart, &breakEnd
	}
	hours, err := NewDayHours(&openAt, &closeAt, bs, be)
	if err != nil {
		return nil, err
	}
	return FormatSlots(hours.Slots(granularityMinutes)), nil
}

// FormatSlots renders slots as HH:MM strings, preserving order.
func FormatSlots(slots []TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}
