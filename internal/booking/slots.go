package booking

import "time"

// GenerateSlots produces the candidate slots for one calendar day, in
// ascending order: a candidate starts every SlotIntervalMinutes from
// WorkStart and must begin strictly before WorkEnd. Non-working days yield
// nothing, and candidates starting at or before now are dropped. The
// generator is pure; callers filter the result through FindConflict.
func GenerateSlots(cfg CalendarConfig, day time.Time, duration time.Duration, now time.Time) []TimeSlot {
	if cfg.SlotIntervalMinutes <= 0 || duration <= 0 {
		return nil
	}
	if !cfg.WorksOn(day.UTC().Weekday()) {
		return nil
	}

	var slots []TimeSlot
	for t := cfg.WorkStart; t < cfg.WorkEnd; t += TimeOfDay(cfg.SlotIntervalMinutes) {
		start := t.OnDay(day)
		if !start.After(now) {
			continue
		}
		slots = append(slots, TimeSlot{Start: start, End: start.Add(duration)})
	}
	return slots
}
