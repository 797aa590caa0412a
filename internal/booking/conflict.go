package booking

import "time"

// FindConflict checks a candidate slot against a provider's appointments.
// Both the candidate and every active existing interval are expanded by the
// buffer on each side before the half-open overlap test, so the buffer holds
// from either appointment's perspective. It returns the first colliding
// appointment's unbuffered window, or nil when the candidate is free.
//
// Existing appointments whose status is not active are skipped; their slots
// are reusable immediately.
func FindConflict(candidate TimeSlot, buffer time.Duration, existing []Appointment) (*TimeSlot, error) {
	if !candidate.End.After(candidate.Start) {
		return nil, ErrInvalidDuration
	}

	candStart := candidate.Start.Add(-buffer)
	candEnd := candidate.End.Add(buffer)

	for _, appt := range existing {
		if !appt.Status.Active() {
			continue
		}
		existStart := appt.StartAt.Add(-buffer)
		existEnd := appt.EndAt().Add(buffer)

		if existStart.Before(candEnd) && candStart.Before(existEnd) {
			window := appt.Window()
			return &window, nil
		}
	}

	return nil, nil
}

// HasConflict is FindConflict reduced to a boolean.
func HasConflict(candidate TimeSlot, buffer time.Duration, existing []Appointment) (bool, error) {
	window, err := FindConflict(candidate, buffer, existing)
	return window != nil, err
}
