package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSessionNotFound     = errors.New("telehealth session not found")
	ErrConfigNotFound      = errors.New("calendar config not found")

	ErrPastStartTime     = errors.New("appointment start time must be in the future")
	ErrInvalidDuration   = errors.New("appointment duration must be positive")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSessionNotStarted = errors.New("session was never started")

	// ErrSlotTaken is the storage-level overlap signal (unique or exclusion
	// violation). The service translates it into a ConflictError.
	ErrSlotTaken = errors.New("slot already booked")

	ErrProviderBusy = errors.New("provider calendar is busy, retry shortly")
)

// ConflictError reports the colliding appointment's time window. It carries
// the window only, never the colliding appointment's identity.
type ConflictError struct {
	Window TimeSlot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with an existing appointment between %s and %s",
		e.Window.Start.UTC().Format(time.RFC3339), e.Window.End.UTC().Format(time.RFC3339))
}

// StorageError wraps a persistence failure. The failed operation as a whole
// is retryable; conflict validation runs again on the retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
