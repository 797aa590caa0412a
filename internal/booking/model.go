package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Active reports whether an appointment in this status occupies its slot.
// Cancelled and completed appointments never participate in conflict checks.
func (s AppointmentStatus) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch status := AppointmentStatus(s); status {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
}

type SessionStatus string

const (
	SessionScheduled       SessionStatus = "scheduled"
	SessionWaitingRoom     SessionStatus = "waiting_room"
	SessionInSession       SessionStatus = "in_session"
	SessionCompleted       SessionStatus = "completed"
	SessionCancelled       SessionStatus = "cancelled"
	SessionTechnicalIssues SessionStatus = "technical_issues"
)

// Terminal reports whether no further session transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionTechnicalIssues
}

// TimeOfDay is a clock time within a day, stored as minutes from midnight.
// Its storage form is "HH:MM".
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// OnDay anchors the clock time to the given UTC calendar day.
func (t TimeOfDay) OnDay(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(t) * time.Minute)
}

// CalendarConfig is a provider's working window, slot spacing and buffer.
// Rows are maintained outside the engine; it only reads them.
type CalendarConfig struct {
	ID                  uuid.UUID
	ProviderID          *uuid.UUID // nil means the global default row
	SlotIntervalMinutes int
	BufferMinutes       int
	WorkStart           TimeOfDay
	WorkEnd             TimeOfDay
	WorkingDays         []time.Weekday
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultCalendarConfig is the explicit fallback for providers with no
// stored configuration: hourly slots, no buffer, 09:00-17:00, Monday-Friday.
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		SlotIntervalMinutes: 60,
		BufferMinutes:       0,
		WorkStart:           9 * 60,
		WorkEnd:             17 * 60,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func (c CalendarConfig) SlotInterval() time.Duration {
	return time.Duration(c.SlotIntervalMinutes) * time.Minute
}

func (c CalendarConfig) Buffer() time.Duration {
	return time.Duration(c.BufferMinutes) * time.Minute
}

func (c CalendarConfig) WorksOn(day time.Weekday) bool {
	for _, d := range c.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

func (c CalendarConfig) Validate() error {
	if c.SlotIntervalMinutes <= 0 {
		return errors.New("slot interval must be positive")
	}
	if c.BufferMinutes < 0 {
		return errors.New("buffer minutes must not be negative")
	}
	if c.WorkStart >= c.WorkEnd {
		return errors.New("work start must be before work end")
	}
	return nil
}

// TimeSlot is a half-open interval [Start, End).
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	SubjectID       uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Title           string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Window is the appointment's occupancy interval, without buffer.
func (a Appointment) Window() TimeSlot {
	return TimeSlot{Start: a.StartAt, End: a.EndAt()}
}

type TelehealthSession struct {
	ID               uuid.UUID
	AppointmentID    uuid.UUID
	Status           SessionStatus
	JoinToken        string
	StartedAt        *time.Time
	EndedAt          *time.Time
	SubjectJoinedAt  *time.Time
	ProviderJoinedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
