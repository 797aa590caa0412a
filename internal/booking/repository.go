package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/events"
)

// ConfigProvider supplies per-provider calendar configuration. Callers fall
// back to DefaultCalendarConfig when ErrConfigNotFound comes back.
type ConfigProvider interface {
	GetConfig(ctx context.Context, providerID uuid.UUID) (*CalendarConfig, error)
}

// Repository holds every ledger interaction the service needs. Writes that
// carry a notification request persist it in the same transaction as the
// row change, so a committed change always has its outbox row.
type Repository interface {
	// ListActive returns the provider's active appointments overlapping
	// [from, to), ordered by start time.
	ListActive(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Insert books an appointment, its optional telehealth session and the
	// notification in one transaction. blocked is the buffered window the
	// storage layer guards with its exclusion constraint; an overlap there
	// surfaces as ErrSlotTaken.
	Insert(ctx context.Context, appt *Appointment, blocked TimeSlot, session *TelehealthSession, notify *events.NotificationRequest) (*Appointment, error)

	// UpdateStatus moves an appointment from one status to another with a
	// compare-and-set on the current status. A missed CAS surfaces as
	// ErrAppointmentNotFound.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notify *events.NotificationRequest) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	GetSessionByID(ctx context.Context, id uuid.UUID) (*TelehealthSession, error)
	GetSessionByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*TelehealthSession, error)

	// UpdateSession writes the session's mutable fields with a
	// compare-and-set on the previous status.
	UpdateSession(ctx context.Context, sess *TelehealthSession, from SessionStatus, notify *events.NotificationRequest) (*TelehealthSession, error)
}
