package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/telehealth-scheduling/internal/events"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

// Notification event types emitted through the outbox.
const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventSessionStarted       = "SESSION_STARTED"
	EventSessionJoined        = "SESSION_JOINED"
	EventSessionEnded         = "SESSION_ENDED"
	EventSessionCancelled     = "SESSION_CANCELLED"
	EventSessionTechIssues    = "SESSION_TECHNICAL_ISSUES"
)

var appointmentEventByStatus = map[AppointmentStatus]string{
	StatusConfirmed: EventAppointmentConfirmed,
	StatusCancelled: EventAppointmentCancelled,
	StatusCompleted: EventAppointmentCompleted,
}

var tracer = otel.Tracer("github.com/hackgods/telehealth-scheduling/internal/booking")

type Service struct {
	repo    Repository
	configs ConfigProvider
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, configs ConfigProvider, locker redisclient.Locker, m *metrics.BookingMetrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		configs: configs,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the service clock. Tests pin it.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// loadConfig returns the provider's stored config, falling back to the
// explicit default when none exists.
func (s *Service) loadConfig(ctx context.Context, providerID uuid.UUID) (CalendarConfig, error) {
	cfg, err := s.configs.GetConfig(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return DefaultCalendarConfig(), nil
		}
		return CalendarConfig{}, storageErr("load calendar config", err)
	}
	return *cfg, nil
}

// ProposeSlots lists the bookable start times for a provider on one calendar
// day. The result is advisory: a commit re-validates against the live ledger
// under the provider lock.
func (s *Service) ProposeSlots(ctx context.Context, providerID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	ctx, span := tracer.Start(ctx, "booking.propose_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", providerID.String()),
		attribute.String("day", day.UTC().Format("2006-01-02")),
	)

	started := time.Now()
	defer func() { s.metrics.ObservePropose(time.Since(started)) }()

	cfg, err := s.loadConfig(ctx, providerID)
	if err != nil {
		return nil, err
	}

	candidates := GenerateSlots(cfg, day, cfg.SlotInterval(), s.now())
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := s.listDayWindow(ctx, providerID, day, detectReach(cfg.SlotInterval(), cfg.Buffer()))
	if err != nil {
		return nil, err
	}

	free := make([]TimeSlot, 0, len(candidates))
	for _, candidate := range candidates {
		window, err := FindConflict(candidate, cfg.Buffer(), existing)
		if err != nil {
			return nil, err
		}
		if window == nil {
			free = append(free, candidate)
		}
	}
	return free, nil
}

// detectReach is how far beyond a candidate's day the ledger read must
// extend: both intervals grow by the buffer before the overlap test, so an
// appointment up to 2x buffer away still collides, and a candidate starting
// late in the day spills its duration past midnight on top of that.
func detectReach(duration time.Duration, buffer time.Duration) time.Duration {
	return duration + 2*buffer
}

// listDayWindow reads the provider's active appointments for the day,
// widened by reach so appointments hanging over midnight on either side
// still participate in conflict checks.
func (s *Service) listDayWindow(ctx context.Context, providerID uuid.UUID, day time.Time, reach time.Duration) ([]Appointment, error) {
	y, m, d := day.UTC().Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	existing, err := s.repo.ListActive(ctx, providerID, dayStart.Add(-reach), dayEnd.Add(reach))
	if err != nil {
		return nil, storageErr("list active appointments", err)
	}
	return existing, nil
}

type CommitBookingInput struct {
	ProviderID      uuid.UUID
	SubjectID       uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Title           string
	Notes           string
	Telehealth      bool
}

// BookingResult is the committed appointment plus the telehealth session
// created alongside it, when one was requested.
type BookingResult struct {
	Appointment *Appointment
	Session     *TelehealthSession
}

// CommitBooking validates and books one slot. The conflict re-check and the
// insert run inside the provider lock, so concurrent commits for the same
// provider serialize; the exclusion constraint on appointments backstops the
// same invariant in storage.
func (s *Service) CommitBooking(ctx context.Context, in CommitBookingInput) (*BookingResult, error) {
	ctx, span := tracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", in.ProviderID.String()),
		attribute.String("start_at", in.StartAt.UTC().Format(time.RFC3339)),
	)

	if in.DurationMinutes <= 0 {
		s.metrics.RecordCommit(metrics.OutcomeInvalid)
		return nil, ErrInvalidDuration
	}

	startAt := in.StartAt.UTC()
	if !startAt.After(s.now()) {
		s.metrics.RecordCommit(metrics.OutcomePastTime)
		return nil, ErrPastStartTime
	}

	cfg, err := s.loadConfig(ctx, in.ProviderID)
	if err != nil {
		s.metrics.RecordCommit(metrics.OutcomeError)
		return nil, err
	}

	candidate := TimeSlot{
		Start: startAt,
		End:   startAt.Add(time.Duration(in.DurationMinutes) * time.Minute),
	}

	var result BookingResult
	err = s.locker.WithProviderLock(ctx, in.ProviderID, func(lockCtx context.Context) error {
		existing, err := s.listDayWindow(lockCtx, in.ProviderID, startAt, detectReach(candidate.End.Sub(candidate.Start), cfg.Buffer()))
		if err != nil {
			return err
		}

		window, err := FindConflict(candidate, cfg.Buffer(), existing)
		if err != nil {
			return err
		}
		if window != nil {
			return &ConflictError{Window: *window}
		}

		appt := &Appointment{
			ID:              uuid.New(),
			ProviderID:      in.ProviderID,
			SubjectID:       in.SubjectID,
			StartAt:         startAt,
			DurationMinutes: in.DurationMinutes,
			Status:          StatusScheduled,
			Title:           in.Title,
			Notes:           in.Notes,
		}

		var session *TelehealthSession
		if in.Telehealth {
			session = &TelehealthSession{
				ID:            uuid.New(),
				AppointmentID: appt.ID,
				Status:        SessionScheduled,
				JoinToken:     uuid.NewString(),
			}
		}

		blocked := TimeSlot{
			Start: candidate.Start.Add(-cfg.Buffer()),
			End:   candidate.End.Add(cfg.Buffer()),
		}
		notify := s.notification(EventAppointmentCreated, in.ProviderID, appt.ID, map[string]any{
			"subject_id":       in.SubjectID.String(),
			"start_at":         startAt.Format(time.RFC3339),
			"duration_minutes": in.DurationMinutes,
		})

		created, err := s.repo.Insert(lockCtx, appt, blocked, session, notify)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				// A competing booking got past the lock; name its window.
				return s.conflictFromLedger(lockCtx, in.ProviderID, candidate, cfg.Buffer())
			}
			return storageErr("insert appointment", err)
		}

		result.Appointment = created
		result.Session = session
		return nil
	})

	if err != nil {
		var conflict *ConflictError
		switch {
		case errors.As(err, &conflict):
			s.metrics.RecordCommit(metrics.OutcomeConflict)
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.RecordCommit(metrics.OutcomeBusy)
			return nil, ErrProviderBusy
		default:
			s.metrics.RecordCommit(metrics.OutcomeError)
		}
		return nil, err
	}

	s.metrics.RecordCommit(metrics.OutcomeSuccess)
	s.logger.Info().
		Stringer("appointment_id", result.Appointment.ID).
		Stringer("provider_id", result.Appointment.ProviderID).
		Time("start_at", result.Appointment.StartAt).
		Bool("telehealth", result.Session != nil).
		Msg("appointment booked")

	return &result, nil
}

// conflictFromLedger rebuilds the conflict window after the storage
// constraint fired, re-reading the ledger for the colliding appointment.
func (s *Service) conflictFromLedger(ctx context.Context, providerID uuid.UUID, candidate TimeSlot, buffer time.Duration) error {
	existing, err := s.listDayWindow(ctx, providerID, candidate.Start, detectReach(candidate.End.Sub(candidate.Start), buffer))
	if err == nil {
		if window, ferr := FindConflict(candidate, buffer, existing); ferr == nil && window != nil {
			return &ConflictError{Window: *window}
		}
	}
	return &ConflictError{Window: candidate}
}

// TransitionAppointment moves an appointment through its lifecycle and
// queues the matching notification for the subject.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, target AppointmentStatus) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.transition_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("target", string(target)),
	)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeNotFound)
			return nil, err
		}
		s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeError)
		return nil, storageErr("load appointment", err)
	}

	if err := CheckTransition(appt.Status, target); err != nil {
		s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeInvalid)
		return nil, err
	}

	notify := s.notification(appointmentEventByStatus[target], appt.SubjectID, appt.ID, map[string]any{
		"status": string(target),
	})

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, target, notify)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// CAS miss: another caller moved the status first.
			s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeInvalid)
			return nil, fmt.Errorf("%w: appointment status changed concurrently", ErrInvalidTransition)
		}
		s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeError)
		return nil, storageErr("update appointment status", err)
	}

	s.metrics.RecordTransition(metrics.EntityAppointment, metrics.OutcomeSuccess)
	s.logger.Info().
		Stringer("appointment_id", id).
		Str("from", string(appt.Status)).
		Str("to", string(target)).
		Msg("appointment transitioned")

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageErr("load appointment", err)
	}
	return appt, nil
}

// ListDay returns the provider's active appointments on one calendar day.
func (s *Service) ListDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error) {
	return s.listDayWindow(ctx, providerID, day, 0)
}

// notification builds an outbox row. A payload that fails to marshal is
// logged and replaced with an empty payload.
func (s *Service) notification(eventType string, recipientID, appointmentID uuid.UUID, payload map[string]any) *events.NotificationRequest {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("marshal notification payload")
		data = nil
	}
	return &events.NotificationRequest{
		EventType:     eventType,
		RecipientID:   recipientID,
		AppointmentID: appointmentID,
		Payload:       data,
	}
}
