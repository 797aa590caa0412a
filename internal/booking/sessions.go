package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/telehealth-scheduling/internal/events"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
)

// StartSession moves a telehealth session into in_session. The first start
// stamps StartedAt; a restart after a join keeps the original timestamp.
func (s *Service) StartSession(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	ctx, span := tracer.Start(ctx, "booking.start_session")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", id.String()))

	sess, appt, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Status != SessionScheduled && sess.Status != SessionWaitingRoom {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: cannot start session from %s", ErrInvalidTransition, sess.Status)
	}

	from := sess.Status
	sess.Status = SessionInSession
	if sess.StartedAt == nil {
		now := s.now()
		sess.StartedAt = &now
	}

	notify := s.notification(EventSessionStarted, appt.SubjectID, appt.ID, map[string]any{
		"session_id": sess.ID.String(),
	})
	return s.updateSession(ctx, sess, from, notify)
}

// JoinSession puts a participant in the waiting room and records their join
// time. Joining is idempotent for any non-terminal session: a repeat join
// just re-records the participant's timestamp. The other party gets the
// notification.
func (s *Service) JoinSession(ctx context.Context, id uuid.UUID, isSubject bool) (*TelehealthSession, error) {
	ctx, span := tracer.Start(ctx, "booking.join_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", id.String()),
		attribute.Bool("is_subject", isSubject),
	)

	sess, appt, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: cannot join session in %s", ErrInvalidTransition, sess.Status)
	}

	from := sess.Status
	sess.Status = SessionWaitingRoom
	now := s.now()

	role := "provider"
	recipient := appt.SubjectID
	if isSubject {
		role = "subject"
		recipient = appt.ProviderID
		sess.SubjectJoinedAt = &now
	} else {
		sess.ProviderJoinedAt = &now
	}

	notify := s.notification(EventSessionJoined, recipient, appt.ID, map[string]any{
		"session_id": sess.ID.String(),
		"role":       role,
	})
	return s.updateSession(ctx, sess, from, notify)
}

// EndSession completes a session and stamps EndedAt. A session that never
// started cannot be ended.
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	ctx, span := tracer.Start(ctx, "booking.end_session")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", id.String()))

	sess, appt, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: cannot end session in %s", ErrInvalidTransition, sess.Status)
	}
	if sess.StartedAt == nil {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
		return nil, ErrSessionNotStarted
	}

	from := sess.Status
	sess.Status = SessionCompleted
	now := s.now()
	sess.EndedAt = &now

	notify := s.notification(EventSessionEnded, appt.SubjectID, appt.ID, map[string]any{
		"session_id": sess.ID.String(),
	})
	return s.updateSession(ctx, sess, from, notify)
}

// CancelSession closes a session without requiring it to have started.
func (s *Service) CancelSession(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	return s.closeSession(ctx, id, SessionCancelled, EventSessionCancelled)
}

// FlagSessionTechnicalIssues closes a session that broke down mid-call or
// never connected.
func (s *Service) FlagSessionTechnicalIssues(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	return s.closeSession(ctx, id, SessionTechnicalIssues, EventSessionTechIssues)
}

func (s *Service) closeSession(ctx context.Context, id uuid.UUID, target SessionStatus, eventType string) (*TelehealthSession, error) {
	ctx, span := tracer.Start(ctx, "booking.close_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", id.String()),
		attribute.String("target", string(target)),
	)

	sess, appt, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: session already %s", ErrInvalidTransition, sess.Status)
	}

	from := sess.Status
	sess.Status = target

	notify := s.notification(eventType, appt.SubjectID, appt.ID, map[string]any{
		"session_id": sess.ID.String(),
	})
	return s.updateSession(ctx, sess, from, notify)
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	sess, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, storageErr("load telehealth session", err)
	}
	return sess, nil
}

func (s *Service) SessionForAppointment(ctx context.Context, appointmentID uuid.UUID) (*TelehealthSession, error) {
	sess, err := s.repo.GetSessionByAppointmentID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, storageErr("load telehealth session", err)
	}
	return sess, nil
}

func (s *Service) loadSession(ctx context.Context, id uuid.UUID) (*TelehealthSession, *Appointment, error) {
	sess, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeNotFound)
			return nil, nil, err
		}
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeError)
		return nil, nil, storageErr("load telehealth session", err)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, sess.AppointmentID)
	if err != nil {
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeError)
		return nil, nil, storageErr("load session appointment", err)
	}
	return sess, appt, nil
}

func (s *Service) updateSession(ctx context.Context, sess *TelehealthSession, from SessionStatus, notify *events.NotificationRequest) (*TelehealthSession, error) {
	updated, err := s.repo.UpdateSession(ctx, sess, from, notify)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// CAS miss: another caller moved the session first.
			s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeInvalid)
			return nil, fmt.Errorf("%w: session status changed concurrently", ErrInvalidTransition)
		}
		s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeError)
		return nil, storageErr("update telehealth session", err)
	}

	s.metrics.RecordTransition(metrics.EntitySession, metrics.OutcomeSuccess)
	s.logger.Info().
		Stringer("session_id", updated.ID).
		Str("status", string(updated.Status)).
		Msg("session transitioned")

	return updated, nil
}
