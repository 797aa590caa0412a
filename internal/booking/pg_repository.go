package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-scheduling/internal/events"
)

// Querier is the slice of pgxpool the repository uses. pgxmock satisfies it
// in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db Querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func NewPgRepositoryWithQuerier(q Querier) *PgRepository {
	return &PgRepository{db: q}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.SubjectID,
		&a.StartAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Title,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanSession(row pgx.Row) (*TelehealthSession, error) {
	var s TelehealthSession
	err := row.Scan(
		&s.ID,
		&s.AppointmentID,
		&s.Status,
		&s.JoinToken,
		&s.StartedAt,
		&s.EndedAt,
		&s.SubjectJoinedAt,
		&s.ProviderJoinedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanConfig(row pgx.Row) (*CalendarConfig, error) {
	var (
		c         CalendarConfig
		workStart string
		workEnd   string
		days      []int32
	)
	err := row.Scan(
		&c.ID,
		&c.ProviderID,
		&c.SlotIntervalMinutes,
		&c.BufferMinutes,
		&workStart,
		&workEnd,
		&days,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	if c.WorkStart, err = ParseTimeOfDay(workStart); err != nil {
		return nil, fmt.Errorf("calendar config work_start: %w", err)
	}
	if c.WorkEnd, err = ParseTimeOfDay(workEnd); err != nil {
		return nil, fmt.Errorf("calendar config work_end: %w", err)
	}
	for _, d := range days {
		c.WorkingDays = append(c.WorkingDays, time.Weekday(d))
	}
	return &c, nil
}

// GetConfig prefers the provider's own row over the global default row.
func (r *PgRepository) GetConfig(ctx context.Context, providerID uuid.UUID) (*CalendarConfig, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, provider_id, slot_interval_minutes, buffer_minutes, work_start, work_end, working_days, created_at, updated_at
		FROM calendar_configs
		WHERE provider_id = $1 OR provider_id IS NULL
		ORDER BY provider_id NULLS LAST
		LIMIT 1
	`, providerID)

	return scanConfig(row)
}

func (r *PgRepository) ListActive(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, created_at, updated_at
		FROM appointments
		WHERE provider_id = $1
		  AND status IN ('scheduled', 'confirmed')
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *appt)
	}
	return appointments, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)

	return scanAppointment(row)
}

func (r *PgRepository) Insert(ctx context.Context, appt *Appointment, blocked TimeSlot, session *TelehealthSession, notify *events.NotificationRequest) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, blocked_during, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, tstzrange($9, $10, '[)'), now(), now())
		RETURNING id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, created_at, updated_at
	`, appt.ID, appt.ProviderID, appt.SubjectID, appt.StartAt, appt.DurationMinutes, appt.Status, appt.Title, appt.Notes, blocked.Start, blocked.End)

	created, err := scanAppointment(row)
	if err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if session != nil {
		srow := tx.QueryRow(ctx, `
			INSERT INTO telehealth_sessions (id, appointment_id, status, join_token, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			RETURNING id, appointment_id, status, join_token, started_at, ended_at, subject_joined_at, provider_joined_at, created_at, updated_at
		`, session.ID, session.AppointmentID, session.Status, session.JoinToken)

		createdSession, err := scanSession(srow)
		if err != nil {
			return nil, fmt.Errorf("insert telehealth session: %w", err)
		}
		*session = *createdSession
	}

	if notify != nil {
		if err := events.Append(ctx, tx, notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notify *events.NotificationRequest) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update status: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, created_at, updated_at
	`, id, to, from)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if notify != nil {
		if err := events.Append(ctx, tx, notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update status: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) GetSessionByID(ctx context.Context, id uuid.UUID) (*TelehealthSession, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, appointment_id, status, join_token, started_at, ended_at, subject_joined_at, provider_joined_at, created_at, updated_at
		FROM telehealth_sessions
		WHERE id = $1
	`, id)

	return scanSession(row)
}

func (r *PgRepository) GetSessionByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*TelehealthSession, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, appointment_id, status, join_token, started_at, ended_at, subject_joined_at, provider_joined_at, created_at, updated_at
		FROM telehealth_sessions
		WHERE appointment_id = $1
	`, appointmentID)

	return scanSession(row)
}

func (r *PgRepository) UpdateSession(ctx context.Context, sess *TelehealthSession, from SessionStatus, notify *events.NotificationRequest) (*TelehealthSession, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update session: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE telehealth_sessions
		SET status = $2,
		    started_at = $3,
		    ended_at = $4,
		    subject_joined_at = $5,
		    provider_joined_at = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status = $7
		RETURNING id, appointment_id, status, join_token, started_at, ended_at, subject_joined_at, provider_joined_at, created_at, updated_at
	`, sess.ID, sess.Status, sess.StartedAt, sess.EndedAt, sess.SubjectJoinedAt, sess.ProviderJoinedAt, from)

	updated, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	if notify != nil {
		if err := events.Append(ctx, tx, notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update session: %w", err)
	}
	return updated, nil
}

// isOverlapViolation matches the errors the appointments table raises when
// two active bookings collide: the gist exclusion constraint (23P01) or a
// duplicate key (23505).
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01" || pgErr.Code == "23505"
	}
	return false
}
