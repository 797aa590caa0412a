package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
)

// seededProvider carries the calendar rules appointments are placed under so
// the seed never violates the appointments_no_overlap constraint.
type seededProvider struct {
	id        uuid.UUID
	custom    bool
	interval  int
	buffer    int
	workStart booking.TimeOfDay
	workEnd   booking.TimeOfDay
	days      []time.Weekday
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("dev", "seed")
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.Env, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providers := buildProviders(40)

	if err := seedConfigs(context.Background(), pool, providers); err != nil {
		logger.Fatal().Err(err).Msg("seed calendar configs")
	}
	logger.Info().Int("providers", len(providers)).Msg("calendar configs seeded")

	total, err := seedAppointments(context.Background(), pool, logger, providers, 12)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}
	logger.Info().Int("appointments", total).Msg("seed complete")
}

// buildProviders assigns the first half custom calendars and leaves the rest
// on the global default. Every variant keeps interval >= 2*buffer so that
// booking every other slot leaves buffered windows disjoint.
func buildProviders(count int) []seededProvider {
	variants := []struct {
		interval, buffer int
		start, end       string
		days             []time.Weekday
	}{
		{30, 15, "08:00", "16:00", weekdays(time.Monday, time.Friday)},
		{45, 10, "09:00", "17:00", weekdays(time.Monday, time.Friday)},
		{60, 15, "10:00", "18:00", weekdays(time.Monday, time.Saturday)},
		{60, 0, "09:00", "13:00", weekdays(time.Monday, time.Friday)},
	}

	def := booking.DefaultCalendarConfig()

	providers := make([]seededProvider, count)
	for i := range providers {
		p := seededProvider{
			id:        uuid.New(),
			interval:  def.SlotIntervalMinutes,
			buffer:    def.BufferMinutes,
			workStart: def.WorkStart,
			workEnd:   def.WorkEnd,
			days:      def.WorkingDays,
		}

		if i < count/2 {
			v := variants[gofakeit.Number(0, len(variants)-1)]
			start, _ := booking.ParseTimeOfDay(v.start)
			end, _ := booking.ParseTimeOfDay(v.end)
			p.custom = true
			p.interval = v.interval
			p.buffer = v.buffer
			p.workStart = start
			p.workEnd = end
			p.days = v.days
		}

		providers[i] = p
	}

	return providers
}

func weekdays(from, to time.Weekday) []time.Weekday {
	days := make([]time.Weekday, 0, int(to-from)+1)
	for d := from; d <= to; d++ {
		days = append(days, d)
	}
	return days
}

func weekdayInts(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

// seedConfigs writes one global default row plus a row per custom provider
// in a single transaction.
func seedConfigs(ctx context.Context, pool *pgxpool.Pool, providers []seededProvider) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	def := booking.DefaultCalendarConfig()
	_, err = tx.Exec(ctx, `
		INSERT INTO calendar_configs (id, provider_id, slot_interval_minutes, buffer_minutes, work_start, work_end, working_days, created_at, updated_at)
		VALUES ($1, NULL, $2, $3, $4, $5, $6, now(), now())
	`, uuid.New(), def.SlotIntervalMinutes, def.BufferMinutes, def.WorkStart.String(), def.WorkEnd.String(), weekdayInts(def.WorkingDays))
	if err != nil {
		return err
	}

	for _, p := range providers {
		if !p.custom {
			continue
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO calendar_configs (id, provider_id, slot_interval_minutes, buffer_minutes, work_start, work_end, working_days, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, uuid.New(), p.id, p.interval, p.buffer, p.workStart.String(), p.workEnd.String(), weekdayInts(p.days))
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

var visitTitles = []string{
	"Initial consultation",
	"Follow-up visit",
	"Medication review",
	"Lab results review",
	"Annual checkup",
	"Therapy session",
	"Post-op check",
	"Intake assessment",
}

// seedAppointments books every other slot on a provider's working days so
// adjacent buffered windows never overlap. Future slots come out scheduled or
// confirmed, a trailing handful of past slots completed, and one cancelled
// appointment reuses an occupied slot since cancelled rows leave the
// exclusion constraint.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, providers []seededProvider, perProvider int) (int, error) {
	total := 0

	for i, p := range providers {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return total, err
		}

		starts := slotStarts(p, time.Now().UTC(), perProvider)
		n, err := insertProviderAppointments(ctx, tx, p, starts)
		if err != nil {
			_ = tx.Rollback(ctx)
			return total, err
		}

		if err := tx.Commit(ctx); err != nil {
			return total, err
		}

		total += n
		if (i+1)%10 == 0 {
			logger.Info().Int("providers", i+1).Int("appointments", total).Msg("seeding progress")
		}
	}

	return total, nil
}

// slotStarts yields count future starts walking forward from tomorrow plus
// three past starts walking backward, skipping non-working days and taking
// every other slot.
func slotStarts(p seededProvider, now time.Time, count int) (starts []time.Time) {
	works := func(d time.Weekday) bool {
		for _, wd := range p.days {
			if wd == d {
				return true
			}
		}
		return false
	}

	collect := func(dayOffset, step, want int) []time.Time {
		var out []time.Time
		for day := dayOffset; len(out) < want && day != dayOffset+step*60; day += step {
			date := now.AddDate(0, 0, day).Truncate(24 * time.Hour)
			if !works(date.Weekday()) {
				continue
			}
			for t := p.workStart; t < p.workEnd && len(out) < want; t += booking.TimeOfDay(2 * p.interval) {
				out = append(out, t.OnDay(date))
			}
		}
		return out
	}

	starts = append(starts, collect(1, 1, count)...)
	starts = append(starts, collect(-1, -1, 3)...)
	return starts
}

func insertProviderAppointments(ctx context.Context, tx pgx.Tx, p seededProvider, starts []time.Time) (int, error) {
	now := time.Now().UTC()
	inserted := 0
	var reusable time.Time

	for _, start := range starts {
		status := pickStatus(start, now)
		if status == booking.StatusScheduled && reusable.IsZero() {
			reusable = start
		}

		id, err := insertAppointment(ctx, tx, p, start, status)
		if err != nil {
			return inserted, err
		}
		inserted++

		if status.Active() && gofakeit.Bool() {
			if err := insertSession(ctx, tx, id); err != nil {
				return inserted, err
			}
		}
	}

	// A cancelled row on an occupied slot shows the constraint only guards
	// active appointments.
	if !reusable.IsZero() {
		if _, err := insertAppointment(ctx, tx, p, reusable, booking.StatusCancelled); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

func pickStatus(start, now time.Time) booking.AppointmentStatus {
	if start.Before(now) {
		return booking.StatusCompleted
	}
	if gofakeit.Number(1, 100) <= 30 {
		return booking.StatusConfirmed
	}
	return booking.StatusScheduled
}

func insertAppointment(ctx context.Context, tx pgx.Tx, p seededProvider, start time.Time, status booking.AppointmentStatus) (uuid.UUID, error) {
	id := uuid.New()
	duration := time.Duration(p.interval) * time.Minute
	buffer := time.Duration(p.buffer) * time.Minute
	title := visitTitles[gofakeit.Number(0, len(visitTitles)-1)]

	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (id, provider_id, subject_id, start_at, duration_minutes, status, title, notes, blocked_during, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, tstzrange($9, $10, '[)'), now(), now())
	`, id, p.id, uuid.New(), start, p.interval, string(status), title, gofakeit.Sentence(8),
		start.Add(-buffer), start.Add(duration+buffer))
	return id, err
}

func insertSession(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO telehealth_sessions (id, appointment_id, status, join_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, uuid.New(), appointmentID, string(booking.SessionScheduled), uuid.NewString())
	return err
}
