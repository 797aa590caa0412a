package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/events"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

var fixedNow = testDay.Add(8 * time.Hour) // 08:00 on the Monday

type fakeRepo struct {
	mu            sync.Mutex
	appointments  map[uuid.UUID]*Appointment
	sessions      map[uuid.UUID]*TelehealthSession
	blocked       map[uuid.UUID]TimeSlot // buffered window per appointment
	notifications []*events.NotificationRequest

	listErr         error
	insertErr       error
	updateStatusErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appointments: map[uuid.UUID]*Appointment{},
		sessions:     map[uuid.UUID]*TelehealthSession{},
		blocked:      map[uuid.UUID]TimeSlot{},
	}
}

func (f *fakeRepo) ListActive(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []Appointment
	for _, a := range f.appointments {
		if a.ProviderID != providerID || !a.Status.Active() {
			continue
		}
		if a.StartAt.Before(to) && a.EndAt().After(from) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeRepo) Insert(_ context.Context, appt *Appointment, blocked TimeSlot, session *TelehealthSession, notify *events.NotificationRequest) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}

	// Mirrors the partial exclusion constraint: only windows of appointments
	// still in an active status block the insert.
	for id, a := range f.appointments {
		if a.ProviderID != appt.ProviderID || !a.Status.Active() {
			continue
		}
		if w, ok := f.blocked[id]; ok && w.Start.Before(blocked.End) && blocked.Start.Before(w.End) {
			return nil, ErrSlotTaken
		}
	}

	stored := *appt
	f.appointments[stored.ID] = &stored
	f.blocked[stored.ID] = blocked
	if session != nil {
		sess := *session
		f.sessions[sess.ID] = &sess
	}
	if notify != nil {
		f.notifications = append(f.notifications, notify)
	}

	out := stored
	return &out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, notify *events.NotificationRequest) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return nil, f.updateStatusErr
	}

	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if notify != nil {
		f.notifications = append(f.notifications, notify)
	}

	out := *a
	return &out, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakeRepo) GetSessionByID(_ context.Context, id uuid.UUID) (*TelehealthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeRepo) GetSessionByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*TelehealthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.AppointmentID == appointmentID {
			out := *s
			return &out, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (f *fakeRepo) UpdateSession(_ context.Context, sess *TelehealthSession, from SessionStatus, notify *events.NotificationRequest) (*TelehealthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.sessions[sess.ID]
	if !ok || stored.Status != from {
		return nil, ErrSessionNotFound
	}
	*stored = *sess
	if notify != nil {
		f.notifications = append(f.notifications, notify)
	}

	out := *stored
	return &out, nil
}

// racingRepo lets one competing write land between the service's ledger
// check and its insert.
type racingRepo struct {
	*fakeRepo
	once       sync.Once
	competitor func()
}

func (r *racingRepo) Insert(ctx context.Context, appt *Appointment, blocked TimeSlot, session *TelehealthSession, notify *events.NotificationRequest) (*Appointment, error) {
	r.once.Do(r.competitor)
	return r.fakeRepo.Insert(ctx, appt, blocked, session, notify)
}

type fakeConfigs struct {
	cfg *CalendarConfig
	err error
}

func (f *fakeConfigs) GetConfig(context.Context, uuid.UUID) (*CalendarConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return nil, ErrConfigNotFound
	}
	return f.cfg, nil
}

// fakeLocker gives real per-provider mutual exclusion, in process.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: map[uuid.UUID]*sync.Mutex{}}
}

func (l *fakeLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[providerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[providerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// passthroughLocker runs the critical section with no exclusion at all,
// leaving the storage constraint as the only guard.
type passthroughLocker struct{}

func (passthroughLocker) WithProviderLock(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithProviderLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newTestService(repo Repository, cfgs ConfigProvider, locker redisclient.Locker) *Service {
	return NewService(repo, cfgs, locker, nil, zerolog.Nop()).
		WithNow(func() time.Time { return fixedNow })
}

func seedAppointment(repo *fakeRepo, providerID uuid.UUID, start time.Time, durationMinutes int, status AppointmentStatus, buffer time.Duration) *Appointment {
	appt := &Appointment{
		ID:              uuid.New(),
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         start,
		DurationMinutes: durationMinutes,
		Status:          status,
	}
	repo.appointments[appt.ID] = appt
	repo.blocked[appt.ID] = TimeSlot{
		Start: start.Add(-buffer),
		End:   appt.EndAt().Add(buffer),
	}
	return appt
}

func TestProposeSlotsUsesDefaultConfig(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, newFakeLocker())

	slots, err := svc.ProposeSlots(context.Background(), uuid.New(), testDay)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"},
		slotStarts(slots))
}

func TestProposeSlotsAppliesBufferSymmetrically(t *testing.T) {
	providerID := uuid.New()
	cfg := DefaultCalendarConfig()
	cfg.BufferMinutes = 15

	repo := newFakeRepo()
	seedAppointment(repo, providerID, at(12, 0), 60, StatusScheduled, cfg.Buffer())

	svc := newTestService(repo, &fakeConfigs{cfg: &cfg}, newFakeLocker())

	slots, err := svc.ProposeSlots(context.Background(), providerID, testDay)
	require.NoError(t, err)

	// 11:00 and 13:00 fall inside the doubly expanded window around the
	// 12:00 appointment, so only these survive.
	assert.Equal(t, []string{"09:00", "10:00", "14:00", "15:00", "16:00"}, slotStarts(slots))
}

func TestProposeSlotsSeesNextDayAppointment(t *testing.T) {
	providerID := uuid.New()
	cfg := DefaultCalendarConfig()
	cfg.WorkStart = 21 * 60
	cfg.WorkEnd = 23*60 + 30
	cfg.BufferMinutes = 30

	repo := newFakeRepo()
	// 00:45 the next day: doubly expanded, its window reaches back to 00:15,
	// so a 23:00-00:00 candidate expanded to 00:30 still collides.
	seedAppointment(repo, providerID, testDay.AddDate(0, 0, 1).Add(45*time.Minute), 60, StatusScheduled, cfg.Buffer())

	svc := newTestService(repo, &fakeConfigs{cfg: &cfg}, newFakeLocker())

	slots, err := svc.ProposeSlots(context.Background(), providerID, testDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"21:00", "22:00"}, slotStarts(slots))
}

func TestProposeSlotsIgnoresInactiveAppointments(t *testing.T) {
	providerID := uuid.New()
	repo := newFakeRepo()
	seedAppointment(repo, providerID, at(12, 0), 60, StatusCancelled, 0)

	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	slots, err := svc.ProposeSlots(context.Background(), providerID, testDay)
	require.NoError(t, err)
	assert.Len(t, slots, 8)
}

func TestProposeSlotsNonWorkingDay(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, newFakeLocker())

	saturday := testDay.AddDate(0, 0, 5)
	slots, err := svc.ProposeSlots(context.Background(), uuid.New(), saturday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestProposeSlotsConfigStorageError(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{err: errors.New("pg down")}, newFakeLocker())

	_, err := svc.ProposeSlots(context.Background(), uuid.New(), testDay)

	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "load calendar config", storage.Op)
}

func TestCommitBookingSuccess(t *testing.T) {
	providerID := uuid.New()
	subjectID := uuid.New()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	res, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       subjectID,
		StartAt:         at(10, 0),
		DurationMinutes: 60,
		Title:           "Initial consult",
		Telehealth:      true,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Appointment)
	assert.Equal(t, StatusScheduled, res.Appointment.Status)
	assert.Equal(t, at(10, 0), res.Appointment.StartAt)
	assert.Equal(t, 60, res.Appointment.DurationMinutes)

	require.NotNil(t, res.Session)
	assert.Equal(t, SessionScheduled, res.Session.Status)
	assert.Equal(t, res.Appointment.ID, res.Session.AppointmentID)
	assert.NotEmpty(t, res.Session.JoinToken)

	require.Len(t, repo.notifications, 1)
	assert.Equal(t, EventAppointmentCreated, repo.notifications[0].EventType)
	assert.Equal(t, providerID, repo.notifications[0].RecipientID)
	assert.Equal(t, res.Appointment.ID, repo.notifications[0].AppointmentID)
}

func TestCommitBookingWithoutTelehealth(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	res, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      uuid.New(),
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.Empty(t, repo.sessions)
}

func TestCommitBookingRejectsPastStart(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, newFakeLocker())

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      uuid.New(),
		SubjectID:       uuid.New(),
		StartAt:         fixedNow, // not strictly in the future
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrPastStartTime)
}

func TestCommitBookingRejectsNonPositiveDuration(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, newFakeLocker())

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      uuid.New(),
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCommitBookingConflictNamesWindow(t *testing.T) {
	providerID := uuid.New()
	repo := newFakeRepo()
	existing := seedAppointment(repo, providerID, at(10, 0), 60, StatusScheduled, 0)
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(10, 30),
		DurationMinutes: 60,
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, existing.Window(), conflict.Window)
	assert.Len(t, repo.appointments, 1)
}

func TestCommitBookingBufferMakesAdjacentConflict(t *testing.T) {
	providerID := uuid.New()
	cfg := DefaultCalendarConfig()
	cfg.BufferMinutes = 15

	repo := newFakeRepo()
	seedAppointment(repo, providerID, at(11, 0), 60, StatusConfirmed, cfg.Buffer())
	svc := newTestService(repo, &fakeConfigs{cfg: &cfg}, newFakeLocker())

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 60,
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, TimeSlot{Start: at(11, 0), End: at(12, 0)}, conflict.Window)
}

func TestCommitBookingConflictAcrossMidnight(t *testing.T) {
	providerID := uuid.New()
	cfg := DefaultCalendarConfig()
	cfg.WorkStart = 21 * 60
	cfg.WorkEnd = 23*60 + 30
	cfg.BufferMinutes = 30

	in := CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(23, 0),
		DurationMinutes: 60,
	}
	nextDayStart := testDay.AddDate(0, 0, 1).Add(45 * time.Minute)

	t.Run("ledger re-check", func(t *testing.T) {
		repo := newFakeRepo()
		existing := seedAppointment(repo, providerID, nextDayStart, 60, StatusScheduled, cfg.Buffer())
		svc := newTestService(repo, &fakeConfigs{cfg: &cfg}, newFakeLocker())

		_, err := svc.CommitBooking(context.Background(), in)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, existing.Window(), conflict.Window)
		assert.Len(t, repo.appointments, 1)
	})

	t.Run("constraint backstop", func(t *testing.T) {
		// The competing write lands after the re-check; the rebuilt conflict
		// must name the next-day winner's window, not the candidate's own.
		ledger := newFakeRepo()
		repo := &racingRepo{fakeRepo: ledger}
		var existing *Appointment
		repo.competitor = func() {
			existing = seedAppointment(ledger, providerID, nextDayStart, 60, StatusScheduled, cfg.Buffer())
		}
		svc := newTestService(repo, &fakeConfigs{cfg: &cfg}, passthroughLocker{})

		_, err := svc.CommitBooking(context.Background(), in)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, existing.Window(), conflict.Window)
	})
}

func TestCommitBookingProviderBusy(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, busyLocker{})

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      uuid.New(),
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrProviderBusy)
}

func TestCommitBookingConstraintBackstop(t *testing.T) {
	// A competing commit lands between the ledger check and the write; the
	// storage constraint rejects the insert and the conflict names the
	// winner's window.
	providerID := uuid.New()
	ledger := newFakeRepo()
	repo := &racingRepo{fakeRepo: ledger}
	repo.competitor = func() {
		seedAppointment(ledger, providerID, at(10, 0), 60, StatusScheduled, 0)
	}

	svc := newTestService(repo, &fakeConfigs{}, passthroughLocker{})

	_, err := svc.CommitBooking(context.Background(), CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(10, 30),
		DurationMinutes: 60,
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, TimeSlot{Start: at(10, 0), End: at(11, 0)}, conflict.Window)
	assert.Len(t, ledger.appointments, 1)
}

func TestCommitBookingRaceExactlyOneWins(t *testing.T) {
	providerID := uuid.New()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	in := CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 60,
	}

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CommitBooking(context.Background(), in)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			var conflict *ConflictError
			require.ErrorAs(t, err, &conflict)
			conflicts++
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
	assert.Len(t, repo.appointments, 1)
}

func TestProposedSlotCommitsCleanly(t *testing.T) {
	providerID := uuid.New()
	cfg := DefaultCalendarConfig()
	cfg.BufferMinutes = 15

	seeded := func() *fakeRepo {
		repo := newFakeRepo()
		seedAppointment(repo, providerID, at(12, 0), 60, StatusScheduled, cfg.Buffer())
		return repo
	}

	svc := newTestService(seeded(), &fakeConfigs{cfg: &cfg}, newFakeLocker())
	slots, err := svc.ProposeSlots(context.Background(), providerID, testDay)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// Every proposed slot must commit when nothing intervenes. A fresh
	// ledger per slot keeps earlier commits out of the way.
	for _, slot := range slots {
		fresh := newTestService(seeded(), &fakeConfigs{cfg: &cfg}, newFakeLocker())
		_, err := fresh.CommitBooking(context.Background(), CommitBookingInput{
			ProviderID:      providerID,
			SubjectID:       uuid.New(),
			StartAt:         slot.Start,
			DurationMinutes: cfg.SlotIntervalMinutes,
		})
		require.NoError(t, err, "slot %s", slot.Start.Format("15:04"))
	}
}

func TestCancellationFreesSlot(t *testing.T) {
	providerID := uuid.New()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	in := CommitBookingInput{
		ProviderID:      providerID,
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 60,
	}

	first, err := svc.CommitBooking(context.Background(), in)
	require.NoError(t, err)

	var conflict *ConflictError
	_, err = svc.CommitBooking(context.Background(), in)
	require.ErrorAs(t, err, &conflict)

	_, err = svc.TransitionAppointment(context.Background(), first.Appointment.ID, StatusCancelled)
	require.NoError(t, err)

	slots, err := svc.ProposeSlots(context.Background(), providerID, testDay)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(slots), "10:00")

	_, err = svc.CommitBooking(context.Background(), in)
	require.NoError(t, err)
}

func TestCommitBookingStorageErrors(t *testing.T) {
	in := CommitBookingInput{
		ProviderID:      uuid.New(),
		SubjectID:       uuid.New(),
		StartAt:         at(10, 0),
		DurationMinutes: 60,
	}

	t.Run("ledger read fails", func(t *testing.T) {
		repo := newFakeRepo()
		repo.listErr = errors.New("pg down")
		svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

		_, err := svc.CommitBooking(context.Background(), in)

		var storage *StorageError
		require.ErrorAs(t, err, &storage)
		assert.Equal(t, "list active appointments", storage.Op)
		assert.Empty(t, repo.appointments)
	})

	t.Run("insert fails", func(t *testing.T) {
		repo := newFakeRepo()
		repo.insertErr = errors.New("tx aborted")
		svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

		_, err := svc.CommitBooking(context.Background(), in)

		var storage *StorageError
		require.ErrorAs(t, err, &storage)
		assert.Equal(t, "insert appointment", storage.Op)
	})
}

func TestTransitionAppointment(t *testing.T) {
	repo := newFakeRepo()
	appt := seedAppointment(repo, uuid.New(), at(10, 0), 60, StatusScheduled, 0)
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	updated, err := svc.TransitionAppointment(context.Background(), appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	require.Len(t, repo.notifications, 1)
	assert.Equal(t, EventAppointmentConfirmed, repo.notifications[0].EventType)
	assert.Equal(t, appt.SubjectID, repo.notifications[0].RecipientID)

	// confirmed -> completed still allowed, completed is terminal
	updated, err = svc.TransitionAppointment(context.Background(), appt.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	_, err = svc.TransitionAppointment(context.Background(), appt.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionAppointmentNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeConfigs{}, newFakeLocker())

	_, err := svc.TransitionAppointment(context.Background(), uuid.New(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestTransitionAppointmentLostRace(t *testing.T) {
	repo := newFakeRepo()
	appt := seedAppointment(repo, uuid.New(), at(10, 0), 60, StatusScheduled, 0)
	repo.updateStatusErr = ErrAppointmentNotFound // CAS misses under us

	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	_, err := svc.TransitionAppointment(context.Background(), appt.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "concurrently")
}

func TestGetAppointment(t *testing.T) {
	repo := newFakeRepo()
	appt := seedAppointment(repo, uuid.New(), at(10, 0), 60, StatusScheduled, 0)
	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = svc.GetAppointment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListDay(t *testing.T) {
	providerID := uuid.New()
	repo := newFakeRepo()
	seedAppointment(repo, providerID, at(14, 0), 60, StatusScheduled, 0)
	seedAppointment(repo, providerID, at(9, 0), 60, StatusConfirmed, 0)
	seedAppointment(repo, providerID, at(11, 0), 60, StatusCancelled, 0)
	seedAppointment(repo, uuid.New(), at(9, 0), 60, StatusScheduled, 0)

	svc := newTestService(repo, &fakeConfigs{}, newFakeLocker())

	day, err := svc.ListDay(context.Background(), providerID, testDay)
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, at(9, 0), day[0].StartAt)
	assert.Equal(t, at(14, 0), day[1].StartAt)
}
