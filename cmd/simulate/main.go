package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	ConfirmRatio  float64
	ReadRatio     float64
	ProviderLimit int
	SubjectCount  int
	Days          int
	PostgresDSN   string
}

// simProvider carries the pre-generated candidate starts workers race for.
// A small provider set with shared candidates keeps bookings contended.
type simProvider struct {
	id       uuid.UUID
	interval int
	starts   []time.Time
}

// targets holds the ids workers operate on. Providers and their candidate
// starts come from the seeded calendars; appointment and session ids
// accumulate as bookings land.
type targets struct {
	providers []simProvider
	subjects  []uuid.UUID

	mu           sync.Mutex
	appointments []uuid.UUID
	sessions     []uuid.UUID
}

func (t *targets) remember(appointmentID, sessionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appointments = append(t.appointments, appointmentID)
	if sessionID != uuid.Nil {
		t.sessions = append(t.sessions, sessionID)
	}
}

func (t *targets) randomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.appointments) == 0 {
		return uuid.Nil, false
	}
	return t.appointments[rng.Intn(len(t.appointments))], true
}

func (t *targets) randomSession(rng *rand.Rand) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return uuid.Nil, false
	}
	return t.sessions[rng.Intn(len(t.sessions))], true
}

// opStats aggregates one operation's outcomes across all workers.
type opStats struct {
	mu        sync.Mutex
	byStatus  map[int]int64
	transport int64
	latencies []time.Duration
}

func newOpStats() *opStats {
	return &opStats{byStatus: map[int]int64{}}
}

func (s *opStats) record(status int, err error, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.transport++
		return
	}
	s.byStatus[status]++
	s.latencies = append(s.latencies, took)
}

type opSummary struct {
	total, ok, conflicts, failures, transport int64
	avg, p50, p90, p99                        time.Duration
}

func (s *opStats) summarize() opSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := opSummary{total: s.transport, transport: s.transport}
	for status, n := range s.byStatus {
		sum.total += n
		switch {
		case status >= 200 && status < 300:
			sum.ok += n
		case status == http.StatusConflict:
			sum.conflicts += n
		default:
			sum.failures += n
		}
	}

	if len(s.latencies) > 0 {
		sorted := make([]time.Duration, len(s.latencies))
		copy(sorted, s.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		sum.avg = total / time.Duration(len(sorted))
		sum.p50 = pct(sorted, 0.50)
		sum.p90 = pct(sorted, 0.90)
		sum.p99 = pct(sorted, 0.99)
	}
	return sum
}

func pct(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(q*float64(len(sorted)-1))]
}

type operation struct {
	name   string
	weight float64
	run    func(ctx context.Context, rng *rand.Rand) (int, error)
	stats  *opStats
}

type Simulator struct {
	cfg    SimConfig
	pool   *targets
	client *http.Client
	ops    []operation
}

func newSimulator(cfg SimConfig, pool *targets) *Simulator {
	s := &Simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	readShare := cfg.ReadRatio / 4
	s.ops = []operation{
		{name: "book", weight: cfg.BookingRatio, run: s.book},
		{name: "confirm", weight: cfg.ConfirmRatio, run: s.confirm},
		{name: "read appointment", weight: readShare, run: s.readAppointment},
		{name: "available slots", weight: readShare, run: s.availableSlots},
		{name: "provider day", weight: readShare, run: s.providerDay},
		{name: "join session", weight: readShare, run: s.joinSession},
	}
	for i := range s.ops {
		s.ops[i].stats = newOpStats()
	}
	return s
}

func main() {
	log.SetFlags(log.LstdFlags)

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatalf("invalid simulator config: %v", err)
	}

	log.Printf("booking simulator: duration=%s workers=%d mix(book=%.2f confirm=%.2f read=%.2f)",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.ConfirmRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "simulate")
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadTargets(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load simulation targets: %v", err)
	}

	candidates := 0
	for _, p := range pool.providers {
		candidates += len(p.starts)
	}
	log.Printf("targets: %d providers, %d candidate starts, %d subjects",
		len(pool.providers), candidates, len(pool.subjects))

	sim := newSimulator(cfg, pool)
	sim.Run()
	sim.Report()
}

func loadSimConfig() SimConfig {
	base, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:    envOr("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      durationOr("SIM_DURATION", 30*time.Second),
		Workers:       intOr("SIM_WORKERS", 10),
		BookingRatio:  floatOr("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio:  floatOr("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:     floatOr("SIM_READ_RATIO", 0.3),
		ProviderLimit: intOr("SIM_PROVIDER_LIMIT", 8),
		SubjectCount:  intOr("SIM_SUBJECT_COUNT", 500),
		Days:          intOr("SIM_DAYS", 5),
		PostgresDSN:   base.PostgresDSN,
	}

	if total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio; total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	switch {
	case cfg.PostgresDSN == "":
		return fmt.Errorf("POSTGRES_DSN is required")
	case cfg.Workers <= 0:
		return fmt.Errorf("SIM_WORKERS must be positive")
	case cfg.Duration <= 0:
		return fmt.Errorf("SIM_DURATION must be positive")
	case cfg.Days <= 0:
		return fmt.Errorf("SIM_DAYS must be positive")
	}
	return nil
}

// loadTargets reads the seeded provider calendars and expands each into its
// candidate starts over the next working days. Subject identities live
// outside this service, so they are generated.
func loadTargets(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*targets, error) {
	t := &targets{}

	rows, err := pool.Query(ctx, `
		SELECT provider_id, slot_interval_minutes, work_start, work_end, working_days
		FROM calendar_configs
		WHERE provider_id IS NOT NULL
		LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load provider calendars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         uuid.UUID
			interval   int
			startRaw   string
			endRaw     string
			dayNumbers []int32
		)
		if err := rows.Scan(&id, &interval, &startRaw, &endRaw, &dayNumbers); err != nil {
			return nil, err
		}

		workStart, err := booking.ParseTimeOfDay(startRaw)
		if err != nil {
			return nil, fmt.Errorf("provider %s work_start: %w", id, err)
		}
		workEnd, err := booking.ParseTimeOfDay(endRaw)
		if err != nil {
			return nil, fmt.Errorf("provider %s work_end: %w", id, err)
		}

		t.providers = append(t.providers, simProvider{
			id:       id,
			interval: interval,
			starts:   expandStarts(workStart, workEnd, interval, dayNumbers, cfg.Days),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(t.providers) == 0 {
		return nil, fmt.Errorf("no provider calendars found, run the seed first")
	}

	for i := 0; i < cfg.SubjectCount; i++ {
		t.subjects = append(t.subjects, uuid.New())
	}
	return t, nil
}

func expandStarts(workStart, workEnd booking.TimeOfDay, interval int, dayNumbers []int32, wantDays int) []time.Time {
	working := make(map[time.Weekday]bool, len(dayNumbers))
	for _, d := range dayNumbers {
		working[time.Weekday(d)] = true
	}

	var starts []time.Time
	collected := 0
	for offset := 1; collected < wantDays && offset <= wantDays*3; offset++ {
		date := time.Now().UTC().AddDate(0, 0, offset).Truncate(24 * time.Hour)
		if !working[date.Weekday()] {
			continue
		}
		for t := workStart; t < workEnd; t += booking.TimeOfDay(interval) {
			starts = append(starts, t.OnDay(date))
		}
		collected++
	}
	return starts
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	log.Printf("running against %s", s.cfg.APIBaseURL)

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				op := s.pick(rng)
				began := time.Now()
				status, err := op.run(ctx, rng)
				if err != nil && ctx.Err() != nil {
					return // cut off mid-flight by the deadline
				}
				if status == 0 && err == nil {
					continue // nothing to operate on yet
				}
				op.stats.record(status, err, time.Since(began))
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	log.Println("simulation finished")
}

func (s *Simulator) pick(rng *rand.Rand) *operation {
	r := rng.Float64()
	acc := 0.0
	for i := range s.ops {
		acc += s.ops[i].weight
		if r < acc {
			return &s.ops[i]
		}
	}
	return &s.ops[len(s.ops)-1]
}

// book races workers for starts drawn from a small shared candidate pool,
// so a healthy run reports both 201s and 409 conflicts.
func (s *Simulator) book(ctx context.Context, rng *rand.Rand) (int, error) {
	provider := s.provider(rng)
	if len(provider.starts) == 0 || len(s.pool.subjects) == 0 {
		return 0, nil
	}

	startAt := provider.starts[rng.Intn(len(provider.starts))]
	status, body, err := s.post(ctx, "/bookings", map[string]any{
		"provider_id":      provider.id.String(),
		"subject_id":       s.pool.subjects[rng.Intn(len(s.pool.subjects))].String(),
		"start_at":         startAt.Format(time.RFC3339),
		"duration_minutes": provider.interval,
		"telehealth":       rng.Intn(2) == 0,
	})
	if err != nil || status != http.StatusCreated {
		return status, err
	}

	var created struct {
		ID      uuid.UUID `json:"id"`
		Session *struct {
			ID uuid.UUID `json:"id"`
		} `json:"session"`
	}
	if jsonErr := json.Unmarshal(body, &created); jsonErr == nil && created.ID != uuid.Nil {
		sessionID := uuid.Nil
		if created.Session != nil {
			sessionID = created.Session.ID
		}
		s.pool.remember(created.ID, sessionID)
	}
	return status, nil
}

// confirm re-confirms already confirmed appointments now and then; those
// come back as 409 invalid transitions and belong in the mix.
func (s *Simulator) confirm(ctx context.Context, rng *rand.Rand) (int, error) {
	id, ok := s.pool.randomAppointment(rng)
	if !ok {
		return 0, nil
	}
	status, _, err := s.post(ctx, "/appointments/"+id.String()+"/transition",
		map[string]string{"target_status": "confirmed"})
	return status, err
}

func (s *Simulator) readAppointment(ctx context.Context, rng *rand.Rand) (int, error) {
	id, ok := s.pool.randomAppointment(rng)
	if !ok {
		return 0, nil
	}
	status, _, err := s.get(ctx, "/appointments/"+id.String())
	return status, err
}

func (s *Simulator) availableSlots(ctx context.Context, rng *rand.Rand) (int, error) {
	provider := s.provider(rng)
	if len(provider.starts) == 0 {
		return 0, nil
	}
	day := provider.starts[rng.Intn(len(provider.starts))].Format("2006-01-02")
	status, _, err := s.get(ctx, fmt.Sprintf("/available-slots?provider_id=%s&date=%s", provider.id, day))
	return status, err
}

func (s *Simulator) providerDay(ctx context.Context, rng *rand.Rand) (int, error) {
	provider := s.provider(rng)
	if len(provider.starts) == 0 {
		return 0, nil
	}
	day := provider.starts[rng.Intn(len(provider.starts))].Format("2006-01-02")
	status, _, err := s.get(ctx, fmt.Sprintf("/appointments?provider_id=%s&date=%s", provider.id, day))
	return status, err
}

// joinSession re-joins sessions on purpose; the endpoint is idempotent and
// repeat joins must keep returning 200.
func (s *Simulator) joinSession(ctx context.Context, rng *rand.Rand) (int, error) {
	id, ok := s.pool.randomSession(rng)
	if !ok {
		return 0, nil
	}
	role := "subject"
	if rng.Intn(2) == 0 {
		role = "provider"
	}
	status, _, err := s.post(ctx, "/telehealth-sessions/"+id.String()+"/join",
		map[string]string{"role": role})
	return status, err
}

func (s *Simulator) provider(rng *rand.Rand) simProvider {
	return s.pool.providers[rng.Intn(len(s.pool.providers))]
}

func (s *Simulator) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.send(req)
}

func (s *Simulator) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	return s.send(req)
}

func (s *Simulator) send(req *http.Request) (int, []byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, nil
}

func (s *Simulator) Report() {
	line := strings.Repeat("-", 76)
	fmt.Println()
	fmt.Println(line)
	fmt.Printf("simulation report  duration=%s workers=%d\n", s.cfg.Duration, s.cfg.Workers)
	fmt.Println(line)

	for _, op := range s.ops {
		sum := op.stats.summarize()
		if sum.total == 0 {
			continue
		}
		fmt.Printf("%-18s total=%-6d ok=%-6d conflict=%-5d failed=%-4d transport=%d\n",
			op.name, sum.total, sum.ok, sum.conflicts, sum.failures, sum.transport)
		fmt.Printf("%-18s avg=%s p50=%s p90=%s p99=%s\n", "",
			sum.avg.Round(time.Millisecond), sum.p50.Round(time.Millisecond),
			sum.p90.Round(time.Millisecond), sum.p99.Round(time.Millisecond))
	}
	fmt.Println(line)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func floatOr(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return f
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}
