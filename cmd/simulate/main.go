package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/db"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	Patients        int
	BookingRatio    float64
	CancelRatio     float64
	RescheduleRatio float64
	ReadRatio       float64
	PostgresDSN     string
	JWTSecret       string
	JWTIssuer       string
	Env             string
	LogLevel        string
}

type patient struct {
	email string
	token string
}

type booking struct {
	id      uuid.UUID
	patient *patient
}

// DataPool holds what workers pick from: catalog rows loaded from Postgres,
// synthetic patients, and the appointments booked so far.
type DataPool struct {
	Services []uuid.UUID
	Dates    []string
	Patients []*patient

	mu       sync.Mutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

// TakeBooking removes and returns a random booking so that two workers never
// act on the same appointment.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	idx := rng.Intn(len(dp.bookings))
	b := dp.bookings[idx]
	dp.bookings[idx] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Reschedule   OperationMetrics
	Availability OperationMetrics
	ListMine     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	cfg := loadConfig()

	log := logging.Init("clinicflow-simulate", cfg.Env, cfg.LogLevel)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().
		Int("services", len(dataPool.Services)).
		Int("dates", len(dataPool.Dates)).
		Int("patients", len(dataPool.Patients)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer auditCancel()
	overlaps, err := auditOverlaps(auditCtx, pgPool)
	if err != nil {
		log.Fatal().Err(err).Msg("overlap audit")
	}
	fmt.Printf("Overlapping active appointments: %d\n", overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		Patients:        getInt("SIM_PATIENTS", 200),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		PostgresDSN:     baseCfg.PostgresDSN,
		JWTSecret:       baseCfg.JWTSecret,
		JWTIssuer:       baseCfg.JWTIssuer,
		Env:             baseCfg.Env,
		LogLevel:        baseCfg.LogLevel,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint patient tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM clinic_services WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Services = append(dataPool.Services, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT DISTINCT b.date
		FROM availability_blocks b
		JOIN providers p ON p.id = b.provider_id
		WHERE p.active AND b.date >= CURRENT_DATE
		ORDER BY b.date
	`)
	if err != nil {
		return nil, fmt.Errorf("load dates: %w", err)
	}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Dates = append(dataPool.Dates, clock.FormatDate(d))
	}
	rows.Close()

	if len(dataPool.Services) == 0 {
		return nil, fmt.Errorf("no active services, run the seed first")
	}
	if len(dataPool.Dates) == 0 {
		return nil, fmt.Errorf("no upcoming availability, run the seed first")
	}

	issuer := identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	for i := 0; i < cfg.Patients; i++ {
		u := identity.User{ID: uuid.New(), Email: gofakeit.Email(), Role: string(appointment.RolePatient)}
		token, err := issuer.Issue(u, cfg.Duration+time.Hour)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		dataPool.Patients = append(dataPool.Patients, &patient{email: u.Email, token: token})
	}

	return dataPool, nil
}

// auditOverlaps counts pairs of active appointments sharing provider time.
func auditOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.provider_id = b.provider_id
		 AND a.id < b.id
		 AND a.start_at < b.end_at
		 AND b.start_at < a.end_at
		WHERE a.status <> 'CANCELLED' AND b.status <> 'CANCELLED'
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Msg("simulation running")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doListMine(ctx, rng)
			}
		}
	}
}

func (s *Simulator) pickDate(rng *rand.Rand) string {
	return s.pool.Dates[rng.Intn(len(s.pool.Dates))]
}

// send issues one request and reports the status code, or 0 when the
// request never got an answer.
func (s *Simulator) send(ctx context.Context, method, path string, p *patient, body any, out any) (int, time.Duration) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, latency
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	body := map[string]string{
		"serviceId": s.pool.Services[rng.Intn(len(s.pool.Services))].String(),
		"date":      s.pickDate(rng),
	}

	var out struct {
		AppointmentID uuid.UUID `json:"appointmentId"`
	}
	status, latency := s.send(ctx, http.MethodPost, "/appointments", p, body, &out)
	if ctx.Err() != nil {
		return
	}
	if status == http.StatusCreated && out.AppointmentID != uuid.Nil {
		s.pool.AddBooking(booking{id: out.AppointmentID, patient: p})
	}
	s.metrics.Booking.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	status, latency := s.send(ctx, http.MethodDelete, "/appointments/"+b.id.String(), b.patient, nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	var out struct {
		NewAppointmentID uuid.UUID `json:"newAppointmentId"`
	}
	body := map[string]string{"date": s.pickDate(rng)}
	status, latency := s.send(ctx, http.MethodPatch, "/appointments/"+b.id.String()+"/reschedule", b.patient, body, &out)
	if ctx.Err() != nil {
		return
	}

	switch {
	case status == http.StatusOK && out.NewAppointmentID != uuid.Nil:
		s.pool.AddBooking(booking{id: out.NewAppointmentID, patient: b.patient})
	case status == http.StatusConflict:
		// The original stays BOOKED when no slot is found.
		s.pool.AddBooking(b)
	}
	s.metrics.Reschedule.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	q := url.Values{}
	q.Set("serviceId", s.pool.Services[rng.Intn(len(s.pool.Services))].String())
	q.Set("date", s.pickDate(rng))

	status, latency := s.send(ctx, http.MethodGet, "/availability?"+q.Encode(), p, nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Availability.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, latency := s.send(ctx, http.MethodGet, "/appointments/mine", p, nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ListMine.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Patients: %d\n", s.config.Patients)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("List mine", &s.metrics.ListMine)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
