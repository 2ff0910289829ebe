package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/pkg/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	HotSlots     int // distinct start times per doctor/day the workers fight over
	Days         int
	PostgresDSN  string
}

type target struct {
	DoctorID uuid.UUID
	Date     time.Time
}

type DataPool struct {
	Doctors      []uuid.UUID
	Dates        []time.Time
	Times        []string
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) randomTarget(rng *rand.Rand) target {
	return target{
		DoctorID: dp.Doctors[rng.Intn(len(dp.Doctors))],
		Date:     dp.Dates[rng.Intn(len(dp.Dates))],
	}
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil || status >= 500:
		atomic.AddInt64(&om.Error, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status >= 400:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Success, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
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
	i := n * p / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	Booking      OperationMetrics
	StatusChange OperationMetrics
	ReadByID     OperationMetrics
	ListByDay    OperationMetrics
	Slots        OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	cfg := loadConfig()

	log, err := logger.New(getEnv("LOG_LEVEL", "info"), "console")
	if err != nil {
		zap.NewExample().Fatal("logger init error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("status", cfg.StatusRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("data pool loaded",
		zap.Int("doctors", len(dataPool.Doctors)),
		zap.Int("dates", len(dataPool.Dates)),
		zap.Strings("times", dataPool.Times),
	)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()

	violations, err := verify(context.Background(), pgPool, dataPool)
	if err != nil {
		log.Fatal("verify bookings", zap.Error(err))
	}
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Println("  VIOLATION:", v)
		}
		log.Error("double bookings detected", zap.Int("violations", len(violations)))
		_ = log.Sync()
		os.Exit(1)
	}
	fmt.Println("no double bookings or buffer violations found")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load base config", zap.Error(err))
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.15),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.25),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 5),
		HotSlots:     getInt("SIM_HOT_SLOTS", 6),
		Days:         getInt("SIM_DAYS", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotSlots <= 0 || cfg.Days <= 0 || cfg.DoctorLimit <= 0 {
		return fmt.Errorf("SIM_HOT_SLOTS, SIM_DAYS and SIM_DOCTOR_LIMIT must be > 0")
	}
	return nil
}

// loadDataPool picks doctors with an active weekday schedule and the next
// weekdays. Times are packed closer than a slot so that neighbouring
// requests also exercise the buffer window.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT DISTINCT d.id
		FROM doctors d
		JOIN weekly_schedules w ON w.doctor_id = d.id
		WHERE w.is_active AND w.day_of_week BETWEEN 1 AND 5
		ORDER BY d.id
		LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with schedules loaded, run cmd/seed first")
	}

	for d := schedule.DateOf(time.Now()).AddDate(0, 0, 1); len(dataPool.Dates) < cfg.Days; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dataPool.Dates = append(dataPool.Dates, d)
		}
	}

	start := schedule.MustClock("09:00")
	for i := 0; i < cfg.HotSlots; i++ {
		dataPool.Times = append(dataPool.Times, start.Add(i*10).String())
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio:
				s.doStatusChange(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByDay(ctx, rng)
				case 2:
					s.doSlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.randomTarget(rng)
	body, _ := json.Marshal(map[string]string{
		"doctorId":    t.DoctorID.String(),
		"patientName": gofakeit.Name(),
		"email":       gofakeit.Email(),
		"phone":       "+1555" + strconv.Itoa(1000000+rng.Intn(8999999)),
		"date":        schedule.FormatDate(t.Date),
		"time":        s.pool.Times[rng.Intn(len(s.pool.Times))],
	})

	status, respBody, latency, err := s.send(ctx, http.MethodPost, "/appointments", body)
	if err == nil && status == http.StatusCreated {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(respBody, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(appt.ID)
		}
	}
	s.metrics.Booking.Record(latency, status, err)
}

var nextStatuses = []string{"CONFIRMED", "CANCELLED", "COMPLETED", "NO_SHOW"}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	body, _ := json.Marshal(map[string]string{"newStatus": nextStatuses[rng.Intn(len(nextStatuses))]})

	status, _, latency, err := s.send(ctx, http.MethodPatch, "/appointments/"+id.String()+"/status", body)
	s.metrics.StatusChange.Record(latency, status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	status, _, latency, err := s.send(ctx, http.MethodGet, "/appointments/"+id.String(), nil)
	s.metrics.ReadByID.Record(latency, status, err)
}

func (s *Simulator) doListByDay(ctx context.Context, rng *rand.Rand) {
	t := s.pool.randomTarget(rng)
	path := fmt.Sprintf("/appointments?doctorId=%s&date=%s&limit=20", t.DoctorID, schedule.FormatDate(t.Date))
	status, _, latency, err := s.send(ctx, http.MethodGet, path, nil)
	s.metrics.ListByDay.Record(latency, status, err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.randomTarget(rng)
	path := fmt.Sprintf("/doctors/%s/slots?date=%s", t.DoctorID, schedule.FormatDate(t.Date))
	status, _, latency, err := s.send(ctx, http.MethodGet, path, nil)
	s.metrics.Slots.Record(latency, status, err)
}

func (s *Simulator) send(ctx context.Context, method, path string, body []byte) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, latency, nil
}

// verify reloads every active appointment on the simulated days and checks
// that none shares a start time with another and that no appointment was
// accepted while an earlier one lay inside its buffer window.
func verify(ctx context.Context, pool *pgxpool.Pool, dp *DataPool) ([]string, error) {
	var violations []string

	rows, err := pool.Query(ctx, `
		SELECT doctor_id, date, time, count(*)
		FROM appointments
		WHERE status NOT IN ('CANCELLED', 'NO_SHOW')
		GROUP BY doctor_id, date, time
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("duplicate query: %w", err)
	}
	for rows.Next() {
		var (
			doctorID uuid.UUID
			date     time.Time
			at       string
			n        int64
		)
		if err := rows.Scan(&doctorID, &date, &at, &n); err != nil {
			rows.Close()
			return nil, err
		}
		violations = append(violations, fmt.Sprintf("%d active appointments for doctor %s at %s %s",
			n, doctorID, schedule.FormatDate(date), at))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(dp.Dates))
	for _, d := range dp.Dates {
		dates = append(dates, schedule.FormatDate(d))
	}

	rows, err = pool.Query(ctx, `
		SELECT a.doctor_id, a.date, a.time, w.slot_duration, w.buffer_time
		FROM appointments a
		JOIN weekly_schedules w
		  ON w.doctor_id = a.doctor_id AND w.day_of_week = EXTRACT(DOW FROM a.date)::int
		WHERE a.status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND a.date = ANY($1::date[])
		ORDER BY a.doctor_id, a.date, a.created_at
	`, dates)
	if err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}
	defer rows.Close()

	byDay := map[string][]schedule.Clock{}
	for rows.Next() {
		var (
			doctorID     uuid.UUID
			date         time.Time
			at           string
			slot, buffer int
		)
		if err := rows.Scan(&doctorID, &date, &at, &slot, &buffer); err != nil {
			return nil, err
		}
		c, err := schedule.ParseClock(at)
		if err != nil {
			continue
		}
		key := doctorID.String() + " " + schedule.FormatDate(date)

		from, to := schedule.BufferWindow(c, slot, buffer)
		for _, earlier := range byDay[key] {
			if earlier != c && earlier >= from && earlier < to {
				violations = append(violations, fmt.Sprintf("%s %s booked while %s was inside [%s, %s)",
					key, at, earlier, from, to))
			}
		}
		byDay[key] = append(byDay[key], c)
	}
	return violations, rows.Err()
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.StatusChange)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by doctor/day", &s.metrics.ListByDay)
	printOperationReport("Available slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, pct(rejected))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
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
