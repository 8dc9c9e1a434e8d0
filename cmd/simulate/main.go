package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/config"
	"github.com/spark200410/consultancy/internal/logging"
)

var issues = []string{
	"Persistent headache",
	"Chest pain after exercise",
	"Skin rash on both arms",
	"Follow up on blood test",
	"Knee pain when climbing stairs",
	"Blurred vision",
}

type SimConfig struct {
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	Patients     int
	DaysAhead    int
	Backend      backend.Options
	ServiceEmail string
}

type patient struct {
	Name  string
	Email string
}

type booking struct {
	ID    string
	Email string
}

type DataPool struct {
	Doctors  []backend.DoctorRecord
	Patients []patient
	mu       sync.Mutex
	bookings []booking // created by this run, removed when cancelled
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) TakeRandomBooking(rng *rand.Rand) (booking, bool) {
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
	Total      int64
	Success    int64
	Conflict   int64
	Validation int64
	Error      int64
	Latencies  []time.Duration
	mu         sync.Mutex
}

// Record files the outcome under the backend failure kind of err.
func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch backend.KindOf(err) {
	case "":
		atomic.AddInt64(&om.Success, 1)
	case backend.KindConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case backend.KindValidation:
		atomic.AddInt64(&om.Validation, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
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
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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
	Booking          OperationMetrics
	Cancel           OperationMetrics
	ListDoctors      OperationMetrics
	ListAppointments OperationMetrics
	Slots            OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *backend.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Backend.Logger
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	client, err := backend.New(cfg.Backend)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := loadDataPool(ctx, client, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: client,
		logger: logger,
	}

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, err
	}

	cfg := SimConfig{
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.5),
		Patients:     getInt("SIM_PATIENTS", 200),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 7),
		ServiceEmail: baseCfg.ServiceEmail,
		Backend: backend.Options{
			BaseURL:   getEnv("SIM_BACKEND_URL", baseCfg.BackendBaseURL),
			Timeout:   baseCfg.BackendTimeout,
			JWTSecret: baseCfg.BackendJWTSecret,
			Logger:    logging.New("simulate", baseCfg.Env, baseCfg.LogLevel),
		},
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, nil
}

func validateConfig(cfg SimConfig) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, client *backend.Client, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	adminCtx := backend.WithCredential(ctx, backend.Credential{Email: cfg.ServiceEmail, Role: "admin"})
	doctors, err := client.ListDoctors(adminCtx)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	dataPool.Doctors = doctors

	// Patients only need to exist as identities, the backend keys
	// appointments by email.
	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	for i := 0; i < cfg.Patients; i++ {
		dataPool.Patients = append(dataPool.Patients, patient{Name: faker.Name(), Email: faker.Email()})
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else {
				switch rng.Intn(3) {
				case 0:
					s.doListDoctors(ctx, rng)
				case 1:
					s.doListAppointments(ctx, rng)
				case 2:
					s.doSlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomPatient(ctx context.Context, rng *rand.Rand) (context.Context, patient) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	return backend.WithCredential(ctx, backend.Credential{Email: p.Email, Role: "user"}), p
}

// randomSlot picks a whole hour in office time over the next few days so
// concurrent workers collide often enough to exercise conflicts.
func (s *Simulator) randomSlot(rng *rand.Rand) (date, clock string) {
	day := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
	return day.Format("2006-01-02"), fmt.Sprintf("%02d:00", 9+rng.Intn(8))
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	pctx, p := s.randomPatient(ctx, rng)
	date, clock := s.randomSlot(rng)

	start := time.Now()
	id, err := s.client.CreateAppointment(pctx, backend.AppointmentRecord{
		PatientEmail:     p.Email,
		PatientName:      p.Name,
		DoctorID:         doc.ID,
		DoctorName:       doc.Name,
		DoctorSpeciality: doc.Speciality,
		DoctorHospital:   doc.Hospital,
		Date:             date,
		Time:             clock,
		Issue:            gofakeit.RandomString(issues),
	})
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	if err == nil && id != "" {
		s.pool.AddBooking(booking{ID: id, Email: p.Email})
	}
	s.metrics.Booking.Record(latency, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeRandomBooking(rng)
	if !ok {
		return
	}
	pctx := backend.WithCredential(ctx, backend.Credential{Email: b.Email, Role: "user"})

	start := time.Now()
	err := s.client.CancelAppointment(pctx, b.ID)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Cancel.Record(latency, err)
}

func (s *Simulator) doListDoctors(ctx context.Context, rng *rand.Rand) {
	pctx, _ := s.randomPatient(ctx, rng)

	start := time.Now()
	_, err := s.client.ListDoctors(pctx)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.ListDoctors.Record(latency, err)
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	pctx, p := s.randomPatient(ctx, rng)

	start := time.Now()
	_, err := s.client.ListAppointments(pctx, p.Email)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.ListAppointments.Record(latency, err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	pctx, _ := s.randomPatient(ctx, rng)
	date, _ := s.randomSlot(rng)

	start := time.Now()
	_, err := s.client.AvailableSlots(pctx, doc.ID, date)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Slots.Record(latency, err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Backend: %s\n", s.config.Backend.BaseURL)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List Doctors", &s.metrics.ListDoctors)
	printOperationReport("List Appointments", &s.metrics.ListAppointments)
	printOperationReport("Available Slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	validation := atomic.LoadInt64(&om.Validation)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success, total))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict, total))
	}
	if validation > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", validation, pct(validation, total))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed, total))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func pct(n, total int64) float64 {
	return float64(n) / float64(total) * 100
}

// Helper functions

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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
