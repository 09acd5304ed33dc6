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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/config"
	"github.com/clinicdesk/clinic-scheduling/internal/db"
)

// simulate hammers the running API with contended reservations. Each round
// picks one available slot and fires SIM_CONTENDERS concurrent reserve
// requests at it; exactly one must succeed. A fraction of the won slots is
// then cancelled and fought over again, exercising the release path.

type SimConfig struct {
	APIBaseURL   string
	Rounds       int
	Contenders   int
	CancelRatio  float64
	PatientLimit int
	SlotLimit    int
	PostgresDSN  string
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
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
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]

	return avg, p50, p95
}

type Simulator struct {
	config    SimConfig
	pool      *DataPool
	client    *http.Client
	reserve   OperationMetrics
	cancel    OperationMetrics
	anomalies int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	log.Printf("config: rounds=%d contenders=%d cancel_ratio=%.2f", cfg.Rounds, cfg.Contenders, cfg.CancelRatio)

	ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d available slots", len(dataPool.Patients), len(dataPool.Slots))

	if len(dataPool.Patients) < cfg.Contenders || len(dataPool.Slots) == 0 {
		log.Fatal("not enough seeded data, run cmd/seed and cmd/slot-worker first")
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:       getInt("SIM_ROUNDS", 200),
		Contenders:   getInt("SIM_CONTENDERS", 8),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 2400),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM slots
		WHERE available = true AND start_time > now()
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, id)
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	rounds := min(s.config.Rounds, len(s.pool.Slots))

	for i := 0; i < rounds; i++ {
		slotID := s.pool.Slots[i]

		winner := s.contend(slotID)

		if winner != uuid.Nil && rand.Float64() < s.config.CancelRatio {
			if s.cancelAppointment(winner) {
				// The freed slot must again yield exactly one winner.
				s.contend(slotID)
			}
		}
	}
}

// contend fires Contenders concurrent reservations at one slot and returns
// the winning appointment ID, logging an anomaly unless exactly one wins.
func (s *Simulator) contend(slotID uuid.UUID) uuid.UUID {
	var wg sync.WaitGroup
	var wins int64
	var winner uuid.UUID
	var winnerMu sync.Mutex

	for c := 0; c < s.config.Contenders; c++ {
		patientID := s.pool.Patients[rand.Intn(len(s.pool.Patients))]

		wg.Add(1)
		go func() {
			defer wg.Done()

			apptID, status, latency := s.reserveOnce(patientID, slotID)
			success := status == http.StatusCreated
			conflict := status == http.StatusConflict

			s.reserve.Record(latency, success, conflict)

			if success {
				atomic.AddInt64(&wins, 1)
				winnerMu.Lock()
				winner = apptID
				winnerMu.Unlock()
			}
		}()
	}

	wg.Wait()

	if wins != 1 {
		atomic.AddInt64(&s.anomalies, 1)
		log.Printf("ANOMALY: slot %s had %d winners", slotID, wins)
	}

	return winner
}

func (s *Simulator) reserveOnce(patientID, slotID uuid.UUID) (uuid.UUID, int, time.Duration) {
	body, _ := json.Marshal(map[string]string{
		"patient_id": patientID.String(),
		"slot_id":    slotID.String(),
	})

	start := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		return uuid.Nil, 0, latency
	}
	defer resp.Body.Close()

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, &created)
	}

	return created.ID, resp.StatusCode, latency
}

func (s *Simulator) cancelAppointment(id uuid.UUID) bool {
	start := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+"/appointments/"+id.String()+"/cancel", "application/json", nil)
	latency := time.Since(start)
	if err != nil {
		s.cancel.Record(latency, false, false)
		return false
	}
	defer resp.Body.Close()

	success := resp.StatusCode == http.StatusOK
	s.cancel.Record(latency, success, resp.StatusCode == http.StatusConflict)
	return success
}

func (s *Simulator) PrintReport() {
	fmt.Println("=== simulation report ===")

	rAvg, rP50, rP95 := s.reserve.Stats()
	fmt.Printf("reserve: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		s.reserve.Total, s.reserve.Success, s.reserve.Conflict, s.reserve.Error, rAvg, rP50, rP95)

	cAvg, cP50, cP95 := s.cancel.Stats()
	fmt.Printf("cancel:  total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		s.cancel.Total, s.cancel.Success, s.cancel.Conflict, s.cancel.Error, cAvg, cP50, cP95)

	fmt.Printf("double-booking anomalies: %d\n", s.anomalies)
	if s.anomalies > 0 {
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
