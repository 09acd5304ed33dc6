package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/config"
	"github.com/clinicdesk/clinic-scheduling/internal/db"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

// slot-worker keeps every practitioner's calendar filled over a rolling
// horizon. Generation is insert-if-absent, so overlapping runs and restarts
// are harmless.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot worker in env=%s interval=%s horizon=%dd", cfg.Env, cfg.WorkerInterval, cfg.SlotHorizonDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := scheduling.NewPgRepository(pgPool)
	gen := scheduling.NewGenerator(repo)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	runOnce(rootCtx, repo, gen, cfg)

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutting down slot-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, gen, cfg)
		}
	}
}

func runOnce(ctx context.Context, repo scheduling.Repository, gen *scheduling.Generator, cfg config.Config) {
	practitioners, err := repo.ListPractitioners(ctx)
	if err != nil {
		log.Printf("list practitioners: %v", err)
		return
	}

	totalCreated := 0
	now := time.Now()

	for _, p := range practitioners {
		for day := 1; day <= cfg.SlotHorizonDays; day++ {
			date := now.AddDate(0, 0, day)
			start := time.Date(date.Year(), date.Month(), date.Day(), cfg.WorkdayStart, 0, 0, 0, date.Location())
			end := time.Date(date.Year(), date.Month(), date.Day(), cfg.WorkdayEnd, 0, 0, 0, date.Location())

			created, err := gen.Generate(ctx, p.ID, start, end, cfg.SlotInterval)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("generate slots for practitioner %s on %s: %v", p.ID, start.Format("2006-01-02"), err)
				continue
			}
			totalCreated += created
		}
	}

	log.Printf("slot generation pass complete: practitioners=%d created=%d", len(practitioners), totalCreated)
}
