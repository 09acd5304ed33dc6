package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/clinic-scheduling/internal/report"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Generator *scheduling.Generator
	Reports   *report.Registry
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot endpoints
	r.Post("/practitioners/{id}/slots/generate", generateSlotsHandler(cfg.Generator))
	r.Get("/practitioners/{id}/slots", listSlotsHandler(cfg.Service))

	// Appointment endpoints
	r.Post("/appointments", reserveHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeHandler(cfg.Service))

	// Reports
	r.Get("/reports/{name}", runReportHandler(cfg.Reports))

	return r
}
