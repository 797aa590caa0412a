package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

type RouterConfig struct {
	Service  *booking.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// Slot proposal and booking commit
	r.Get("/available-slots", availableSlotsHandler(cfg.Service))
	r.Post("/bookings", createBookingHandler(cfg.Service))

	// Appointment lifecycle
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/transition", transitionAppointmentHandler(cfg.Service))

	// Telehealth sessions
	r.Get("/telehealth-sessions/{id}", sessionActionHandler(cfg.Service.GetSession))
	r.Post("/telehealth-sessions/{id}/start", sessionActionHandler(cfg.Service.StartSession))
	r.Post("/telehealth-sessions/{id}/join", joinSessionHandler(cfg.Service))
	r.Post("/telehealth-sessions/{id}/end", sessionActionHandler(cfg.Service.EndSession))
	r.Post("/telehealth-sessions/{id}/cancel", sessionActionHandler(cfg.Service.CancelSession))
	r.Post("/telehealth-sessions/{id}/technical-issues", sessionActionHandler(cfg.Service.FlagSessionTechnicalIssues))

	return r
}
