package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// probe checks one dependency. Critical probes fail readiness outright;
// the rest only degrade it. Postgres down means bookings cannot be served
// at all, while Redis down leaves commits on the constraint backstop.
type probe struct {
	name     string
	critical bool
	ping     func(ctx context.Context) error
}

type HealthHandler struct {
	env     string
	version string
	probes  []probe
}

func NewHealthHandler(pgPool *pgxpool.Pool, rdb *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		env:     env,
		version: version,
		probes: []probe{
			{name: "postgres", critical: true, ping: pgPool.Ping},
			{name: "redis", ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}},
		},
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness pings every dependency under its own short deadline and folds
// the results into ok, degraded, or error.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string, len(h.probes))
	status := "ok"

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		err := p.ping(ctx)
		cancel()

		if err == nil {
			deps[p.name] = "ok"
			continue
		}
		deps[p.name] = "down"
		if p.critical || status != "ok" {
			status = "error"
		} else {
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}
