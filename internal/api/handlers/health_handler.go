package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/acquisitions-api/internal/httpx"
	"github.com/isdelr/acquisitions-api/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProcessStatsSource yields the most recent process sample.
type ProcessStatsSource interface {
	Latest() (monitoring.ProcessStats, bool)
}

// HealthHandler reports liveness, uptime and dependency state.
type HealthHandler struct {
	started time.Time
	db      Pinger
	stats   ProcessStatsSource
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler. db and stats may be nil.
func NewHealthHandler(started time.Time, db Pinger, stats ProcessStatsSource) *HealthHandler {
	return &HealthHandler{started: started, db: db, stats: stats, now: time.Now}
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Uptime    float64                  `json:"uptime"`
	Database  string                   `json:"database,omitempty"`
	Process   *monitoring.ProcessStats `json:"process,omitempty"`
}

// Health answers 200 while the database is reachable and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	resp := healthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    now.Sub(h.started).Seconds(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Health check: database unreachable")
			resp.Status = "DEGRADED"
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "up"
		}
	}
	if h.stats != nil {
		if s, ok := h.stats.Latest(); ok {
			resp.Process = &s
		}
	}

	httpx.WriteJSON(w, status, resp)
}

// Root is the plain-text greeting on "/".
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello from Acquisitions Service!"))
}

// APIStatus answers GET /api.
func APIStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Acquisitions API is running!"})
}
