package health

import (
	"context"
	"net/http"
	"time"

	"lv-simtrade/internal/httputil"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	pool      *pgxpool.Pool
	version   string
	startedAt time.Time
}

func NewHandler(pool *pgxpool.Pool, version string) *Handler {
	return &Handler{pool: pool, version: version, startedAt: time.Now().UTC()}
}

type status struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

// Health reports overall state with a live database check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	s := status{
		Status:   "ok",
		Version:  h.version,
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		Database: "up",
	}
	code := http.StatusOK
	if err := h.ping(r.Context()); err != nil {
		s.Status = "degraded"
		s.Database = "down"
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, s)
}

// Live answers as long as the process is running.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready gates traffic on the database being reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.pool.Ping(ctx)
}
