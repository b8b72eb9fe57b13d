package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rosterwatch/internal/platform/logger"
	"rosterwatch/pkg/domain"
)

// QueueReader lists the queued targets.
type QueueReader interface {
	Snapshot(ctx context.Context) ([]domain.Identifier, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler serves the operator endpoints. It only reads shared state.
type Handler struct {
	queue  QueueReader
	checks map[string]HealthCheck
	logger *slog.Logger
}

func NewHandler(queue QueueReader, l *slog.Logger) *Handler {
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{queue: queue, checks: map[string]HealthCheck{}, logger: l}
}

// AddCheck registers a named dependency for /healthz.
func (h *Handler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Register mounts the handler's endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Get("/targets", h.HandleTargets)
}

// NewRouter wires the operator endpoints and the Prometheus scrape endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.Register(r)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

type targetsResponse struct {
	Count   int      `json:"count"`
	Targets []string `json:"targets"`
}

// HandleTargets handles GET /targets.
func (h *Handler) HandleTargets(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queue.Snapshot(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list targets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "queue_unavailable")
		return
	}
	resp := targetsResponse{Count: len(ids), Targets: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.Targets = append(resp.Targets, id.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "ops request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
