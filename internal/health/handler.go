package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"charity-service/internal/httputil"
	"charity-service/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 2 * time.Second

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type dependency struct {
	name  string
	check Check
}

type Handler struct {
	mu           sync.RWMutex
	dependencies []dependency
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewHandler(m *metrics.Metrics, logger *slog.Logger) *Handler {
	if m == nil {
		m = metrics.NewMock()
	}
	return &Handler{metrics: m, logger: logger}
}

// Add registers a dependency consulted by /ready.
func (h *Handler) Add(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dependencies = append(h.dependencies, dependency{name: name, check: check})
}

// Names lists the registered dependencies.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.dependencies))
	for _, dep := range h.dependencies {
		names = append(names, dep.name)
	}
	return names
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	statuses, ready := h.CheckAll(r.Context())
	if !ready {
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Dependencies: statuses})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ready", Dependencies: statuses})
}

// CheckAll runs every dependency check and records the results.
func (h *Handler) CheckAll(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	deps := append([]dependency(nil), h.dependencies...)
	h.mu.RUnlock()

	statuses := make(map[string]string, len(deps))
	ready := true
	for _, dep := range deps {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		err := dep.check(checkCtx)
		cancel()

		h.metrics.Health.RecordDependencyCheck(ctx, dep.name, time.Since(start), err)
		if err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy", "dependency", dep.name, "error", err)
			statuses[dep.name] = "down"
			ready = false
			continue
		}
		statuses[dep.name] = "up"
	}
	return statuses, ready
}

// Watch re-runs the checks every interval until ctx is done and reports each
// result to onResult.
func (h *Handler) Watch(ctx context.Context, interval time.Duration, onResult func(ready bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, ready := h.CheckAll(ctx)
		if onResult != nil {
			onResult(ready)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
