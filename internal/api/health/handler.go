package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"smartflow/pkg/logger"
)

// Pinger verifies connectivity to one backing store
type Pinger interface {
	Health(ctx context.Context) error
}

type check struct {
	name   string
	pinger Pinger
}

// Handler provides liveness and readiness endpoints
type Handler struct {
	log         *logger.Logger
	checks      []check
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(log *logger.Logger, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// AddCheck registers a named connectivity check
func (h *Handler) AddCheck(name string, pinger Pinger) {
	h.checks = append(h.checks, check{name: name, pinger: pinger})
}

// Status represents the overall health status
type Status struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK while the process is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleReadiness returns 200 only when every backing store responds.
// Used by the readiness probe to gate traffic.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, healthy, total := h.runChecks(ctx)

	code := http.StatusOK
	if healthy < total {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}

	writeJSON(w, code, status)
}

// HandleHealth returns detailed health status. A partial outage reports
// "degraded" but still answers 200 so dashboards keep polling.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, healthy, total := h.runChecks(ctx)

	code := http.StatusOK
	switch {
	case healthy == 0 && total > 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < total:
		status.Status = "degraded"
	}

	writeJSON(w, code, status)
}

func (h *Handler) runChecks(ctx context.Context) (Status, int, int) {
	checks := make(map[string]ComponentHealth, len(h.checks))
	healthy := 0

	for _, c := range h.checks {
		result := h.ping(ctx, c)
		checks[c.name] = result
		if result.Status == "healthy" {
			healthy++
		}
	}

	return Status{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}, healthy, len(h.checks)
}

func (h *Handler) ping(ctx context.Context, c check) ComponentHealth {
	start := time.Now()
	err := c.pinger.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "component", c.name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
