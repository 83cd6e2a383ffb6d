package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout bounds every dependency ping in Readyz.
const readinessTimeout = 3 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler. A nil checker is reported
// as "not configured" and does not fail readiness.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{checks: map[string]HealthChecker{
		"postgres": db,
		"redis":    cache,
	}}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's readiness.
type CheckResult struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
}

// Healthz is a liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency concurrently and returns 503 if any fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(h.checks))
		healthy = true
	)

	for name, checker := range h.checks {
		if checker == nil {
			results[name] = CheckResult{Status: "not configured"}
			continue
		}

		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := checker.Ping(ctx)
			res := CheckResult{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}

			mu.Lock()
			results[name] = res
			if err != nil {
				healthy = false
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: results}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
