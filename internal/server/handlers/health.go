package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/clauselens/clauselens/internal/errors"
	"github.com/clauselens/clauselens/internal/metrics"
)

// Check states reported per checker.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

type registeredChecker struct {
	checker HealthChecker
	// critical checkers turn the aggregate unhealthy; others only degrade it.
	critical bool
}

// HealthManager runs the registered checks for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]registeredChecker
	version  string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]registeredChecker),
		version:  version,
	}
}

// RegisterChecker registers a critical health checker. A failing critical
// check makes the service unhealthy.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, checker, true)
}

// RegisterAdvisoryChecker registers a checker whose failure only degrades the
// aggregate status.
func (hm *HealthManager) RegisterAdvisoryChecker(name string, checker HealthChecker) {
	hm.register(name, checker, false)
}

func (hm *HealthManager) register(name string, checker HealthChecker, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = registeredChecker{checker: checker, critical: critical}
}

// runHealthChecks executes all registered health checks in name order.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]registeredChecker, len(hm.checkers))
	for k, v := range hm.checkers {
		checkers[k] = v
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		rc := checkers[name]
		switch err := rc.checker.CheckHealth(ctx); {
		case err == nil:
			checks[name] = StatusHealthy
		case rc.critical:
			checks[name] = StatusUnhealthy
		default:
			checks[name] = StatusDegraded
		}
	}
	return checks
}

// determineOverallStatus determines overall health status
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if status == StatusDegraded || status == StatusTimeout {
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// evaluate runs the checks under timeout and records the outcome.
func (hm *HealthManager) evaluate(ctx context.Context, probe string, timeout time.Duration) (string, map[string]string) {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)
	metrics.RecordHealthCheck(probe, status != StatusUnhealthy, time.Since(start))
	return status, checks
}

// HealthHandler handles aggregate health check requests
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.evaluate(r.Context(), "aggregate", 5*time.Second)
	if status == StatusUnhealthy {
		envelope := apperrors.NewServiceUnavailableError("aggregate health check failed")
		respondWithError(w, r, enrichHealthEnvelope(envelope, "", status, checks))
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler reports that the process is serving. It runs no checks.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler handles readiness probe requests
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", 5*time.Second)
}

// StartupHandler handles startup probe requests
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name string, timeout time.Duration) {
	status, checks := hm.evaluate(r.Context(), name, timeout)
	if status == StatusUnhealthy {
		envelope := apperrors.NewServiceUnavailableError(name + " probe failed")
		respondWithError(w, r, enrichHealthEnvelope(envelope, name, status, checks))
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC(), Checks: checks})
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	details := map[string]interface{}{
		"status": status,
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	contextData := map[string]interface{}{
		"status": status,
	}
	if probe != "" {
		contextData["probe"] = probe
	}

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		contextData["unhealthy_checks"] = failing
	}

	envelope, _ = envelope.WithContext(contextData)
	return envelope
}
