package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func failing(msg string) HealthChecker {
	return CheckerFunc(func(context.Context) error { return errors.New(msg) })
}

var passing = CheckerFunc(func(context.Context) error { return nil })

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*HealthManager)
		probe    func(*HealthManager) http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{
			name:     "aggregate healthy",
			setup:    func(m *HealthManager) { m.RegisterChecker("store", passing) },
			probe:    func(m *HealthManager) http.HandlerFunc { return m.HealthHandler },
			wantCode: http.StatusOK,
			wantBody: StatusHealthy,
		},
		{
			name: "saturated pool degrades readiness",
			setup: func(m *HealthManager) {
				m.RegisterChecker("store", passing)
				m.RegisterAdvisoryChecker("key_pools", failing("analysis pool at quota"))
			},
			probe:    func(m *HealthManager) http.HandlerFunc { return m.ReadinessHandler },
			wantCode: http.StatusOK,
			wantBody: StatusDegraded,
		},
		{
			name:     "store down fails startup",
			setup:    func(m *HealthManager) { m.RegisterChecker("store", failing("closed")) },
			probe:    func(m *HealthManager) http.HandlerFunc { return m.StartupHandler },
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "liveness runs no checks",
			setup:    func(m *HealthManager) { m.RegisterChecker("store", failing("closed")) },
			probe:    func(m *HealthManager) http.HandlerFunc { return m.LivenessHandler },
			wantCode: http.StatusOK,
			wantBody: StatusHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewHealthManager("1.2.3")
			tt.setup(m)

			rec := httptest.NewRecorder()
			tt.probe(m)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody == "" {
				return
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantBody {
				t.Fatalf("status field = %q, want %q", body.Status, tt.wantBody)
			}
		})
	}
}

func TestAggregateReportsVersionAndChecks(t *testing.T) {
	m := NewHealthManager("1.2.3")
	m.RegisterChecker("store", passing)

	rec := httptest.NewRecorder()
	m.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "1.2.3" || resp.Checks["store"] != StatusHealthy {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUnhealthyEnvelopeListsFailingChecks(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("store", failing("closed"))
	m.RegisterAdvisoryChecker("key_pools", passing)

	rec := httptest.NewRecorder()
	m.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
	if resp.Error.Details["probe"] != "ready" {
		t.Fatalf("probe detail = %v", resp.Error.Details["probe"])
	}
	checks, _ := resp.Error.Details["checks"].(map[string]any)
	if checks["store"] != StatusUnhealthy || checks["key_pools"] != StatusHealthy {
		t.Fatalf("checks detail = %v", checks)
	}
}

func TestExpiredContextMarksChecksTimedOut(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("store", passing)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	checks := m.runHealthChecks(ctx)
	if checks["store"] != StatusTimeout {
		t.Fatalf("store = %q, want timeout", checks["store"])
	}
	if got := m.determineOverallStatus(checks); got != StatusDegraded {
		t.Fatalf("overall = %q, want degraded", got)
	}
}
