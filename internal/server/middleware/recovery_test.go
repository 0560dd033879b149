package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/require"
)

func TestRecoveryWritesInternalError(t *testing.T) {
	handler := RequestID(Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/paste", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	require.Contains(t, rec.Body.String(), `"request_id":"req-42"`)
	require.NotContains(t, rec.Body.String(), "stack_trace")
}

func TestRecoveryUsesResponder(t *testing.T) {
	var got *errors.ErrorEnvelope
	respond := func(w http.ResponseWriter, _ *http.Request, envelope *errors.ErrorEnvelope) {
		got = envelope
		w.WriteHeader(http.StatusTeapot)
	}
	handler := Recovery(respond)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, got)
	require.Equal(t, "panic: boom", got.Message)
	require.Equal(t, errors.SeverityCritical, got.Severity)
}

func TestRecoveryPassesThrough(t *testing.T) {
	handler := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
