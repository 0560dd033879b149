package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		CodeDatabase:           http.StatusInternalServerError,
		"SOMETHING_ELSE":       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestEnsureEnvelope(t *testing.T) {
	env := NewNotFoundError("missing")
	assert.Same(t, env, EnsureEnvelope(env))

	wrapped := EnsureEnvelope(stderrors.New("disk full"))
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "disk full", wrapped.Context["wrapped_error"])
	assert.Equal(t, errors.SeverityHigh, wrapped.Severity)

	assert.Equal(t, errors.SeverityCritical, EnsureEnvelope(nil).Severity)
}

func TestWrapUsesRequestID(t *testing.T) {
	var ctx context.Context
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	env := WrapDatabaseError(ctx, stderrors.New("locked"), "session store failed")
	assert.Equal(t, CodeDatabase, env.Code)
	assert.Equal(t, "req-7", env.CorrelationID)
	assert.Equal(t, "locked", env.Context["wrapped_error"])

	assert.NotEmpty(t, WrapInternal(context.Background(), nil, "x").CorrelationID)
}

func TestRespondWithError(t *testing.T) {
	env := NewInvalidInputError("no text provided").WithDetails(map[string]interface{}{"field": "text"})
	env, _ = env.WithContext(map[string]interface{}{"stack_trace": "goroutine 1", "limit": 10})

	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodPost, "/paste", nil), env)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInvalidInput, body.Error.Code)
	assert.Equal(t, "no text provided", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, "text", body.Error.Details["field"])
	assert.EqualValues(t, 10, body.Error.Details["limit"])
	assert.NotContains(t, body.Error.Details, "stack_trace")
}
