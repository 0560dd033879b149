package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstThenReject(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))

	// Other clients have their own bucket.
	require.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	require.True(t, l.Allow("10.0.0.1"))
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.Equal(t, 2, l.Clients())

	now = now.Add(2 * clientIdleTTL)
	require.True(t, l.Allow("c"))
	require.Equal(t, 1, l.Clients())
}

func TestRateLimiterMiddleware(t *testing.T) {
	l := NewRateLimiter(0.5, 1)
	handler := RequestID(l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/chat_global", nil)
		req.RemoteAddr = "192.0.2.7:51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRateLimiterWithResponder(t *testing.T) {
	called := 0
	l := NewRateLimiter(0.5, 1).WithResponder(func(w http.ResponseWriter, _ *http.Request, _ *errors.ErrorEnvelope) {
		called++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, want := range []int{http.StatusNoContent, http.StatusServiceUnavailable} {
		req := httptest.NewRequest(http.MethodPost, "/paste", nil)
		req.RemoteAddr = "192.0.2.8:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code)
	}
	require.Equal(t, 1, called)
}
