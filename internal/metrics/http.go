package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clauselens/clauselens/internal/observability"
)

// HTTP metric names. The exporter namespace is prefixed on export, so these
// carry no service prefix.
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPRequestSize     = "http_request_size_bytes"
	HTTPResponseSize    = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"

	ErrorEnvelopesTotal = "clauselens_error_envelopes_total"
	PanicsTotal         = "clauselens_panics_total"
)

// HTTPRequest describes one served request.
type HTTPRequest struct {
	Method        string
	Endpoint      string
	Status        int
	Duration      time.Duration
	RequestBytes  int64
	ResponseBytes int64
}

// RecordHTTPRequest emits the request counter, duration histogram and size
// gauges, plus an error counter for 4xx and 5xx responses.
func RecordHTTPRequest(req HTTPRequest) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	labels := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
		"status":   strconv.Itoa(req.Status),
	}
	_ = sys.Counter(HTTPRequestsTotal, 1, labels)
	_ = sys.Histogram(HTTPRequestDuration, req.Duration, labels)

	sizeLabels := map[string]string{"method": req.Method, "endpoint": req.Endpoint}
	_ = sys.Gauge(HTTPRequestSize, float64(req.RequestBytes), sizeLabels)
	_ = sys.Gauge(HTTPResponseSize, float64(req.ResponseBytes), sizeLabels)

	if req.Status >= http.StatusBadRequest {
		errorType := "client_error"
		if req.Status >= http.StatusInternalServerError {
			errorType = "server_error"
		}
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"method":     req.Method,
			"endpoint":   req.Endpoint,
			"status":     strconv.Itoa(req.Status),
			"error_type": errorType,
		})
	}
}

// RecordErrorEnvelope counts error responses by endpoint and error code.
func RecordErrorEnvelope(endpoint, code string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorEnvelopesTotal,
			1,
			map[string]string{
				"endpoint":    endpoint,
				"error_code":  code,
				"http_status": strconv.Itoa(status),
			},
		)
	}
}

// RecordPanic counts a recovered handler panic.
func RecordPanic(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PanicsTotal,
			1,
			map[string]string{"endpoint": endpoint},
		)
	}
}

// EndpointLabel returns the chi route pattern for r, or a fixed label for
// known paths, so raw ids never become label values.
func EndpointLabel(r *http.Request) string {
	if r == nil {
		return "/unknown"
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case strings.HasPrefix(path, "/documents/"):
		return "/documents/{id}"
	}
	switch path {
	case "/", "/version", "/metrics", "/keys",
		"/paste", "/analyze_clause", "/chat_clause", "/chat_doc", "/chat_global", "/reset_chat":
		return path
	}
	return "/unknown"
}
