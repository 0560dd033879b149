package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/metrics"
	"github.com/clauselens/clauselens/internal/observability"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// RequestMetrics records per-request metrics and logs each completed request
// with its request id. It is a pass-through while telemetry is off.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Read the pattern after routing; chi fills it in while serving.
		req := metrics.HTTPRequest{
			Method:        r.Method,
			Endpoint:      metrics.EndpointLabel(r),
			Status:        rec.status,
			Duration:      time.Since(start),
			RequestBytes:  contentLength(r),
			ResponseBytes: rec.bytes,
		}
		metrics.RecordHTTPRequest(req)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", req.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", req.Endpoint),
				zap.Int("status", req.Status),
				zap.Duration("duration", req.Duration),
				zap.Int64("response_size", req.ResponseBytes),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}

func contentLength(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	n, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
