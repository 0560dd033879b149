package metrics

import (
	"strconv"
	"time"

	"github.com/clauselens/clauselens/internal/observability"
)

// Service-level metrics following Prometheus conventions
var (
	// Document pipeline metrics
	DocumentsIngestedTotal = "clauselens_documents_ingested_total"
	ClauseAnalysesTotal    = "clauselens_clause_analyses_total"
	ChatRepliesTotal       = "clauselens_chat_replies_total"
	SessionsPrunedTotal    = "clauselens_sessions_pruned_total"

	// Inbound throttling
	RateLimitedTotal = "clauselens_http_rate_limited_total"

	// Health check metrics
	HealthCheckTotal    = "clauselens_health_check_total"
	HealthCheckDuration = "clauselens_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "clauselens_server_start_time_seconds"
)

// RecordDocumentIngested counts a pasted document by whether segmentation
// fell back to paragraphs.
func RecordDocumentIngested(docType string, fallback bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DocumentsIngestedTotal,
			1,
			map[string]string{
				"doc_type": docType,
				"fallback": boolLabel(fallback),
			},
		)
	}
}

// RecordClauseAnalysis counts clause annotations by source ("cache",
// "provider", "fallback" or "empty").
func RecordClauseAnalysis(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ClauseAnalysesTotal,
			1,
			map[string]string{"source": source},
		)
	}
}

// RecordChatReply counts chat replies per scope and whether a provider
// answered.
func RecordChatReply(scope string, served bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ChatRepliesTotal,
			1,
			map[string]string{
				"scope":  scope,
				"served": boolLabel(served),
			},
		)
	}
}

// RecordSessionsPruned counts sessions dropped by retention.
func RecordSessionsPruned(n int64) {
	if observability.TelemetrySystem != nil && n > 0 {
		_ = observability.TelemetrySystem.Counter(SessionsPrunedTotal, float64(n), nil)
	}
}

// RecordRateLimited counts requests rejected by the inbound limiter.
func RecordRateLimited(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitedTotal,
			1,
			map[string]string{"endpoint": endpoint},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

func boolLabel(b bool) string {
	return strconv.FormatBool(b)
}
