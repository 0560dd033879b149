package metrics

import (
	"strconv"
	"time"

	"github.com/clauselens/clauselens/internal/observability"
)

// Dispatch and segmentation metrics
const (
	DispatchTotal        = "ailink_dispatch_total"
	DispatchAttempts     = "ailink_dispatch_attempts"
	DispatchDuration     = "ailink_dispatch_duration_ms"
	KeyRotationsTotal    = "ailink_key_rotations_total"
	ClauseCacheTotal     = "clause_cache_lookups_total"
	SegmentedClauses     = "segment_clauses"
	SegmentFallbackTotal = "segment_fallback_total"
)

// RecordDispatch records the outcome of one dispatch ("success", "exhausted",
// "aborted") and how many provider attempts it used.
func RecordDispatch(pool, outcome string, attempts int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	tags := map[string]string{
		"pool":    pool,
		"outcome": outcome,
	}
	_ = observability.TelemetrySystem.Counter(DispatchTotal, 1, tags)
	_ = observability.TelemetrySystem.Gauge(DispatchAttempts, float64(attempts), map[string]string{"pool": pool})
	_ = observability.TelemetrySystem.Histogram(DispatchDuration, duration, map[string]string{"pool": pool})
}

// RecordKeyRotation records a forced key rotation and its cause.
func RecordKeyRotation(pool, reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			KeyRotationsTotal,
			1,
			map[string]string{
				"pool":   pool,
				"reason": reason,
			},
		)
	}
}

// RecordClauseCache records a clause annotation cache lookup.
func RecordClauseCache(hit bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ClauseCacheTotal,
			1,
			map[string]string{"hit": strconv.FormatBool(hit)},
		)
	}
}

// RecordSegmentation records the number of clauses produced for a document.
func RecordSegmentation(clauses int, fallback bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(SegmentedClauses, float64(clauses), nil)
	if fallback {
		_ = observability.TelemetrySystem.Counter(SegmentFallbackTotal, 1, nil)
	}
}
