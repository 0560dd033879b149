package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/clauselens/clauselens/internal/metrics"
)

// Responder writes an error envelope as the response. The server installs
// the application error writer; WriteEnvelope is the fallback.
type Responder func(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope)

// Recovery turns a handler panic into a critical INTERNAL_ERROR response.
func Recovery(respond Responder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = WriteEnvelope
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
					WithCorrelationID(GetRequestID(r.Context()))
				envelope, _ = envelope.WithContext(map[string]interface{}{
					"stack_trace": string(debug.Stack()),
				})
				envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

				metrics.RecordPanic(metrics.EndpointLabel(r))
				respond(w, r, envelope)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteEnvelope writes the standard error body. Only the codes raised by
// this package get a specific status; everything else is a 500.
func WriteEnvelope(w http.ResponseWriter, _ *http.Request, envelope *errors.ErrorEnvelope) {
	status := http.StatusInternalServerError
	if envelope.Code == "RATE_LIMITED" {
		status = http.StatusTooManyRequests
	}

	body := map[string]any{
		"code":       envelope.Code,
		"message":    envelope.Message,
		"request_id": envelope.CorrelationID,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
