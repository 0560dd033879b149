// Package errors builds gofulmen error envelopes for the service and writes
// them as JSON responses.
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/metrics"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server/middleware"
)

// Error codes used across the service.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid      = "CONFIG_INVALID"
)

var statusByCode = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeExternalService:    http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// User errors (400-level)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewPayloadTooLargeError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodePayloadTooLarge, message)
}

// Server errors (500-level)

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

// Wrappers for existing errors. The request id in ctx becomes the
// correlation and trace id.

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message)
}

func WrapNotFound(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeNotFound, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeDatabase, err, message)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message)
}

func WrapServiceUnavailable(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeServiceUnavailable, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := requestID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	if err == nil {
		return envelope
	}
	if updated, updateErr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); updateErr == nil {
		envelope = updated
	}
	return envelope
}

// requestID returns the request id from ctx, or a fresh one.
func requestID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return errors.GenerateCorrelationID()
}

// EnsureEnvelope turns any error into an envelope. Plain errors become
// INTERNAL_ERROR with the message kept in the context.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	envelope := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	severity := errors.SeverityCritical
	if err != nil {
		severity = errors.SeverityHigh
		envelope, _ = envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()})
	}
	envelope, _ = envelope.WithSeverity(severity)
	return envelope
}

// HTTPStatusFromCode maps an error code to its HTTP status; unknown codes
// are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope logs the envelope, counts it and writes it with the
// status its code maps to.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	if envelope == nil {
		envelope = EnsureEnvelope(nil)
	}
	if envelope.CorrelationID == "" {
		var ctx context.Context
		if r != nil {
			ctx = r.Context()
		}
		envelope = envelope.WithCorrelationID(requestID(ctx))
	}

	status := HTTPStatusFromCode(envelope.Code)
	logHTTPError(envelope, status)
	metrics.RecordErrorEnvelope(metrics.EndpointLabel(r), envelope.Code, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   responseDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

// responseDetails merges details and context, details winning. Stack traces
// stay in the logs.
func responseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		if key == "stack_trace" {
			continue
		}
		details[key] = value
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func logHTTPError(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
