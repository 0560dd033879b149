package ailink

import (
	"context"
	"errors"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink/driver"
)

// FailureKind is the retry class of a failed provider call.
type FailureKind int

const (
	// FailureOther aborts the current dispatch.
	FailureOther FailureKind = iota
	// FailureQuotaExceeded rotates to the next key.
	FailureQuotaExceeded
	// FailureInvalidCredential rotates to the next key and is reported as a
	// configuration problem.
	FailureInvalidCredential
)

func (k FailureKind) String() string {
	switch k {
	case FailureQuotaExceeded:
		return "quota_exceeded"
	case FailureInvalidCredential:
		return "invalid_credential"
	default:
		return "other"
	}
}

// Retryable reports whether another key may succeed where this one failed.
func (k FailureKind) Retryable() bool {
	return k == FailureQuotaExceeded || k == FailureInvalidCredential
}

// Classify maps a provider error to its retry class using the HTTP status and
// the structured Google status and reason fields.
func Classify(err error) FailureKind {
	var perr *driver.ProviderError
	if !errors.As(err, &perr) || perr == nil {
		return FailureOther
	}

	switch strings.ToUpper(perr.Reason) {
	case "API_KEY_INVALID", "API_KEY_EXPIRED", "API_KEY_SERVICE_BLOCKED":
		return FailureInvalidCredential
	case "RATE_LIMIT_EXCEEDED", "RESOURCE_EXHAUSTED":
		return FailureQuotaExceeded
	}
	switch strings.ToUpper(perr.Status) {
	case "RESOURCE_EXHAUSTED":
		return FailureQuotaExceeded
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return FailureInvalidCredential
	}
	switch perr.StatusCode {
	case 429:
		return FailureQuotaExceeded
	case 401, 403:
		return FailureInvalidCredential
	}
	return FailureOther
}

// ProviderFailure is the API-facing description of a failed provider call.
type ProviderFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func mapProviderError(err error) *ProviderFailure {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderFailure{Code: "AILINK_PROVIDER_TIMEOUT", Message: "provider request timed out"}
	}
	if errors.Is(err, ErrKeyPoolExhausted) {
		return &ProviderFailure{Code: "AILINK_KEYS_EXHAUSTED", Message: "all api keys are at quota", Details: err.Error()}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch kind := Classify(err); {
		case kind == FailureInvalidCredential:
			return &ProviderFailure{Code: "AILINK_PROVIDER_AUTH", Message: "provider authentication failed", Details: details}
		case kind == FailureQuotaExceeded:
			return &ProviderFailure{Code: "AILINK_PROVIDER_RATE_LIMIT", Message: "provider rate limited", Details: details}
		case status >= 500 && status <= 599:
			return &ProviderFailure{Code: "AILINK_PROVIDER_UNAVAILABLE", Message: "provider unavailable", Details: details}
		case status >= 400 && status <= 499:
			return &ProviderFailure{Code: "AILINK_PROVIDER_BAD_REQUEST", Message: "provider rejected request", Details: details}
		default:
			return &ProviderFailure{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: details}
		}
	}

	return &ProviderFailure{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: err.Error()}
}
