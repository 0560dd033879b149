package ailink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/ailink/driver"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"plain error", errors.New("connection reset"), FailureOther},
		{"nil", nil, FailureOther},
		{"429", &driver.ProviderError{StatusCode: 429}, FailureQuotaExceeded},
		{"resource exhausted", &driver.ProviderError{StatusCode: 400, Status: "RESOURCE_EXHAUSTED"}, FailureQuotaExceeded},
		{"401", &driver.ProviderError{StatusCode: 401}, FailureInvalidCredential},
		{"403", &driver.ProviderError{StatusCode: 403}, FailureInvalidCredential},
		{"api key invalid", &driver.ProviderError{StatusCode: 400, Status: "INVALID_ARGUMENT", Reason: "API_KEY_INVALID"}, FailureInvalidCredential},
		{"permission denied", &driver.ProviderError{StatusCode: 400, Status: "PERMISSION_DENIED"}, FailureInvalidCredential},
		{"bad request", &driver.ProviderError{StatusCode: 400, Status: "INVALID_ARGUMENT"}, FailureOther},
		{"unavailable", &driver.ProviderError{StatusCode: 503, Status: "UNAVAILABLE"}, FailureOther},
		{"wrapped", fmt.Errorf("call: %w", &driver.ProviderError{StatusCode: 429}), FailureQuotaExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestFailureKindRetryable(t *testing.T) {
	require.True(t, FailureQuotaExceeded.Retryable())
	require.True(t, FailureInvalidCredential.Retryable())
	require.False(t, FailureOther.Retryable())
	require.Equal(t, "invalid_credential", FailureInvalidCredential.String())
}

func TestMapProviderErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantCode   string
	}{
		{"auth", 401, "AILINK_PROVIDER_AUTH"},
		{"forbidden", 403, "AILINK_PROVIDER_AUTH"},
		{"rate", 429, "AILINK_PROVIDER_RATE_LIMIT"},
		{"bad", 400, "AILINK_PROVIDER_BAD_REQUEST"},
		{"unavail", 503, "AILINK_PROVIDER_UNAVAILABLE"},
	}

	for _, tc := range cases {
		err := &driver.ProviderError{Provider: "gemini", StatusCode: tc.statusCode, Message: "boom"}
		mapped := mapProviderError(err)
		require.NotNil(t, mapped)
		require.Equal(t, tc.wantCode, mapped.Code, tc.name)
	}
}

func TestMapProviderErrorSentinels(t *testing.T) {
	require.Nil(t, mapProviderError(nil))
	require.Equal(t, "AILINK_PROVIDER_TIMEOUT", mapProviderError(context.DeadlineExceeded).Code)
	require.Equal(t, "AILINK_KEYS_EXHAUSTED", mapProviderError(fmt.Errorf("pool: %w", ErrKeyPoolExhausted)).Code)
	require.Equal(t, "AILINK_PROVIDER_ERROR", mapProviderError(errors.New("eof")).Code)
}
