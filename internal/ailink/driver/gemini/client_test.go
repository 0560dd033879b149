package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/ailink/driver"
)

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Complete(context.Background(), driver.UserPrompt("gemini-2.5-flash", "hi"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestClientRequiresModel(t *testing.T) {
	client := NewClient("", "test-key")
	_, err := client.Complete(context.Background(), driver.UserPrompt("", "hi"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClientSendsRequestAndParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload generateRequest
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Contents, 1)
		require.Equal(t, "user", payload.Contents[0].Role)
		require.Equal(t, "explain", payload.Contents[0].Parts[0].Text)
		require.NotNil(t, payload.SystemInstruction)
		require.NotNil(t, payload.GenerationConfig)
		require.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"explanation\":"},{"text":"\"ok\"}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2,"totalTokenCount":6}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	req := driver.UserPrompt("gemini-2.5-flash", "explain")
	req.SystemPrompt = "You are a legal assistant."
	req.JSONOutput = true

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "STOP", resp.FinishReason)
	require.Equal(t, `{"explanation":"ok"}`, resp.Text())
	require.NotNil(t, resp.Usage)
	require.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestClientParsesGoogleErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT","details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo","reason":"API_KEY_INVALID"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), driver.UserPrompt("m", "hi"))
	require.Error(t, err)

	var perr *driver.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusBadRequest, perr.StatusCode)
	require.Equal(t, "INVALID_ARGUMENT", perr.Status)
	require.Equal(t, "API_KEY_INVALID", perr.Reason)
	require.Contains(t, perr.Message, "API key not valid")
}

func TestClientKeepsNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), driver.UserPrompt("m", "hi"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
	require.Contains(t, err.Error(), "slow down")
}

func TestClientRejectsEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), driver.UserPrompt("m", "hi"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "SAFETY")
}

func TestClientTracesWithoutLeakingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	driver.SetTracer(driver.NewTracer(&buf))
	defer driver.SetTracer(nil)

	client := NewClient(server.URL, "secret-key-1234")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), driver.UserPrompt("m", "hi"))
	require.NoError(t, err)

	var entry driver.TraceEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "gemini", entry.Driver)
	require.Equal(t, http.StatusOK, entry.StatusCode)
	require.Equal(t, "…1234", entry.KeyHint)
	require.NotContains(t, buf.String(), "secret-key")
}
