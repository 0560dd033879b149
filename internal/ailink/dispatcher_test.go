package ailink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/core"
)

// scriptedDriver answers per key: a reply string or an error.
type scriptedDriver struct {
	key     string
	replies map[string]string
	errs    map[string]error
	calls   *callLog
}

type callLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *callLog) add(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

func (d *scriptedDriver) Name() string { return "scripted" }

func (d *scriptedDriver) Complete(_ context.Context, _ *driver.Request) (*driver.Response, error) {
	d.calls.add(d.key)
	if err, ok := d.errs[d.key]; ok {
		return nil, err
	}
	return &driver.Response{Parts: []string{d.replies[d.key]}}, nil
}

func scriptedFactory(log *callLog, replies map[string]string, errs map[string]error) DriverFactory {
	return func(apiKey string) driver.Driver {
		return &scriptedDriver{key: apiKey, replies: replies, errs: errs, calls: log}
	}
}

func quotaErr() error {
	return &driver.ProviderError{Provider: "gemini", StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
}

func TestDispatchSuccessLabelsKey(t *testing.T) {
	pool, err := NewKeyPool("analysis", []string{"k1", "k2"})
	require.NoError(t, err)

	log := &callLog{}
	d := NewDispatcher(pool, scriptedFactory(log, map[string]string{"k1": "```json\n{\"explanation\":{\"en\":\"a\",\"hi\":\"b\",\"mr\":\"c\"}}\n```"}, nil))

	result := d.Dispatch(context.Background(), "explain")
	require.True(t, result.Served())
	require.Equal(t, "Gemini (key 1/2, 1 calls)", result.ProviderLabel)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, PayloadObject, result.Payload.Kind)
	require.Equal(t, core.MultilingualText{EN: "a", HI: "b", MR: "c"}, Extract(result.Payload, "explanation"))
	require.NoError(t, result.Err)

	result = d.Dispatch(context.Background(), "explain")
	require.Equal(t, "Gemini (key 1/2, 2 calls)", result.ProviderLabel)
}

func TestDispatchMakesExactlyOneAttemptPerKeyOnQuota(t *testing.T) {
	keys := []string{"k1", "k2", "k3"}
	pool, err := NewKeyPool("analysis", keys)
	require.NoError(t, err)

	log := &callLog{}
	errs := map[string]error{"k1": quotaErr(), "k2": quotaErr(), "k3": quotaErr()}
	d := NewDispatcher(pool, scriptedFactory(log, nil, errs))

	result := d.Dispatch(context.Background(), "explain")
	require.False(t, result.Served())
	require.Equal(t, NoProviderLabel, result.ProviderLabel)
	require.Equal(t, len(keys), result.Attempts)
	require.Equal(t, keys, log.all())
	require.Equal(t, core.NoResponseText, Extract(result.Payload, "explanation"))
	require.Equal(t, FailureQuotaExceeded, Classify(result.Err))
}

func TestDispatchRotatesPastInvalidKey(t *testing.T) {
	pool, err := NewKeyPool("chat", []string{"bad", "good"})
	require.NoError(t, err)

	obsCore, logs := observer.New(zap.WarnLevel)
	log := &callLog{}
	errs := map[string]error{"bad": &driver.ProviderError{Provider: "gemini", StatusCode: 400, Reason: "API_KEY_INVALID"}}
	d := NewDispatcher(pool, scriptedFactory(log, map[string]string{"good": "hello"}, errs),
		WithDispatchLogger(zap.New(obsCore)))

	result := d.Dispatch(context.Background(), "hi")
	require.True(t, result.Served())
	require.Equal(t, "Gemini (key 2/2, 1 calls)", result.ProviderLabel)
	require.Equal(t, PayloadRaw, result.Payload.Kind)
	require.Equal(t, "hello", result.Payload.Raw)
	require.Equal(t, []string{"bad", "good"}, log.all())

	entries := logs.FilterField(zap.Bool("config_smell", true)).All()
	require.Len(t, entries, 1)
}

func TestDispatchAbortsOnOtherFailure(t *testing.T) {
	pool, err := NewKeyPool("analysis", []string{"k1", "k2"})
	require.NoError(t, err)

	log := &callLog{}
	errs := map[string]error{"k1": errors.New("connection refused")}
	d := NewDispatcher(pool, scriptedFactory(log, map[string]string{"k2": "ok"}, errs))

	result := d.Dispatch(context.Background(), "explain")
	require.Equal(t, NoProviderLabel, result.ProviderLabel)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, []string{"k1"}, log.all())
	require.EqualError(t, result.Err, "connection refused")
}

func TestDispatchStopsWhenPoolExhausted(t *testing.T) {
	pool, err := NewKeyPool("analysis", []string{"k1"}, WithQuota(1))
	require.NoError(t, err)

	log := &callLog{}
	d := NewDispatcher(pool, scriptedFactory(log, map[string]string{"k1": "ok"}, nil))

	require.True(t, d.Dispatch(context.Background(), "first").Served())

	result := d.Dispatch(context.Background(), "second")
	require.Equal(t, NoProviderLabel, result.ProviderLabel)
	require.Equal(t, 0, result.Attempts)
	require.ErrorIs(t, result.Err, ErrKeyPoolExhausted)
	require.Len(t, log.all(), 1)
}

func TestDispatchReusesDriverPerKey(t *testing.T) {
	pool, err := NewKeyPool("analysis", []string{"k1"})
	require.NoError(t, err)

	built := 0
	d := NewDispatcher(pool, func(apiKey string) driver.Driver {
		built++
		return &scriptedDriver{key: apiKey, replies: map[string]string{"k1": "ok"}, calls: &callLog{}}
	}, WithModel("gemini-test"), WithProviderName("Gemini"))

	for i := 0; i < 3; i++ {
		require.True(t, d.Dispatch(context.Background(), "x").Served())
	}
	require.Equal(t, 1, built)
}
