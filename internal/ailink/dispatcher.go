package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/metrics"
)

// NoProviderLabel marks a DispatchResult that no key could serve.
const NoProviderLabel = "None"

// DriverFactory builds a driver bound to one API key.
type DriverFactory func(apiKey string) driver.Driver

// DispatchResult is the outcome of one Dispatch call.
type DispatchResult struct {
	Payload       Payload
	ProviderLabel string
	Attempts      int
	// Err is the last failure when no key served the call. It is informational;
	// Payload already holds the fallback text.
	Err error
}

// Served reports whether a provider produced the payload.
func (r DispatchResult) Served() bool {
	return r.ProviderLabel != NoProviderLabel
}

// Dispatcher sends prompts through one KeyPool, rotating keys on quota and
// credential failures.
type Dispatcher struct {
	pool     *KeyPool
	factory  DriverFactory
	model    string
	provider string
	logger   Logger

	mu      sync.Mutex
	drivers map[string]driver.Driver
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithModel sets the model sent with every request.
func WithModel(model string) DispatcherOption {
	return func(d *Dispatcher) {
		if model = strings.TrimSpace(model); model != "" {
			d.model = model
		}
	}
}

// WithProviderName sets the provider name used in result labels.
func WithProviderName(name string) DispatcherOption {
	return func(d *Dispatcher) {
		if name = strings.TrimSpace(name); name != "" {
			d.provider = name
		}
	}
}

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher over pool that builds drivers with factory.
func NewDispatcher(pool *KeyPool, factory DriverFactory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:     pool,
		factory:  factory,
		model:    DefaultModel,
		provider: "Gemini",
		logger:   zap.NewNop(),
		drivers:  make(map[string]driver.Driver),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pool returns the key pool behind the dispatcher.
func (d *Dispatcher) Pool() *KeyPool {
	return d.pool
}

// Dispatch sends prompt with at most one attempt per key in the pool. Quota and
// credential failures rotate to the next key; any other failure ends the call.
// When no attempt succeeds the result carries the "no response" text and the
// NoProviderLabel label. Dispatch never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string) DispatchResult {
	return d.DispatchRequest(ctx, driver.UserPrompt(d.model, prompt))
}

// DispatchRequest is Dispatch for a fully built request. An empty request
// model is replaced by the dispatcher model.
func (d *Dispatcher) DispatchRequest(ctx context.Context, req *driver.Request) DispatchResult {
	start := time.Now()
	poolName := d.pool.Name()
	size := d.pool.Size()

	if req.Model == "" {
		req.Model = d.model
	}

	var (
		lastErr  error
		attempts int
		outcome  = "aborted"
	)

loop:
	for attempts < size {
		lease, err := d.pool.Acquire()
		if err != nil {
			lastErr = err
			outcome = "exhausted"
			d.logger.Warn("no API key available",
				zap.String("pool", poolName),
				zap.Error(err))
			break
		}
		attempts++

		resp, err := d.driverFor(lease.Key).Complete(ctx, req)
		if err == nil {
			result := DispatchResult{
				Payload:       ParseResponse(resp.Text()),
				ProviderLabel: fmt.Sprintf("%s (key %d/%d, %d calls)", d.provider, lease.Index+1, lease.Size, lease.Count),
				Attempts:      attempts,
			}
			metrics.RecordDispatch(poolName, "success", attempts, time.Since(start))
			return result
		}
		lastErr = err

		kind := Classify(err)
		fields := []zap.Field{
			zap.String("pool", poolName),
			zap.Int("key_index", lease.Index+1),
			zap.Int("pool_size", lease.Size),
			zap.Int("attempt", attempts),
			zap.String("failure", kind.String()),
			zap.Error(err),
		}
		if mapped := mapProviderError(err); mapped != nil {
			fields = append(fields, zap.String("code", mapped.Code))
		}

		switch kind {
		case FailureQuotaExceeded:
			d.logger.Warn("provider quota exceeded, rotating key", fields...)
		case FailureInvalidCredential:
			d.logger.Warn("provider rejected API key, rotating key",
				append(fields, zap.Bool("config_smell", true))...)
		default:
			d.logger.Warn("provider call failed", fields...)
			break loop
		}
		metrics.RecordKeyRotation(poolName, kind.String())
		d.pool.Rotate()

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	if attempts >= size && outcome != "exhausted" && Classify(lastErr).Retryable() {
		outcome = "exhausted"
	}
	if lastErr == nil {
		lastErr = errors.New("no attempt made")
	}
	metrics.RecordDispatch(poolName, outcome, attempts, time.Since(start))
	return DispatchResult{
		Payload:       PayloadFromText(core.NoResponseText),
		ProviderLabel: NoProviderLabel,
		Attempts:      attempts,
		Err:           lastErr,
	}
}

func (d *Dispatcher) driverFor(key string) driver.Driver {
	d.mu.Lock()
	defer d.mu.Unlock()

	if drv, ok := d.drivers[key]; ok {
		return drv
	}
	drv := d.factory(key)
	d.drivers[key] = drv
	return drv
}
