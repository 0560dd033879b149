package ailink

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default per-key quota: calls allowed inside one trailing window.
const (
	DefaultQuota  = 55
	DefaultWindow = 60 * time.Second
)

var (
	// ErrNoCredentials means a pool was configured without any API keys.
	ErrNoCredentials = errors.New("no api keys configured")
	// ErrKeyPoolExhausted means every key in the pool is at its quota.
	ErrKeyPoolExhausted = errors.New("all api keys exhausted")
)

// Logger is the logging surface used by pools and dispatchers. It is satisfied
// by *zap.Logger and by gofulmen loggers.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Lease is the result of a successful Acquire or Rotate.
type Lease struct {
	Key   string
	Index int
	Size  int
	// Count is the number of calls recorded against the key in the current
	// window, including this one.
	Count int
}

// KeyPool hands out API keys for one named key group, rotating away from keys
// that reached their quota. It is safe for concurrent use.
type KeyPool struct {
	name   string
	quota  int
	window time.Duration
	clock  func() time.Time
	logger Logger

	mu    sync.Mutex
	keys  []string
	calls [][]time.Time
	index int
}

// PoolOption configures a KeyPool.
type PoolOption func(*KeyPool)

// WithQuota sets the number of calls a key may make per window.
func WithQuota(quota int) PoolOption {
	return func(p *KeyPool) {
		if quota > 0 {
			p.quota = quota
		}
	}
}

// WithWindow sets the quota window length.
func WithWindow(window time.Duration) PoolOption {
	return func(p *KeyPool) {
		if window > 0 {
			p.window = window
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) PoolOption {
	return func(p *KeyPool) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger Logger) PoolOption {
	return func(p *KeyPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewKeyPool builds a pool from the given keys. Blank entries are ignored; a
// pool without keys fails with ErrNoCredentials.
func NewKeyPool(name string, keys []string, opts ...PoolOption) (*KeyPool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			cleaned = append(cleaned, key)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("key pool %q: %w", name, ErrNoCredentials)
	}

	p := &KeyPool{
		name:   name,
		quota:  DefaultQuota,
		window: DefaultWindow,
		clock:  time.Now,
		logger: zap.NewNop(),
		keys:   cleaned,
		calls:  make([][]time.Time, len(cleaned)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewKeyPoolFromEnv builds a pool from a comma-separated environment variable.
func NewKeyPoolFromEnv(name, envVar string, opts ...PoolOption) (*KeyPool, error) {
	raw, ok := os.LookupEnv(envVar)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("key pool %q: %s is not set: %w", name, envVar, ErrNoCredentials)
	}
	return NewKeyPool(name, strings.Split(raw, ","), opts...)
}

// Name returns the pool name.
func (p *KeyPool) Name() string {
	return p.name
}

// Size returns the number of keys in the pool.
func (p *KeyPool) Size() int {
	return len(p.keys)
}

// Acquire returns a key that is under quota and records a call against it.
// When the current key is saturated the pool rotates; after checking every
// key once it returns ErrKeyPoolExhausted.
func (p *KeyPool) Acquire() (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	for range p.keys {
		p.pruneLocked(p.index, now)
		if len(p.calls[p.index]) < p.quota {
			p.calls[p.index] = append(p.calls[p.index], now)
			return p.leaseLocked(), nil
		}
		p.logger.Warn("API key at quota, rotating",
			zap.String("pool", p.name),
			zap.Int("key_index", p.index+1),
			zap.Int("pool_size", len(p.keys)),
			zap.Int("quota", p.quota))
		p.rotateLocked()
	}
	return Lease{}, fmt.Errorf("key pool %q: %w", p.name, ErrKeyPoolExhausted)
}

// Rotate advances the cursor to the next key without checking its quota.
func (p *KeyPool) Rotate() Lease {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rotateLocked()
	p.pruneLocked(p.index, p.clock())
	return p.leaseLocked()
}

func (p *KeyPool) rotateLocked() {
	p.index = (p.index + 1) % len(p.keys)
	p.logger.Debug("rotated API key",
		zap.String("pool", p.name),
		zap.Int("key_index", p.index+1),
		zap.Int("pool_size", len(p.keys)))
}

// pruneLocked drops timestamps that fell out of the window. Timestamps are
// appended in order, so the stale ones form a prefix.
func (p *KeyPool) pruneLocked(idx int, now time.Time) {
	calls := p.calls[idx]
	cut := 0
	for cut < len(calls) && now.Sub(calls[cut]) >= p.window {
		cut++
	}
	if cut > 0 {
		p.calls[idx] = append(calls[:0:0], calls[cut:]...)
	}
}

func (p *KeyPool) leaseLocked() Lease {
	return Lease{
		Key:   p.keys[p.index],
		Index: p.index,
		Size:  len(p.keys),
		Count: len(p.calls[p.index]),
	}
}

// KeyStatus describes one key without exposing it.
type KeyStatus struct {
	Index   int    `json:"index"`
	Hint    string `json:"hint"`
	Calls   int    `json:"calls_in_window"`
	Current bool   `json:"current"`
}

// PoolStatus is a point-in-time view of a pool.
type PoolStatus struct {
	Name          string      `json:"name"`
	Size          int         `json:"size"`
	Quota         int         `json:"quota"`
	WindowSeconds int         `json:"window_seconds"`
	Current       int         `json:"current"`
	Keys          []KeyStatus `json:"keys"`
}

// Status reports per-key usage in the current window.
func (p *KeyPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	status := PoolStatus{
		Name:          p.name,
		Size:          len(p.keys),
		Quota:         p.quota,
		WindowSeconds: int(p.window / time.Second),
		Current:       p.index + 1,
	}
	for i, key := range p.keys {
		p.pruneLocked(i, now)
		status.Keys = append(status.Keys, KeyStatus{
			Index:   i + 1,
			Hint:    maskKey(key),
			Calls:   len(p.calls[i]),
			Current: i == p.index,
		})
	}
	return status
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
