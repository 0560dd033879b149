package ailink

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/ailink/driver/gemini"
)

// Registry owns the key pools and their dispatchers for one service.
type Registry struct {
	cfg         Config
	dispatchers map[string]*Dispatcher
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	factory    DriverFactory
	logger     Logger
	poolOpts   []PoolOption
	keyLookups map[string][]string
}

// WithDriverFactory replaces the Gemini HTTP driver, mainly for tests.
func WithDriverFactory(factory DriverFactory) RegistryOption {
	return func(o *registryOptions) {
		o.factory = factory
	}
}

// WithRegistryLogger sets the logger passed to pools and dispatchers.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithPoolOptions appends options applied to every pool.
func WithPoolOptions(opts ...PoolOption) RegistryOption {
	return func(o *registryOptions) {
		o.poolOpts = append(o.poolOpts, opts...)
	}
}

// WithPoolKeys supplies keys for a pool directly instead of from its
// environment variable.
func WithPoolKeys(pool string, keys []string) RegistryOption {
	return func(o *registryOptions) {
		if o.keyLookups == nil {
			o.keyLookups = make(map[string][]string)
		}
		o.keyLookups[pool] = keys
	}
}

// NewRegistry builds every configured pool. A pool without keys fails the
// whole registry with ErrNoCredentials.
func NewRegistry(cfg Config, opts ...RegistryOption) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = GeminiFactory(cfg)
	}

	pools := cfg.Pools
	if len(pools) == 0 {
		pools = DefaultPools()
	}

	r := &Registry{cfg: cfg, dispatchers: make(map[string]*Dispatcher, len(pools))}
	for name, pc := range pools {
		poolOpts := []PoolOption{WithQuota(pc.Quota), WithWindow(pc.Window)}
		if o.logger != nil {
			poolOpts = append(poolOpts, WithLogger(o.logger))
		}
		poolOpts = append(poolOpts, o.poolOpts...)

		var (
			pool *KeyPool
			err  error
		)
		if keys, ok := o.keyLookups[name]; ok {
			pool, err = NewKeyPool(name, keys, poolOpts...)
		} else {
			if strings.TrimSpace(pc.Env) == "" {
				return nil, fmt.Errorf("key pool %q: no env variable configured: %w", name, ErrNoCredentials)
			}
			pool, err = NewKeyPoolFromEnv(name, pc.Env, poolOpts...)
		}
		if err != nil {
			return nil, err
		}

		model := pc.Model
		if model == "" {
			model = cfg.Model
		}
		dispOpts := []DispatcherOption{WithModel(model)}
		if o.logger != nil {
			dispOpts = append(dispOpts, WithDispatchLogger(o.logger))
		}
		r.dispatchers[name] = NewDispatcher(pool, o.factory, dispOpts...)
	}
	return r, nil
}

// GeminiFactory returns a factory building Gemini HTTP clients from cfg.
func GeminiFactory(cfg Config) DriverFactory {
	return func(apiKey string) driver.Driver {
		client := gemini.NewClient(cfg.BaseURL, apiKey)
		client.Timeout = cfg.DefaultTimeout
		if client.Timeout <= 0 {
			client.Timeout = DefaultTimeout
		}
		return client
	}
}

// Dispatcher returns the dispatcher for a pool.
func (r *Registry) Dispatcher(pool string) (*Dispatcher, error) {
	if r == nil {
		return nil, fmt.Errorf("ailink registry not configured")
	}
	d, ok := r.dispatchers[pool]
	if !ok {
		return nil, fmt.Errorf("unknown key pool %q", pool)
	}
	return d, nil
}

// Names returns the configured pool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.dispatchers))
	for name := range r.dispatchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports every pool in name order.
func (r *Registry) Status() []PoolStatus {
	names := r.Names()
	out := make([]PoolStatus, 0, len(names))
	for _, name := range names {
		out = append(out, r.dispatchers[name].Pool().Status())
	}
	return out
}

// CheckHealth fails when every key of some pool is at quota, meaning the next
// call on that pool would get the fallback answer.
func (r *Registry) CheckHealth(_ context.Context) error {
	var saturated []string
	for _, st := range r.Status() {
		full := len(st.Keys) > 0
		for _, k := range st.Keys {
			if k.Calls < st.Quota {
				full = false
				break
			}
		}
		if full {
			saturated = append(saturated, st.Name)
		}
	}
	if len(saturated) > 0 {
		return fmt.Errorf("key pools at quota: %s: %w", strings.Join(saturated, ", "), ErrKeyPoolExhausted)
	}
	return nil
}
