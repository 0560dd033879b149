package cmd

import (
	"context"
	"fmt"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/ailink/prompt"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/core/segment"
	"github.com/clauselens/clauselens/internal/core/store"
)

// app is the wired document pipeline shared by serve and the CLI commands.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *ailink.Registry
	analyzer *engine.Analyzer
	closers  []func()
}

// newApp loads prompts, builds the key pools and opens the session store.
// With cfg.Store.Memory set, sessions and the clause cache live in memory.
func newApp(ctx context.Context, cfg *config.Config, logger ailink.Logger, opts ...ailink.RegistryOption) (*app, error) {
	a := &app{cfg: cfg}

	if trace := cfg.AILink.Debug.TraceFile; trace != "" && traceFile == "" {
		stop, err := driver.EnableTracing(trace)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, stop)
	}

	prompts, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if err := prompt.Require(prompts, engine.RequiredPrompts...); err != nil {
		a.Close()
		return nil, err
	}

	registry, err := ailink.NewRegistry(cfg.AILink, append([]ailink.RegistryOption{ailink.WithRegistryLogger(logger)}, opts...)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	analysis, err := registry.Dispatcher(ailink.PoolAnalysis)
	if err != nil {
		a.Close()
		return nil, err
	}
	chat, err := registry.Dispatcher(ailink.PoolChat)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.analyzer = &engine.Analyzer{
		Analysis:  analysis,
		Chat:      chat,
		Prompts:   prompts,
		Segmenter: segment.New(cfg.Segment),
		Logger:    logger,
	}

	if cfg.Store.Memory {
		mem := engine.NewMemoryStore()
		a.analyzer.Cache = mem
		a.analyzer.Sessions = mem
		return a, nil
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.analyzer.Cache = st
	a.analyzer.Sessions = st
	a.closers = append(a.closers, func() { _ = st.Close() })
	return a, nil
}

// Close releases the store and trace file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
