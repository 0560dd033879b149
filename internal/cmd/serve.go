package cmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/core/engine"
	errwrap "github.com/clauselens/clauselens/internal/errors"
	"github.com/clauselens/clauselens/internal/metrics"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server"
	"github.com/clauselens/clauselens/internal/server/handlers"
	servermw "github.com/clauselens/clauselens/internal/server/middleware"
)

var (
	serverPort int
	serverHost string
)

// checkTelemetry fails once the exporter is gone.
func checkTelemetry(context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API with graceful shutdown support.

Endpoints:
  POST /paste, /analyze_clause, /chat_clause, /chat_doc, /chat_global, /reset_chat
  GET  /documents/{id}, /keys, /health, /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload log level from config`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		overrides := map[string]any{}
		serverOverrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			serverOverrides["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			serverOverrides["port"] = serverPort
		}
		if len(serverOverrides) > 0 {
			overrides["server"] = serverOverrides
		}

		cfg, err := config.Load(ctx, overrides)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config load failed")
		}

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, cfg.Logging.Profile, config.AppName)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to build document pipeline", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "document pipeline unavailable")
		}
		defer a.Close()

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", cfg.Metrics.Port),
			zap.Strings("pools", a.registry.Names()),
			zap.Bool("memory_store", cfg.Store.Memory))

		model := cfg.AILink.Model
		if model == "" {
			model = ailink.DefaultModel
		}
		handlers.SetProviderInfo("gemini", model, a.registry.Names())

		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.CheckerFunc(checkTelemetry))
		}
		if a.store != nil {
			hm.RegisterChecker("store", handlers.CheckerFunc(a.store.Ping))
		}
		hm.RegisterAdvisoryChecker("key_pools", a.registry)

		var limiter *servermw.RateLimiter
		if cfg.HTTPRateLimit.Enabled {
			limiter = servermw.NewRateLimiter(cfg.HTTPRateLimit.RPS, cfg.HTTPRateLimit.Burst)
		}

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			API: &handlers.API{
				Analyzer:     a.analyzer,
				Pools:        a.registry.Status,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
			},
			Health:      hm,
			CORSOrigins: cfg.Server.CORSOrigins,
			RateLimiter: limiter,
			MetricsPort: cfg.Metrics.Port,
			AdminToken:  os.Getenv(config.EnvPrefix + "ADMIN_TOKEN"),
		})

		go pruneSessions(ctx, a.analyzer, cfg.Sessions.TTL)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: server, then metrics exporter, then logger flush.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		if cfg.Metrics.Enabled {
			signals.OnShutdown(func(context.Context) error {
				if err := observability.StopMetrics(); err != nil {
					logger.Warn("Metrics exporter did not stop cleanly", zap.Error(err))
				}
				return nil
			})
		}

		signals.OnShutdown(func(ctx context.Context) error {
			cancel()
			shutdownCtx, stop := context.WithTimeout(ctx, shutdownTimeout)
			defer stop()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			reloaded, err := config.Load(ctx, overrides)
			if err != nil {
				logger.Error("Failed to reload config", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			// Only the log level is applied live; other settings need a restart.
			observability.InitServerLogger(config.AppName, reloaded.Logging.Level, reloaded.Logging.Profile, config.AppName)
			logger = observability.ServerLogger
			logger.Info("Configuration reloaded", zap.String("log_level", reloaded.Logging.Level))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			err := signals.Listen(cmd.Context())
			if err != nil {
				logger.Error("Signal handler error", zap.Error(err))
			}
			errChan <- err
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// pruneSessions drops idle sessions every quarter TTL until ctx ends.
func pruneSessions(ctx context.Context, analyzer *engine.Analyzer, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := min(max(ttl/4, time.Minute), time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := analyzer.PruneSessions(ctx, ttl); err != nil && ctx.Err() == nil {
				observability.ServerLogger.Warn("Session pruning failed", zap.Error(err))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
