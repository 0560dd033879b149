package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", s.metricsHandler)

	if api := s.opts.API; api != nil {
		s.router.Group(func(r chi.Router) {
			if s.opts.RateLimiter != nil {
				r.Use(s.opts.RateLimiter.Middleware)
			}
			r.Post("/paste", api.Paste)
			r.Post("/analyze_clause", api.AnalyzeClause)
			r.Post("/chat_clause", api.ChatClause)
			r.Post("/chat_doc", api.ChatDocument)
			r.Post("/chat_global", api.ChatGlobal)
			r.Post("/reset_chat", api.ResetChat)
			r.Get("/documents/{id}", api.Document)
		})
		// Pool status is operational and stays outside the limiter.
		s.router.Get("/keys", api.Keys)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + config.EnvPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10, // requests per minute
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
