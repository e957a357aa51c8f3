package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/expiry-notifier/internal/api/http/handlers"
	"github.com/spec-kit/expiry-notifier/internal/auth"
	"github.com/spec-kit/expiry-notifier/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profiles       *handlers.ProfilesHandler
	Jobs           *handlers.JobsHandler
	Queue          *handlers.QueueHandler
	History        *handlers.HistoryHandler
	Settings       *handlers.SettingsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireOperator())

	api.Get("/profiles", cfg.Profiles.List)
	api.Post("/profiles", cfg.Profiles.Create)
	api.Get("/profiles/:id", cfg.Profiles.Get)
	api.Put("/profiles/:id", cfg.Profiles.Update)
	api.Delete("/profiles/:id", cfg.Profiles.Delete)
	api.Post("/profiles/:id/run", cfg.Jobs.Run)

	api.Get("/queue", cfg.Queue.List)
	api.Delete("/queue/:id", cfg.Queue.Delete)
	api.Delete("/queue", cfg.Queue.Clear)

	api.Get("/history", cfg.History.List)

	api.Get("/settings", cfg.Settings.Get)
	api.Put("/settings", cfg.Settings.Update)
}
