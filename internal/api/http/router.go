package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/tasklist-service/internal/api/http/handlers"
	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health           *handlers.HealthHandler
	Sessions         *handlers.SessionHandler
	Access           *handlers.AccessHandler
	Metrics          *observability.Metrics
	AuthMiddleware   *auth.AuthMiddleware
	AccessMiddleware *auth.AccessMiddleware
	Resources        ResourceHandlers
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health", cfg.Health.Live)
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Sessions.Register)
	authGroup.Post("/login", cfg.Sessions.Login)
	authGroup.Post("/refresh", cfg.Sessions.Refresh)
	authGroup.Post("/logout", cfg.Sessions.Logout)

	if cfg.Access != nil {
		api.Get("/access/:kind/:id", cfg.AuthMiddleware.Handle, cfg.Access.Describe, cfg.Access.Render)
	}

	RegisterResourceRoutes(api, cfg.AuthMiddleware, cfg.AccessMiddleware, cfg.Resources)
}
