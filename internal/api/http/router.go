package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mc-fdc-dev/modmail/internal/api/http/handlers"
	"github.com/mc-fdc-dev/modmail/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	authGroup := app.Group("/auth")
	authGroup.Post("/admin/login", cfg.Admin.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/tickets/:userID/events", cfg.Admin.ListTicketEvents)
}
