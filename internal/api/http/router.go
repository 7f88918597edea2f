package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Tickets    *handlers.TicketsHandler
	Compliance *handlers.ComplianceHandler
}

// RegisterRoutes wires HTTP routes. Authorization for the admin surface is
// the host deployment's concern (network policy or fronting proxy).
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)

	admin := app.Group("/admin")
	admin.Post("/compliance/run", cfg.Compliance.RunPass)
	admin.Post("/tickets/:id/escalate", cfg.Compliance.ManualEscalate)
}
