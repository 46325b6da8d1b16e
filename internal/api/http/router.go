package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bridge/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Webhook *handlers.WebhookHandler
	Tickets *handlers.TicketsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/webhook", cfg.Webhook.Receive)

	dashboard := app.Group("/dashboard")
	dashboard.Get("/tickets", cfg.Tickets.ListTickets)
	dashboard.Get("/tickets/:id", cfg.Tickets.GetTicket)
	dashboard.Post("/tickets/:id/reply", cfg.Tickets.Reply)
	dashboard.Post("/tickets/:id/files", cfg.Tickets.SendFile)
	dashboard.Post("/tickets/:id/close", cfg.Tickets.CloseTicket)
}
