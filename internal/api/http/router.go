package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/http/handlers"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Workflow       *handlers.WorkflowHandler
	Mask           *handlers.MaskHandler
	Tabular        *handlers.TabularHandler
	Templates      *handlers.TemplateHandler
	LineWebhook    *handlers.LineWebhookHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	// Public surface: ticket intake, progress tracking, login and the
	// messaging webhook need no token.
	app.Post("/auth/login", cfg.Users.Login)
	app.Post("/tickets", cfg.Tickets.CreateRepairTicket)
	app.Post("/track", cfg.Tickets.Track)
	app.Post("/webhook/line", cfg.LineWebhook.Handle)

	// Customer lifecycle actions, phone-verified against the ticket.
	app.Post("/track/:ticketNo/quote/confirm", cfg.Workflow.ConfirmQuoteByCustomer)
	app.Post("/track/:ticketNo/slots/confirm", cfg.Workflow.ConfirmSlotByCustomer)
	app.Post("/track/:ticketNo/reschedule", cfg.Workflow.RescheduleByCustomer)
	app.Post("/track/:ticketNo/cancel", cfg.Workflow.CancelByCustomer)
	app.Post("/track/:ticketNo/supplement", cfg.Workflow.SupplementByCustomer)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	users := protected.Group("/users")
	users.Get("/me", cfg.Users.Me)
	users.Post("/me/password", cfg.Users.ChangePassword)
	users.Patch("/me/line", cfg.Users.BindLine)
	users.Get("/workers", cfg.Users.ListWorkers)
	users.Post("", auth.RequireAdmin(), cfg.Users.CreateUser)

	tickets := protected.Group("/tickets")
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Post("/from-template", cfg.Tickets.CreateTemplateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Get("/:id/attachments/:attachmentId", cfg.Tickets.DownloadAttachment)

	// Lifecycle actions. Role checks beyond these gates live in the
	// workflow transition table.
	tickets.Post("/:id/dispatch", auth.RequireAdmin(), cfg.Workflow.Dispatch)
	tickets.Post("/:id/accept", auth.RequireRole(domain.RoleWorker), cfg.Workflow.Accept)
	tickets.Post("/:id/accept/cancel", auth.RequireRole(domain.RoleWorker), cfg.Workflow.CancelAcceptance)
	tickets.Post("/:id/quote", auth.RequireRole(domain.RoleWorker), cfg.Workflow.SubmitQuote)
	tickets.Post("/:id/quote/confirm", cfg.Workflow.ConfirmQuote)
	tickets.Post("/:id/slots", auth.RequireRole(domain.RoleWorker), cfg.Workflow.ProposeSlots)
	tickets.Post("/:id/slots/confirm", cfg.Workflow.ConfirmSlot)
	tickets.Post("/:id/reschedule", cfg.Workflow.Reschedule)
	tickets.Post("/:id/cancel", cfg.Workflow.Cancel)
	tickets.Post("/:id/supplement", cfg.Workflow.Supplement)
	tickets.Patch("/:id/status", auth.RequireRole(domain.RoleWorker), cfg.Workflow.UpdateStatus)
	tickets.Post("/:id/close", auth.RequireAdmin(), cfg.Workflow.Close)

	protected.Post("/mask", cfg.Mask.MaskText)
	protected.Post("/mask-ai", cfg.Mask.MaskTextAI)
	maskFields := protected.Group("/mask-fields")
	maskFields.Get("", cfg.Mask.ListMaskFields)
	maskFields.Post("", auth.RequireAdmin(), cfg.Mask.CreateMaskField)
	maskFields.Delete("/:id", auth.RequireAdmin(), cfg.Mask.DeleteMaskField)

	tables := protected.Group("/tables")
	tables.Post("", cfg.Tabular.Upload)
	tables.Post("/mask", cfg.Tabular.Mask)
	tables.Get("/download", cfg.Tabular.Download)

	templates := protected.Group("/templates")
	templates.Get("", cfg.Templates.List)
	templates.Get("/:id", cfg.Templates.Get)
	templates.Post("", auth.RequireAdmin(), cfg.Templates.Create)
	templates.Put("/:id", auth.RequireAdmin(), cfg.Templates.Update)
	templates.Delete("/:id", auth.RequireAdmin(), cfg.Templates.Delete)
	templates.Get("/:id/fields/:key/frequent", cfg.Templates.FrequentValues)
	templates.Delete("/:id/fields/:key/frequent", cfg.Templates.ClearFrequentValues)
}
