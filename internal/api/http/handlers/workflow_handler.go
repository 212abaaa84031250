package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// WorkflowHandler exposes the lifecycle actions. The ticket service backs
// the public customer surface, where ticket number plus phone replaces a
// token.
type WorkflowHandler struct {
	service *service.WorkflowService
	tickets *service.TicketService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflowService *service.WorkflowService, ticketService *service.TicketService) *WorkflowHandler {
	return &WorkflowHandler{service: workflowService, tickets: ticketService}
}

func actorFrom(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Actor{
		ID:   principal.User.ID,
		Name: principal.User.Name,
		Role: principal.Role,
	}, nil
}

func ticketResponse(c *fiber.Ctx, ticket *domain.Ticket, role domain.Role) error {
	view := service.ProjectDetail(ticket, role)
	return c.JSON(fiber.Map{"data": dto.FromTicketView(&view)})
}

// Dispatch POST /tickets/:id/dispatch.
func (h *WorkflowHandler) Dispatch(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Dispatch(c.UserContext(), actor, c.Params("id"), service.DispatchInput{
		TechnicianIDs: req.TechnicianIDs,
		Note:          req.Note,
	})
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Accept POST /tickets/:id/accept.
func (h *WorkflowHandler) Accept(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Accept(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// CancelAcceptance POST /tickets/:id/accept/cancel.
func (h *WorkflowHandler) CancelAcceptance(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CancelAcceptance(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// SubmitQuote POST /tickets/:id/quote.
func (h *WorkflowHandler) SubmitQuote(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SubmitQuote(c.UserContext(), actor, c.Params("id"), req.Amount, req.Description)
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// ConfirmQuote POST /tickets/:id/quote/confirm.
func (h *WorkflowHandler) ConfirmQuote(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.ConfirmQuote(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// ProposeSlots POST /tickets/:id/slots.
func (h *WorkflowHandler) ProposeSlots(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ProposeSlotsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ProposeSlots(c.UserContext(), actor, c.Params("id"), dto.ToTimeSlots(req.Slots))
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// ConfirmSlot POST /tickets/:id/slots/confirm.
func (h *WorkflowHandler) ConfirmSlot(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ConfirmSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ConfirmSlot(c.UserContext(), actor, c.Params("id"), domain.TimeSlot{
		Start: req.Start,
		End:   req.End,
	})
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Reschedule POST /tickets/:id/reschedule.
func (h *WorkflowHandler) Reschedule(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Reschedule(c.UserContext(), actor, c.Params("id"), req.Reason, dto.ToTimeSlots(req.Slots))
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Cancel POST /tickets/:id/cancel.
func (h *WorkflowHandler) Cancel(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Cancel(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Supplement POST /tickets/:id/supplement.
func (h *WorkflowHandler) Supplement(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.SupplementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.Supplement(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromComments([]domain.Comment{*comment})[0]})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *WorkflowHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Close POST /tickets/:id/close.
func (h *WorkflowHandler) Close(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Close(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return ticketResponse(c, ticket, actor.Role)
}

// Public customer actions. The requester proves ownership with the ticket
// number in the path and the contact phone in the body, then acts with the
// customer role; responses reuse the tracking projection so raw contact
// data never flows back out.

type customerAction func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error

func (h *WorkflowHandler) customerDo(c *fiber.Ctx, action customerAction) error {
	var req dto.CustomerActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.VerifyCustomer(c.UserContext(), c.Params("ticketNo"), req.Phone)
	if err != nil {
		return err
	}
	actor := service.Actor{Name: ticket.CustomerName, Role: domain.RoleCustomer}
	if err := action(c, actor, ticket.ID, req); err != nil {
		return err
	}
	view, err := h.tickets.TrackTicket(c.UserContext(), ticket.TicketNo, req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTrackView(view)})
}

// ConfirmQuoteByCustomer POST /track/:ticketNo/quote/confirm.
func (h *WorkflowHandler) ConfirmQuoteByCustomer(c *fiber.Ctx) error {
	return h.customerDo(c, func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error {
		_, err := h.service.ConfirmQuote(ctx.UserContext(), actor, ticketID, "")
		return err
	})
}

// ConfirmSlotByCustomer POST /track/:ticketNo/slots/confirm.
func (h *WorkflowHandler) ConfirmSlotByCustomer(c *fiber.Ctx) error {
	return h.customerDo(c, func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error {
		if req.Slot == nil {
			return apperrors.NewValidationError("slot is required", nil)
		}
		_, err := h.service.ConfirmSlot(ctx.UserContext(), actor, ticketID, domain.TimeSlot{
			Start: req.Slot.Start,
			End:   req.Slot.End,
		})
		return err
	})
}

// RescheduleByCustomer POST /track/:ticketNo/reschedule.
func (h *WorkflowHandler) RescheduleByCustomer(c *fiber.Ctx) error {
	return h.customerDo(c, func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error {
		_, err := h.service.Reschedule(ctx.UserContext(), actor, ticketID, req.Reason, dto.ToTimeSlots(req.Slots))
		return err
	})
}

// CancelByCustomer POST /track/:ticketNo/cancel.
func (h *WorkflowHandler) CancelByCustomer(c *fiber.Ctx) error {
	return h.customerDo(c, func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error {
		_, err := h.service.Cancel(ctx.UserContext(), actor, ticketID, req.Reason)
		return err
	})
}

// SupplementByCustomer POST /track/:ticketNo/supplement.
func (h *WorkflowHandler) SupplementByCustomer(c *fiber.Ctx) error {
	return h.customerDo(c, func(ctx *fiber.Ctx, actor service.Actor, ticketID string, req dto.CustomerActionRequest) error {
		_, err := h.service.Supplement(ctx.UserContext(), actor, ticketID, req.Content)
		return err
	})
}
