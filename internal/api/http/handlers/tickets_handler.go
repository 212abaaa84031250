package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// TicketsHandler manages ticket intake, listing and the ledger.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateRepairTicket POST /tickets. Public intake; an authenticated admin
// creating on a customer's behalf is recorded as creator.
func (h *TicketsHandler) CreateRepairTicket(c *fiber.Ctx) error {
	var req dto.CreateRepairTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.RepairTicketInput{
		Title:             req.Title,
		Category:          req.Category,
		Priority:          req.Priority,
		CustomerName:      req.CustomerName,
		Phone:             req.Phone,
		Address:           req.Address,
		Description:       req.Description,
		PreferredTimeSlot: req.PreferredTimeSlot,
		IsUrgent:          req.IsUrgent,
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		input.CreatedBy = principal.User.ID
	}

	ticket, err := h.service.CreateRepairTicket(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":        ticket.ID,
		"ticket_no": ticket.TicketNo,
		"status":    ticket.Status,
	}})
}

// CreateTemplateTicket POST /tickets/template. Admin only.
func (h *TicketsHandler) CreateTemplateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTemplateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TemplateID == "" {
		return apperrors.NewValidationError("template_id is required", nil)
	}

	ticket, err := h.service.CreateTemplateTicket(c.UserContext(), principal.User.ID, service.TemplateTicketInput{
		TemplateID: req.TemplateID,
		Title:      req.Title,
		Values:     req.Values,
		MaskedKeys: req.MaskedKeys,
		Method:     req.Method,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":          ticket.ID,
		"ticket_no":   ticket.TicketNo,
		"masked_text": ticket.MaskedText,
		"mask_stats":  ticket.MaskStats,
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	views, err := h.service.ListTickets(c.UserContext(), principal.User, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(views))
	for i := range views {
		items = append(items, dto.FromTicketView(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(raw)))
		}
	}
	for _, raw := range strings.Split(c.Query("priority"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(raw)))
		}
	}
	if raw := c.Query("is_urgent"); raw != "" {
		if urgent, err := strconv.ParseBool(raw); err == nil {
			filter.IsUrgent = &urgent
		}
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		filter.SearchTerm = &search
	}
	return filter
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	detail, err := h.service.GetTicket(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(detail)})
}

// Track POST /track. Public lookup by ticket number plus phone.
func (h *TicketsHandler) Track(c *fiber.Ctx) error {
	var req dto.TrackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.TrackTicket(c.UserContext(), req.TicketNo, req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTrackView(view)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.UserContext(), principal.User, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromComments([]domain.Comment{*comment})[0]})
}

// AddAttachment POST /tickets/:id/attachments. Multipart upload.
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	attachment, err := h.service.AddAttachment(c.UserContext(), principal.User, c.Params("id"), service.AttachmentInput{
		OriginalName: fileHeader.Filename,
		FileType:     fileHeader.Header.Get("Content-Type"),
		Content:      file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAttachments([]domain.Attachment{*attachment})[0]})
}

// DownloadAttachment GET /attachments/:id.
func (h *TicketsHandler) DownloadAttachment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachment, rc, err := h.service.OpenAttachment(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return apperrors.NewDependencyFailure("file store", err)
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+attachment.OriginalName+`"`)
	if attachment.FileType != "" {
		c.Set(fiber.HeaderContentType, attachment.FileType)
	}
	return c.Send(buf.Bytes())
}
