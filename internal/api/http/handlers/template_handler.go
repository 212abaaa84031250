package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// TemplateHandler manages form templates and per-user frequent values.
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: templateService}
}

func templateInput(req dto.TemplateRequest) service.TemplateInput {
	labels := make([]string, 0, len(req.Fields))
	frequent := make([]bool, 0, len(req.Fields))
	for _, f := range req.Fields {
		labels = append(labels, f.Label)
		frequent = append(frequent, f.EnableFrequent)
	}
	return service.TemplateInput{Name: req.Name, Labels: labels, EnableFrequent: frequent}
}

// Create POST /templates.
func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	template, err := h.service.Create(c.UserContext(), templateInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTemplate(template)})
}

// Update PUT /templates/:id.
func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	template, err := h.service.Update(c.UserContext(), c.Params("id"), templateInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTemplate(template)})
}

// Get GET /templates/:id.
func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	template, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTemplate(template)})
}

// List GET /templates.
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	templates, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, dto.FromTemplate(&templates[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Delete DELETE /templates/:id.
func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FrequentValues GET /templates/:id/fields/:key/frequent. Returns the
// caller's own recent values, most recent first.
func (h *TemplateHandler) FrequentValues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	values, err := h.service.FrequentValues(c.UserContext(), principal.User.ID, c.Params("id"), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": values})
}

// ClearFrequentValues DELETE /templates/:id/fields/:key/frequent.
func (h *TemplateHandler) ClearFrequentValues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.ClearFrequentValues(c.UserContext(), principal.User.ID, c.Params("id"), c.Params("key")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
