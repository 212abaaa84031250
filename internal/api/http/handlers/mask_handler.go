package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// MaskHandler exposes ad-hoc text masking and custom rule management.
type MaskHandler struct {
	masking    *service.MaskingService
	maskFields *service.MaskFieldService
}

// NewMaskHandler constructs handler.
func NewMaskHandler(maskingService *service.MaskingService, maskFieldService *service.MaskFieldService) *MaskHandler {
	return &MaskHandler{masking: maskingService, maskFields: maskFieldService}
}

// MaskText POST /mask.
func (h *MaskHandler) MaskText(c *fiber.Ctx) error {
	var req dto.MaskTextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.maskText(c, req)
}

// MaskTextAI POST /mask-ai. Same contract as MaskText with the AI
// detector forced.
func (h *MaskHandler) MaskTextAI(c *fiber.Ctx) error {
	var req dto.MaskTextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Method = domain.MaskMethodAI
	return h.maskText(c, req)
}

func (h *MaskHandler) maskText(c *fiber.Ctx, req dto.MaskTextRequest) error {
	result, err := h.masking.MaskText(c.UserContext(), service.MaskTextInput{
		Text:       req.Text,
		Categories: req.Categories,
		Method:     req.Method,
		Purpose:    req.Purpose,
		IPAddress:  c.IP(),
	})
	if err != nil {
		return err
	}

	stats := make(map[string]int, len(result.Stats))
	for category, n := range result.Stats {
		stats[string(category)] = n
	}
	return c.JSON(fiber.Map{"data": dto.MaskTextResponse{
		Masked: result.Masked,
		Stats:  stats,
		Method: result.Method,
	}})
}

// CreateMaskField POST /mask-fields. Admin only.
func (h *MaskHandler) CreateMaskField(c *fiber.Ctx) error {
	var req dto.CreateMaskFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	field, err := h.maskFields.Create(c.UserContext(), service.MaskFieldInput{
		Label:     req.Label,
		MaskType:  req.MaskType,
		KeepChars: req.KeepChars,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MaskFieldResponse{
		ID:        field.ID,
		Label:     field.Label,
		MaskType:  field.MaskType,
		KeepChars: field.KeepChars,
	}})
}

// ListMaskFields GET /mask-fields.
func (h *MaskHandler) ListMaskFields(c *fiber.Ctx) error {
	fields, err := h.maskFields.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.MaskFieldResponse, 0, len(fields))
	for _, field := range fields {
		items = append(items, dto.MaskFieldResponse{
			ID:        field.ID,
			Label:     field.Label,
			MaskType:  field.MaskType,
			KeepChars: field.KeepChars,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteMaskField DELETE /mask-fields/:id. Admin only.
func (h *MaskHandler) DeleteMaskField(c *fiber.Ctx) error {
	if err := h.maskFields.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}
