package handlers

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// TabularHandler exposes the CSV and Excel masking cycle.
type TabularHandler struct {
	service *service.TabularService
}

// NewTabularHandler constructs handler.
func NewTabularHandler(tabularService *service.TabularService) *TabularHandler {
	return &TabularHandler{service: tabularService}
}

// Upload POST /tables. Multipart upload returning headers and a preview.
func (h *TabularHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	preview, err := h.service.Upload(c.UserContext(), fileHeader.Filename, file)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TablePreviewResponse{
		StorageKey: preview.StorageKey,
		Format:     string(preview.Format),
		Headers:    preview.Headers,
		Preview:    preview.Preview,
		RowCount:   preview.RowCount,
	}})
}

// Mask POST /tables/mask.
func (h *TabularHandler) Mask(c *fiber.Ctx) error {
	var req dto.TableMaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Columns) == 0 {
		return apperrors.NewValidationError("at least one column index is required", nil)
	}

	result, err := h.service.Mask(c.UserContext(), service.MaskInput{
		StorageKey: req.StorageKey,
		Columns:    req.Columns,
		Method:     req.Method,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TableMaskResponse{
		StorageKey:    result.StorageKey,
		Filename:      result.Filename,
		Stats:         result.Stats,
		RowsProcessed: result.RowsProcessed,
	}})
}

// Download GET /tables/download?key=...
func (h *TabularHandler) Download(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return apperrors.NewValidationError("key is required", nil)
	}

	rc, err := h.service.Download(c.UserContext(), key)
	if err != nil {
		return err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return apperrors.NewDependencyFailure("file store", err)
	}

	filename := filepath.Base(key)
	if strings.HasSuffix(filename, ".xlsx") {
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}
