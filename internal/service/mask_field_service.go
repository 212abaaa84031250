package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/repository"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// MaskFieldService manages user-defined masking rules.
type MaskFieldService struct {
	fields repository.MaskFieldRepository
}

// NewMaskFieldService constructs the service.
func NewMaskFieldService(fields repository.MaskFieldRepository) *MaskFieldService {
	return &MaskFieldService{fields: fields}
}

// MaskFieldInput describes a new rule.
type MaskFieldInput struct {
	Label     string
	MaskType  domain.MaskType
	KeepChars int
}

// Create registers a rule. Partial rules need a positive keep count.
func (s *MaskFieldService) Create(ctx context.Context, input MaskFieldInput) (*domain.MaskField, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, apperrors.NewValidationError("label is required", nil)
	}
	switch input.MaskType {
	case domain.MaskTypeFull:
	case domain.MaskTypePartial:
		if input.KeepChars <= 0 {
			return nil, apperrors.NewValidationError("keep_chars must be positive for partial masking", nil)
		}
	default:
		return nil, apperrors.NewValidationError("mask_type must be FULL or PARTIAL", nil)
	}

	field := &domain.MaskField{
		Label:     label,
		MaskType:  input.MaskType,
		KeepChars: input.KeepChars,
	}
	if err := s.fields.Create(ctx, field); err != nil {
		return nil, apperrors.MapError(err)
	}
	return field, nil
}

// List returns all rules.
func (s *MaskFieldService) List(ctx context.Context) ([]domain.MaskField, error) {
	fields, err := s.fields.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return fields, nil
}

// Delete removes a rule. Tickets masked under it are unaffected.
func (s *MaskFieldService) Delete(ctx context.Context, id string) error {
	if err := s.fields.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("mask field", map[string]any{"mask_field_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}
