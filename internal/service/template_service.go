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

// TemplateService manages form templates and the per-user frequent values
// that back field autocomplete.
type TemplateService struct {
	templates repository.TemplateRepository
	frequent  repository.FrequentRepository
}

// NewTemplateService constructs the service.
func NewTemplateService(templates repository.TemplateRepository, frequent repository.FrequentRepository) *TemplateService {
	return &TemplateService{templates: templates, frequent: frequent}
}

// TemplateInput describes a template create or update request. Fields
// carry labels only; keys are derived from position.
type TemplateInput struct {
	Name   string
	Labels []string
	// EnableFrequent flags parallel Labels; short slices default to false.
	EnableFrequent []bool
}

// Create saves a template, deriving one positional key per field. Keys are
// assigned once here and never recomputed.
func (s *TemplateService) Create(ctx context.Context, input TemplateInput) (*domain.Template, error) {
	fields, err := buildTemplateFields(input)
	if err != nil {
		return nil, err
	}

	template := &domain.Template{
		Name:   strings.TrimSpace(input.Name),
		Fields: fields,
	}
	if template.Name == "" {
		return nil, apperrors.NewValidationError("template name is required", nil)
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, apperrors.MapError(err)
	}
	return template, nil
}

// Update replaces the template definition. A field whose label survives
// keeps its assigned key; new labels get positions past every key ever
// assigned, so deleting or reordering fields never shifts a surviving key.
func (s *TemplateService) Update(ctx context.Context, id string, input TemplateInput) (*domain.Template, error) {
	template, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := buildTemplateFields(input)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]string, len(template.Fields))
	highest := 0
	for _, field := range template.Fields {
		existing[field.Label] = field.Key
		if pos := domain.FieldKeyPosition(field.Key); pos > highest {
			highest = pos
		}
	}
	for i := range fields {
		if key, ok := existing[fields[i].Label]; ok {
			fields[i].Key = key
			delete(existing, fields[i].Label)
			continue
		}
		highest++
		fields[i].Key = domain.FieldKey(highest)
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		template.Name = name
	}
	template.Fields = fields
	if err := s.templates.Update(ctx, template); err != nil {
		return nil, apperrors.MapError(err)
	}
	return template, nil
}

func buildTemplateFields(input TemplateInput) ([]domain.TemplateField, error) {
	if len(input.Labels) == 0 {
		return nil, apperrors.NewValidationError("at least one field is required", nil)
	}
	fields := make([]domain.TemplateField, 0, len(input.Labels))
	for i, label := range input.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, apperrors.NewValidationError("field label must not be empty", map[string]any{"position": i + 1})
		}
		frequent := false
		if i < len(input.EnableFrequent) {
			frequent = input.EnableFrequent[i]
		}
		fields = append(fields, domain.TemplateField{
			Label:          label,
			Key:            domain.FieldKey(i + 1),
			EnableFrequent: frequent,
		})
	}
	return fields, nil
}

// Get returns one template.
func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	return s.get(ctx, id)
}

func (s *TemplateService) get(ctx context.Context, id string) (*domain.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("template", map[string]any{"template_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return template, nil
}

// List returns all templates.
func (s *TemplateService) List(ctx context.Context) ([]domain.Template, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return templates, nil
}

// Delete removes a template. Tickets created from it keep their frozen
// field copies.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("template", map[string]any{"template_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// FrequentValues returns the caller's recently used values for one field.
func (s *TemplateService) FrequentValues(ctx context.Context, userID, templateID, fieldKey string) ([]string, error) {
	values, err := s.frequent.List(ctx, userID, templateID, fieldKey)
	if err != nil {
		return nil, apperrors.NewDependencyFailure("frequent value store", err)
	}
	return values, nil
}

// ClearFrequentValues wipes the caller's stored values for one field.
func (s *TemplateService) ClearFrequentValues(ctx context.Context, userID, templateID, fieldKey string) error {
	if err := s.frequent.Clear(ctx, userID, templateID, fieldKey); err != nil {
		return apperrors.NewDependencyFailure("frequent value store", err)
	}
	return nil
}
