package dto

import (
	"time"

	"github.com/repairflow/repairflow/internal/domain"
)

// TemplateFieldRequest is one field definition by label.
type TemplateFieldRequest struct {
	Label          string `json:"label"`
	EnableFrequent bool   `json:"enable_frequent"`
}

// TemplateRequest payload for create and update.
type TemplateRequest struct {
	Name   string                 `json:"name"`
	Fields []TemplateFieldRequest `json:"fields"`
}

// TemplateFieldResponse carries the derived key alongside the label.
type TemplateFieldResponse struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	EnableFrequent bool   `json:"enable_frequent"`
}

// TemplateResponse is one template.
type TemplateResponse struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Fields    []TemplateFieldResponse `json:"fields"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// FromTemplate maps a domain template.
func FromTemplate(t *domain.Template) TemplateResponse {
	fields := make([]TemplateFieldResponse, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, TemplateFieldResponse{
			Key:            f.Key,
			Label:          f.Label,
			EnableFrequent: f.EnableFrequent,
		})
	}
	return TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Fields:    fields,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
