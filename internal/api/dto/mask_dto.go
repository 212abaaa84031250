package dto

import (
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/masking"
)

// MaskTextRequest payload for the ad-hoc masking endpoint.
type MaskTextRequest struct {
	Text       string             `json:"text"`
	Categories []masking.Category `json:"categories"`
	Method     domain.MaskMethod  `json:"method"`
	Purpose    string             `json:"purpose"`
}

// MaskTextResponse carries redacted text and counts.
type MaskTextResponse struct {
	Masked string            `json:"masked"`
	Stats  map[string]int    `json:"stats"`
	Method domain.MaskMethod `json:"method"`
}

// CreateMaskFieldRequest payload.
type CreateMaskFieldRequest struct {
	Label     string          `json:"label"`
	MaskType  domain.MaskType `json:"mask_type"`
	KeepChars int             `json:"keep_chars"`
}

// MaskFieldResponse is one custom rule.
type MaskFieldResponse struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	MaskType  domain.MaskType `json:"mask_type"`
	KeepChars int             `json:"keep_chars"`
}

// TableMaskRequest selects stored-table columns for masking.
type TableMaskRequest struct {
	StorageKey string            `json:"storage_key"`
	Columns    []int             `json:"columns"`
	Method     domain.MaskMethod `json:"method"`
}

// TablePreviewResponse is the upload response.
type TablePreviewResponse struct {
	StorageKey string     `json:"storage_key"`
	Format     string     `json:"format"`
	Headers    []string   `json:"headers"`
	Preview    [][]string `json:"preview"`
	RowCount   int        `json:"row_count"`
}

// TableMaskResponse is the mask run response.
type TableMaskResponse struct {
	StorageKey    string         `json:"storage_key"`
	Filename      string         `json:"filename"`
	Stats         map[string]int `json:"stats"`
	RowsProcessed int            `json:"rows_processed"`
}
