package domain

import (
	"fmt"
	"time"
)

// TemplateField describes one input of a form template. Key is derived
// from the field position when the template is first saved and is never
// recomputed afterwards, so renaming a label keeps tickets created from
// this template referentially stable.
type TemplateField struct {
	Label          string `json:"label"`
	Key            string `json:"key"`
	EnableFrequent bool   `json:"enable_frequent"`
}

// Template is a reusable form definition for masked tickets.
type Template struct {
	ID        string
	Name      string
	Fields    []TemplateField
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldKey derives the stable key for a field position. Positions are
// 1-based.
func FieldKey(position int) string {
	return fmt.Sprintf("field_%d", position)
}

// FieldKeyPosition parses the position a key was assigned at. Unknown key
// shapes report zero.
func FieldKeyPosition(key string) int {
	var position int
	if _, err := fmt.Sscanf(key, "field_%d", &position); err != nil {
		return 0
	}
	return position
}

// MaskType selects how a custom mask field redacts its value.
type MaskType string

const (
	MaskTypeFull    MaskType = "FULL"
	MaskTypePartial MaskType = "PARTIAL"
)

// MaskField is a user-defined masking rule layered on top of the built-in
// detector categories. It is matched against a ticket field's label.
type MaskField struct {
	ID        string
	Label     string
	MaskType  MaskType
	KeepChars int
	CreatedAt time.Time
}
