package masking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
)

// Detected is a single PII item reported by the AI detector collaborator.
type Detected struct {
	Text     string
	Category Category
}

// AIDetector is the semantic classifier collaborator. Implementations must
// honor ctx cancellation; the engine bounds every call with its configured
// timeout.
type AIDetector interface {
	Detect(ctx context.Context, text string) ([]Detected, error)
}

// Result is the outcome of one mask operation.
type Result struct {
	Masked string
	Stats  map[Category]int
}

// Engine applies detectors to values and redacts matched spans. It is a
// pure function over its inputs apart from degraded-mode logging, so
// callers may invoke it concurrently.
type Engine struct {
	ai      AIDetector
	timeout time.Duration
	logger  *zap.Logger
}

// NewEngine constructs the engine. ai may be nil, in which case the AI
// method always degrades to regex detection.
func NewEngine(ai AIDetector, timeout time.Duration, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{ai: ai, timeout: timeout, logger: logger}
}

// Mask redacts detected spans of the selected categories. An empty
// category set selects all built-in categories. The AI method degrades to
// regex when the collaborator is unavailable; the operation itself never
// fails.
func (e *Engine) Mask(ctx context.Context, value string, categories []Category, method domain.MaskMethod) Result {
	if value == "" {
		return Result{Masked: "", Stats: map[Category]int{}}
	}
	selected := categorySet(categories)
	if method == domain.MaskMethodAI {
		if result, ok := e.maskWithAI(ctx, value, selected); ok {
			return result
		}
	}
	return maskWithRegex(value, selected)
}

func maskWithRegex(value string, selected map[Category]bool) Result {
	spans := detect(value, selected)
	stats := map[Category]int{}
	for _, s := range spans {
		stats[s.category]++
	}
	return Result{Masked: applySpans(value, spans), Stats: stats}
}

func (e *Engine) maskWithAI(ctx context.Context, value string, selected map[Category]bool) (Result, bool) {
	if e.ai == nil {
		return Result{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := e.ai.Detect(ctx, value)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("ai detector unavailable, falling back to regex", zap.Error(err))
		}
		return Result{}, false
	}

	masked := value
	stats := map[Category]int{}
	for _, item := range items {
		if item.Text == "" {
			continue
		}
		if item.Category != CategoryName && len(selected) > 0 && !selected[item.Category] {
			continue
		}
		if !strings.Contains(masked, item.Text) {
			continue
		}
		// Redaction stays deterministic regardless of what the model
		// suggests, so output shape is reproducible.
		masked = strings.ReplaceAll(masked, item.Text, redactDetected(item.Category, item.Text))
		stats[item.Category]++
	}
	return Result{Masked: masked, Stats: stats}, true
}

func categorySet(categories []Category) map[Category]bool {
	if len(categories) == 0 {
		categories = AllCategories()
	}
	selected := make(map[Category]bool, len(categories))
	for _, c := range categories {
		selected[c] = true
	}
	return selected
}

// FullMask replaces the whole value with a star run of equal rune length.
func FullMask(value string) string {
	return strings.Repeat("*", len([]rune(value)))
}

// PartialMask keeps the first keep runes and stars the remainder. Values
// no longer than keep pass through unmasked; that edge is the documented
// policy for user-defined partial rules.
func PartialMask(value string, keep int) string {
	runes := []rune(value)
	if keep < 0 {
		keep = 0
	}
	if len(runes) <= keep {
		return value
	}
	return string(runes[:keep]) + strings.Repeat("*", len(runes)-keep)
}

// EdgeMask keeps the first and last rune and stars the interior. Values of
// two runes or fewer collapse to a fixed three-star mask so the redaction
// never echoes the whole original.
func EdgeMask(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return "***"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// FieldMaskInput describes a structured field-map masking request.
type FieldMaskInput struct {
	Fields     []domain.TicketField
	MaskedKeys []string
	Method     domain.MaskMethod
	// CustomRules maps a field label to its user-defined rule, which takes
	// precedence over category detection.
	CustomRules map[string]domain.MaskField
}

// FieldMaskResult carries the masked field copies plus per-label counts.
type FieldMaskResult struct {
	Fields []domain.TicketField
	Stats  map[string]int
}

// MaskFields redacts the selected subset of a field map. Unselected fields
// pass through byte-for-byte. A selected field whose value survives
// detection untouched is force-masked with the edge strategy: the caller
// marked it sensitive, so the raw value must not leak.
func (e *Engine) MaskFields(ctx context.Context, in FieldMaskInput) FieldMaskResult {
	maskedKeys := make(map[string]bool, len(in.MaskedKeys))
	for _, k := range in.MaskedKeys {
		maskedKeys[k] = true
	}

	out := make([]domain.TicketField, len(in.Fields))
	stats := map[string]int{}
	for i, field := range in.Fields {
		out[i] = field
		if !maskedKeys[field.Key] || field.Value == "" {
			continue
		}
		if rule, ok := in.CustomRules[field.Label]; ok {
			out[i].Value = applyCustomRule(field.Value, rule)
			stats[field.Label]++
			continue
		}
		result := e.Mask(ctx, field.Value, nil, in.Method)
		if result.Masked == field.Value {
			result.Masked = EdgeMask(field.Value)
			stats[field.Label]++
		} else {
			for _, n := range result.Stats {
				stats[field.Label] += n
			}
		}
		out[i].Value = result.Masked
	}
	return FieldMaskResult{Fields: out, Stats: stats}
}

func applyCustomRule(value string, rule domain.MaskField) string {
	if rule.MaskType == domain.MaskTypePartial {
		return PartialMask(value, rule.KeepChars)
	}
	return FullMask(value)
}

// RenderText joins fields into the line-per-field projection used for
// ticket bodies, one "label：value" line per field in order.
func RenderText(fields []domain.TicketField) string {
	lines := make([]string, len(fields))
	for i, field := range fields {
		lines[i] = field.Label + "：" + field.Value
	}
	return strings.Join(lines, "\n")
}
