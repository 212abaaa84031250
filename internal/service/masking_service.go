package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/masking"
	"github.com/repairflow/repairflow/internal/repository"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// MaskingService exposes ad-hoc text masking with audit logging. The raw
// input is never persisted; the audit row keeps a hash and counts only.
type MaskingService struct {
	engine *masking.Engine
	audits repository.AuditRepository
	logger *zap.Logger
}

// NewMaskingService constructs the service.
func NewMaskingService(engine *masking.Engine, audits repository.AuditRepository, logger *zap.Logger) *MaskingService {
	return &MaskingService{engine: engine, audits: audits, logger: logger}
}

// MaskTextInput describes an ad-hoc masking request.
type MaskTextInput struct {
	Text       string
	Categories []masking.Category
	Method     domain.MaskMethod
	Purpose    string
	IPAddress  string
}

// MaskTextResult carries the redacted text and per-category counts.
type MaskTextResult struct {
	Masked string
	Stats  map[masking.Category]int
	Method domain.MaskMethod
}

// MaskText redacts free text and writes the audit record.
func (s *MaskingService) MaskText(ctx context.Context, input MaskTextInput) (*MaskTextResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, apperrors.NewValidationError("text is required", nil)
	}

	method := input.Method
	if method == "" {
		method = domain.MaskMethodRegex
	}
	categories := input.Categories
	if len(categories) == 0 {
		categories = masking.AllCategories()
	}

	result := s.engine.Mask(ctx, input.Text, categories, method)

	stats := map[string]int{}
	for category, n := range result.Stats {
		stats[string(category)] = n
	}
	sum := sha256.Sum256([]byte(input.Text))
	audit := &domain.MaskAuditLog{
		InputHash: hex.EncodeToString(sum[:]),
		Stats:     stats,
		Method:    method,
		Purpose:   input.Purpose,
		IPAddress: input.IPAddress,
	}
	if err := s.audits.Create(ctx, audit); err != nil {
		s.logger.Warn("mask audit write failed", zap.Error(err))
	}

	return &MaskTextResult{Masked: result.Masked, Stats: result.Stats, Method: method}, nil
}
