package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/filestore"
	"github.com/repairflow/repairflow/internal/masking"
	"github.com/repairflow/repairflow/internal/tabular"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// TabularService runs the upload, preview, mask, download cycle for CSV
// and Excel files.
type TabularService struct {
	engine *masking.Engine
	files  filestore.Store
	logger *zap.Logger
}

// NewTabularService constructs the service.
func NewTabularService(engine *masking.Engine, files filestore.Store, logger *zap.Logger) *TabularService {
	return &TabularService{engine: engine, files: files, logger: logger}
}

// TablePreview is the upload response: headers plus the first rows, with a
// storage key for the follow-up mask call.
type TablePreview struct {
	StorageKey string
	Format     tabular.Format
	Headers    []string
	Preview    [][]string
	RowCount   int
}

// Upload parses and stores the file, returning a preview so the caller can
// pick columns to mask.
func (s *TabularService) Upload(ctx context.Context, filename string, r io.Reader) (*TablePreview, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewDependencyFailure("upload stream", err)
	}

	table, err := tabular.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}

	key, err := s.files.Save("tabular", filename, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDependencyFailure("file store", err)
	}

	return &TablePreview{
		StorageKey: key,
		Format:     table.Format,
		Headers:    table.Headers,
		Preview:    table.Preview(),
		RowCount:   len(table.Rows),
	}, nil
}

// MaskInput selects columns of a stored table for masking.
type MaskInput struct {
	StorageKey string
	Columns    []int
	Method     domain.MaskMethod
}

// MaskResult carries the masked output file and the run statistics.
type MaskResult struct {
	StorageKey    string
	Filename      string
	Stats         map[string]int
	RowsProcessed int
}

// Mask loads the stored table, masks the selected columns and stores the
// result for download. The output keeps the input's shape: same row and
// column counts, same order.
func (s *TabularService) Mask(ctx context.Context, input MaskInput) (*MaskResult, error) {
	if input.StorageKey == "" {
		return nil, apperrors.NewValidationError("storage key is required", nil)
	}

	rc, err := s.files.Open(input.StorageKey)
	if err != nil {
		return nil, apperrors.NewNotFound("uploaded file", map[string]any{"storage_key": input.StorageKey})
	}
	defer rc.Close()

	table, err := tabular.Parse(rc, input.StorageKey)
	if err != nil {
		return nil, err
	}

	method := input.Method
	if method == "" {
		method = domain.MaskMethodRegex
	}

	outcome, err := tabular.MaskColumns(ctx, s.engine, table, input.Columns, method)
	if err != nil {
		return nil, err
	}

	data, err := outcome.Table.Serialize()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	outName := maskedFilename(input.StorageKey, outcome.Table.Format)
	key, err := s.files.Save("tabular-masked", outName, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDependencyFailure("file store", err)
	}

	s.logger.Info("table masked",
		zap.String("storage_key", input.StorageKey),
		zap.Int("rows", outcome.RowsProcessed),
		zap.Int("columns", len(input.Columns)),
	)
	return &MaskResult{
		StorageKey:    key,
		Filename:      outName,
		Stats:         outcome.Stats,
		RowsProcessed: outcome.RowsProcessed,
	}, nil
}

// Download streams a stored result file.
func (s *TabularService) Download(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	rc, err := s.files.Open(storageKey)
	if err != nil {
		return nil, apperrors.NewNotFound("file", map[string]any{"storage_key": storageKey})
	}
	return rc, nil
}

func maskedFilename(storageKey string, format tabular.Format) string {
	base := strings.TrimSuffix(filepath.Base(storageKey), filepath.Ext(storageKey))
	return fmt.Sprintf("%s_masked.%s", base, format)
}
