package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/masking"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// Format identifies the container a table was parsed from. Serialization
// always writes the same container back.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// PreviewRows is the number of rows returned by Preview.
const PreviewRows = 5

// Table is the uniform in-memory shape for delimited and spreadsheet
// input: a header snapshot plus a row matrix. Column selection is resolved
// against Headers as captured at parse time.
type Table struct {
	Format  Format
	Headers []string
	Rows    [][]string
}

// FormatForFilename resolves the container format from a file name.
func FormatForFilename(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	default:
		return "", apperrors.NewValidationError("unsupported file format", map[string]any{
			"filename": filename,
		})
	}
}

// Parse reads a CSV or spreadsheet stream into a Table. The first row is
// the header; fully empty rows are dropped, everything else is preserved
// in order.
func Parse(r io.Reader, filename string) (*Table, error) {
	format, err := FormatForFilename(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return parseExcel(r)
	default:
		return parseCSV(r)
	}
}

func parseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read csv header", map[string]any{"error": err.Error()})
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewValidationError("failed to read csv row", map[string]any{"error": err.Error()})
		}
		if emptyRow(record) {
			continue
		}
		rows = append(rows, padRow(record, len(headers)))
	}
	return &Table{Format: FormatCSV, Headers: headers, Rows: rows}, nil
}

func parseExcel(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to open spreadsheet", map[string]any{"error": err.Error()})
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewValidationError("spreadsheet has no sheets", nil)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read spreadsheet rows", map[string]any{"error": err.Error()})
	}
	if len(all) == 0 {
		return nil, apperrors.NewValidationError("spreadsheet is empty", nil)
	}

	headers := all[0]
	rows := make([][]string, 0, len(all)-1)
	for _, record := range all[1:] {
		if emptyRow(record) {
			continue
		}
		rows = append(rows, padRow(record, len(headers)))
	}
	return &Table{Format: FormatXLSX, Headers: headers, Rows: rows}, nil
}

func emptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// padRow normalizes a row to the header width so output shape always
// matches the header snapshot.
func padRow(record []string, width int) []string {
	row := make([]string, width)
	copy(row, record)
	return row
}

// Preview returns up to PreviewRows rows without masking, for column
// selection UIs.
func (t *Table) Preview() [][]string {
	n := PreviewRows
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Outcome is the result of a bulk column-masking run.
type Outcome struct {
	Table         *Table
	Stats         map[string]int
	RowsProcessed int
}

// maskWorkers bounds the per-request fan-out for cell masking.
const maskWorkers = 8

// MaskColumns redacts the selected column indexes of every row. Column
// indexes are validated against the header snapshot before any work; the
// operation is all-or-nothing. Rows are processed in parallel but output
// order always matches input order. A cell that survives detection
// unchanged is force-masked with the edge strategy, same as single-field
// masking.
func MaskColumns(ctx context.Context, engine *masking.Engine, t *Table, columns []int, method domain.MaskMethod) (*Outcome, error) {
	if len(columns) == 0 {
		return nil, apperrors.NewValidationError("no columns selected", nil)
	}
	for _, col := range columns {
		if col < 0 || col >= len(t.Headers) {
			return nil, apperrors.NewValidationError("column index out of range", map[string]any{
				"column":  col,
				"columns": len(t.Headers),
			})
		}
	}

	masked := make([][]string, len(t.Rows))
	rowStats := make([]map[string]int, len(t.Rows))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := maskWorkers
	if workers > len(t.Rows) {
		workers = len(t.Rows)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				masked[i], rowStats[i] = maskRow(ctx, engine, t, i, columns, method)
			}
		}()
	}
	for i := range t.Rows {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	stats := map[string]int{}
	for _, rs := range rowStats {
		for label, n := range rs {
			stats[label] += n
		}
	}
	return &Outcome{
		Table:         &Table{Format: t.Format, Headers: t.Headers, Rows: masked},
		Stats:         stats,
		RowsProcessed: len(masked),
	}, nil
}

func maskRow(ctx context.Context, engine *masking.Engine, t *Table, rowIdx int, columns []int, method domain.MaskMethod) ([]string, map[string]int) {
	row := make([]string, len(t.Rows[rowIdx]))
	copy(row, t.Rows[rowIdx])
	stats := map[string]int{}

	for _, col := range columns {
		cell := row[col]
		if strings.TrimSpace(cell) == "" {
			continue
		}
		result := engine.Mask(ctx, cell, nil, method)
		if result.Masked == cell {
			result.Masked = masking.EdgeMask(cell)
		}
		row[col] = result.Masked
		stats[columnName(t.Headers, col)]++
	}
	return row, stats
}

func columnName(headers []string, col int) string {
	if col < len(headers) && strings.TrimSpace(headers[col]) != "" {
		return headers[col]
	}
	return fmt.Sprintf("欄位%d", col)
}

// Serialize writes the table back in its original container format. CSV
// output carries a UTF-8 BOM so spreadsheet applications render CJK text
// correctly.
func (t *Table) Serialize() ([]byte, error) {
	if t.Format == FormatXLSX {
		return t.serializeExcel()
	}
	return t.serializeCSV()
}

func (t *Table) serializeCSV() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\uFEFF")

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Table) serializeExcel() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
