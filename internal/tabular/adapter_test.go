package tabular

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/masking"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

func testEngine() *masking.Engine {
	return masking.NewEngine(nil, time.Second, nil)
}

func TestParseCSV(t *testing.T) {
	input := "姓名,電話,問題\n王小明,0912345678,冷氣不冷\n\n李小華,0922333444,熱水器壞了\n"
	table, err := Parse(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Format != FormatCSV {
		t.Errorf("format = %s", table.Format)
	}
	if len(table.Headers) != 3 || table.Headers[0] != "姓名" {
		t.Errorf("headers = %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Errorf("rows = %d, want 2 (empty row dropped)", len(table.Rows))
	}
}

func TestParseCSVStripsBOM(t *testing.T) {
	input := "\uFEFF姓名,電話\n王小明,0912345678\n"
	table, err := Parse(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Headers[0] != "姓名" {
		t.Errorf("header with BOM = %q", table.Headers[0])
	}
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := Parse(strings.NewReader("x"), "upload.pdf")
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestParsePadsShortRows(t *testing.T) {
	input := "a,b,c\n1,2\n"
	table, err := Parse(strings.NewReader(input), "t.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.Rows[0]) != 3 {
		t.Errorf("row width = %d, want 3", len(table.Rows[0]))
	}
}

func TestPreviewCapsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("a\n")
	for i := 0; i < 10; i++ {
		b.WriteString("x\n")
	}
	table, err := Parse(strings.NewReader(b.String()), "t.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(table.Preview()); got != PreviewRows {
		t.Errorf("preview rows = %d, want %d", got, PreviewRows)
	}
}

func TestMaskColumnsPreservesShape(t *testing.T) {
	table := &Table{
		Format:  FormatCSV,
		Headers: []string{"姓名", "電話", "問題"},
		Rows: [][]string{
			{"王小明", "0912345678", "冷氣不冷"},
			{"李小華", "0922333444", "熱水器壞了"},
		},
	}

	outcome, err := MaskColumns(context.Background(), testEngine(), table, []int{1}, domain.MaskMethodRegex)
	if err != nil {
		t.Fatalf("MaskColumns: %v", err)
	}
	if outcome.RowsProcessed != 2 {
		t.Errorf("rows processed = %d", outcome.RowsProcessed)
	}
	if len(outcome.Table.Rows) != len(table.Rows) {
		t.Fatalf("row count changed: %d", len(outcome.Table.Rows))
	}
	for i, row := range outcome.Table.Rows {
		if len(row) != len(table.Rows[i]) {
			t.Errorf("row %d width changed", i)
		}
	}
	if outcome.Table.Rows[0][1] != "09**-***-678" {
		t.Errorf("masked cell = %q", outcome.Table.Rows[0][1])
	}
	if outcome.Table.Rows[0][0] != "王小明" || outcome.Table.Rows[0][2] != "冷氣不冷" {
		t.Errorf("unselected cells changed: %v", outcome.Table.Rows[0])
	}
	if table.Rows[0][1] != "0912345678" {
		t.Errorf("input table mutated: %q", table.Rows[0][1])
	}
	if outcome.Stats["電話"] != 2 {
		t.Errorf("stats = %v", outcome.Stats)
	}
}

func TestMaskColumnsOrderStableUnderParallelism(t *testing.T) {
	rows := make([][]string, 100)
	for i := range rows {
		rows[i] = []string{strings.Repeat("a", i%7+1), "0912345678"}
	}
	table := &Table{Format: FormatCSV, Headers: []string{"名稱", "電話"}, Rows: rows}

	outcome, err := MaskColumns(context.Background(), testEngine(), table, []int{1}, domain.MaskMethodRegex)
	if err != nil {
		t.Fatalf("MaskColumns: %v", err)
	}
	for i, row := range outcome.Table.Rows {
		if row[0] != rows[i][0] {
			t.Fatalf("row %d out of order: %q vs %q", i, row[0], rows[i][0])
		}
	}
}

func TestMaskColumnsRejectsOutOfRange(t *testing.T) {
	table := &Table{Format: FormatCSV, Headers: []string{"a"}, Rows: [][]string{{"x"}}}

	for _, col := range []int{-1, 1} {
		_, err := MaskColumns(context.Background(), testEngine(), table, []int{col}, domain.MaskMethodRegex)
		if !apperrors.IsCode(err, "VALIDATION_FAILED") {
			t.Errorf("column %d: err = %v, want VALIDATION_FAILED", col, err)
		}
	}
}

func TestMaskColumnsForceMasksUndetectedCells(t *testing.T) {
	table := &Table{Format: FormatCSV, Headers: []string{"姓名"}, Rows: [][]string{{"王小明"}}}

	outcome, err := MaskColumns(context.Background(), testEngine(), table, []int{0}, domain.MaskMethodRegex)
	if err != nil {
		t.Fatalf("MaskColumns: %v", err)
	}
	if outcome.Table.Rows[0][0] != "王*明" {
		t.Errorf("force-masked cell = %q", outcome.Table.Rows[0][0])
	}
}

func TestSerializeCSVRoundTrip(t *testing.T) {
	table := &Table{
		Format:  FormatCSV,
		Headers: []string{"姓名", "電話"},
		Rows:    [][]string{{"王小明", "09**-***-678"}},
	}
	data, err := table.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\uFEFF")) {
		t.Error("csv output missing BOM")
	}

	parsed, err := Parse(bytes.NewReader(data), "out.csv")
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if parsed.Headers[0] != "姓名" || parsed.Rows[0][1] != "09**-***-678" {
		t.Errorf("round trip lost data: %v %v", parsed.Headers, parsed.Rows)
	}
}

func TestSerializeExcelRoundTrip(t *testing.T) {
	table := &Table{
		Format:  FormatXLSX,
		Headers: []string{"姓名", "電話"},
		Rows:    [][]string{{"王小明", "0912345678"}},
	}
	data, err := table.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	parsed, err := Parse(bytes.NewReader(data), "out.xlsx")
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(parsed.Rows) != 1 || parsed.Rows[0][0] != "王小明" {
		t.Errorf("round trip lost data: %v", parsed.Rows)
	}
}
