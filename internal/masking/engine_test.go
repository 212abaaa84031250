package masking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/repairflow/repairflow/internal/domain"
)

type fakeDetector struct {
	items []Detected
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, text string) ([]Detected, error) {
	return f.items, f.err
}

func TestMaskRegex(t *testing.T) {
	engine := NewEngine(nil, time.Second, nil)

	tests := []struct {
		name  string
		input string
		want  string
		stats map[Category]int
	}{
		{
			name:  "mobile phone",
			input: "請撥 0912345678 聯絡",
			want:  "請撥 09**-***-678 聯絡",
			stats: map[Category]int{CategoryPhone: 1},
		},
		{
			name:  "landline",
			input: "02-12345678",
			want:  "02-****5678",
			stats: map[Category]int{CategoryPhone: 1},
		},
		{
			name:  "credit card plain",
			input: "卡號1234567890123456",
			want:  "卡號************3456",
			stats: map[Category]int{CategoryCreditCard: 1},
		},
		{
			name:  "credit card separated",
			input: "1234-5678-9012-3456",
			want:  "****-****-****-3456",
			stats: map[Category]int{CategoryCreditCard: 1},
		},
		{
			name:  "national id",
			input: "A123456789",
			want:  "A1******89",
			stats: map[Category]int{CategoryNationalID: 1},
		},
		{
			name:  "email",
			input: "寄到 john.doe@example.com",
			want:  "寄到 j*******@example.com",
			stats: map[Category]int{CategoryEmail: 1},
		},
		{
			name:  "address",
			input: "台北市信義區松山路100號",
			want:  "台北市信義區*******",
			stats: map[Category]int{CategoryAddress: 1},
		},
		{
			name:  "no pii",
			input: "冷氣不冷",
			want:  "冷氣不冷",
			stats: map[Category]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Mask(context.Background(), tt.input, nil, domain.MaskMethodRegex)
			if got.Masked != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.input, got.Masked, tt.want)
			}
			if !reflect.DeepEqual(got.Stats, tt.stats) {
				t.Errorf("Mask(%q) stats = %v, want %v", tt.input, got.Stats, tt.stats)
			}
		})
	}
}

func TestMaskIsFixedPoint(t *testing.T) {
	engine := NewEngine(nil, time.Second, nil)
	inputs := []string{
		"手機 0912345678，卡號 1234567890123456",
		"身分證 A123456789 住台北市信義區松山路100號",
		"帳號 12345678901 信箱 mei@example.com",
	}
	for _, input := range inputs {
		once := engine.Mask(context.Background(), input, nil, domain.MaskMethodRegex)
		twice := engine.Mask(context.Background(), once.Masked, nil, domain.MaskMethodRegex)
		if twice.Masked != once.Masked {
			t.Errorf("masking not a fixed point: %q -> %q -> %q", input, once.Masked, twice.Masked)
		}
		if len(twice.Stats) != 0 {
			t.Errorf("remasking %q detected spans: %v", once.Masked, twice.Stats)
		}
	}
}

func TestMaskCategorySelection(t *testing.T) {
	engine := NewEngine(nil, time.Second, nil)
	input := "電話 0912345678 信箱 mei@example.com"

	got := engine.Mask(context.Background(), input, []Category{CategoryEmail}, domain.MaskMethodRegex)
	want := "電話 0912345678 信箱 m**@example.com"
	if got.Masked != want {
		t.Errorf("Mask with email only = %q, want %q", got.Masked, want)
	}
	if got.Stats[CategoryPhone] != 0 {
		t.Errorf("phone masked despite not selected: %v", got.Stats)
	}
}

func TestMaskAIDegradesToRegex(t *testing.T) {
	engine := NewEngine(&fakeDetector{err: errors.New("quota exceeded")}, time.Second, nil)

	got := engine.Mask(context.Background(), "電話 0912345678", nil, domain.MaskMethodAI)
	if got.Masked != "電話 09**-***-678" {
		t.Errorf("degraded mask = %q", got.Masked)
	}
}

func TestMaskAIAppliesDetections(t *testing.T) {
	engine := NewEngine(&fakeDetector{items: []Detected{
		{Text: "王小明", Category: CategoryName},
		{Text: "不存在的片段", Category: CategoryName},
	}}, time.Second, nil)

	got := engine.Mask(context.Background(), "王小明報修冷氣", nil, domain.MaskMethodAI)
	if got.Masked != "王*明報修冷氣" {
		t.Errorf("ai mask = %q", got.Masked)
	}
	if got.Stats[CategoryName] != 1 {
		t.Errorf("stats = %v, want one name", got.Stats)
	}
}

func TestMaskAIToleratesMalformedDetections(t *testing.T) {
	// A detector may return fragments shorter than the category shape. The
	// mask must still succeed, edge-masking the fragment instead of
	// trusting the shape.
	engine := NewEngine(&fakeDetector{items: []Detected{
		{Text: "12", Category: CategoryCreditCard},
		{Text: "09", Category: CategoryPhone},
	}}, time.Second, nil)

	got := engine.Mask(context.Background(), "卡號 12 開頭 09", nil, domain.MaskMethodAI)
	if got.Masked != "卡號 *** 開頭 ***" {
		t.Errorf("ai mask = %q", got.Masked)
	}
	if got.Stats[CategoryCreditCard] != 1 || got.Stats[CategoryPhone] != 1 {
		t.Errorf("stats = %v", got.Stats)
	}
}

func TestFullMask(t *testing.T) {
	if got := FullMask("小明"); got != "**" {
		t.Errorf("FullMask = %q", got)
	}
	if got := FullMask(""); got != "" {
		t.Errorf("FullMask empty = %q", got)
	}
}

func TestPartialMask(t *testing.T) {
	tests := []struct {
		value string
		keep  int
		want  string
	}{
		{"ABCDE", 2, "AB***"},
		{"AB", 3, "AB"},
		{"AB", 2, "AB"},
		{"王小明", 1, "王**"},
		{"ABCDE", -1, "*****"},
	}
	for _, tt := range tests {
		if got := PartialMask(tt.value, tt.keep); got != tt.want {
			t.Errorf("PartialMask(%q, %d) = %q, want %q", tt.value, tt.keep, got, tt.want)
		}
	}
}

func TestEdgeMask(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"AB", "***"},
		{"王", "***"},
		{"ABCDE", "A***E"},
		{"王小明", "王*明"},
	}
	for _, tt := range tests {
		if got := EdgeMask(tt.value); got != tt.want {
			t.Errorf("EdgeMask(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestMaskFields(t *testing.T) {
	engine := NewEngine(nil, time.Second, nil)
	fields := []domain.TicketField{
		{Key: "field_1", Label: "姓名", Value: "王小明"},
		{Key: "field_2", Label: "電話", Value: "0912345678"},
		{Key: "field_3", Label: "問題", Value: "冷氣不冷"},
	}

	result := engine.MaskFields(context.Background(), FieldMaskInput{
		Fields:     fields,
		MaskedKeys: []string{"field_1", "field_2"},
		Method:     domain.MaskMethodRegex,
	})

	// No built-in category matches a bare name, so the selected field is
	// force-masked with the edge strategy.
	if result.Fields[0].Value != "王*明" {
		t.Errorf("name field = %q", result.Fields[0].Value)
	}
	if result.Fields[1].Value != "09**-***-678" {
		t.Errorf("phone field = %q", result.Fields[1].Value)
	}
	if result.Fields[2].Value != "冷氣不冷" {
		t.Errorf("unselected field changed: %q", result.Fields[2].Value)
	}
	if fields[0].Value != "王小明" {
		t.Errorf("input mutated: %q", fields[0].Value)
	}
	if result.Stats["姓名"] != 1 || result.Stats["電話"] != 1 {
		t.Errorf("stats = %v", result.Stats)
	}
}

func TestMaskFieldsCustomRuleWins(t *testing.T) {
	engine := NewEngine(nil, time.Second, nil)
	result := engine.MaskFields(context.Background(), FieldMaskInput{
		Fields:     []domain.TicketField{{Key: "field_1", Label: "電話", Value: "0912345678"}},
		MaskedKeys: []string{"field_1"},
		Method:     domain.MaskMethodRegex,
		CustomRules: map[string]domain.MaskField{
			"電話": {Label: "電話", MaskType: domain.MaskTypePartial, KeepChars: 4},
		},
	})
	if result.Fields[0].Value != "0912******" {
		t.Errorf("custom rule result = %q", result.Fields[0].Value)
	}
}

func TestRenderText(t *testing.T) {
	got := RenderText([]domain.TicketField{
		{Label: "姓名", Value: "王*明"},
		{Label: "電話", Value: "09**-***-678"},
	})
	want := "姓名：王*明\n電話：09**-***-678"
	if got != want {
		t.Errorf("RenderText = %q, want %q", got, want)
	}
}
