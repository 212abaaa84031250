package masking

import (
	"testing"
)

func allSelected() map[Category]bool {
	selected := map[Category]bool{}
	for _, c := range AllCategories() {
		selected[c] = true
	}
	return selected
}

func TestDetectPriorityClaiming(t *testing.T) {
	// A 16-digit run is claimed by the card detector before the generic
	// account rule can see it.
	spans := detect("1234567890123456", allSelected())
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].category != CategoryCreditCard {
		t.Errorf("category = %s, want %s", spans[0].category, CategoryCreditCard)
	}
}

func TestDetectMobileNotAccount(t *testing.T) {
	spans := detect("0912345678", allSelected())
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].category != CategoryPhone {
		t.Errorf("category = %s, want %s", spans[0].category, CategoryPhone)
	}
}

func TestDetectSpansSortedByPosition(t *testing.T) {
	text := "信箱 mei@example.com 電話 0912345678"
	spans := detect(text, allSelected())
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			t.Errorf("spans out of order or overlapping: %v", spans)
		}
	}
	if spans[0].category != CategoryEmail || spans[1].category != CategoryPhone {
		t.Errorf("categories = %s, %s", spans[0].category, spans[1].category)
	}
}

func TestApplySpansRebuildsSurroundingText(t *testing.T) {
	text := "請聯絡 0912345678 謝謝"
	got := applySpans(text, detect(text, allSelected()))
	want := "請聯絡 09**-***-678 謝謝"
	if got != want {
		t.Errorf("applySpans = %q, want %q", got, want)
	}
}

func TestRedactDetectedUnknownCategoryFallsBack(t *testing.T) {
	if got := redactDetected(CategoryName, "王小明"); got != "王*明" {
		t.Errorf("fallback redactor = %q", got)
	}
}

func TestRedactDetectedRejectsMalformedSpans(t *testing.T) {
	// Spans reported by the detector collaborator are untrusted: a span
	// shorter than the category shape must not reach the slicing redactor.
	cases := []struct {
		category Category
		text     string
		want     string
	}{
		{CategoryCreditCard, "12", "***"},
		{CategoryPhone, "09", "***"},
		{CategoryNationalID, "A1", "***"},
		{CategoryAccount, "42", "***"},
		{CategoryPhone, "0912345678", "09**-***-678"},
		{CategoryCreditCard, "1234567890123456", "************3456"},
	}
	for _, tc := range cases {
		if got := redactDetected(tc.category, tc.text); got != tc.want {
			t.Errorf("redactDetected(%s, %q) = %q, want %q", tc.category, tc.text, got, tc.want)
		}
	}
}
