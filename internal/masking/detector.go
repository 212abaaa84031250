package masking

import (
	"regexp"
	"sort"
	"strings"
)

// span is a claimed byte range within the scanned text.
type span struct {
	start, end int
	category   Category
	masked     string
}

// regexDetector pairs a canonical pattern with its deterministic redactor.
// Redactors reproduce the original value's shape (length, separators) so
// repeated masking is a fixed point: no redacted output re-matches any
// pattern in the registry.
type regexDetector struct {
	category Category
	pattern  *regexp.Regexp
	redact   func(match string) string
}

// builtinDetectors is the canonical registry in fixed priority order: the
// most specific pattern first. A span claimed by an earlier detector is
// never re-matched by a later one, which is what keeps a 16-digit card
// number out of the generic account rule and a mobile number out of the
// 10-to-15-digit account rule.
var builtinDetectors = []regexDetector{
	{
		category: CategoryCreditCard,
		pattern:  regexp.MustCompile(`\b\d{16}\b`),
		redact: func(m string) string {
			return strings.Repeat("*", 12) + m[len(m)-4:]
		},
	},
	{
		category: CategoryCreditCard,
		pattern:  regexp.MustCompile(`\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4}`),
		redact: func(m string) string {
			digits := strings.NewReplacer("-", "", " ", "").Replace(m)
			return "****-****-****-" + digits[len(digits)-4:]
		},
	},
	{
		category: CategoryNationalID,
		pattern:  regexp.MustCompile(`[A-Z][12]\d{8}`),
		redact: func(m string) string {
			return m[:2] + strings.Repeat("*", 6) + m[len(m)-2:]
		},
	},
	{
		category: CategoryPhone,
		pattern:  regexp.MustCompile(`09\d{2}-?\d{3}-?\d{3}`),
		redact: func(m string) string {
			digits := strings.ReplaceAll(m, "-", "")
			return digits[:2] + "**-***-" + digits[len(digits)-3:]
		},
	},
	{
		category: CategoryPhone,
		pattern:  regexp.MustCompile(`0\d{1,2}-\d{7,8}`),
		redact: func(m string) string {
			parts := strings.SplitN(m, "-", 2)
			number := parts[1]
			return parts[0] + "-" + strings.Repeat("*", len(number)-4) + number[len(number)-4:]
		},
	},
	{
		category: CategoryAccount,
		pattern:  regexp.MustCompile(`\b\d{10,15}\b`),
		redact: func(m string) string {
			return strings.Repeat("*", len(m)-3) + m[len(m)-3:]
		},
	},
	{
		category: CategoryEmail,
		pattern:  regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`),
		redact: func(m string) string {
			at := strings.Index(m, "@")
			return m[:1] + strings.Repeat("*", at-1) + m[at:]
		},
	},
	{
		category: CategoryAddress,
		pattern:  regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,3}[縣市][\x{4e00}-\x{9fa5}]{1,4}[區鄉鎮市][\x{4e00}-\x{9fa5}]{1,10}[路街道][\x{4e00}-\x{9fa5}0-9]+號`),
		redact:   redactAddress,
	},
}

var addressPrefix = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}]{2,3}[縣市][\x{4e00}-\x{9fa5}]{1,4}[區鄉鎮市]`)

func redactAddress(m string) string {
	prefix := addressPrefix.FindString(m)
	if prefix == "" {
		return "[地址]"
	}
	rest := []rune(strings.TrimPrefix(m, prefix))
	return prefix + strings.Repeat("*", len(rest))
}

// redactDetected redacts an AI-reported span. The category redactors assume
// the shapes their patterns guarantee, so the span must fully match a
// registered pattern for its category before that redactor may slice it.
// Name, unknown categories, and malformed spans fall back to the edge
// strategy.
func redactDetected(category Category, text string) string {
	for _, det := range builtinDetectors {
		if det.category != category {
			continue
		}
		if loc := det.pattern.FindStringIndex(text); loc != nil && loc[0] == 0 && loc[1] == len(text) {
			return det.redact(text)
		}
	}
	return EdgeMask(text)
}

// detect runs the built-in registry over text for the selected categories
// and returns non-overlapping claimed spans in priority order.
func detect(text string, categories map[Category]bool) []span {
	var claimed []span
	for _, det := range builtinDetectors {
		if !categories[det.category] {
			continue
		}
		for _, loc := range det.pattern.FindAllStringIndex(text, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			match := text[loc[0]:loc[1]]
			claimed = append(claimed, span{
				start:    loc[0],
				end:      loc[1],
				category: det.category,
				masked:   det.redact(match),
			})
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })
	return claimed
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

// applySpans rebuilds the text with every claimed span replaced by its
// redacted form.
func applySpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		b.WriteString(s.masked)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}
