package masking

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/politeai/tonebridge/pkg/models"
)

// placeholderPattern tolerantly matches placeholders in LLM output,
// accepting variations like {{DATE_1}}, {{ DATE_1 }}, and {{DATE-1}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Z]+)[-_](\d+)\s*\}\}`)

// UnmaskResult carries the restored text plus any spans whose placeholder
// never appeared (and whose original is not verbatim in the result either).
type UnmaskResult struct {
	Text         string
	MissingSpans []models.LockedSpan
}

// Mask replaces each locked span with its placeholder.
// Spans must be sorted by start ascending and non-overlapping.
func Mask(text string, spans []models.LockedSpan) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	lastEnd := 0
	for _, span := range spans {
		b.WriteString(text[lastEnd:span.Start])
		b.WriteString(span.Placeholder)
		lastEnd = span.End
	}
	b.WriteString(text[lastEnd:])
	return b.String()
}

// Unmask restores placeholders in the LLM output to their original text.
// Placeholder matching is tolerant of whitespace and dash separators.
func Unmask(output string, spans []models.LockedSpan) UnmaskResult {
	if len(spans) == 0 {
		return UnmaskResult{Text: output}
	}

	spanMap := make(map[string]models.LockedSpan, len(spans))
	for _, span := range spans {
		spanMap[span.Placeholder] = span
	}

	restored := make(map[string]bool)
	result := placeholderPattern.ReplaceAllStringFunc(output, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		canonical := fmt.Sprintf("{{%s_%s}}", groups[1], groups[2])
		span, ok := spanMap[canonical]
		if !ok {
			slog.Warn("Locked span placeholder not found in span map", "placeholder", canonical)
			return match
		}
		restored[canonical] = true
		return span.Original
	})

	var missing []models.LockedSpan
	for _, span := range spans {
		if restored[span.Placeholder] {
			continue
		}
		if strings.Contains(result, span.Original) {
			slog.Info("Locked span preserved verbatim without placeholder", "placeholder", span.Placeholder)
			continue
		}
		slog.Warn("Locked span missing in output",
			"placeholder", span.Placeholder, "type", span.Type, "text", span.Original)
		missing = append(missing, span)
	}

	return UnmaskResult{Text: result, MissingSpans: missing}
}
