package prompt

import (
	"regexp"
	"strings"

	"github.com/politeai/tonebridge/pkg/models"
)

var (
	placeholderParts = regexp.MustCompile(`\{\{([A-Z_]+)_(\d+)\}\}`)
	dedupeStrip      = regexp.MustCompile("[\\s!\"#$%&'()*+,\\-./:;<=>?@\\[\\\\\\]^_`{|}~]")
)

// BuildDedupeKey derives a deduplication key from segment text: placeholders
// collapse to lowercase type_n tokens, whitespace and ASCII punctuation are
// removed, and the remainder is lowercased. Empty or blank text yields nil.
func BuildDedupeKey(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	result := placeholderParts.ReplaceAllStringFunc(text, func(m string) string {
		parts := placeholderParts.FindStringSubmatch(m)
		return strings.ToLower(parts[1]) + "_" + parts[2]
	})
	result = dedupeStrip.ReplaceAllString(result, "")
	result = strings.ToLower(result)
	return &result
}

// BuildOrderedSegments sorts labeled segments by start position and converts
// them to the final model's segment entries. RED segments carry nil text and
// nil dedupe key; YELLOW segments list their placeholders as mustInclude.
func BuildOrderedSegments(labeled []models.LabeledSegment) []OrderedSegment {
	sorted := make([]models.LabeledSegment, len(labeled))
	copy(sorted, labeled)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	ordered := make([]OrderedSegment, 0, len(sorted))
	for i, ls := range sorted {
		tier := ls.Label.Tier()
		entry := OrderedSegment{
			ID:    ls.SegmentID,
			Order: i + 1,
			Tier:  string(tier),
			Label: string(ls.Label),
		}
		if tier != models.TierRed {
			text := ls.Text
			entry.Text = &text
			entry.DedupeKey = BuildDedupeKey(text)
			if entry.DedupeKey == nil {
				empty := ""
				entry.DedupeKey = &empty
			}
			if tier == models.TierYellow {
				entry.MustInclude = ExtractPlaceholders(text)
			}
		}
		ordered = append(ordered, entry)
	}
	return ordered
}
