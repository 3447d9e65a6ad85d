package pipeline

import (
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/models"
)

const maxThinkingBudget = 1024

// ComputeThinkingBudget scales the Gemini reasoning allowance with input
// complexity: one point each for 6+ segments, a meaningful YELLOW/RED load,
// and a long original text.
func ComputeThinkingBudget(segments []models.Segment, labeled []models.LabeledSegment, originalText string) int32 {
	yellow, red := 0, 0
	for _, ls := range labeled {
		switch ls.Label.Tier() {
		case models.TierYellow:
			yellow++
		case models.TierRed:
			red++
		}
	}

	score := 0
	if len(segments) >= 6 {
		score++
	}
	if yellow >= 2 || red >= 1 {
		score++
	}
	if utf8.RuneCountInString(originalText) >= 500 {
		score++
	}

	switch {
	case score >= 3:
		return maxThinkingBudget
	case score >= 1:
		return 768
	default:
		return 512
	}
}

// RetryThinkingBudget doubles the budget for the validation retry, capped.
func RetryThinkingBudget(budget int32) int32 {
	if budget*2 > maxThinkingBudget {
		return maxThinkingBudget
	}
	return budget * 2
}
