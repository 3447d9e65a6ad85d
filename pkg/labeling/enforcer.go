package labeling

import (
	"log/slog"
	"regexp"

	"github.com/politeai/tonebridge/pkg/models"
)

// Server-side RED enforcer. Confirmed patterns override to RED regardless of
// the model's label; ambiguous patterns only upgrade GREEN to YELLOW.
// Normalization strips whitespace and filler characters to prevent bypass
// (e.g. "시 발", "시.발").

var (
	// matched against normalized text, override to AGGRESSION
	profanityPattern = regexp.MustCompile(`ㅅㅂ|ㅄ|ㅂㅅ|ㄱㅅㄲ|시발|씨발|병신|개새끼|개세끼|지랄|ㅈㄹ|ㅂㄹ`)

	// matched against raw text, override to PERSONAL_ATTACK
	abilityDenialPattern = regexp.MustCompile(`그것도\s*못|뇌가\s*있|할\s*줄\s*모르|그것도\s*몰라|무능`)

	// sarcastic praise with mockery markers, override to AGGRESSION
	mockeryPattern = regexp.MustCompile(`(?:잘|대단|훌륭)\S{0,4}(?:시네요|하시네요|십니다)\s*[ㅋㅎ^]{2,}`)

	// context-dependent ("미친" can be exclamation or insult): GREEN→EMOTIONAL only
	softProfanityPattern = regexp.MustCompile(`미친|개같|ㅈㄴ`)

	enforcerNormalize = regexp.MustCompile("[\\s\\-_.·!@#$%^&*()]+")
)

func normalizeForEnforcement(text string) string {
	return enforcerNormalize.ReplaceAllString(text, "")
}

// EnforceRedLabels applies the server-side RED rules on top of model labels.
func EnforceRedLabels(labeled []models.LabeledSegment, logger *slog.Logger) []models.LabeledSegment {
	result := make([]models.LabeledSegment, 0, len(labeled))

	for _, ls := range labeled {
		if ls.Label.Tier() == models.TierRed {
			result = append(result, ls)
			continue
		}

		normalized := normalizeForEnforcement(ls.Text)

		if profanityPattern.MatchString(normalized) || mockeryPattern.MatchString(ls.Text) {
			logger.Info("Confirmed RED override to AGGRESSION",
				"segmentId", ls.SegmentID, "previousLabel", ls.Label)
			ls.Label = models.LabelAggression
			result = append(result, ls)
			continue
		}

		if abilityDenialPattern.MatchString(ls.Text) {
			logger.Info("Confirmed RED override to PERSONAL_ATTACK",
				"segmentId", ls.SegmentID, "previousLabel", ls.Label)
			ls.Label = models.LabelPersonalAttack
			result = append(result, ls)
			continue
		}

		if ls.Label.Tier() == models.TierGreen && softProfanityPattern.MatchString(normalized) {
			logger.Info("Soft upgrade to EMOTIONAL",
				"segmentId", ls.SegmentID, "previousLabel", ls.Label)
			ls.Label = models.LabelEmotional
			result = append(result, ls)
			continue
		}

		result = append(result, ls)
	}

	return result
}
