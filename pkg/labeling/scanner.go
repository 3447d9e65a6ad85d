package labeling

import (
	"regexp"
	"sort"
	"strings"

	"github.com/politeai/tonebridge/pkg/models"
)

// Server-side regex scanner for all-GREEN yellow recovery. When every segment
// of a 4+ set comes back GREEN, the scanner looks for Korean patterns that
// strongly suggest YELLOW-worthy content was missed and upgrades up to
// maxUpgrades segments, avoiding an LLM diversity retry.

const (
	scoreThreshold = 2
	maxUpgrades    = 2
)

// YellowUpgrade recommends re-labeling one GREEN segment.
type YellowUpgrade struct {
	SegmentID string
	NewLabel  models.SegmentLabel
	Reason    string
	Score     int
}

var (
	recipientPattern   = regexp.MustCompile(`상대|님|너희|귀사|담당`)
	generalizerPattern = regexp.MustCompile(`매번|맨날|항상|도대체`)
)

type scanCategory struct {
	name  string
	label models.SegmentLabel
	// one strong hit scores +2, one soft hit +1
	strong []*regexp.Regexp
	soft   []*regexp.Regexp
}

var scanCategories = []scanCategory{
	{
		name:   "emotional_expression",
		label:  models.LabelEmotional,
		strong: []*regexp.Regexp{regexp.MustCompile(`답답|화가|짜증|열받|미치겠|환장`)},
		soft:   []*regexp.Regexp{regexp.MustCompile(`정말|너무`)},
	},
	{
		name:   "speculation",
		label:  models.LabelExcessDetail,
		strong: []*regexp.Regexp{regexp.MustCompile(`틀림없이|확실히`)},
		// 듯 counts only when not followed by another Hangul syllable
		// (듯하다 is a normal compound, not speculation).
		soft: []*regexp.Regexp{regexp.MustCompile(`아마|것\s*같다|것\s*같아|같다|듯(?:[^0-9A-Za-z_가-힣]|$)|분명`)},
	},
	{
		name:   "defense",
		label:  models.LabelSelfJustification,
		strong: []*regexp.Regexp{regexp.MustCompile(`내\s*탓\s*하려|말해\s*두는데`)},
		soft:   []*regexp.Regexp{regexp.MustCompile(`난\s.*했고|최선을\s*다했|제\s*잘못도\s*있지만`)},
	},
}

func scoreBlameGeneralization(text string) (int, string) {
	hasGeneralizer := generalizerPattern.MatchString(text)
	hasRecipient := recipientPattern.MatchString(text)

	switch {
	case hasGeneralizer && hasRecipient:
		return 2, "generalizer+recipient(strong)"
	case hasGeneralizer:
		return 1, "generalizer(soft)"
	}
	return 0, ""
}

func scoreCategory(text string, cat scanCategory) (int, string) {
	score := 0
	var reasons []string

	for _, pat := range cat.strong {
		if pat.MatchString(text) {
			score += 2
			reasons = append(reasons, "strong:"+pat.String())
			break
		}
	}
	for _, pat := range cat.soft {
		if pat.MatchString(text) {
			score++
			reasons = append(reasons, "soft:"+pat.String())
			break
		}
	}
	return score, strings.Join(reasons, "+")
}

// ScanYellowTriggers scans GREEN segments for YELLOW-worthy patterns and
// returns up to maxUpgrades recommendations with score >= scoreThreshold.
func ScanYellowTriggers(segments []models.Segment, labeled []models.LabeledSegment) []YellowUpgrade {
	labelMap := make(map[string]models.LabeledSegment, len(labeled))
	for _, ls := range labeled {
		labelMap[ls.SegmentID] = ls
	}

	var candidates []YellowUpgrade
	for _, seg := range segments {
		ls, ok := labelMap[seg.ID]
		if !ok || ls.Label.Tier() != models.TierGreen {
			continue
		}

		text := seg.Text
		totalScore := 0
		var allReasons []string
		var bestLabel models.SegmentLabel
		bestLabelScore := 0

		if blameScore, blameReason := scoreBlameGeneralization(text); blameScore > 0 {
			totalScore += blameScore
			allReasons = append(allReasons, "blame("+blameReason+")")
			if blameScore > bestLabelScore {
				bestLabelScore = blameScore
				if recipientPattern.MatchString(text) {
					bestLabel = models.LabelAccountability
				} else {
					bestLabel = models.LabelNegativeFeedback
				}
			}
		}

		for _, cat := range scanCategories {
			catScore, catReason := scoreCategory(text, cat)
			if catScore > 0 {
				totalScore += catScore
				allReasons = append(allReasons, cat.name+"("+catReason+")")
				if catScore > bestLabelScore {
					bestLabelScore = catScore
					bestLabel = cat.label
				}
			}
		}

		if totalScore >= scoreThreshold && bestLabel != "" {
			candidates = append(candidates, YellowUpgrade{
				SegmentID: seg.ID,
				NewLabel:  bestLabel,
				Reason:    strings.Join(allReasons, "; "),
				Score:     totalScore,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxUpgrades {
		candidates = candidates[:maxUpgrades]
	}
	return candidates
}
