// Package redaction counts segment tiers and builds the RED redaction map
// used by the output validator's reentry check. The final model receives the
// segments as JSON, so no text assembly happens here.
package redaction

import (
	"fmt"
	"log/slog"

	"github.com/politeai/tonebridge/pkg/models"
)

// Result holds tier counts and the RED marker map (marker -> original text).
type Result struct {
	RedCount     int
	YellowCount  int
	RedactionMap map[string]string
}

// Process counts tiers and maps each RED segment to a [REDACTED:LABEL_k]
// marker, with k counted per label.
func Process(labeled []models.LabeledSegment, logger *slog.Logger) Result {
	redactionMap := make(map[string]string)
	redCounters := make(map[models.SegmentLabel]int)
	redCount, yellowCount := 0, 0

	for _, ls := range labeled {
		switch ls.Label.Tier() {
		case models.TierRed:
			redCounters[ls.Label]++
			marker := fmt.Sprintf("[REDACTED:%s_%d]", ls.Label, redCounters[ls.Label])
			redactionMap[marker] = ls.Text
			redCount++
		case models.TierYellow:
			yellowCount++
		}
	}

	logger.Info("Redaction counts",
		"red", redCount, "yellow", yellowCount,
		"green", len(labeled)-redCount-yellowCount)

	return Result{
		RedCount:     redCount,
		YellowCount:  yellowCount,
		RedactionMap: redactionMap,
	}
}
