package redaction

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/politeai/tonebridge/pkg/models"
)

func TestProcessCountsAndMap(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelCoreFact, Text: "사실"},
		{SegmentID: "T2", Label: models.LabelAggression, Text: "공격 하나"},
		{SegmentID: "T3", Label: models.LabelEmotional, Text: "감정"},
		{SegmentID: "T4", Label: models.LabelAggression, Text: "공격 둘"},
		{SegmentID: "T5", Label: models.LabelPureGrumble, Text: "넋두리"},
	}

	got := Process(labeled, slog.Default())

	assert.Equal(t, 3, got.RedCount)
	assert.Equal(t, 1, got.YellowCount)
	assert.Equal(t, map[string]string{
		"[REDACTED:AGGRESSION_1]":   "공격 하나",
		"[REDACTED:AGGRESSION_2]":   "공격 둘",
		"[REDACTED:PURE_GRUMBLE_1]": "넋두리",
	}, got.RedactionMap)
}

func TestProcessAllGreen(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelCoreFact, Text: "사실"},
		{SegmentID: "T2", Label: models.LabelRequest, Text: "요청"},
	}

	got := Process(labeled, slog.Default())
	assert.Zero(t, got.RedCount)
	assert.Zero(t, got.YellowCount)
	assert.Empty(t, got.RedactionMap)
}
