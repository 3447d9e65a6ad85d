package labeling

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

type scriptedClient struct {
	responses []*llm.Result
	requests  []llm.Request
}

func (s *scriptedClient) Call(_ context.Context, req llm.Request) (*llm.Result, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedClient) Stream(context.Context, llm.Request) (<-chan llm.Chunk, error) {
	return nil, errors.New("not implemented")
}

func makeSegments(texts ...string) []models.Segment {
	segments := make([]models.Segment, len(texts))
	pos := 0
	for i, text := range texts {
		segments[i] = models.Segment{
			ID:    "T" + string(rune('1'+i)),
			Text:  text,
			Start: pos,
			End:   pos + len(text),
		}
		pos += len(text) + 1
	}
	return segments
}

func newTestLabeler(client llm.Client) *Labeler {
	return NewLabeler(client, "gemini-2.5-flash-lite", slog.Default())
}

func TestLabelHappyPath(t *testing.T) {
	segments := makeSegments("보고서 제출이 늦어졌습니다", "내일까지 제출하겠습니다")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT\nT2|CORE_INTENT\nSUMMARY: 보고서 지연 안내", PromptTokens: 100, CompletionTokens: 20},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaBoss, []models.SituationContext{models.ContextScheduleDelay},
		models.TonePolite, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, got.LabeledSegments, 2)
	assert.Equal(t, models.LabelCoreFact, got.LabeledSegments[0].Label)
	assert.Equal(t, models.LabelCoreIntent, got.LabeledSegments[1].Label)
	assert.Equal(t, "보고서 지연 안내", got.SummaryText)
	assert.Equal(t, 100, got.PromptTokens)
	assert.False(t, got.YellowRecoveryApplied)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "gemini-2.5-flash-lite", client.requests[0].Model)
	require.NotNil(t, client.requests[0].ThinkingBudget)
	assert.Equal(t, int32(512), *client.requests[0].ThinkingBudget)
	assert.Contains(t, client.requests[0].User, "[서버 세그먼트]")
	assert.Contains(t, client.requests[0].User, "T1: 보고서 제출이 늦어졌습니다")
	assert.Contains(t, client.requests[0].User, "[마스킹된 원문]\n원문")
}

func TestLabelParseToleratesNoise(t *testing.T) {
	segments := makeSegments("첫 문장", "둘째 문장")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "```\n# 라벨 결과\n**T1**|CORE_FACT|extra\n- T2 |REQUEST\nT2|APOLOGY\nT9|COURTESY\n```"},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaOther, nil, models.ToneNeutral, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, got.LabeledSegments, 2)
	assert.Equal(t, "T1", got.LabeledSegments[0].SegmentID)
	assert.Equal(t, models.LabelCoreFact, got.LabeledSegments[0].Label)
	// duplicate T2 line keeps first occurrence; unknown T9 dropped
	assert.Equal(t, models.LabelRequest, got.LabeledSegments[1].Label)
}

func TestLabelMigratesOldLabels(t *testing.T) {
	labeler := newTestLabeler(&scriptedClient{})
	assert.Equal(t, models.LabelAccountability, labeler.resolveLabel("ACCOUNTABILITY_FACT", "T1"))
	assert.Equal(t, models.LabelSelfJustification, labeler.resolveLabel("SELF_DEFENSIVE", "T1"))
	assert.Equal(t, models.LabelExcessDetail, labeler.resolveLabel("SPECULATION", "T1"))
	assert.Equal(t, models.LabelCourtesy, labeler.resolveLabel("NOT_A_LABEL", "T1"))
}

func TestLabelRetryOnLowCoverage(t *testing.T) {
	segments := makeSegments("하나", "둘", "셋", "넷")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT", PromptTokens: 50, CompletionTokens: 5},
		{Content: "T1|CORE_FACT\nT2|REQUEST\nT3|COURTESY", PromptTokens: 60, CompletionTokens: 12},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaOther, nil, models.ToneNeutral, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[1].User, "[시스템 경고]")
	assert.Contains(t, client.requests[1].User, "T2, T3, T4")

	// retry parsed 3, missing T4 filled with COURTESY
	require.Len(t, got.LabeledSegments, 4)
	assert.Equal(t, "T4", got.LabeledSegments[3].SegmentID)
	assert.Equal(t, models.LabelCourtesy, got.LabeledSegments[3].Label)
	assert.Equal(t, 110, got.PromptTokens)
	assert.Equal(t, 17, got.CompletionTokens)
}

func TestLabelAllCourtesyFallback(t *testing.T) {
	segments := makeSegments("하나", "둘")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "쓸모없는 응답"},
		{Content: "여전히 쓸모없음"},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaOther, nil, models.ToneNeutral, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, got.LabeledSegments, 2)
	for _, ls := range got.LabeledSegments {
		assert.Equal(t, models.LabelCourtesy, ls.Label)
	}
}

func TestLabelAllGreenYellowScannerRecovery(t *testing.T) {
	segments := makeSegments(
		"보고서를 제출했습니다",
		"검토 부탁드립니다",
		"담당 팀에서 항상 자료를 늦게 줘서 답답합니다",
		"내일까지 회신 부탁드립니다",
	)
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT\nT2|REQUEST\nT3|CORE_FACT\nT4|REQUEST"},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaBoss, nil, models.TonePolite, "", "", segments, "원문")
	require.NoError(t, err)

	assert.True(t, got.YellowRecoveryApplied)
	assert.Equal(t, 1, got.YellowUpgradeCount)
	assert.Len(t, client.requests, 1)

	var upgraded models.LabeledSegment
	for _, ls := range got.LabeledSegments {
		if ls.SegmentID == "T3" {
			upgraded = ls
		}
	}
	assert.Equal(t, models.TierYellow, upgraded.Label.Tier())
}

func TestLabelAllGreenDiversityFallback(t *testing.T) {
	segments := makeSegments(
		"회의록을 공유드립니다",
		"자료는 첨부와 같습니다",
		"일정은 다음 주입니다",
		"확인 부탁드립니다",
	)
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT\nT2|CORE_FACT\nT3|CORE_FACT\nT4|REQUEST", PromptTokens: 80},
		{Content: "T1|CORE_FACT\nT2|EXCESS_DETAIL\nT3|CORE_FACT\nT4|REQUEST\nSUMMARY: 자료 공유", PromptTokens: 70},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaBoss, nil, models.TonePolite, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, client.requests, 2)
	assert.Equal(t, "gpt-4o-mini", client.requests[1].Model)
	assert.Nil(t, client.requests[1].ThinkingBudget)

	require.Len(t, got.LabeledSegments, 4)
	assert.Equal(t, models.LabelExcessDetail, got.LabeledSegments[1].Label)
	assert.Equal(t, "자료 공유", got.SummaryText)
	assert.Equal(t, 150, got.PromptTokens)
	assert.False(t, got.YellowRecoveryApplied)
}

func TestLabelAllGreenDiversityAlsoGreenAccepted(t *testing.T) {
	segments := makeSegments("하나입니다", "둘입니다", "셋입니다", "넷 부탁드립니다")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT\nT2|CORE_FACT\nT3|CORE_FACT\nT4|REQUEST"},
		{Content: "T1|CORE_FACT\nT2|CORE_FACT\nT3|CORE_FACT\nT4|REQUEST"},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaOther, nil, models.ToneNeutral, "", "", segments, "원문")
	require.NoError(t, err)

	require.Len(t, got.LabeledSegments, 4)
	for _, ls := range got.LabeledSegments {
		assert.Equal(t, models.TierGreen, ls.Label.Tier())
	}
}

func TestLabelSmallSetSkipsAllGreenRecovery(t *testing.T) {
	segments := makeSegments("하나", "둘", "셋")
	client := &scriptedClient{responses: []*llm.Result{
		{Content: "T1|CORE_FACT\nT2|CORE_FACT\nT3|REQUEST"},
	}}

	got, err := newTestLabeler(client).Label(context.Background(),
		models.PersonaOther, nil, models.ToneNeutral, "", "", segments, "원문")
	require.NoError(t, err)
	assert.Len(t, client.requests, 1)
	assert.Len(t, got.LabeledSegments, 3)
}

func TestScanYellowTriggersScoring(t *testing.T) {
	segments := []models.Segment{
		{ID: "T1", Text: "매번 담당 부서에서 회신이 늦습니다"},    // generalizer+recipient → 2
		{ID: "T2", Text: "정말 답답합니다"},              // strong emotional + soft → 3
		{ID: "T3", Text: "아마 내일 도착할 것 같다"},         // soft speculation only → 1
		{ID: "T4", Text: "자료를 전달했습니다"},            // no triggers
		{ID: "T5", Text: "내 탓 하려는 것 같아서 말해 두는데요"}, // strong defense +2, soft spec +1 → 3
	}
	labeled := make([]models.LabeledSegment, len(segments))
	for i, seg := range segments {
		labeled[i] = models.LabeledSegment{SegmentID: seg.ID, Label: models.LabelCoreFact, Text: seg.Text}
	}

	upgrades := ScanYellowTriggers(segments, labeled)
	require.Len(t, upgrades, 2)
	// top 2 by score: T2 and T5 (both 3) win over T1 (2)
	ids := []string{upgrades[0].SegmentID, upgrades[1].SegmentID}
	assert.Contains(t, ids, "T2")
	assert.Contains(t, ids, "T5")

	for _, u := range upgrades {
		if u.SegmentID == "T2" {
			assert.Equal(t, models.LabelEmotional, u.NewLabel)
		}
		if u.SegmentID == "T5" {
			assert.Equal(t, models.LabelSelfJustification, u.NewLabel)
		}
	}
}

func TestScanYellowTriggersIgnoresNonGreen(t *testing.T) {
	segments := []models.Segment{{ID: "T1", Text: "정말 너무 답답합니다"}}
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelEmotional, Text: segments[0].Text},
	}
	assert.Empty(t, ScanYellowTriggers(segments, labeled))
}

func TestEnforceRedLabelsProfanity(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelCoreFact, Text: "시 발 진짜"},
		{SegmentID: "T2", Label: models.LabelEmotional, Text: "정상 텍스트"},
	}

	got := EnforceRedLabels(labeled, slog.Default())
	assert.Equal(t, models.LabelAggression, got[0].Label)
	assert.Equal(t, models.LabelEmotional, got[1].Label)
}

func TestEnforceRedLabelsMockery(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelCourtesy, Text: "일 참 잘하시네요 ㅋㅋㅋ"},
	}
	got := EnforceRedLabels(labeled, slog.Default())
	assert.Equal(t, models.LabelAggression, got[0].Label)
}

func TestEnforceRedLabelsAbilityDenial(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelNegativeFeedback, Text: "그것도 못 하나요"},
	}
	got := EnforceRedLabels(labeled, slog.Default())
	assert.Equal(t, models.LabelPersonalAttack, got[0].Label)
}

func TestEnforceRedLabelsSoftProfanityGreenOnly(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelCoreFact, Text: "미친 일정이긴 합니다"},
		{SegmentID: "T2", Label: models.LabelSelfJustification, Text: "미친 일정이긴 합니다"},
	}
	got := EnforceRedLabels(labeled, slog.Default())
	assert.Equal(t, models.LabelEmotional, got[0].Label)
	// YELLOW stays as-is: soft profanity only upgrades GREEN
	assert.Equal(t, models.LabelSelfJustification, got[1].Label)
}

func TestEnforceRedLabelsKeepsExistingRed(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelPureGrumble, Text: "시발"},
	}
	got := EnforceRedLabels(labeled, slog.Default())
	assert.Equal(t, models.LabelPureGrumble, got[0].Label)
}
