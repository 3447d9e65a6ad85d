package gating

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

type fakeClient struct {
	result  *llm.Result
	err     error
	lastReq llm.Request
	calls   int
}

func (f *fakeClient) Call(_ context.Context, req llm.Request) (*llm.Result, error) {
	f.lastReq = req
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeClient) Stream(context.Context, llm.Request) (<-chan llm.Chunk, error) {
	return nil, errors.New("not implemented")
}

func TestBoostNoSpans(t *testing.T) {
	client := &fakeClient{result: &llm.Result{Content: "없음", PromptTokens: 40, CompletionTokens: 2}}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	got, err := booster.Boost(context.Background(), "내일까지 보고서 제출 부탁드립니다", nil, "내일까지 보고서 제출 부탁드립니다")
	require.NoError(t, err)
	assert.Empty(t, got.ExtraSpans)
	assert.Equal(t, 40, got.PromptTokens)
	assert.Equal(t, "gemini-2.5-flash-lite", client.lastReq.Model)
	assert.Nil(t, client.lastReq.ThinkingBudget)
}

func TestBoostFindsSemanticSpans(t *testing.T) {
	normalized := "김민수 팀장님께 report_final.xlsx 전달 부탁드립니다"
	client := &fakeClient{result: &llm.Result{Content: "- 김민수\n- report_final.xlsx"}}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	got, err := booster.Boost(context.Background(), normalized, nil, normalized)
	require.NoError(t, err)
	require.Len(t, got.ExtraSpans, 2)

	first := got.ExtraSpans[0]
	assert.Equal(t, "김민수", first.Original)
	assert.Equal(t, models.SpanSemantic, first.Type)
	assert.Equal(t, "{{NAME_0}}", first.Placeholder)
	assert.Equal(t, "김민수", normalized[first.Start:first.End])

	second := got.ExtraSpans[1]
	assert.Equal(t, "report_final.xlsx", second.Original)
	assert.Equal(t, "{{NAME_1}}", second.Placeholder)
	assert.Equal(t, "report_final.xlsx", normalized[second.Start:second.End])
}

func TestBoostRespectsKoreanBoundary(t *testing.T) {
	// 김민수님 runs into the next syllable, so the name must not match there
	normalized := "김민수님께 전달 부탁드립니다"
	client := &fakeClient{result: &llm.Result{Content: "- 김민수"}}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	got, err := booster.Boost(context.Background(), normalized, nil, normalized)
	require.NoError(t, err)
	assert.Empty(t, got.ExtraSpans)
}

func TestBoostSkipsOverlappingSpans(t *testing.T) {
	normalized := "김민수 팀장님께 전달 부탁드립니다"
	existing := []models.LockedSpan{{
		Index: 0, Original: "김민수", Placeholder: "{{NAME_0}}",
		Type: models.SpanSemantic, Start: 0, End: len("김민수"),
	}}
	client := &fakeClient{result: &llm.Result{Content: "- 김민수"}}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	got, err := booster.Boost(context.Background(), normalized, existing, normalized)
	require.NoError(t, err)
	assert.Empty(t, got.ExtraSpans)
}

func TestBoostIndexContinuesFromExisting(t *testing.T) {
	normalized := "ERP 점검은 2025-01-03에 진행합니다"
	dateStart := len("ERP 점검은 ")
	existing := []models.LockedSpan{
		{Index: 0, Original: "2025-01-03", Placeholder: "{{DATE_1}}", Type: models.SpanDate,
			Start: dateStart, End: dateStart + len("2025-01-03")},
	}
	client := &fakeClient{result: &llm.Result{Content: "- ERP"}}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	got, err := booster.Boost(context.Background(), normalized, existing, normalized)
	require.NoError(t, err)
	require.Len(t, got.ExtraSpans, 1)
	assert.Equal(t, 1, got.ExtraSpans[0].Index)
	assert.Equal(t, "{{NAME_1}}", got.ExtraSpans[0].Placeholder)
}

func TestBoostCallFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("quota exceeded")}
	booster := NewBooster(client, "gemini-2.5-flash-lite", slog.Default())

	_, err := booster.Boost(context.Background(), "텍스트", nil, "텍스트")
	assert.Error(t, err)
}

func TestContextGateEvaluate(t *testing.T) {
	client := &fakeClient{result: &llm.Result{
		Content: `{"should_override":true,"confidence":0.85,` +
			`"inferred":{"topic":"REFUND_CANCEL","purpose":"REFUND_REJECTION","primary_context":"BILLING","template_id":"T07"},` +
			`"reasons":["환불 요청인데 일정 지연으로 선택됨"],"safety_notes":[]}`,
		PromptTokens: 120, CompletionTokens: 60,
	}}
	gate := NewContextGate(client, slog.Default())

	got := gate.Evaluate(context.Background(),
		models.PersonaClient,
		[]models.SituationContext{models.ContextScheduleDelay},
		"", "", models.TonePolite,
		"환불 처리가 안 되어 문의드립니다",
		[]models.LabeledSegment{{SegmentID: "T1", Label: models.LabelCoreFact}})

	assert.True(t, got.ShouldOverride)
	assert.True(t, got.MeetsThreshold())
	assert.Equal(t, models.TopicRefundCancel, got.InferredTopic)
	assert.Equal(t, models.PurposeRefundRejection, got.InferredPurpose)
	assert.Equal(t, models.ContextBilling, got.InferredPrimaryContext)
	assert.Equal(t, "T07", got.InferredTemplateID)
	assert.Equal(t, 120, got.PromptTokens)

	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	assert.Contains(t, client.lastReq.User, "- 수신자: CLIENT")
	assert.Contains(t, client.lastReq.User, "- 상황: SCHEDULE_DELAY")
	assert.Contains(t, client.lastReq.User, "- 주제: 미지정")
	assert.Contains(t, client.lastReq.User, "- 목적: 미지정")
	assert.Contains(t, client.lastReq.User, "라벨 요약: T1:CORE_FACT")
}

func TestContextGateBelowThreshold(t *testing.T) {
	client := &fakeClient{result: &llm.Result{
		Content: `{"should_override":true,"confidence":0.5,"inferred":{},"reasons":[],"safety_notes":[]}`,
	}}
	gate := NewContextGate(client, slog.Default())

	got := gate.Evaluate(context.Background(), models.PersonaBoss, nil, "", "", models.TonePolite, "텍스트", nil)
	assert.True(t, got.ShouldOverride)
	assert.False(t, got.MeetsThreshold())
}

func TestContextGateUnknownEnumValues(t *testing.T) {
	client := &fakeClient{result: &llm.Result{
		Content: `{"should_override":true,"confidence":0.9,` +
			`"inferred":{"topic":"NOT_A_TOPIC","purpose":"null","primary_context":"","template_id":"null"}}`,
	}}
	gate := NewContextGate(client, slog.Default())

	got := gate.Evaluate(context.Background(), models.PersonaBoss, nil, "", "", models.TonePolite, "텍스트", nil)
	assert.Empty(t, got.InferredTopic)
	assert.Empty(t, got.InferredPurpose)
	assert.Empty(t, got.InferredPrimaryContext)
	assert.Empty(t, got.InferredTemplateID)
}

func TestContextGateCallFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("timeout")}
	gate := NewContextGate(client, slog.Default())

	got := gate.Evaluate(context.Background(), models.PersonaBoss, nil, "", "", models.TonePolite, "텍스트", nil)
	assert.False(t, got.ShouldOverride)
	assert.False(t, got.MeetsThreshold())
	require.Len(t, got.SafetyNotes, 1)
	assert.Contains(t, got.SafetyNotes[0], "LLM call failed")
}

func TestContextGateParseFailure(t *testing.T) {
	client := &fakeClient{result: &llm.Result{Content: "json 아님", PromptTokens: 30, CompletionTokens: 5}}
	gate := NewContextGate(client, slog.Default())

	got := gate.Evaluate(context.Background(), models.PersonaBoss, nil, "", "", models.TonePolite, "텍스트", nil)
	assert.False(t, got.ShouldOverride)
	assert.Equal(t, 30, got.PromptTokens)
	require.Len(t, got.SafetyNotes, 1)
	assert.Contains(t, got.SafetyNotes[0], "Parse failed")
}

func TestShouldFireIdentityBooster(t *testing.T) {
	assert.True(t, ShouldFireIdentityBooster(true, slog.Default()))
	assert.False(t, ShouldFireIdentityBooster(false, slog.Default()))
}

func TestShouldFireSituationAnalysis(t *testing.T) {
	assert.True(t, ShouldFireSituationAnalysis())
}
