package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/rag"
	"github.com/politeai/tonebridge/pkg/template"
)

func TestBuildDynamicBlocks(t *testing.T) {
	out := BuildDynamicBlocks("CORE", models.PersonaBoss,
		[]models.SituationContext{models.ContextRequest}, models.TonePolite)

	assert.True(t, strings.HasPrefix(out, "CORE"))
	assert.Contains(t, out, "## 받는 사람: 직장 상사")
	assert.Contains(t, out, "## 상황")
	assert.Contains(t, out, "**요청**")
	assert.Contains(t, out, "## 말투: 공손")
	assert.NotContains(t, out, "복합 상황 우선순위")
}

func TestBuildDynamicBlocksMultiContextPriority(t *testing.T) {
	out := BuildDynamicBlocks("CORE", models.PersonaClient,
		[]models.SituationContext{models.ContextApology, models.ContextBilling},
		models.ToneVeryPolite)

	assert.Contains(t, out, "**사과**")
	assert.Contains(t, out, "**비용/정산**")
	assert.Contains(t, out, "복합 상황 우선순위")
}

func TestLabelFallbacks(t *testing.T) {
	assert.Equal(t, "학부모", PersonaLabel(models.PersonaParent))
	assert.Equal(t, "UNKNOWN", PersonaLabel(models.Persona("UNKNOWN")))
	assert.Equal(t, "독촉, 거절", ContextLabelList([]models.SituationContext{
		models.ContextUrging, models.ContextRejection,
	}))
	assert.Equal(t, "매우 공손", ToneLabel(models.ToneVeryPolite))
}

func TestExtractPlaceholders(t *testing.T) {
	got := ExtractPlaceholders("{{DATE_1}}까지 {{FILE_2}} 전달 부탁드립니다. {{date_3}}은 무시")
	assert.Equal(t, []string{"{{DATE_1}}", "{{FILE_2}}"}, got)
}

func TestBuildDedupeKey(t *testing.T) {
	key := BuildDedupeKey("{{DATE_1}}까지 자료 부탁드립니다!")
	require.NotNil(t, key)
	assert.Equal(t, "date_1까지자료부탁드립니다", *key)

	assert.Nil(t, BuildDedupeKey("   "))
	assert.Nil(t, BuildDedupeKey(""))

	a := BuildDedupeKey("자료 전달 부탁드립니다.")
	b := BuildDedupeKey("자료전달 부탁드립니다")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, *a, *b)
}

func TestBuildOrderedSegments(t *testing.T) {
	labeled := []models.LabeledSegment{
		{SegmentID: "T2", Label: models.LabelAggression, Text: "욕설", Start: 30, End: 40},
		{SegmentID: "T1", Label: models.LabelCoreFact, Text: "어제 서버가 중단되었습니다", Start: 0, End: 20},
		{SegmentID: "T3", Label: models.LabelAccountability, Text: "{{DATE_1}}에 또 장애가 났습니다", Start: 45, End: 80},
	}

	ordered := BuildOrderedSegments(labeled)
	require.Len(t, ordered, 3)

	assert.Equal(t, "T1", ordered[0].ID)
	assert.Equal(t, 1, ordered[0].Order)
	assert.Equal(t, "GREEN", ordered[0].Tier)
	require.NotNil(t, ordered[0].Text)
	assert.Empty(t, ordered[0].MustInclude)

	assert.Equal(t, "T2", ordered[1].ID)
	assert.Equal(t, "RED", ordered[1].Tier)
	assert.Nil(t, ordered[1].Text)
	assert.Nil(t, ordered[1].DedupeKey)

	assert.Equal(t, "T3", ordered[2].ID)
	assert.Equal(t, "YELLOW", ordered[2].Tier)
	assert.Equal(t, []string{"{{DATE_1}}"}, ordered[2].MustInclude)
}

func TestBuildFinalSystemPrompt(t *testing.T) {
	registry := template.NewRegistry()
	tmpl := registry.Get("T05_APOLOGY")

	out := BuildFinalSystemPrompt(models.PersonaClient,
		[]models.SituationContext{models.ContextApology}, models.TonePolite,
		tmpl, tmpl.SectionOrder, nil)

	assert.Contains(t, out, "## 입력 형식")
	assert.Contains(t, out, "## 메시지 구조: "+tmpl.Name)
	assert.Contains(t, out, "T05 사과 필수")
	assert.Contains(t, out, "## 받는 사람: 고객")
	assert.NotContains(t, out, "금지 표현 (RAG)")
}

func TestBuildFinalSystemPromptWithRAG(t *testing.T) {
	registry := template.NewRegistry()
	tmpl := registry.Default()

	results := &rag.Results{
		Forbidden:      []rag.Hit{{Content: "소중한 피드백", Alternative: "주신 의견"}, {Content: "만전을 기하겠습니다"}},
		ExpressionPool: []rag.Hit{{Content: "확인 후 안내드리겠습니다"}},
		Cushion:        []rag.Hit{{Content: "말씀 주신 부분 확인하였습니다"}},
	}
	out := BuildFinalSystemPrompt(models.PersonaBoss, nil, models.TonePolite,
		tmpl, tmpl.SectionOrder, results)

	assert.Contains(t, out, "⛔ 금지 표현")
	assert.Contains(t, out, "\"소중한 피드백\" → 대체: \"주신 의견\"")
	assert.Contains(t, out, "\"만전을 기하겠습니다\" → 대체: \"삭제\"")
	assert.Contains(t, out, "## 참고 표현 (RAG)")
	assert.Contains(t, out, "## YELLOW 쿠션 참고 (RAG)")
}

func TestBuildFinalUserMessage(t *testing.T) {
	registry := template.NewRegistry()
	tmpl := registry.Default()

	text := "어제 \"서버\"가 중단되었습니다"
	key := "key1"
	segments := []OrderedSegment{
		{ID: "T1", Order: 1, Tier: "GREEN", Label: "CORE_FACT", Text: &text, DedupeKey: &key},
		{ID: "T2", Order: 2, Tier: "RED", Label: "AGGRESSION"},
	}
	spans := []models.LockedSpan{
		models.NewLockedSpan(0, "2025-01-03", models.SpanDate, 1, 3, 13),
	}
	analysis := &models.SituationAnalysis{
		Facts:  []models.Fact{{Content: "서버 중단 발생", Source: "서버가 중단"}},
		Intent: "장애 원인 공유",
	}

	out := BuildFinalUserMessage(models.PersonaBoss,
		[]models.SituationContext{models.ContextScheduleDelay}, models.TonePolite,
		"개발팀 김민수", segments, spans, analysis, "요약문", tmpl, tmpl.SectionOrder, nil)

	assert.Contains(t, out, "--- 상황 분석 ---")
	assert.Contains(t, out, "- 서버 중단 발생 (원문: \"서버가 중단\")")
	assert.Contains(t, out, "의도: 장애 원인 공유")
	assert.Contains(t, out, "[요약]: 요약문")
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, `"receiver": "직장 상사"`)
	assert.Contains(t, out, `"sender": "개발팀 김민수"`)
	assert.Contains(t, out, `"template": "T01_GENERAL"`)
	assert.Contains(t, out, `"text":"어제 \"서버\"가 중단되었습니다"`)
	assert.Contains(t, out, `"text":null,"dedupeKey":null`)
	assert.Contains(t, out, `"{{DATE_1}}": "2025-01-03"`)
}

func TestBuildFinalUserMessageOmitsEmptyBlocks(t *testing.T) {
	registry := template.NewRegistry()
	tmpl := registry.Default()

	out := BuildFinalUserMessage(models.PersonaOther, nil, models.ToneNeutral,
		"", nil, nil, nil, "", tmpl, tmpl.SectionOrder, nil)

	assert.NotContains(t, out, "상황 분석")
	assert.NotContains(t, out, "[요약]")
	assert.NotContains(t, out, `"sender"`)
	assert.Contains(t, out, "\"placeholders\": {}")
}

func TestEscapeJSON(t *testing.T) {
	assert.Equal(t, `a\\b\"c\nd`, escapeJSON("a\\b\"c\nd"))
}
