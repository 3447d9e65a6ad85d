// Package situation extracts objective facts and the speaker's core intent
// from the masked text, giving the final model grounded context that reduces
// hallucination.
package situation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/prompt"
)

const (
	analysisModel       = "gpt-4o-mini"
	analysisTemperature = 0.2
	analysisMaxTokens   = 500
)

var (
	koreanWordPattern = regexp.MustCompile(`[가-힣]{2,}`)
	nonWordPattern    = regexp.MustCompile(`[^가-힣a-zA-Z0-9]`)
)

var stopwords = map[string]bool{
	"그리고": true, "하지만": true, "그래서": true, "때문에": true, "그런데": true,
	"그러나": true, "또한": true, "이런": true, "저런": true, "그런": true,
	"이것": true, "저것": true, "그것": true, "여기": true, "거기": true,
	"저기": true, "우리": true, "너희": true, "이번": true, "다음": true,
}

const systemPrompt = "당신은 한국어 메시지 상황 분석 전문가입니다.\n" +
	"원문과 메타데이터를 분석하여 객관적 사실(facts)과 화자의 핵심 목적(intent)을 추출합니다.\n\n" +
	"## 규칙\n" +
	"1. facts: 원문에서 직접 읽히는 객관적 사실만 추출 (최대 5개)\n" +
	"2. 각 fact의 content: 사실을 명확한 1문장으로 요약\n" +
	"3. 각 fact의 source: 해당 사실의 근거가 되는 원문 구절을 **정확히 인용** (변형 금지)\n" +
	"4. intent: 화자의 핵심 전달 목적을 1~2문장으로 요약\n" +
	"5. 지시대명사(\"그거\", \"이것\", \"저기\") → 원문 맥락에서 해석하여 구체적 대상으로 복원\n" +
	"6. 생략된 주어 → 문맥에서 추론하여 복원\n" +
	"7. `{{TYPE_N}}` 형식 플레이스홀더(예: {{DATE_1}}, {{PHONE_1}})는 그대로 유지\n" +
	"8. 근거 없는 추측 금지. 원문에서 직접 읽히는 것만\n\n" +
	"## 출력 형식 (JSON만, 다른 텍스트 금지)\n" +
	"{\n" +
	"  \"facts\": [\n" +
	"    {\"content\": \"사실 요약\", \"source\": \"원문 그대로 인용\"},\n" +
	"    ...\n" +
	"  ],\n" +
	"  \"intent\": \"화자의 핵심 목적\"\n" +
	"}\n\n" +
	"## 예시\n\n" +
	"입력:\n" +
	"받는 사람: 학부모\n" +
	"상황: 피드백\n" +
	"원문:\n" +
	"아이가 수학 시험에서 {{UNIT_NUMBER_1}} 맞았는데 그거 반 평균보다 낮은 거잖아요. " +
	"선생님이 보충수업 해주신다고 했는데 아직 연락이 없어서요.\n\n" +
	"출력:\n" +
	"{\n" +
	"  \"facts\": [\n" +
	"    {\"content\": \"아이의 수학 시험 점수가 {{UNIT_NUMBER_1}}이다\", " +
	"\"source\": \"아이가 수학 시험에서 {{UNIT_NUMBER_1}} 맞았는데\"},\n" +
	"    {\"content\": \"아이의 점수가 반 평균보다 낮다\", " +
	"\"source\": \"그거 반 평균보다 낮은 거잖아요\"},\n" +
	"    {\"content\": \"선생님이 보충수업을 해주기로 했으나 아직 연락이 없다\", " +
	"\"source\": \"선생님이 보충수업 해주신다고 했는데 아직 연락이 없어서요\"}\n" +
	"  ],\n" +
	"  \"intent\": \"보충수업 일정을 확인하고, 아이의 성적 개선을 위한 후속 조치를 요청하려는 목적\"\n" +
	"}"

// Analyzer runs the situation analysis call against the chat model.
type Analyzer struct {
	client llm.Client
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer backed by the given LLM client.
func NewAnalyzer(client llm.Client, logger *slog.Logger) *Analyzer {
	return &Analyzer{client: client, logger: logger}
}

// Analyze extracts facts and intent from the masked text. A failed LLM call
// is fatal for the request; an unparseable response degrades to an empty
// result so the pipeline continues without the analysis block.
func (a *Analyzer) Analyze(
	ctx context.Context,
	persona models.Persona,
	contexts []models.SituationContext,
	toneLevel models.ToneLevel,
	maskedText, userPrompt, senderInfo string,
) (models.SituationAnalysis, error) {
	var parts []string
	parts = append(parts, "받는 사람: "+prompt.PersonaLabel(persona))
	parts = append(parts, "상황: "+prompt.ContextLabelList(contexts))
	parts = append(parts, "말투 강도: "+prompt.ToneLabel(toneLevel))
	if strings.TrimSpace(senderInfo) != "" {
		parts = append(parts, "보내는 사람: "+senderInfo)
	}
	if strings.TrimSpace(userPrompt) != "" {
		parts = append(parts, "참고 맥락: "+userPrompt)
	}
	parts = append(parts, "\n원문:\n"+maskedText)

	result, err := a.client.Call(ctx, llm.Request{
		Model:       analysisModel,
		System:      systemPrompt,
		User:        strings.Join(parts, "\n"),
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		a.logger.Error("Situation analysis call failed", "error", err)
		return models.SituationAnalysis{}, fmt.Errorf("situation analysis: %w", err)
	}

	return a.parseResult(result), nil
}

func (a *Analyzer) parseResult(result *llm.Result) models.SituationAnalysis {
	var root struct {
		Facts []struct {
			Content string `json:"content"`
			Source  string `json:"source"`
		} `json:"facts"`
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(result.Content), &root); err != nil {
		a.logger.Warn("Situation analysis parse failed", "error", err)
		return models.SituationAnalysis{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
		}
	}

	var facts []models.Fact
	for _, node := range root.Facts {
		if node.Content != "" {
			facts = append(facts, models.Fact{Content: node.Content, Source: node.Source})
		}
	}

	return models.SituationAnalysis{
		Facts:            facts,
		Intent:           root.Intent,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}
}

// FilterRedFacts drops facts whose source overlaps RED-labeled segments, so
// deleted content cannot leak back through the analysis block. Matching falls
// through three strategies: exact position overlap, normalized containment,
// and meaning-word overlap.
func FilterRedFacts(
	original models.SituationAnalysis,
	maskedText string,
	labeled []models.LabeledSegment,
	logger *slog.Logger,
) models.SituationAnalysis {
	var redSegments []models.LabeledSegment
	for _, ls := range labeled {
		if ls.Label.Tier() == models.TierRed {
			redSegments = append(redSegments, ls)
		}
	}
	if len(redSegments) == 0 {
		return original
	}

	var filtered []models.Fact
	for _, fact := range original.Facts {
		if strings.TrimSpace(fact.Source) == "" {
			filtered = append(filtered, fact)
			continue
		}

		if factStart := strings.Index(maskedText, fact.Source); factStart >= 0 {
			factEnd := factStart + len(fact.Source)
			overlaps := false
			for _, red := range redSegments {
				if factStart < red.End && factEnd > red.Start {
					overlaps = true
					break
				}
			}
			if overlaps {
				logger.Info("Filtered RED-overlapping fact (exact)", "content", fact.Content)
				continue
			}
			filtered = append(filtered, fact)
			continue
		}

		normalizedSource := normalizeForMatch(fact.Source)
		if normalizedSource != "" {
			matched := false
			for _, red := range redSegments {
				if strings.Contains(normalizeForMatch(red.Text), normalizedSource) {
					matched = true
					break
				}
			}
			if matched {
				logger.Info("Filtered RED-overlapping fact (normalized)", "content", fact.Content)
				continue
			}
		}

		sourceWords := extractMeaningWords(fact.Source)
		if len(sourceWords) >= 2 {
			matched := false
			for _, red := range redSegments {
				hits := 0
				for _, w := range sourceWords {
					if strings.Contains(red.Text, w) {
						hits++
					}
				}
				if hits >= 2 {
					matched = true
					break
				}
			}
			if matched {
				logger.Info("Filtered RED-overlapping fact (semantic)", "content", fact.Content)
				continue
			}
		}

		filtered = append(filtered, fact)
	}

	return models.SituationAnalysis{
		Facts:            filtered,
		Intent:           original.Intent,
		PromptTokens:     original.PromptTokens,
		CompletionTokens: original.CompletionTokens,
	}
}

func normalizeForMatch(text string) string {
	return strings.ToLower(nonWordPattern.ReplaceAllString(text, ""))
}

func extractMeaningWords(text string) []string {
	var words []string
	for _, w := range koreanWordPattern.FindAllString(text, -1) {
		if !stopwords[w] {
			words = append(words, w)
		}
	}
	return words
}
