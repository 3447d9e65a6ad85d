// Package cushion designs per-segment buffer strategies for YELLOW rewrites:
// one parallel LLM call per YELLOW segment, merged into a single system
// prompt block for the final model.
package cushion

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

const (
	temperature         = 0.3
	perSegmentMaxTokens = 800
	thinkingBudget      = 512
	maxPhraseRunes      = 15
)

const perSegmentSystemPrompt = "역할: 한국어 비즈니스 커뮤니케이션 쿠션 전략 설계 전문가\n\n" +
	"## 임무\n" +
	"주어진 YELLOW 세그먼트 1개에 대해 **쿠션 전략**을 설계하세요.\n" +
	"쿠션 = YELLOW 내용을 수신자가 받아들이기 쉽게 만드는 완충 표현/접근법입니다.\n\n" +
	"## 출력 형식\n" +
	"아래 키를 가진 flat JSON 객체 하나만 출력. 마크다운 코드블록/설명 없이 순수 JSON만.\n" +
	"{\n" +
	"  \"segment_id\": \"세그먼트 ID (예: T2)\",\n" +
	"  \"label\": \"세그먼트 라벨\",\n" +
	"  \"approach\": \"재작성 접근법 1문장 (예: 상황 주어로 전환하여 책임 분산)\",\n" +
	"  \"cushion_phrase\": \"실제 사용할 쿠션 표현 (예: 확인해 본 결과)\",\n" +
	"  \"avoid\": \"금지 표현/패턴 (예: 직접적 책임 지적)\"\n" +
	"}\n\n" +
	"## 쿠션 표현 제약 (필수)\n" +
	"- cushion_phrase는 **최대 15자**. 짧고 자연스러운 비즈니스 표현만.\n" +
	"- 과잉 보상 금지:\n" +
	"  ✗ 고어/과잉 사과: \"금할 길이 없습니다\", \"송구스럽기 그지없습니다\", \"면목이 없습니다\"\n" +
	"  ✗ 과잉 감정: \"진심으로 깊이\", \"마음이 무겁습니다\", \"죄송한 마음 금할 길이\"\n" +
	"  ✗ 과도한 겸양: \"감히 말씀드리기 어렵지만\", \"부족한 저로서는\"\n" +
	"- 자연스러운 예시: \"확인해 보니\" / \"살펴본 바로는\" / \"말씀드리면\" / \"관련하여\" / \"배경을 말씀드리면\"\n\n" +
	"## 라벨별 제약\n" +
	"- ACCOUNTABILITY: 상황/시스템 주어 전환. 직접 귀책 금지.\n" +
	"- SELF_JUSTIFICATION: 방어 프레임 제거. 업무 맥락만 사실로 전환.\n" +
	"- NEGATIVE_FEEDBACK: 긍정 인정 선행. 직접 거부/판단 금지.\n" +
	"- EMOTIONAL: 감정 삭제 금지, 간접 전환만. 과잉 공감 금지.\n" +
	"- EXCESS_DETAIL: 압축 중심. 쿠션은 최소화.\n\n" +
	"## 예시\n\n" +
	"입력: T2 | ACCOUNTABILITY | \"귀사 서버 설정이 이상해서 생긴거고\"\n\n" +
	"출력:\n" +
	"{\n" +
	"  \"segment_id\": \"T2\",\n" +
	"  \"label\": \"ACCOUNTABILITY\",\n" +
	"  \"approach\": \"상황/시스템 주어로 전환, 비난 제거\",\n" +
	"  \"cushion_phrase\": \"확인해 본 결과\",\n" +
	"  \"avoid\": \"직접 귀책 지목, 비난 어조\"\n" +
	"}\n\n" +
	"## 주의사항\n" +
	"- 화자 의도(SA intent)를 훼손하지 않는 범위에서 쿠션 적용\n" +
	"- 쿠션이 본문보다 길어지면 안 됨 — 쿠션은 보조, 본문 사실이 주연"

// SegmentStrategy is one per-YELLOW rewrite guideline.
type SegmentStrategy struct {
	SegmentID     string `json:"segment_id"`
	Label         string `json:"label"`
	Approach      string `json:"approach"`
	CushionPhrase string `json:"cushion_phrase"`
	Avoid         string `json:"avoid"`
}

// Strategy is the merged cushion guidance for one request.
type Strategy struct {
	OverallTone      string
	Strategies       []SegmentStrategy
	TransitionNotes  string
	PromptTokens     int
	CompletionTokens int
}

// IsEmpty reports whether no per-segment strategy survived.
func (s *Strategy) IsEmpty() bool {
	return s == nil || len(s.Strategies) == 0
}

var labelToneMap = map[string]string{
	"ACCOUNTABILITY":     "상황 중심 건설적 톤",
	"NEGATIVE_FEEDBACK":  "긍정 전환 요청 톤",
	"SELF_JUSTIFICATION": "사실 기반 간결 톤",
	"EMOTIONAL":          "공감 기반 절제된 톤",
	"EXCESS_DETAIL":      "핵심 위주 간결 톤",
}

var labelTonePriority = []string{
	"ACCOUNTABILITY", "NEGATIVE_FEEDBACK", "SELF_JUSTIFICATION",
	"EMOTIONAL", "EXCESS_DETAIL",
}

// Strategist issues the parallel per-YELLOW calls.
type Strategist struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// NewStrategist creates a strategist. model is typically
// gemini-2.5-flash-lite.
func NewStrategist(client llm.Client, model string, logger *slog.Logger) *Strategist {
	return &Strategist{client: client, model: model, logger: logger}
}

// Generate builds strategies for every YELLOW segment. Per-segment failures
// are dropped; no YELLOW segments or all calls failing yields an empty
// strategy, never an error.
func (g *Strategist) Generate(
	ctx context.Context,
	saResult models.SituationAnalysis,
	labeled []models.LabeledSegment,
	senderInfo string,
) *Strategy {
	var yellowSegments []models.LabeledSegment
	for _, ls := range labeled {
		if ls.Label.Tier() == models.TierYellow {
			yellowSegments = append(yellowSegments, ls)
		}
	}
	if len(yellowSegments) == 0 {
		g.logger.Info("No YELLOW segments, skipping cushion strategy")
		return &Strategy{}
	}

	type singleResult struct {
		strategy         SegmentStrategy
		promptTokens     int
		completionTokens int
	}

	var mu sync.Mutex
	results := make([]*singleResult, len(yellowSegments))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, seg := range yellowSegments {
		eg.Go(func() error {
			strategy, promptTokens, completionTokens, ok := g.generateSingle(egCtx, saResult, seg, labeled, senderInfo)
			if ok {
				mu.Lock()
				results[i] = &singleResult{strategy, promptTokens, completionTokens}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	merged := &Strategy{}
	for _, r := range results {
		if r == nil {
			continue
		}
		merged.Strategies = append(merged.Strategies, r.strategy)
		merged.PromptTokens += r.promptTokens
		merged.CompletionTokens += r.completionTokens
	}

	if len(merged.Strategies) == 0 {
		g.logger.Warn("All per-segment cushion calls failed, returning empty")
		return &Strategy{}
	}

	merged.OverallTone = deriveOverallTone(merged.Strategies)
	merged.TransitionNotes = deriveTransitionNotes(merged.Strategies)

	g.logger.Info("Cushion strategies generated",
		"succeeded", len(merged.Strategies), "yellow", len(yellowSegments))
	return merged
}

func (g *Strategist) generateSingle(
	ctx context.Context,
	saResult models.SituationAnalysis,
	target models.LabeledSegment,
	all []models.LabeledSegment,
	senderInfo string,
) (SegmentStrategy, int, int, bool) {
	userMessage := buildPerSegmentUserMessage(saResult, target, all, senderInfo)

	budget := int32(thinkingBudget)
	result, err := g.client.Call(ctx, llm.Request{
		Model:          g.model,
		System:         perSegmentSystemPrompt,
		User:           userMessage,
		Temperature:    temperature,
		MaxTokens:      perSegmentMaxTokens,
		ThinkingBudget: &budget,
	})
	if err != nil {
		g.logger.Warn("Cushion call failed", "segmentId", target.SegmentID, "error", err)
		return SegmentStrategy{}, 0, 0, false
	}

	raw := strings.TrimSpace(result.Content)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw, "\n"); idx >= 0 {
			raw = raw[idx+1:]
		} else {
			raw = raw[3:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}

	var strategy SegmentStrategy
	if err := json.Unmarshal([]byte(raw), &strategy); err != nil {
		g.logger.Warn("Cushion parse failed", "segmentId", target.SegmentID, "error", err)
		return SegmentStrategy{}, 0, 0, false
	}

	if strategy.SegmentID == "" || strategy.Label == "" || strategy.Approach == "" ||
		strategy.CushionPhrase == "" || strategy.Avoid == "" {
		g.logger.Warn("Cushion strategy missing keys", "segmentId", target.SegmentID)
		return SegmentStrategy{}, 0, 0, false
	}

	if phrase := []rune(strategy.CushionPhrase); len(phrase) > maxPhraseRunes {
		strategy.CushionPhrase = string(phrase[:maxPhraseRunes])
	}

	return strategy, result.PromptTokens, result.CompletionTokens, true
}

func buildPerSegmentUserMessage(
	saResult models.SituationAnalysis,
	target models.LabeledSegment,
	all []models.LabeledSegment,
	senderInfo string,
) string {
	var b strings.Builder

	b.WriteString("## 상황 분석\n")
	for _, f := range saResult.Facts {
		b.WriteString("- " + f.Content + "\n")
	}
	if saResult.Intent != "" {
		b.WriteString("의도: " + saResult.Intent + "\n")
	}
	if senderInfo != "" {
		b.WriteString("발신자: " + senderInfo + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## 대상 YELLOW 세그먼트\n")
	b.WriteString("- " + target.SegmentID + " | " + string(target.Label) + " | " + target.Text + "\n\n")

	sorted := make([]models.LabeledSegment, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	targetIdx := -1
	for i, s := range sorted {
		if s.SegmentID == target.SegmentID {
			targetIdx = i
			break
		}
	}
	if targetIdx >= 0 {
		var neighbors []models.LabeledSegment
		if targetIdx > 0 {
			neighbors = append(neighbors, sorted[targetIdx-1])
		}
		if targetIdx < len(sorted)-1 {
			neighbors = append(neighbors, sorted[targetIdx+1])
		}
		if len(neighbors) > 0 {
			b.WriteString("## 인접 세그먼트 (맥락용)\n")
			for _, seg := range neighbors {
				text := seg.Text
				if seg.Label.Tier() == models.TierRed {
					text = "[삭제됨]"
				}
				b.WriteString("- " + seg.SegmentID + " | " + string(seg.Label.Tier()) + "/" +
					string(seg.Label) + " | " + text + "\n")
			}
		}
	}

	return b.String()
}

func deriveOverallTone(strategies []SegmentStrategy) string {
	present := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		present[s.Label] = true
	}
	for _, label := range labelTonePriority {
		if present[label] {
			return labelToneMap[label]
		}
	}
	return "정중하고 명확한 전달 톤"
}

func deriveTransitionNotes(strategies []SegmentStrategy) string {
	if len(strategies) < 2 {
		return ""
	}
	unique := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		unique[s.Label] = true
	}
	if len(unique) >= 2 {
		return "서로 다른 유형의 YELLOW 세그먼트가 있으므로 각 쿠션 표현이 중복되지 않도록 다양하게 전환하세요."
	}
	return "동일 유형 YELLOW 세그먼트가 반복되므로 쿠션 표현에 변화를 주어 단조로움을 피하세요."
}

// FormatBlock renders the strategy as a final model system prompt block.
func (s *Strategy) FormatBlock() string {
	if s.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n## 쿠션 전략 (사전 분석 기반 — 반드시 적용)")
	if s.OverallTone != "" {
		b.WriteString("\n전체 톤: " + s.OverallTone)
	}

	b.WriteString("\n\n### YELLOW 세그먼트별 쿠션 지침")
	for _, strategy := range s.Strategies {
		b.WriteString("\n**" + strategy.SegmentID + " (" + strategy.Label + ")**:")
		b.WriteString("\n  접근: " + strategy.Approach)
		b.WriteString("\n  쿠션: \"" + strategy.CushionPhrase + "\"")
		b.WriteString("\n  금지: " + strategy.Avoid)
	}

	if s.TransitionNotes != "" {
		b.WriteString("\n\n전환 힌트: " + s.TransitionNotes)
	}

	b.WriteString("\n\n### 쿠션 적용 규칙" +
		"\n- 위 쿠션 전략을 YELLOW 세그먼트 재작성 시 반드시 반영" +
		"\n- 쿠션은 YELLOW 시작부에 자연스럽게 삽입. 쿠션이 본문보다 길면 안 됨" +
		"\n- 종결어미 반복 금지: 쿠션 문장과 직후 사실 문장의 어미가 동일하면 변형" +
		"\n- \"습니다\" 연속 3회 금지. 중간 문장을 명사형/연결형으로 전환")
	return b.String()
}
