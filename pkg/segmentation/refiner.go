package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

// LLM refiner for long segments. Segments over the length threshold are
// batched into one gpt-4o-mini call that inserts ||| delimiters at semantic
// boundaries. Invalid or failed output keeps the originals.

const (
	refinerModel       = "gpt-4o-mini"
	refinerTemperature = 0.0
	refinerMaxTokens   = 600

	// DefaultRefineMinLength is the rune threshold above which a segment is
	// sent to the refiner.
	DefaultRefineMinLength = 30
)

const refinerSystemPrompt = "당신은 한국어 텍스트 의미 분절 전문가입니다.\n\n" +
	"각 항목이 둘 이상의 독립된 의미 단위(완결된 생각/주장/사실)를 포함할 때만 분리하세요.\n" +
	"하나의 의미 단위라면 길더라도 원문 그대로 출력하세요. 무리하게 쪼개지 마세요.\n\n" +
	"규칙:\n" +
	"1. 분리 시 ||| 를 삽입하세요\n" +
	"2. 원문 텍스트를 정확히 보존하세요 (한 글자도 변경/추가/삭제 금지)\n" +
	"3. {{TYPE_N}} 형식 플레이스홀더(예: {{DATE_1}}, {{PHONE_1}})는 절대 분리하지 마세요\n" +
	"4. 너무 짧은 조각(10자 미만)이 생기지 않도록 하세요\n" +
	"5. [N] 번호를 유지하고, 각 항목을 한 줄에 출력하세요"

var refinerEntryPattern = regexp.MustCompile(`^\[(\d+)]\s*(.+)`)

// RefineResult carries the refined segment list and the call's token usage.
type RefineResult struct {
	Segments         []models.Segment
	PromptTokens     int
	CompletionTokens int
}

// Refiner batches long segments into a single semantic-split LLM call.
type Refiner struct {
	client    llm.Client
	minLength int
	logger    *slog.Logger
}

// NewRefiner creates a refiner. minLength <= 0 uses the default threshold.
func NewRefiner(client llm.Client, minLength int, logger *slog.Logger) *Refiner {
	if minLength <= 0 {
		minLength = DefaultRefineMinLength
	}
	return &Refiner{client: client, minLength: minLength, logger: logger}
}

// Refine splits segments longer than the threshold. A failed call or invalid
// output degrades to the input segments unchanged.
func (r *Refiner) Refine(ctx context.Context, segments []models.Segment, maskedText string) RefineResult {
	var longIndices []int
	for i, seg := range segments {
		if utf8.RuneCountInString(seg.Text) > r.minLength {
			longIndices = append(longIndices, i)
		}
	}

	if len(longIndices) == 0 {
		r.logger.Debug("No segments over refine threshold, skipping LLM", "minLength", r.minLength)
		return RefineResult{Segments: segments}
	}

	r.logger.Info("Refining long segments via LLM",
		"count", len(longIndices), "minLength", r.minLength)

	var userParts []string
	for i, idx := range longIndices {
		userParts = append(userParts, fmt.Sprintf("[%d] %s", i+1, segments[idx].Text))
	}

	result, err := r.client.Call(ctx, llm.Request{
		Model:       refinerModel,
		System:      refinerSystemPrompt,
		User:        strings.Join(userParts, "\n"),
		Temperature: refinerTemperature,
		MaxTokens:   refinerMaxTokens,
	})
	if err != nil {
		r.logger.Warn("Segment refiner call failed, keeping original segments", "error", err)
		return RefineResult{Segments: segments}
	}

	splits := r.parseResponse(result.Content, segments, longIndices)
	refined := r.rebuildSegments(segments, longIndices, splits, maskedText)

	r.logger.Info("Segment refinement complete",
		"before", len(segments), "after", len(refined))
	return RefineResult{
		Segments:         refined,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}
}

func (r *Refiner) parseResponse(response string, segments []models.Segment, longIndices []int) [][]string {
	// originals as fallback per entry
	result := make([][]string, len(longIndices))
	for i, idx := range longIndices {
		result[i] = []string{segments[idx].Text}
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := refinerEntryPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		entryNum := 0
		fmt.Sscanf(m[1], "%d", &entryNum)
		content := strings.TrimSpace(m[2])

		if entryNum < 1 || entryNum > len(longIndices) {
			continue
		}
		entryIdx := entryNum - 1
		originalText := segments[longIndices[entryIdx]].Text

		var parts []string
		for _, p := range strings.Split(content, "|||") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}

		if len(parts) > 1 && r.validateParts(parts, originalText) {
			result[entryIdx] = parts
		} else if len(parts) == 1 {
			result[entryIdx] = []string{originalText}
		}
	}

	return result
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// validateParts checks the split parts appear in order in the original text,
// falling back to whitespace-normalized matching per part.
func (r *Refiner) validateParts(parts []string, originalText string) bool {
	searchFrom := 0
	for _, part := range parts {
		pos := indexFrom(originalText, part, searchFrom)
		if pos < 0 {
			normalized := whitespaceRun.ReplaceAllString(part, " ")
			pos = indexFrom(originalText, normalized, searchFrom)
			if pos < 0 {
				r.logger.Debug("Refined part not found in original", "offset", searchFrom)
				return false
			}
		}
		searchFrom = pos + len(part)
	}
	return true
}

func (r *Refiner) rebuildSegments(
	original []models.Segment,
	longIndices []int,
	splits [][]string,
	maskedText string,
) []models.Segment {
	var result []models.Segment
	longIdx := 0
	segID := 1

	for i, seg := range original {
		if longIdx < len(longIndices) && longIndices[longIdx] == i {
			searchFrom := seg.Start
			for _, part := range splits[longIdx] {
				pos := indexFrom(maskedText, part, searchFrom)
				if pos < 0 {
					pos = searchFrom
					r.logger.Warn("Split part not found in masked text, using fallback position", "pos", pos)
				}
				end := pos + len(part)
				if end > len(maskedText) {
					end = len(maskedText)
				}
				result = append(result, models.Segment{
					ID: fmt.Sprintf("T%d", segID), Text: part, Start: pos, End: end,
				})
				segID++
				searchFrom = end
			}
			longIdx++
		} else {
			result = append(result, models.Segment{
				ID: fmt.Sprintf("T%d", segID), Text: seg.Text, Start: seg.Start, End: seg.End,
			})
			segID++
		}
	}

	return result
}

func indexFrom(s, substr string, from int) int {
	if from < 0 || from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}
