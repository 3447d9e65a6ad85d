// Package gating holds the optional pipeline components that run only when
// their firing condition is met: the identity lock booster and the metadata
// mismatch check.
package gating

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

const (
	boosterTemperature = 0.2
	boosterMaxTokens   = 300
)

// The booster catches identifiers the masking regexes cannot: proper nouns,
// product names, filenames. It runs without a thinking budget for speed.
const boosterSystemPrompt = "당신은 텍스트에서 변경 불가능한 고유 표현을 추출하는 전문가입니다.\n" +
	"정규식으로 잡을 수 없는, 대체하면 의미가 달라지는 고유 식별자만 찾습니다.\n\n" +
	"이미 마스킹된 {{TYPE_N}} 형식의 플레이스홀더(예: {{DATE_1}}, {{PHONE_1}})는 무시하세요.\n" +
	"날짜, 시간, 전화번호, 이메일, URL, 금액 등은 이미 처리되었으므로 제외하세요.\n\n" +
	"## 추출 대상 (고유 식별자만)\n" +
	"- 사람/회사/기관의 고유 이름 (예: 김민수, ㈜한빛소프트)\n" +
	"- 프로젝트/제품/서비스 고유 명칭 (예: Project Alpha, 스터디플랜 v2)\n" +
	"- 파일명, 코드명, 시스템명 (예: report_final.xlsx, ERP)\n\n" +
	"## 제외 대상 (절대 추출 금지)\n" +
	"- 일반 명사, 보통 명사, 일상 어휘\n" +
	"- 관계/역할 호칭 (학부모, 담임, 교수, 팀장, 고객, 선생님 등)\n" +
	"- 메타데이터에 이미 명시된 정보 (받는 사람, 상황 등)\n" +
	"- 누구나 쓸 수 있는 범용 단어\n\n" +
	"기준: \"이 단어를 다른 말로 바꾸면 지칭 대상이 달라지는가?\" → Yes만 추출.\n\n" +
	"변경 불가 표현을 한 줄에 하나씩, \"- \" 접두사로 작성하세요.\n" +
	"예:\n" +
	"- 김민수\n" +
	"- report_final.xlsx\n" +
	"- ㈜한빛소프트\n\n" +
	"예시 (추출 없음):\n" +
	"원문: 내일까지 보고서 제출 부탁드립니다\n" +
	"출력: 없음\n\n" +
	"변경 불가 표현이 없으면 \"없음\"이라고만 작성하세요."

// BoosterResult carries the newly found semantic spans only.
type BoosterResult struct {
	ExtraSpans       []models.LockedSpan
	PromptTokens     int
	CompletionTokens int
}

// Booster extracts semantic locked spans the regex pass missed.
type Booster struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

func NewBooster(client llm.Client, model string, logger *slog.Logger) *Booster {
	return &Booster{client: client, model: model, logger: logger}
}

// Boost asks the model for identity expressions and locates them in the
// normalized text, skipping anything that overlaps an existing span.
func (b *Booster) Boost(ctx context.Context, normalizedText string, currentSpans []models.LockedSpan, maskedText string) (*BoosterResult, error) {
	result, err := b.client.Call(ctx, llm.Request{
		Model:       b.model,
		System:      boosterSystemPrompt,
		User:        "원문:\n" + maskedText,
		Temperature: boosterTemperature,
		MaxTokens:   boosterMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("identity booster call: %w", err)
	}

	newSpans := parseSemanticSpans(normalizedText, currentSpans, result.Content)
	if len(newSpans) > 0 {
		b.logger.Info("Identity booster found semantic spans", "count", len(newSpans))
	}

	return &BoosterResult{
		ExtraSpans:       newSpans,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

func parseSemanticSpans(normalizedText string, existingSpans []models.LockedSpan, output string) []models.LockedSpan {
	var result []models.LockedSpan
	if strings.TrimSpace(output) == "" || strings.TrimSpace(output) == "없음" {
		return result
	}

	allKnown := make([]models.LockedSpan, len(existingSpans))
	copy(allKnown, existingSpans)
	nextIndex := len(existingSpans)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}

		text := strings.TrimSpace(line[2:])
		if utf8.RuneCountInString(text) < 2 {
			continue
		}

		for _, pos := range findBoundedOccurrences(normalizedText, text) {
			endPos := pos + len(text)

			overlaps := false
			for _, s := range allKnown {
				if pos < s.End && endPos > s.Start {
					overlaps = true
					break
				}
			}
			if overlaps {
				continue
			}

			span := models.LockedSpan{
				Index:       nextIndex,
				Original:    text,
				Placeholder: fmt.Sprintf("{{%s_%d}}", models.SpanSemantic, nextIndex),
				Type:        models.SpanSemantic,
				Start:       pos,
				End:         endPos,
			}
			result = append(result, span)
			allKnown = append(allKnown, span)
			nextIndex++
		}
	}
	return result
}

// findBoundedOccurrences returns the byte offsets of every occurrence of
// needle in s whose edges sit on word boundaries. Korean edges must not touch
// another Hangul syllable or jamo; Latin/digit edges use the usual \b rule.
func findBoundedOccurrences(s, needle string) []int {
	var positions []int

	firstRune, _ := utf8.DecodeRuneInString(needle)
	lastRune, _ := utf8.DecodeLastRuneInString(needle)

	searchFrom := 0
	for searchFrom <= len(s)-len(needle) {
		idx := strings.Index(s[searchFrom:], needle)
		if idx < 0 {
			break
		}
		pos := searchFrom + idx
		end := pos + len(needle)

		if boundaryOK(s, pos, end, firstRune, lastRune) {
			positions = append(positions, pos)
			searchFrom = end
		} else {
			_, size := utf8.DecodeRuneInString(s[pos:])
			searchFrom = pos + size
		}
	}
	return positions
}

func boundaryOK(s string, pos, end int, firstRune, lastRune rune) bool {
	if pos > 0 {
		before, _ := utf8.DecodeLastRuneInString(s[:pos])
		if isKoreanRune(firstRune) {
			if isKoreanRune(before) {
				return false
			}
		} else if isWordRune(firstRune) && isWordRune(before) {
			return false
		}
	}
	if end < len(s) {
		after, _ := utf8.DecodeRuneInString(s[end:])
		if isKoreanRune(lastRune) {
			if isKoreanRune(after) {
				return false
			}
		} else if isWordRune(lastRune) && isWordRune(after) {
			return false
		}
	}
	return true
}

func isKoreanRune(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7A3) ||
		(r >= 0x3131 && r <= 0x314E) ||
		(r >= 0x314F && r <= 0x3163)
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
