// Package validation runs rule-based checks over the final model output.
// Issues are collected, never thrown; ERROR-severity issues fail the result
// and drive the pipeline's single retry.
package validation

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/template"
)

const maxAbsoluteOutputLength = 6000

var emojiPattern = regexp.MustCompile("[" +
	"\\x{1F600}-\\x{1F64F}" +
	"\\x{1F300}-\\x{1F5FF}" +
	"\\x{1F680}-\\x{1F6FF}" +
	"\\x{1F1E0}-\\x{1F1FF}" +
	"\\x{FE00}-\\x{FE0F}" +
	"\\x{1F3FB}-\\x{1F3FF}" +
	"\\x{200D}" +
	"\\x{1F900}-\\x{1F9FF}" +
	"\\x{1FA00}-\\x{1FA6F}" +
	"\\x{1FA70}-\\x{1FAFF}" +
	"\\x{2600}-\\x{26FF}" +
	"\\x{2700}-\\x{27BF}" +
	"\\x{231A}-\\x{231B}" +
	"\\x{23E9}-\\x{23F3}" +
	"\\x{23F8}-\\x{23FA}" +
	"\\x{25AA}-\\x{25AB}" +
	"\\x{25B6}\\x{25C0}" +
	"\\x{25FB}-\\x{25FE}" +
	"\\x{2614}-\\x{2615}" +
	"\\x{2648}-\\x{2653}" +
	"\\x{267F}\\x{2693}" +
	"\\x{26A1}\\x{26AA}-\\x{26AB}" +
	"\\x{26BD}-\\x{26BE}" +
	"\\x{26C4}-\\x{26C5}" +
	"\\x{26CE}-\\x{26D4}" +
	"\\x{26EA}\\x{26F2}-\\x{26F3}" +
	"\\x{26F5}\\x{26FA}\\x{26FD}" +
	"\\x{2934}-\\x{2935}" +
	"\\x{2B05}-\\x{2B07}" +
	"\\x{2B1B}-\\x{2B1C}" +
	"\\x{2B50}\\x{2B55}" +
	"\\x{3030}\\x{303D}\\x{3297}\\x{3299}" +
	"]")

// LLM meta-commentary that must never leak into the user-facing text.
var forbiddenPhrases = []string{
	"변환 결과",
	"다음과 같이",
	"도움이 되셨으면",
	"변환해 드리겠",
	"아래와 같이",
	"다음은 변환",
	"변환된 텍스트",
	"이렇게 변환",
	"존댓말로 바꾸",
	"다듬어 보았",
}

var (
	endingPattern = regexp.MustCompile(`(?m)[가-힣]*?(드리겠습니다|겠습니다|드립니다|할게요|합니다|됩니다|됩니까|십시오|습니다|니다|세요|에요|해요|예요|네요|군요|는데요|거든요|잖아요|지요|죠|요)[.!?]?\s*$`)

	bareNumberPattern = regexp.MustCompile(`\d{3,}`)
	coreNumberPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d{3,}`)
	safeNumberContext = regexp.MustCompile(`\d{2,4}년|제\d+|\d+호|\d+층|\d+차|\d+번째`)

	koreanNumberPattern = regexp.MustCompile(`(?:약\s*)?(?:\d+)?(?:십|백|천|만|억|조)\s*(?:십|백|천|만|억|조)?\s*(?:원|명|개|건|일|시간|분|배)`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[./-]\d{1,2}(?:[./-]\d{1,2})?`),
		regexp.MustCompile(`\d{1,2}월\s*\d{1,2}일`),
		regexp.MustCompile(`\d{1,2}:\d{2}`),
	}

	s2EffortPattern = regexp.MustCompile(`확인|점검|검토|살펴|조사|파악|내부.*결과|담당.*확인|로그.*기준`)

	informalConjunctionPattern = regexp.MustCompile(`(?:^|[^가-힣])(어쨌든|아무튼|암튼|걍|근데)`)

	koreanWordPattern = regexp.MustCompile(`[가-힣]{2,}`)
	nonWordPattern    = regexp.MustCompile(`[^가-힣a-zA-Z0-9]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	dateSeparator     = regexp.MustCompile(`[./-]`)
	digitRun          = regexp.MustCompile(`\d+`)
)

// Phrases written from the recipient's perspective instead of the sender's.
var perspectivePhrases = []string{
	"확인해 드리겠습니다",
	"접수되었습니다",
	"처리해 드리겠습니다",
	"안내해 드리겠습니다",
	"도와드리겠습니다",
	"답변드리겠습니다",
	"알려드리겠습니다",
	"연락드리겠습니다",
	"보내드리겠습니다",
	"전달드리겠습니다",
	"안내 드리겠습니다",
	"처리 드리겠습니다",
}

var censorshipTraces = []string{
	"[삭제됨]", "[REDACTED", "삭제된 내용", "제거된 부분", "삭제된 부분",
	"일부 내용을 삭제", "부적절한 내용이 제거",
}

var stopwords = map[string]bool{
	"은": true, "는": true, "이": true, "가": true, "을": true, "를": true,
	"에": true, "의": true, "와": true, "과": true,
	"로": true, "도": true, "만": true, "까지": true, "부터": true,
	"에서": true, "처럼": true, "보다": true,
	"그리고": true, "하지만": true, "또한": true, "그래서": true,
	"그런데": true, "따라서": true,
	"문제": true, "확인": true, "요청": true, "부분": true, "경우": true,
	"상황": true, "내용": true,
	"것": true, "수": true, "등": true, "및": true,
	"위해": true, "대해": true, "통해": true,
}

// Input carries everything the validator inspects for one final output.
// EffectiveSections and LabeledSegments are optional; when both are set the
// template-aware S2 presence check runs too. An empty RawLLMOutput skips the
// locked-span check.
type Input struct {
	FinalText          string
	OriginalText       string
	Spans              []models.LockedSpan
	RawLLMOutput       string
	Persona            models.Persona
	RedactionMap       map[string]string
	YellowSegmentTexts []string
	EffectiveSections  []template.Section
	LabeledSegments    []models.LabeledSegment
}

// Validate runs every rule against the final output and returns the
// aggregated result.
func Validate(in Input, logger *slog.Logger) models.ValidationResult {
	var issues []models.ValidationIssue

	issues = checkEmoji(in.FinalText, issues)
	issues = checkForbiddenPhrases(in.FinalText, issues)
	issues = checkHallucinatedFacts(in.FinalText, in.OriginalText, in.Spans, issues)
	issues = checkEndingRepetition(in.FinalText, issues)
	issues = checkLengthOverexpansion(in.FinalText, in.OriginalText, issues)
	issues = checkPerspectiveError(in.FinalText, in.Persona, issues)
	issues = checkLockedSpanMissing(in.RawLLMOutput, in.FinalText, in.Spans, issues)
	issues = checkRedactedReentry(in.FinalText, in.RedactionMap, issues)
	issues = checkCoreNumberMissing(in.FinalText, in.OriginalText, in.Spans, issues)
	issues = checkCoreDateMissing(in.FinalText, in.OriginalText, in.Spans, issues)
	issues = checkSoftenContentDropped(in.FinalText, in.YellowSegmentTexts, issues)
	issues = checkInformalConjunction(in.FinalText, issues)
	issues = checkSectionS2Missing(in.FinalText, in.EffectiveSections, in.LabeledSegments, issues)

	result := models.ValidationResult{Issues: issues}
	if len(issues) > 0 {
		errCount := len(result.Errors())
		logger.Info("Validation completed",
			"issues", len(issues),
			"errors", errCount,
			"warnings", len(issues)-errCount)
	}
	return result
}

// BuildLockedSpanRetryHint builds the retry instruction appended to the user
// message when LOCKED_SPAN_MISSING errors fired.
func BuildLockedSpanRetryHint(issues []models.ValidationIssue, lockedSpans []models.LockedSpan) string {
	missing := make(map[string]bool)
	for _, issue := range issues {
		if issue.Type == models.IssueLockedSpanMissing && issue.Severity == models.SeverityError && issue.MatchedText != "" {
			missing[issue.MatchedText] = true
		}
	}
	if len(missing) == 0 || len(lockedSpans) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n[고정 표현 누락 오류] 다음 고정 표현이 출력에 반드시 포함되어야 합니다:\n")
	for _, span := range lockedSpans {
		if missing[span.Placeholder] {
			fmt.Fprintf(&b, "- %s → \"%s\"\n", span.Placeholder, span.Original)
		}
	}
	b.WriteString("위 플레이스홀더를 변환 결과에 반드시 자연스럽게 포함하세요. 절대 누락하지 마세요.")
	return b.String()
}

func checkEmoji(output string, issues []models.ValidationIssue) []models.ValidationIssue {
	for _, m := range emojiPattern.FindAllString(output, -1) {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueEmoji,
			Severity:    models.SeverityError,
			Message:     fmt.Sprintf("이모지 감지: \"%s\"", m),
			MatchedText: m,
		})
	}
	return issues
}

func checkForbiddenPhrases(output string, issues []models.ValidationIssue) []models.ValidationIssue {
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(output, phrase) {
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueForbiddenPhrase,
				Severity:    models.SeverityError,
				Message:     fmt.Sprintf("금지 구문 감지: \"%s\"", phrase),
				MatchedText: phrase,
			})
		}
	}
	return issues
}

func checkHallucinatedFacts(output, originalText string, spans []models.LockedSpan, issues []models.ValidationIssue) []models.ValidationIssue {
	for _, loc := range bareNumberPattern.FindAllStringIndex(output, -1) {
		found := output[loc[0]:loc[1]]

		if strings.Contains(originalText, found) {
			continue
		}
		inSpans := false
		for _, s := range spans {
			if strings.Contains(s.Original, found) {
				inSpans = true
				break
			}
		}
		if inSpans {
			continue
		}

		// Years, ordinals, room/floor numbers carry no factual payload.
		context := contextAround(output, loc[0], loc[1], 2, 3)
		if safeNumberContext.MatchString(context) {
			continue
		}

		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueHallucinatedFact,
			Severity:    models.SeverityWarning,
			Message:     fmt.Sprintf("원문에 없는 숫자/날짜 감지: \"%s\"", found),
			MatchedText: found,
		})
	}

	compactOriginal := strings.ReplaceAll(originalText, " ", "")
	for _, found := range koreanNumberPattern.FindAllString(output, -1) {
		if strings.Contains(originalText, found) {
			continue
		}
		core := strings.TrimLeft(whitespaceRun.ReplaceAllString(found, ""), "약")
		if strings.Contains(compactOriginal, core) {
			continue
		}
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueHallucinatedFact,
			Severity:    models.SeverityWarning,
			Message:     fmt.Sprintf("원문에 없는 한국어 수량 표현 감지: \"%s\"", found),
			MatchedText: found,
		})
	}
	return issues
}

func checkEndingRepetition(output string, issues []models.ValidationIssue) []models.ValidationIssue {
	var endings []string
	for _, m := range endingPattern.FindAllStringSubmatch(output, -1) {
		endings = append(endings, m[1])
	}

	for i := 0; i+2 < len(endings); i++ {
		if endings[i] == endings[i+1] && endings[i] == endings[i+2] {
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueEndingRepetition,
				Severity:    models.SeverityWarning,
				Message:     fmt.Sprintf("동일 종결어미 3회 연속: \"%s\"", endings[i]),
				MatchedText: endings[i],
			})
			break
		}
	}

	if count := strings.Count(output, "드리겠습니다"); count >= 3 {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueEndingRepetition,
			Severity:    models.SeverityWarning,
			Message:     fmt.Sprintf("\"드리겠습니다\" %d회 사용 (3회 이상)", count),
			MatchedText: "드리겠습니다",
		})
	}
	return issues
}

func checkLengthOverexpansion(output, originalText string, issues []models.ValidationIssue) []models.ValidationIssue {
	outLen := utf8.RuneCountInString(output)
	origLen := utf8.RuneCountInString(originalText)

	if origLen >= 20 && outLen > origLen*3 {
		issues = append(issues, models.ValidationIssue{
			Type:     models.IssueLengthOverexpansion,
			Severity: models.SeverityWarning,
			Message: fmt.Sprintf("출력 길이 과확장: 입력 %d자 → 출력 %d자 (%.1f배)",
				origLen, outLen, float64(outLen)/float64(origLen)),
		})
	}

	if outLen > maxAbsoluteOutputLength {
		issues = append(issues, models.ValidationIssue{
			Type:     models.IssueLengthOverexpansion,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("출력 길이 절대 상한 초과: %d자 (상한: %d자)", outLen, maxAbsoluteOutputLength),
		})
	}
	return issues
}

func checkPerspectiveError(output string, persona models.Persona, issues []models.ValidationIssue) []models.ValidationIssue {
	// Sender-side service phrasing is natural toward clients and officials.
	if persona == models.PersonaClient || persona == models.PersonaOfficial {
		return issues
	}

	for _, phrase := range perspectivePhrases {
		if strings.Contains(output, phrase) {
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssuePerspectiveError,
				Severity:    models.SeverityWarning,
				Message:     fmt.Sprintf("관점 오류 힌트: \"%s\" (받는 사람이 %s일 때 부적절)", phrase, persona),
				MatchedText: phrase,
			})
		}
	}
	return issues
}

func checkLockedSpanMissing(rawLLMOutput, finalText string, spans []models.LockedSpan, issues []models.ValidationIssue) []models.ValidationIssue {
	if len(spans) == 0 || rawLLMOutput == "" {
		return issues
	}

	for _, span := range spans {
		if strings.Contains(rawLLMOutput, span.Placeholder) {
			continue
		}

		flexible := regexp.MustCompile(fmt.Sprintf(`\{\{\s*%s[-_]?%d\s*\}\}`, span.Type, span.Index))
		if flexible.MatchString(rawLLMOutput) {
			continue
		}

		if strings.Contains(rawLLMOutput, span.Original) {
			continue
		}
		if finalText != "" && strings.Contains(finalText, span.Original) {
			continue
		}

		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueLockedSpanMissing,
			Severity:    models.SeverityError,
			Message:     fmt.Sprintf("LockedSpan 누락: %s (\"%s\")", span.Placeholder, span.Original),
			MatchedText: span.Placeholder,
		})
	}
	return issues
}

func checkRedactedReentry(finalText string, redactionMap map[string]string, issues []models.ValidationIssue) []models.ValidationIssue {
	if len(redactionMap) > 0 {
		normalizedOutput := normalizeForReentry(finalText)
		for marker, originalText := range redactionMap {
			if utf8.RuneCountInString(originalText) < 6 {
				continue
			}
			normalizedOriginal := normalizeForReentry(originalText)
			if utf8.RuneCountInString(normalizedOriginal) >= 4 && strings.Contains(normalizedOutput, normalizedOriginal) {
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueRedactedReentry,
					Severity:    models.SeverityError,
					Message:     fmt.Sprintf("제거된 내용 재유입: \"%s...\"", truncateRunes(originalText, 30)),
					MatchedText: marker,
				})
			}
		}

		for marker, originalText := range redactionMap {
			var distinctive []string
			for _, w := range extractMeaningWords(originalText) {
				if utf8.RuneCountInString(w) >= 3 {
					distinctive = append(distinctive, w)
				}
			}
			if len(distinctive) < 2 {
				continue
			}
			matchCount := 0
			for _, w := range distinctive {
				if strings.Contains(finalText, w) {
					matchCount++
				}
			}
			if matchCount >= 2 {
				issues = append(issues, models.ValidationIssue{
					Type:     models.IssueRedactedReentry,
					Severity: models.SeverityWarning,
					Message: fmt.Sprintf("제거된 내용 의미적 재유입 의심: \"%s...\" (키워드 %d개 일치)",
						truncateRunes(originalText, 30), matchCount),
					MatchedText: marker,
				})
			}
		}
	}

	for _, trace := range censorshipTraces {
		if strings.Contains(finalText, trace) {
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueRedactionTrace,
				Severity:    models.SeverityError,
				Message:     fmt.Sprintf("검열 흔적 문구 감지: \"%s\"", trace),
				MatchedText: trace,
			})
		}
	}
	return issues
}

func checkCoreNumberMissing(finalText, originalText string, spans []models.LockedSpan, issues []models.ValidationIssue) []models.ValidationIssue {
	lockedNumbers := make(map[string]bool)
	for _, span := range spans {
		for _, m := range coreNumberPattern.FindAllString(span.Original, -1) {
			lockedNumbers[strings.ReplaceAll(m, ",", "")] = true
		}
	}

	compactFinal := strings.ReplaceAll(finalText, ",", "")
	for _, loc := range coreNumberPattern.FindAllStringIndex(originalText, -1) {
		number := originalText[loc[0]:loc[1]]
		normalized := strings.ReplaceAll(number, ",", "")
		if lockedNumbers[normalized] {
			continue
		}

		if strings.Contains(finalText, number) || strings.Contains(finalText, normalized) {
			continue
		}
		if strings.Contains(compactFinal, normalized) {
			continue
		}

		context := contextAround(originalText, loc[0], loc[1], 8, 8)
		if safeNumberContext.MatchString(context) {
			continue
		}

		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueCoreNumberMissing,
			Severity:    models.SeverityWarning,
			Message:     fmt.Sprintf("원문 숫자 누락: \"%s\"", number),
			MatchedText: number,
		})
	}
	return issues
}

func checkCoreDateMissing(finalText, originalText string, spans []models.LockedSpan, issues []models.ValidationIssue) []models.ValidationIssue {
	normalizedOutput := dateSeparator.ReplaceAllString(finalText, "-")

	for _, pattern := range datePatterns {
		for _, dateStr := range pattern.FindAllString(originalText, -1) {
			inSpans := false
			for _, span := range spans {
				if strings.Contains(span.Original, dateStr) {
					inSpans = true
					break
				}
			}
			if inSpans {
				continue
			}

			if strings.Contains(finalText, dateStr) {
				continue
			}

			normalizedDate := dateSeparator.ReplaceAllString(dateStr, "-")
			if strings.Contains(normalizedOutput, normalizedDate) {
				continue
			}

			// Same numeric sequence in a different surface form still counts.
			dateNums := extractDateNumbers(dateStr)
			numericMatch := false
			for _, outDate := range pattern.FindAllString(finalText, -1) {
				if slices.Equal(extractDateNumbers(outDate), dateNums) {
					numericMatch = true
					break
				}
			}
			if numericMatch {
				continue
			}

			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueCoreDateMissing,
				Severity:    models.SeverityWarning,
				Message:     fmt.Sprintf("원문 날짜/시간 누락: \"%s\"", dateStr),
				MatchedText: dateStr,
			})
		}
	}
	return issues
}

func checkSoftenContentDropped(finalText string, yellowSegmentTexts []string, issues []models.ValidationIssue) []models.ValidationIssue {
	for _, segText := range yellowSegmentTexts {
		if utf8.RuneCountInString(segText) < 15 {
			continue
		}

		meaningWords := extractMeaningWords(segText)
		if len(meaningWords) < 2 {
			continue
		}

		hasWordMatch := false
		for _, word := range meaningWords {
			if containsWithParticleVariation(finalText, word) {
				hasWordMatch = true
				break
			}
		}
		if hasWordMatch {
			continue
		}

		hasNumberMatch := false
		for _, num := range bareNumberPattern.FindAllString(segText, -1) {
			if strings.Contains(finalText, num) {
				hasNumberMatch = true
				break
			}
		}
		if hasNumberMatch {
			continue
		}

		issues = append(issues, models.ValidationIssue{
			Type:     models.IssueSoftenContentDropped,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("SOFTEN 대상 내용 완전 소실: \"%s...\"", truncateRunes(segText, 30)),
		})
	}
	return issues
}

func checkInformalConjunction(finalText string, issues []models.ValidationIssue) []models.ValidationIssue {
	seen := make(map[string]bool)
	for _, m := range informalConjunctionPattern.FindAllStringSubmatch(finalText, -1) {
		word := m[1]
		if seen[word] {
			continue
		}
		seen[word] = true
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueInformalConjunction,
			Severity:    models.SeverityWarning,
			Message:     fmt.Sprintf("구어체 접속사 감지: \"%s\"", word),
			MatchedText: word,
		})
	}
	return issues
}

func checkSectionS2Missing(finalText string, effectiveSections []template.Section, labeledSegments []models.LabeledSegment, issues []models.ValidationIssue) []models.ValidationIssue {
	if effectiveSections == nil || labeledSegments == nil {
		return issues
	}
	if !slices.Contains(effectiveSections, template.SectionOurEffort) {
		return issues
	}

	hasRelevantLabels := false
	for _, ls := range labeledSegments {
		if ls.Label == models.LabelAccountability || ls.Label == models.LabelNegativeFeedback {
			hasRelevantLabels = true
			break
		}
	}
	if !hasRelevantLabels {
		return issues
	}

	if !s2EffortPattern.MatchString(finalText) {
		issues = append(issues, models.ValidationIssue{
			Type:     models.IssueSectionS2Missing,
			Severity: models.SeverityWarning,
			Message:  "S2(내부 확인/점검) 섹션 누락: 템플릿에 포함되어 있으나 출력에 확인/점검 표현 없음",
		})
	}
	return issues
}

// contextAround widens a byte range by whole runes on each side.
func contextAround(s string, start, end, beforeRunes, afterRunes int) string {
	b := start
	for i := 0; i < beforeRunes && b > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:b])
		b -= size
	}
	e := end
	for i := 0; i < afterRunes && e < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[e:])
		e += size
	}
	return s[b:e]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func normalizeForReentry(text string) string {
	return nonWordPattern.ReplaceAllString(text, "")
}

func extractDateNumbers(dateStr string) []int {
	var nums []int
	for _, m := range digitRun.FindAllString(dateStr, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

// containsWithParticleVariation checks containment while tolerating Korean
// particle endings: the word itself, or a prefix up to two runes shorter.
func containsWithParticleVariation(text, word string) bool {
	if strings.Contains(text, word) {
		return true
	}
	runes := []rune(word)
	for length := len(runes) - 1; length > len(runes)-3 && length > 1; length-- {
		if strings.Contains(text, string(runes[:length])) {
			return true
		}
	}
	return false
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
