// Package segmentation splits masked text into meaning units.
//
// The rule-based segmenter runs a precision-first 7-stage hierarchy:
//
//  1. Strong structural boundaries (confidence 1.0): blank lines, explicit
//     separators (---/===/___), bullets, numbered lists.
//  2. Korean sentence endings (0.95) with connective-suffix suppression.
//  3. Weak punctuation boundaries (0.90).
//  4. Length-based safety split (0.85) with postposition avoidance.
//  5. Enumeration detection (0.90): comma lists, delimiter lists, parallel
//     ~고 structure.
//  6. Discourse markers (0.88): sentence-start only, compound exclusion.
//  7. Over-segmentation merge: 3+ consecutive <5 char units merged, with
//     placeholders acting as hard group boundaries.
//
// Placeholder spans are never crossed by any stage; parenthetical and quoted
// ranges block all but strong boundaries.
package segmentation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/models"
)

const (
	minSegmentLength    = 5
	minShortConsecutive = 3
)

// Segmenter is the rule-based splitter. It is pure and deterministic; all
// LLM-assisted refinement lives in Refiner.
type Segmenter struct {
	maxSegmentLength         int
	discourseMarkerMinLength int
	enumerationMinLength     int
}

// NewSegmenter builds a segmenter with the given length knobs
// (defaults: 250 / 80 / 60).
func NewSegmenter(maxSegmentLength, discourseMarkerMinLength, enumerationMinLength int) *Segmenter {
	return &Segmenter{
		maxSegmentLength:         maxSegmentLength,
		discourseMarkerMinLength: discourseMarkerMinLength,
		enumerationMinLength:     enumerationMinLength,
	}
}

type splitUnit struct {
	text       string
	start      int // byte offset into the masked text
	end        int
	confidence float64
}

type protectedRange struct {
	start, end int
	placeholder bool
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{[A-Z]+_\d+\}\}`)

	// Stage 1: strong boundaries. The bullet and numbered-list patterns
	// consume the preceding newline; the stripped sub-texts are identical
	// to splitting right after it.
	blankLinePattern    = regexp.MustCompile(`\n\n+`)
	separatorPattern    = regexp.MustCompile(`(?m)(?:^|\n)[-=_]{3,}[ \t]*(?:\n|$)`)
	bulletPattern       = regexp.MustCompile(`\n[-*\x{2022}]\s`)
	numberedListPattern = regexp.MustCompile(`\n(?:\d{1,3}[.)]\s|[\x{2460}-\x{2473}]\s?)`)

	// Stage 2: Korean sentence endings. Group 1 captures the ending so the
	// split point lands between ending and separator.
	endingFormal = regexp.MustCompile(
		`(겠습니다|하십시오|겠습니까|습니다|입니다|됩니다|합니다|답니다|랍니다|십니다|습니까|입니까|됩니까|합니까|십니까|십시오)(\s+|[.!?\x{2026}~;]\s*)`)
	endingPolite = regexp.MustCompile(
		`(는데요|거든요|잖아요|니까요|라서요|던가요|텐데요|다고요|라고요|냐고요|자고요|은데요|던데요|세요|에요|해요|예요|네요|군요|지요|어요|아요|게요|래요|나요|가요|고요|서요|걸요|대요|까요|셔요|구요)(\s+|[.!?\x{2026}~;]\s*)`)
	endingCasual = regexp.MustCompile(
		`([았었했됐갔왔봤줬났겠셨]어|같어|않아|없어|있어|못해|[았었했됐겠셨]지|거든|잖아|는데|인데|한데|은데|던데|텐데|더라|니까|할래|할게|갈게|볼게|줄게|을래|을게|을걸|하자|해라|해봐|구나|구먼|이야|거야|건데|다며|다더라|그치|시죠|던가)(\s+|[.!?\x{2026}~;]\s*)`)
	endingNarrative = regexp.MustCompile(
		`(하게|하네|하세|[했됐봤왔갔줬났]음|같음|있음|없음|아님|맞음|모름|드림|올림|알림|바람|나름|받음|보냄|[했됐봤왔갔줬났겠]다|있다|없다|같다|한다|된다|간다|온다|는다|됨|임|함|죠|ㅋㅋ|ㅎㅎ|ㅠㅠ|ㅜㅜ)(\s+|[.!?\x{2026}~;]\s*)`)

	koreanEndingPatterns = []*regexp.Regexp{endingFormal, endingPolite, endingCasual, endingNarrative}

	// Stage 3: weak punctuation. Group 1 is the boundary token, group 2 the
	// trailing whitespace; single sentence punctuation requires whitespace
	// or end of text, ellipses and dashes split unconditionally.
	weakBoundaryPattern = regexp.MustCompile(`(\.{3}|[.!?;\x{2026}\x{2014}\x{2013}])([ \t\n]*)`)

	// Stage 5: enumeration delimiters.
	commaListPattern     = regexp.MustCompile(`,\s*`)
	delimiterListPattern = regexp.MustCompile(`[/\x{00B7}|]\s*`)
	parallelGoPattern    = regexp.MustCompile(`[가-힣](고\s+)[가-힣]`)

	// Stage 6: discourse markers at sentence starts. Group 1 is the
	// sentence boundary, group 2 the marker plus its trailing space.
	discourseMarkerAlternatives = "그리고|또한|게다가|더구나|심지어|" +
		"그런데|근데|하지만|그러나|그래도|반면|한편|오히려|그렇지만|" +
		"그래서|그러므로|결국|그러니까|그러니|결과적으로|" +
		"그러면|그럼|그렇다면|만약|만일|아니면|" +
		"아무튼|어쨌든|어쨌거나|그나저나|암튼|" +
		"마지막으로|끝으로|첫째|둘째|셋째|" +
		"결론적으로|왜냐하면|왜냐면"
	discourseMarkerSplitPattern = regexp.MustCompile(
		`([.!?;\x{2026}]\s|\n)((?:` + discourseMarkerAlternatives + `)\s)`)

	parenPattern = regexp.MustCompile(`\([^)]*\)`)
	quotePattern = regexp.MustCompile(`"[^"]*"|'[^']*'|\x{201C}[^\x{201D}]*\x{201D}|\x{2018}[^\x{2019}]*\x{2019}`)
)

var ambiguousEndings = map[string]bool{
	"는데": true, "인데": true, "한데": true, "은데": true, "던데": true,
	"텐데": true, "니까": true, "거든": true, "고": true, "건데": true,
}

var discourseMarkers = map[string]bool{
	"그리고": true, "또한": true, "게다가": true, "더구나": true, "심지어": true,
	"그런데": true, "근데": true, "하지만": true, "그러나": true, "그래도": true,
	"반면": true, "한편": true, "오히려": true, "그렇지만": true,
	"그래서": true, "그러므로": true, "결국": true, "그러니까": true, "그러니": true,
	"결과적으로": true,
	"그러면": true, "그럼": true, "그렇다면": true, "만약": true, "만일": true,
	"아니면": true,
	"아무튼": true, "어쨌든": true, "어쨌거나": true, "그나저나": true, "암튼": true,
	"마지막으로": true, "끝으로": true, "첫째": true, "둘째": true, "셋째": true,
	"결론적으로": true, "왜냐하면": true, "왜냐면": true,
}

var postpositions = map[string]bool{
	"은": true, "는": true, "이": true, "가": true, "을": true, "를": true,
	"에": true, "의": true, "와": true, "과": true, "로": true, "도": true,
	"만": true, "까지": true, "부터": true, "에서": true, "처럼": true,
	"보다": true, "마다": true, "밖에": true, "조차": true, "든지": true,
	"이나": true, "에게": true, "한테": true, "께": true,
}

var compoundSuffixes = []string{"그런데도", "그래서인지", "그러나마나", "하지만서도", "그래도역시"}

// Segment splits the masked text into meaning units with IDs T1..Tn.
func (s *Segmenter) Segment(maskedText string) []models.Segment {
	if strings.TrimSpace(maskedText) == "" {
		return nil
	}

	protected := collectProtectedRanges(maskedText)
	units := []splitUnit{{text: maskedText, start: 0, end: len(maskedText), confidence: 1.0}}

	// Stage 1
	for _, p := range []*regexp.Regexp{blankLinePattern, separatorPattern, bulletPattern, numberedListPattern} {
		units = applySplitPattern(units, p, protected, 1.0, true)
	}

	// Stage 2
	for _, p := range koreanEndingPatterns {
		units = splitKoreanEndings(units, p, protected)
	}

	// Stage 3
	units = splitWeakBoundaries(units, protected)

	// Stage 4
	units = forceSplitLong(units, protected, s.maxSegmentLength)

	// Stage 5
	units = splitEnumerations(units, protected, s.enumerationMinLength)

	// Stage 6
	units = splitDiscourseMarkers(units, protected, s.discourseMarkerMinLength)

	// Stage 7
	units = mergeShortUnits(units)

	segments := make([]models.Segment, len(units))
	minConf := 1.0
	for i, u := range units {
		segments[i] = models.Segment{ID: fmt.Sprintf("T%d", i+1), Text: u.text, Start: u.start, End: u.end}
		if u.confidence < minConf {
			minConf = u.confidence
		}
	}

	slog.Info("Segmented masked text",
		"segments", len(segments), "chars", utf8.RuneCountInString(maskedText), "min_confidence", minConf)
	return segments
}

// ── Protected ranges ──

func collectProtectedRanges(text string) []protectedRange {
	var ranges []protectedRange
	for _, loc := range placeholderPattern.FindAllStringIndex(text, -1) {
		ranges = append(ranges, protectedRange{start: loc[0], end: loc[1], placeholder: true})
	}
	for _, p := range []*regexp.Regexp{parenPattern, quotePattern} {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			if !overlapsPlaceholder(loc[0], loc[1], ranges) {
				ranges = append(ranges, protectedRange{start: loc[0], end: loc[1]})
			}
		}
	}
	return ranges
}

func overlapsPlaceholder(start, end int, ranges []protectedRange) bool {
	for _, r := range ranges {
		if r.placeholder && start < r.end && end > r.start {
			return true
		}
	}
	return false
}

func isProtected(globalPos int, ranges []protectedRange, strongBoundary bool) bool {
	for _, r := range ranges {
		if r.start <= globalPos && globalPos < r.end {
			if r.placeholder {
				return true
			}
			if !strongBoundary {
				return true
			}
		}
	}
	return false
}

// ── Generic split ──

// applySplitPattern removes each non-protected match and emits the trimmed
// text between matches as new units.
func applySplitPattern(units []splitUnit, pattern *regexp.Regexp, protected []protectedRange, stageConfidence float64, strongBoundary bool) []splitUnit {
	var result []splitUnit

	for _, unit := range units {
		if utf8.RuneCountInString(unit.text) < 3 {
			result = append(result, unit)
			continue
		}

		lastEnd := 0
		split := false
		for _, loc := range pattern.FindAllStringIndex(unit.text, -1) {
			if isProtected(unit.start+loc[0], protected, strongBoundary) {
				continue
			}
			if sub := strings.TrimSpace(unit.text[lastEnd:loc[0]]); sub != "" {
				result = append(result, newSubUnit(unit, sub, lastEnd, stageConfidence))
				split = true
			}
			lastEnd = loc[1]
		}

		if split {
			if tail := strings.TrimSpace(unit.text[lastEnd:]); tail != "" {
				result = append(result, newSubUnit(unit, tail, lastEnd, stageConfidence))
			}
		} else {
			result = append(result, unit)
		}
	}
	return result
}

func newSubUnit(parent splitUnit, trimmed string, searchFrom int, stageConfidence float64) splitUnit {
	start := parent.start + findSubstringStart(parent.text, searchFrom, trimmed)
	return splitUnit{
		text:       trimmed,
		start:      start,
		end:        start + len(trimmed),
		confidence: min(parent.confidence, stageConfidence),
	}
}

func findSubstringStart(parent string, searchFrom int, trimmed string) int {
	if idx := strings.Index(parent[searchFrom:], trimmed); idx >= 0 {
		return searchFrom + idx
	}
	return searchFrom
}

// ── Stage 2: Korean endings ──

func splitKoreanEndings(units []splitUnit, pattern *regexp.Regexp, protected []protectedRange) []splitUnit {
	var result []splitUnit

	for _, unit := range units {
		if utf8.RuneCountInString(unit.text) < 3 {
			result = append(result, unit)
			continue
		}

		// Each element is [sepStart, matchEnd): the separator between the
		// ending (kept on the left) and the next unit.
		type splitPoint struct{ sepStart, end int }
		var points []splitPoint
		lastEnd := 0

		for _, idx := range pattern.FindAllStringSubmatchIndex(unit.text, -1) {
			sepStart := idx[3] // end of the ending group
			matchEnd := idx[1]
			if isProtected(unit.start+sepStart, protected, false) {
				continue
			}

			if ending := ambiguousEndingBefore(unit.text, sepStart); ending != "" {
				lenBefore := utf8.RuneCountInString(unit.text[lastEnd:sepStart])
				if !shouldSplitAmbiguousEnding(unit.text, matchEnd, lenBefore) {
					continue
				}
			}
			points = append(points, splitPoint{sepStart: sepStart, end: matchEnd})
			lastEnd = matchEnd
		}

		if len(points) == 0 {
			result = append(result, unit)
			continue
		}

		prevEnd := 0
		for _, sp := range points {
			if sub := strings.TrimSpace(unit.text[prevEnd:sp.sepStart]); sub != "" {
				result = append(result, newSubUnit(unit, sub, prevEnd, 0.95))
			}
			prevEnd = sp.end
		}
		if tail := strings.TrimSpace(unit.text[prevEnd:]); tail != "" {
			result = append(result, newSubUnit(unit, tail, prevEnd, 0.95))
		}
	}
	return result
}

// ambiguousEndingBefore returns the connective ending (3, 2, then 1 runes)
// immediately before pos, or "" when the ending is unambiguous.
func ambiguousEndingBefore(text string, pos int) string {
	prefix := []rune(text[:pos])
	for _, length := range []int{3, 2, 1} {
		if len(prefix) >= length {
			candidate := string(prefix[len(prefix)-length:])
			if ambiguousEndings[candidate] {
				return candidate
			}
		}
	}
	return ""
}

func shouldSplitAmbiguousEnding(chunk string, afterMatchEnd, lenBefore int) bool {
	if lenBefore > 250 {
		return true
	}
	remaining := strings.TrimSpace(chunk[afterMatchEnd:])
	if remaining == "" {
		return true
	}
	for marker := range discourseMarkers {
		if remaining == marker || strings.HasPrefix(remaining, marker+" ") || strings.HasPrefix(remaining, marker+"\n") {
			return true
		}
	}
	return false
}

// ── Stage 3: weak punctuation ──

func splitWeakBoundaries(units []splitUnit, protected []protectedRange) []splitUnit {
	var result []splitUnit

	for _, unit := range units {
		if utf8.RuneCountInString(unit.text) < 3 {
			result = append(result, unit)
			continue
		}

		lastEnd := 0
		split := false
		for _, idx := range weakBoundaryPattern.FindAllStringSubmatchIndex(unit.text, -1) {
			punct := unit.text[idx[2]:idx[3]]
			hasTrailing := idx[5] > idx[4]
			atEnd := idx[1] == len(unit.text)
			// Single sentence punctuation needs trailing whitespace or end
			// of text; ellipses and dashes split unconditionally.
			if (punct == "." || punct == "!" || punct == "?" || punct == ";") && !hasTrailing && !atEnd {
				continue
			}
			sepStart := idx[3]
			if isProtected(unit.start+sepStart, protected, false) {
				continue
			}

			if sub := strings.TrimSpace(unit.text[lastEnd:sepStart]); sub != "" {
				result = append(result, newSubUnit(unit, sub, lastEnd, 0.9))
				split = true
			}
			lastEnd = idx[1]
		}

		if split {
			if tail := strings.TrimSpace(unit.text[lastEnd:]); tail != "" {
				result = append(result, newSubUnit(unit, tail, lastEnd, 0.9))
			}
		} else {
			result = append(result, unit)
		}
	}
	return result
}

// ── Stage 4: length safety split ──

func forceSplitLong(units []splitUnit, protected []protectedRange, maxSegmentLength int) []splitUnit {
	current := units

	for iter := 0; iter < 5; iter++ {
		var result []splitUnit
		didSplit := false

		for _, unit := range current {
			runes := []rune(unit.text)
			if len(runes) <= maxSegmentLength {
				result = append(result, unit)
				continue
			}

			mid := len(runes) / 2
			searchStart := max(10, mid-60)
			searchEnd := min(len(runes)-5, mid+60)

			bestSplit := findLengthSplit(unit, runes, searchStart, searchEnd, mid, protected, true)
			if bestSplit < 0 {
				bestSplit = findLengthSplit(unit, runes, searchStart, searchEnd, mid, protected, false)
			}

			if bestSplit > 0 {
				byteSplit := len(string(runes[:bestSplit]))
				if left := strings.TrimSpace(unit.text[:byteSplit]); left != "" {
					result = append(result, newSubUnit(unit, left, 0, 0.85))
				}
				if right := strings.TrimSpace(unit.text[byteSplit:]); right != "" {
					result = append(result, newSubUnit(unit, right, byteSplit, 0.85))
				}
				didSplit = true
			} else {
				result = append(result, unit)
			}
		}

		current = result
		if !didSplit {
			break
		}
	}
	return current
}

// findLengthSplit returns the rune index just after the best split
// character, or -1. Positions are scored by distance to the midpoint.
func findLengthSplit(unit splitUnit, runes []rune, searchStart, searchEnd, mid int, protected []protectedRange, avoidPostposition bool) int {
	bestSplit := -1
	bestDist := len(runes) + 1
	byteOffset := len(string(runes[:searchStart]))

	for i := searchStart; i < searchEnd; i++ {
		c := runes[i]
		width := utf8.RuneLen(c)
		pos := byteOffset
		byteOffset += width

		if c != ' ' && c != ',' && c != '\n' {
			continue
		}
		if isProtected(unit.start+pos, protected, false) {
			continue
		}
		if avoidPostposition && isAfterPostposition(runes, i) {
			continue
		}
		dist := abs(i - mid)
		if dist < bestDist {
			bestDist = dist
			bestSplit = i + 1
		}
	}
	return bestSplit
}

func isAfterPostposition(runes []rune, splitPos int) bool {
	for _, length := range []int{3, 2, 1} {
		start := splitPos - length
		if start < 0 {
			continue
		}
		if postpositions[string(runes[start:splitPos])] {
			return true
		}
	}
	return false
}

// ── Stage 5: enumeration ──

func splitEnumerations(units []splitUnit, protected []protectedRange, enumerationMinLength int) []splitUnit {
	var result []splitUnit

	for _, unit := range units {
		if utf8.RuneCountInString(unit.text) <= enumerationMinLength {
			result = append(result, unit)
			continue
		}

		var parts []splitUnit
		for _, delimiter := range []*regexp.Regexp{commaListPattern, delimiterListPattern, parallelGoPattern} {
			parts = trySplitByDelimiter(unit, delimiter, protected, 3, 15)
			if parts != nil {
				break
			}
		}
		if parts != nil {
			result = append(result, parts...)
		} else {
			result = append(result, unit)
		}
	}
	return result
}

func trySplitByDelimiter(unit splitUnit, delimiter *regexp.Regexp, protected []protectedRange, minParts, minPartLength int) []splitUnit {
	text := unit.text

	type interval struct{ start, end int }
	var matches []interval
	if delimiter == parallelGoPattern {
		// The delimiter is the captured "고 " run between two Hangul syllables.
		for _, idx := range delimiter.FindAllStringSubmatchIndex(text, -1) {
			if !isProtected(unit.start+idx[2], protected, false) {
				matches = append(matches, interval{start: idx[2], end: idx[3]})
			}
		}
	} else {
		for _, loc := range delimiter.FindAllStringIndex(text, -1) {
			if !isProtected(unit.start+loc[0], protected, false) {
				matches = append(matches, interval{start: loc[0], end: loc[1]})
			}
		}
	}

	if len(matches) < minParts-1 {
		return nil
	}

	var parts []splitUnit
	prevEnd := 0
	for _, m := range matches {
		if part := strings.TrimSpace(text[prevEnd:m.start]); part != "" {
			parts = append(parts, newSubUnit(unit, part, prevEnd, 0.9))
		}
		prevEnd = m.end
	}
	if tail := strings.TrimSpace(text[prevEnd:]); tail != "" {
		parts = append(parts, newSubUnit(unit, tail, prevEnd, 0.9))
	}

	if len(parts) < minParts {
		return nil
	}
	for _, p := range parts {
		if utf8.RuneCountInString(p.text) < minPartLength {
			return nil
		}
	}
	return parts
}

// ── Stage 6: discourse markers ──

func splitDiscourseMarkers(units []splitUnit, protected []protectedRange, discourseMarkerMinLength int) []splitUnit {
	var result []splitUnit

	for _, unit := range units {
		if utf8.RuneCountInString(unit.text) <= discourseMarkerMinLength {
			result = append(result, unit)
			continue
		}

		var points []int
		for _, idx := range discourseMarkerSplitPattern.FindAllStringSubmatchIndex(unit.text, -1) {
			sp := idx[3] // end of the sentence-boundary group, start of the marker
			if isProtected(unit.start+sp, protected, false) {
				continue
			}
			remaining := unit.text[sp:]
			if isCompoundMarker(remaining) {
				continue
			}
			if utf8.RuneCountInString(strings.TrimSpace(remaining)) <= 4 {
				continue
			}
			points = append(points, sp)
		}

		if len(points) == 0 {
			result = append(result, unit)
			continue
		}

		prevEnd := 0
		for _, sp := range points {
			if sub := strings.TrimSpace(unit.text[prevEnd:sp]); sub != "" {
				result = append(result, newSubUnit(unit, sub, prevEnd, 0.88))
			}
			prevEnd = sp
		}
		if tail := strings.TrimSpace(unit.text[prevEnd:]); tail != "" {
			result = append(result, newSubUnit(unit, tail, prevEnd, 0.88))
		}
	}
	return result
}

func isCompoundMarker(remaining string) bool {
	trimmed := strings.TrimSpace(remaining)
	for _, compound := range compoundSuffixes {
		if strings.HasPrefix(trimmed, compound) {
			return true
		}
	}
	for marker := range discourseMarkers {
		if strings.HasPrefix(trimmed, marker) && len(trimmed) > len(marker) {
			next, _ := utf8.DecodeRuneInString(trimmed[len(marker):])
			if next != ' ' && next != '\n' && isHangul(next) {
				return true
			}
		}
	}
	return false
}

func isHangul(c rune) bool {
	return (c >= 0xAC00 && c <= 0xD7A3) || (c >= 0x3131 && c <= 0x318E)
}

// ── Stage 7: merge short runs ──

func mergeShortUnits(units []splitUnit) []splitUnit {
	if len(units) <= 1 {
		return units
	}

	var result []splitUnit
	i := 0
	for i < len(units) {
		shortStart := i
		for i < len(units) && utf8.RuneCountInString(units[i].text) < minSegmentLength {
			i++
		}

		if i-shortStart >= minShortConsecutive {
			for _, group := range groupByPlaceholderBoundary(units[shortStart:i]) {
				if len(group) >= minShortConsecutive {
					result = append(result, mergeGroup(group))
				} else {
					result = append(result, group...)
				}
			}
		} else {
			result = append(result, units[shortStart:i]...)
		}

		if i < len(units) {
			result = append(result, units[i])
			i++
		}
	}
	return result
}

func groupByPlaceholderBoundary(units []splitUnit) [][]splitUnit {
	var groups [][]splitUnit
	var current []splitUnit

	for _, unit := range units {
		hasPlaceholder := placeholderPattern.MatchString(unit.text)
		if hasPlaceholder && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, unit)
		if hasPlaceholder {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func mergeGroup(group []splitUnit) splitUnit {
	texts := make([]string, len(group))
	minConf := group[0].confidence
	for i, u := range group {
		texts[i] = u.text
		if u.confidence < minConf {
			minConf = u.confidence
		}
	}
	return splitUnit{
		text:       strings.Join(texts, " "),
		start:      group[0].start,
		end:        group[len(group)-1].end,
		confidence: minConf,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
