package masking

import (
	"regexp"
	"sort"

	"github.com/politeai/tonebridge/pkg/models"
)

// compiledPattern pairs a pre-compiled regex with the span type it produces.
type compiledPattern struct {
	regex    *regexp.Regexp
	spanType models.LockedSpanType
}

// Extraction patterns in priority order. Earlier patterns win ties at the
// same start position only through the longest-match sweep below.
var extractionPatterns = []compiledPattern{
	{regexp.MustCompile(`[\w가-힣]+(?:[.+\-][\w가-힣]+)*@[\w가-힣]+(?:-[\w가-힣]+)*(?:\.[a-zA-Z]{2,})+`), models.SpanEmail},
	{regexp.MustCompile(`(?:https?://|www\.)[\w\-.~:/?#\[\]@!$&'()*+,;=%]+[\w/=]`), models.SpanURL},
	{regexp.MustCompile(`0\d{1,2}[-.]\d{3,4}[-.]\d{4}`), models.SpanPhone},
	{regexp.MustCompile(`\d{2,6}-\d{2,6}-\d{4,12}`), models.SpanAccount},
	{regexp.MustCompile(`(?:\d{2,4}년\s*)?\d{1,2}월\s*\d{1,2}일|\d{2,4}년\s*\d{1,2}월|\d{4}[./\-]\d{1,2}[./\-]\d{1,2}`), models.SpanDate},
	{regexp.MustCompile(`(?:오전|오후|새벽|저녁|밤)?\s*\d{1,2}(?:시\s*\d{1,2}분?)?(?:\s*~\s*\d{1,2}(?:시(?:\s*\d{1,2}분?)?)?)?(?:시|분)`), models.SpanTime},
	{regexp.MustCompile(`(?:[01]?\d|2[0-3]):\d{2}`), models.SpanTime},
	{regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*(?:만\s*)?원`), models.SpanMoney},
	{regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*(?:자리|개|건|명|장|통|호|층|평|kg|cm|mm|km|%|주|일|개월|년|시간|분|초)`), models.SpanNumber},
	{regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d{5,}`), models.SpanNumber},
	{regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`), models.SpanUUID},
	{regexp.MustCompile(`(?i)(?:[\w가-힣./\\-]+/)?[\w가-힣.-]+\.(?:pdf|doc|docx|xls|xlsx|ppt|pptx|csv|txt|md|json|xml|yaml|yml|html|css|js|ts|tsx|jsx|java|py|rb|go|rs|cpp|c|h|hpp|sh|bat|sql|log|zip|tar|gz|rar|7z|png|jpg|jpeg|gif|svg|mp4|mp3|wav|avi|exe|app|msi|dmg|apk|ipa|iso|img|bak|cfg|ini|env|toml|lock|pid)\b`), models.SpanFile},
	{regexp.MustCompile(`#\d{1,6}|[A-Z]{2,10}-\d{1,6}`), models.SpanTicket},
	{regexp.MustCompile(`v?\d{1,4}\.\d{1,4}(?:\.\d{1,4})?`), models.SpanVersion},
	{regexp.MustCompile(`"([^"]{2,60})"|'([^']{2,60})'|\x{201C}([^\x{201C}\x{201D}]{2,60})\x{201D}|\x{2018}([^\x{2018}\x{2019}]{2,60})\x{2019}`), models.SpanQuote},
	{regexp.MustCompile(`\b(?:[a-z][a-zA-Z0-9]*[A-Z][a-zA-Z0-9]{2,}|[a-z]+(?:_[a-z]+)+|[A-Z][a-z]+(?:[A-Z][a-z]+)+)(?:\(\))?\b`), models.SpanID},
	{regexp.MustCompile(`\b[0-9a-f]{7,40}\b`), models.SpanHash},
}

type rawMatch struct {
	start    int
	end      int
	text     string
	spanType models.LockedSpanType
}

// Extract finds all locked spans in the normalized text. Overlaps are
// resolved by sorting (start ascending, length descending) and keeping the
// first match in a left-to-right sweep, so the longer match at a position
// wins. Placeholder counters are 1-based and scoped per placeholder prefix.
func Extract(text string) []models.LockedSpan {
	if text == "" {
		return nil
	}

	var raw []rawMatch
	for _, p := range extractionPatterns {
		for _, loc := range p.regex.FindAllStringIndex(text, -1) {
			raw = append(raw, rawMatch{
				start:    loc[0],
				end:      loc[1],
				text:     text[loc[0]:loc[1]],
				spanType: p.spanType,
			})
		}
	}

	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].start != raw[j].start {
			return raw[i].start < raw[j].start
		}
		return raw[i].end-raw[i].start > raw[j].end-raw[j].start
	})

	var spans []models.LockedSpan
	counters := make(map[models.LockedSpanType]int)
	lastEnd := -1
	for _, m := range raw {
		if m.start < lastEnd {
			continue // overlapping or fully contained
		}
		counters[m.spanType]++
		spans = append(spans, models.NewLockedSpan(
			counters[m.spanType], m.text, m.spanType, counters[m.spanType], m.start, m.end,
		))
		lastEnd = m.end
	}
	return spans
}
