package models

import "fmt"

// LockedSpan is a substring of the normalized text whose surface form must
// survive the pipeline verbatim. Spans are non-overlapping and sorted by
// start; placeholders are unique within a request.
type LockedSpan struct {
	Index       int            `json:"index"`
	Original    string         `json:"original"`
	Placeholder string         `json:"placeholder"`
	Type        LockedSpanType `json:"type"`
	Start       int            `json:"start"`
	End         int            `json:"end"`
}

// NewLockedSpan builds a span with its canonical {{PREFIX_k}} placeholder.
// counter is the 1-based counter scoped per placeholder prefix.
func NewLockedSpan(index int, original string, spanType LockedSpanType, counter, start, end int) LockedSpan {
	return LockedSpan{
		Index:       index,
		Original:    original,
		Placeholder: fmt.Sprintf("{{%s_%d}}", spanType, counter),
		Type:        spanType,
		Start:       start,
		End:         end,
	}
}

// Segment is a meaning unit produced by the rule-based splitter.
// IDs are "T1".."Tn" in 1-based global order over the masked text.
type Segment struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// LabeledSegment is a segment plus its classification.
type LabeledSegment struct {
	SegmentID string       `json:"segmentId"`
	Label     SegmentLabel `json:"label"`
	Text      string       `json:"text"`
	Start     int          `json:"start"`
	End       int          `json:"end"`
}

// Fact is a grounded statement extracted by the situation analyzer.
// Source must be a verbatim quote from the masked text.
type Fact struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// SituationAnalysis is the structured output of the situation analyzer:
// grounded facts plus the speaker's core intent.
type SituationAnalysis struct {
	Facts            []Fact `json:"facts"`
	Intent           string `json:"intent"`
	PromptTokens     int    `json:"-"`
	CompletionTokens int    `json:"-"`
}

// ValidationIssue is a single validator finding. Issues are never thrown;
// they ride alongside the output.
type ValidationIssue struct {
	Type        ValidationIssueType `json:"type"`
	Severity    Severity            `json:"severity"`
	Message     string              `json:"message"`
	MatchedText string              `json:"matchedText,omitempty"`
}

// ValidationResult aggregates validator findings for one final output.
type ValidationResult struct {
	Issues []ValidationIssue
}

// Passed reports whether no ERROR-severity issue fired.
func (r ValidationResult) Passed() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the ERROR-severity issues.
func (r ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// PipelineStats captures token counters and stage outcomes for one request.
type PipelineStats struct {
	AnalysisPromptTokens     int    `json:"analysisPromptTokens"`
	AnalysisCompletionTokens int    `json:"analysisCompletionTokens"`
	FinalPromptTokens        int    `json:"finalPromptTokens"`
	FinalCompletionTokens    int    `json:"finalCompletionTokens"`
	SegmentCount             int    `json:"segmentCount"`
	GreenCount               int    `json:"greenCount"`
	YellowCount              int    `json:"yellowCount"`
	RedCount                 int    `json:"redCount"`
	LockedSpanCount          int    `json:"lockedSpanCount"`
	RetryCount               int    `json:"retryCount"`
	IdentityBoosterFired     bool   `json:"identityBoosterFired"`
	SituationAnalysisFired   bool   `json:"situationAnalysisFired"`
	MetadataOverridden       bool   `json:"metadataOverridden"`
	YellowRecoveryApplied    bool   `json:"yellowRecoveryApplied"`
	YellowUpgradeCount       int    `json:"yellowUpgradeCount"`
	ChosenTemplateID         string `json:"chosenTemplateId"`
	TotalLatencyMs           int64  `json:"latencyMs"`
}

// LabelStats summarizes which labels are present in a labeled segment set.
type LabelStats struct {
	Counts map[SegmentLabel]int
}

// LabelStatsFrom tallies labels over segments.
func LabelStatsFrom(segments []LabeledSegment) LabelStats {
	counts := make(map[SegmentLabel]int, len(segments))
	for _, s := range segments {
		counts[s.Label]++
	}
	return LabelStats{Counts: counts}
}

// Has reports whether at least one segment carries the label.
func (s LabelStats) Has(label SegmentLabel) bool {
	return s.Counts[label] > 0
}

// TierCount returns how many segments fall in the tier.
func (s LabelStats) TierCount(tier SegmentLabelTier) int {
	n := 0
	for label, count := range s.Counts {
		if label.Tier() == tier {
			n += count
		}
	}
	return n
}
