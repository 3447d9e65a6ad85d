// Package models defines the domain types shared across the transform
// pipeline: request metadata enums, segment labels and tiers, locked spans,
// validation issues, and per-request statistics.
package models

// Persona identifies the recipient of the message being transformed.
type Persona string

const (
	PersonaBoss      Persona = "BOSS"
	PersonaClient    Persona = "CLIENT"
	PersonaParent    Persona = "PARENT"
	PersonaProfessor Persona = "PROFESSOR"
	PersonaOfficial  Persona = "OFFICIAL"
	PersonaOther     Persona = "OTHER"
)

// SituationContext identifies the communicative situation of the message.
type SituationContext string

const (
	ContextRequest        SituationContext = "REQUEST"
	ContextScheduleDelay  SituationContext = "SCHEDULE_DELAY"
	ContextUrging         SituationContext = "URGING"
	ContextRejection      SituationContext = "REJECTION"
	ContextApology        SituationContext = "APOLOGY"
	ContextComplaint      SituationContext = "COMPLAINT"
	ContextAnnouncement   SituationContext = "ANNOUNCEMENT"
	ContextFeedback       SituationContext = "FEEDBACK"
	ContextBilling        SituationContext = "BILLING"
	ContextSupport        SituationContext = "SUPPORT"
	ContextContract       SituationContext = "CONTRACT"
	ContextRecruiting     SituationContext = "RECRUITING"
	ContextCivilComplaint SituationContext = "CIVIL_COMPLAINT"
	ContextGratitude      SituationContext = "GRATITUDE"
)

// ToneLevel controls the formality of the generated message.
type ToneLevel string

const (
	ToneNeutral    ToneLevel = "NEUTRAL"
	TonePolite     ToneLevel = "POLITE"
	ToneVeryPolite ToneLevel = "VERY_POLITE"
)

// Topic is the optional subject area selected by the user.
type Topic string

const (
	TopicRefundCancel        Topic = "REFUND_CANCEL"
	TopicOutageError         Topic = "OUTAGE_ERROR"
	TopicAccountPermission   Topic = "ACCOUNT_PERMISSION"
	TopicDataFile            Topic = "DATA_FILE"
	TopicScheduleDeadline    Topic = "SCHEDULE_DEADLINE"
	TopicCostBilling         Topic = "COST_BILLING"
	TopicContractTerms       Topic = "CONTRACT_TERMS"
	TopicHREvaluation        Topic = "HR_EVALUATION"
	TopicAcademicGrade       Topic = "ACADEMIC_GRADE"
	TopicComplaintRegulation Topic = "COMPLAINT_REGULATION"
	TopicOther               Topic = "OTHER"
)

// Purpose is the optional communicative goal selected by the user.
type Purpose string

const (
	PurposeInfoDelivery             Purpose = "INFO_DELIVERY"
	PurposeDataRequest              Purpose = "DATA_REQUEST"
	PurposeScheduleCoordination     Purpose = "SCHEDULE_COORDINATION"
	PurposeApologyRecovery          Purpose = "APOLOGY_RECOVERY"
	PurposeResponsibilitySeparation Purpose = "RESPONSIBILITY_SEPARATION"
	PurposeRejectionNotice          Purpose = "REJECTION_NOTICE"
	PurposeRefundRejection          Purpose = "REFUND_REJECTION"
	PurposeWarningPrevention        Purpose = "WARNING_PREVENTION"
	PurposeRelationshipRecovery     Purpose = "RELATIONSHIP_RECOVERY"
	PurposeNextActionConfirm        Purpose = "NEXT_ACTION_CONFIRM"
	PurposeAnnouncement             Purpose = "ANNOUNCEMENT"
)

// SegmentLabelTier is the coarse handling class for a labeled segment.
type SegmentLabelTier string

const (
	TierGreen  SegmentLabelTier = "GREEN"
	TierYellow SegmentLabelTier = "YELLOW"
	TierRed    SegmentLabelTier = "RED"
)

// SegmentLabel classifies a segment's communicative function.
// GREEN labels are preserved, YELLOW labels are rewritten with a cushion,
// RED labels are deleted silently.
type SegmentLabel string

const (
	// GREEN: message skeleton, must be included, style polish only.
	LabelCoreFact   SegmentLabel = "CORE_FACT"
	LabelCoreIntent SegmentLabel = "CORE_INTENT"
	LabelRequest    SegmentLabel = "REQUEST"
	LabelApology    SegmentLabel = "APOLOGY"
	LabelCourtesy   SegmentLabel = "COURTESY"

	// YELLOW: content preserved, delivery method changed.
	LabelAccountability    SegmentLabel = "ACCOUNTABILITY"
	LabelSelfJustification SegmentLabel = "SELF_JUSTIFICATION"
	LabelNegativeFeedback  SegmentLabel = "NEGATIVE_FEEDBACK"
	LabelEmotional         SegmentLabel = "EMOTIONAL"
	LabelExcessDetail      SegmentLabel = "EXCESS_DETAIL"

	// RED: content itself is unnecessary and harmful.
	LabelAggression     SegmentLabel = "AGGRESSION"
	LabelPersonalAttack SegmentLabel = "PERSONAL_ATTACK"
	LabelPrivateTMI     SegmentLabel = "PRIVATE_TMI"
	LabelPureGrumble    SegmentLabel = "PURE_GRUMBLE"
)

var labelTiers = map[SegmentLabel]SegmentLabelTier{
	LabelCoreFact:          TierGreen,
	LabelCoreIntent:        TierGreen,
	LabelRequest:           TierGreen,
	LabelApology:           TierGreen,
	LabelCourtesy:          TierGreen,
	LabelAccountability:    TierYellow,
	LabelSelfJustification: TierYellow,
	LabelNegativeFeedback:  TierYellow,
	LabelEmotional:         TierYellow,
	LabelExcessDetail:      TierYellow,
	LabelAggression:        TierRed,
	LabelPersonalAttack:    TierRed,
	LabelPrivateTMI:        TierRed,
	LabelPureGrumble:       TierRed,
}

// Tier returns the handling tier for the label.
func (l SegmentLabel) Tier() SegmentLabelTier {
	return labelTiers[l]
}

// Valid reports whether the label is one of the 14 known labels.
func (l SegmentLabel) Valid() bool {
	_, ok := labelTiers[l]
	return ok
}

// AllLabels returns the closed set of 14 segment labels.
func AllLabels() []SegmentLabel {
	return []SegmentLabel{
		LabelCoreFact, LabelCoreIntent, LabelRequest, LabelApology, LabelCourtesy,
		LabelAccountability, LabelSelfJustification, LabelNegativeFeedback,
		LabelEmotional, LabelExcessDetail,
		LabelAggression, LabelPersonalAttack, LabelPrivateTMI, LabelPureGrumble,
	}
}

// LockedSpanType tags a locked span with the pattern family that produced it.
// The value doubles as the placeholder prefix: the k-th span of a type
// becomes {{PREFIX_k}}.
type LockedSpanType string

const (
	SpanEmail    LockedSpanType = "EMAIL"
	SpanURL      LockedSpanType = "URL"
	SpanAccount  LockedSpanType = "ACCOUNT"
	SpanDate     LockedSpanType = "DATE"
	SpanTime     LockedSpanType = "TIME"
	SpanPhone    LockedSpanType = "PHONE"
	SpanMoney    LockedSpanType = "MONEY"
	SpanNumber   LockedSpanType = "NUMBER"
	SpanUUID     LockedSpanType = "UUID"
	SpanFile     LockedSpanType = "FILE"
	SpanTicket   LockedSpanType = "TICKET"
	SpanVersion  LockedSpanType = "VERSION"
	SpanQuote    LockedSpanType = "QUOTE"
	SpanID       LockedSpanType = "ID"
	SpanHash     LockedSpanType = "HASH"
	SpanSemantic LockedSpanType = "NAME"
)

// ValidationIssueType identifies which validator rule fired.
type ValidationIssueType string

const (
	IssueEmoji                ValidationIssueType = "EMOJI"
	IssueForbiddenPhrase      ValidationIssueType = "FORBIDDEN_PHRASE"
	IssueHallucinatedFact     ValidationIssueType = "HALLUCINATED_FACT"
	IssueEndingRepetition     ValidationIssueType = "ENDING_REPETITION"
	IssueLengthOverexpansion  ValidationIssueType = "LENGTH_OVEREXPANSION"
	IssuePerspectiveError     ValidationIssueType = "PERSPECTIVE_ERROR"
	IssueLockedSpanMissing    ValidationIssueType = "LOCKED_SPAN_MISSING"
	IssueRedactedReentry      ValidationIssueType = "REDACTED_REENTRY"
	IssueRedactionTrace       ValidationIssueType = "REDACTION_TRACE"
	IssueCoreNumberMissing    ValidationIssueType = "CORE_NUMBER_MISSING"
	IssueCoreDateMissing      ValidationIssueType = "CORE_DATE_MISSING"
	IssueSoftenContentDropped ValidationIssueType = "SOFTEN_CONTENT_DROPPED"
	IssueSectionS2Missing     ValidationIssueType = "SECTION_S2_MISSING"
	IssueInformalConjunction  ValidationIssueType = "INFORMAL_CONJUNCTION"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)
