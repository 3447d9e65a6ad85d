package gating

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

const (
	contextGatingModel       = "gpt-4o-mini"
	contextGatingTemperature = 0.2
	contextGatingMaxTokens   = 300

	// OverrideConfidenceThreshold is the minimum confidence at which an
	// inferred metadata override replaces the user's selection.
	OverrideConfidenceThreshold = 0.72

	contextGatingTextLimit = 1200
)

const contextGatingSystemPrompt = "당신은 한국어 메시지의 메타데이터 검증 전문가입니다.\n" +
	"사용자가 선택한 메타데이터(수신자/상황/주제/목적)와 실제 텍스트 내용이 일치하는지 검증하세요.\n\n" +
	"응답은 반드시 JSON 형식으로:\n" +
	"{\n" +
	"  \"should_override\": true/false,\n" +
	"  \"confidence\": 0.0~1.0,\n" +
	"  \"inferred\": {\n" +
	"    \"topic\": \"ENUM값 또는 null\",\n" +
	"    \"purpose\": \"ENUM값 또는 null\",\n" +
	"    \"primary_context\": \"ENUM값 또는 null\",\n" +
	"    \"template_id\": \"T01~T12 또는 null\"\n" +
	"  },\n" +
	"  \"reasons\": [\"이유1\", \"이유2\"],\n" +
	"  \"safety_notes\": [\"주의사항\"]\n" +
	"}\n\n" +
	"Topic: REFUND_CANCEL, OUTAGE_ERROR, ACCOUNT_PERMISSION, DATA_FILE, SCHEDULE_DEADLINE, " +
	"COST_BILLING, CONTRACT_TERMS, HR_EVALUATION, ACADEMIC_GRADE, COMPLAINT_REGULATION, OTHER\n" +
	"Purpose: INFO_DELIVERY, DATA_REQUEST, SCHEDULE_COORDINATION, APOLOGY_RECOVERY, " +
	"RESPONSIBILITY_SEPARATION, REJECTION_NOTICE, REFUND_REJECTION, WARNING_PREVENTION, " +
	"RELATIONSHIP_RECOVERY, NEXT_ACTION_CONFIRM, ANNOUNCEMENT\n" +
	"Context: REQUEST, SCHEDULE_DELAY, URGING, REJECTION, APOLOGY, COMPLAINT, ANNOUNCEMENT, " +
	"FEEDBACK, BILLING, SUPPORT, CONTRACT, RECRUITING, CIVIL_COMPLAINT, GRATITUDE\n\n" +
	"규칙:\n" +
	"- 메타데이터가 텍스트 내용과 명백히 불일치할 때만 should_override=true\n" +
	"- 애매한 경우 should_override=false (사용자 의도 존중)\n" +
	"- inferred 값은 확신이 있을 때만 제공, 아니면 null"

// ContextGatingResult is the metadata mismatch verdict. Inferred fields are
// empty when the model was not confident enough to suggest a value.
type ContextGatingResult struct {
	ShouldOverride         bool
	Confidence             float64
	InferredTopic          models.Topic
	InferredPurpose        models.Purpose
	InferredPrimaryContext models.SituationContext
	InferredTemplateID     string
	Reasons                []string
	SafetyNotes            []string
	PromptTokens           int
	CompletionTokens       int
}

// MeetsThreshold reports whether the override should actually be applied.
func (r ContextGatingResult) MeetsThreshold() bool {
	return r.ShouldOverride && r.Confidence >= OverrideConfidenceThreshold
}

// ContextGate verifies that the user-selected metadata matches the text.
type ContextGate struct {
	client llm.Client
	logger *slog.Logger
}

func NewContextGate(client llm.Client, logger *slog.Logger) *ContextGate {
	return &ContextGate{client: client, logger: logger}
}

// Evaluate never fails the pipeline: on call or parse failure it returns a
// no-override result with the failure recorded in SafetyNotes.
func (g *ContextGate) Evaluate(
	ctx context.Context,
	persona models.Persona,
	contexts []models.SituationContext,
	topic models.Topic,
	purpose models.Purpose,
	toneLevel models.ToneLevel,
	maskedText string,
	labeledSegments []models.LabeledSegment,
) ContextGatingResult {
	labelParts := make([]string, 0, len(labeledSegments))
	for _, ls := range labeledSegments {
		labelParts = append(labelParts, fmt.Sprintf("%s:%s", ls.SegmentID, ls.Label))
	}

	contextNames := make([]string, 0, len(contexts))
	for _, c := range contexts {
		contextNames = append(contextNames, string(c))
	}

	truncated := maskedText
	if runes := []rune(maskedText); len(runes) > contextGatingTextLimit {
		truncated = string(runes[:contextGatingTextLimit]) + "..."
	}

	userMessage := fmt.Sprintf(
		"사용자 메타:\n- 수신자: %s\n- 상황: %s\n- 주제: %s\n- 목적: %s\n- 톤: %s\n\n라벨 요약: %s\n\n텍스트 (마스킹):\n%s",
		persona,
		strings.Join(contextNames, ", "),
		orUnspecified(string(topic)),
		orUnspecified(string(purpose)),
		toneLevel,
		strings.Join(labelParts, ", "),
		truncated,
	)

	result, err := g.client.Call(ctx, llm.Request{
		Model:       contextGatingModel,
		System:      contextGatingSystemPrompt,
		User:        userMessage,
		Temperature: contextGatingTemperature,
		MaxTokens:   contextGatingMaxTokens,
	})
	if err != nil {
		g.logger.Warn("Context gating call failed, returning no-override", "error", err)
		return ContextGatingResult{SafetyNotes: []string{"LLM call failed: " + err.Error()}}
	}

	return parseContextGating(result, g.logger)
}

func parseContextGating(result *llm.Result, logger *slog.Logger) ContextGatingResult {
	var root struct {
		ShouldOverride bool    `json:"should_override"`
		Confidence     float64 `json:"confidence"`
		Inferred       struct {
			Topic          string `json:"topic"`
			Purpose        string `json:"purpose"`
			PrimaryContext string `json:"primary_context"`
			TemplateID     string `json:"template_id"`
		} `json:"inferred"`
		Reasons     []string `json:"reasons"`
		SafetyNotes []string `json:"safety_notes"`
	}
	if err := json.Unmarshal([]byte(result.Content), &root); err != nil {
		logger.Warn("Context gating parse failed", "error", err)
		return ContextGatingResult{
			SafetyNotes:      []string{"Parse failed: " + err.Error()},
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
		}
	}

	templateID := root.Inferred.TemplateID
	if templateID == "null" {
		templateID = ""
	}

	return ContextGatingResult{
		ShouldOverride:         root.ShouldOverride,
		Confidence:             root.Confidence,
		InferredTopic:          parseTopic(root.Inferred.Topic),
		InferredPurpose:        parsePurpose(root.Inferred.Purpose),
		InferredPrimaryContext: parseSituationContext(root.Inferred.PrimaryContext),
		InferredTemplateID:     templateID,
		Reasons:                root.Reasons,
		SafetyNotes:            root.SafetyNotes,
		PromptTokens:           result.PromptTokens,
		CompletionTokens:       result.CompletionTokens,
	}
}

func orUnspecified(s string) string {
	if s == "" {
		return "미지정"
	}
	return s
}

var knownTopics = map[models.Topic]bool{
	models.TopicRefundCancel: true, models.TopicOutageError: true,
	models.TopicAccountPermission: true, models.TopicDataFile: true,
	models.TopicScheduleDeadline: true, models.TopicCostBilling: true,
	models.TopicContractTerms: true, models.TopicHREvaluation: true,
	models.TopicAcademicGrade: true, models.TopicComplaintRegulation: true,
	models.TopicOther: true,
}

var knownPurposes = map[models.Purpose]bool{
	models.PurposeInfoDelivery: true, models.PurposeDataRequest: true,
	models.PurposeScheduleCoordination: true, models.PurposeApologyRecovery: true,
	models.PurposeResponsibilitySeparation: true, models.PurposeRejectionNotice: true,
	models.PurposeRefundRejection: true, models.PurposeWarningPrevention: true,
	models.PurposeRelationshipRecovery: true, models.PurposeNextActionConfirm: true,
	models.PurposeAnnouncement: true,
}

var knownContexts = map[models.SituationContext]bool{
	models.ContextRequest: true, models.ContextScheduleDelay: true,
	models.ContextUrging: true, models.ContextRejection: true,
	models.ContextApology: true, models.ContextComplaint: true,
	models.ContextAnnouncement: true, models.ContextFeedback: true,
	models.ContextBilling: true, models.ContextSupport: true,
	models.ContextContract: true, models.ContextRecruiting: true,
	models.ContextCivilComplaint: true, models.ContextGratitude: true,
}

func parseTopic(s string) models.Topic {
	t := models.Topic(strings.TrimSpace(s))
	if knownTopics[t] {
		return t
	}
	return ""
}

func parsePurpose(s string) models.Purpose {
	p := models.Purpose(strings.TrimSpace(s))
	if knownPurposes[p] {
		return p
	}
	return ""
}

func parseSituationContext(s string) models.SituationContext {
	c := models.SituationContext(strings.TrimSpace(s))
	if knownContexts[c] {
		return c
	}
	return ""
}
