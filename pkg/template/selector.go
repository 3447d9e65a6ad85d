package template

import (
	"log/slog"
	"regexp"

	"github.com/politeai/tonebridge/pkg/models"
)

// SelectionResult is the chosen template plus the sections to actually emit
// after S2 enforcement and persona skip rules.
type SelectionResult struct {
	Template          *Template
	S2Enforced        bool
	EffectiveSections []Section
}

var purposeTemplates = map[models.Purpose]string{
	models.PurposeInfoDelivery:             "T01_GENERAL",
	models.PurposeDataRequest:              "T02_DATA_REQUEST",
	models.PurposeScheduleCoordination:     "T04_SCHEDULE",
	models.PurposeApologyRecovery:          "T05_APOLOGY",
	models.PurposeResponsibilitySeparation: "T09_BLAME_SEPARATION",
	models.PurposeRejectionNotice:          "T06_REJECTION",
	models.PurposeRefundRejection:          "T11_REFUND_REJECTION",
	models.PurposeWarningPrevention:        "T12_WARNING_PREVENTION",
	models.PurposeRelationshipRecovery:     "T10_RELATIONSHIP_RECOVERY",
	models.PurposeNextActionConfirm:        "T01_GENERAL",
	models.PurposeAnnouncement:             "T07_ANNOUNCEMENT",
}

var contextTemplates = map[models.SituationContext]string{
	models.ContextRequest:        "T02_DATA_REQUEST",
	models.ContextScheduleDelay:  "T04_SCHEDULE",
	models.ContextUrging:         "T03_NAGGING_REMINDER",
	models.ContextRejection:      "T06_REJECTION",
	models.ContextApology:        "T05_APOLOGY",
	models.ContextComplaint:      "T09_BLAME_SEPARATION",
	models.ContextAnnouncement:   "T07_ANNOUNCEMENT",
	models.ContextFeedback:       "T08_FEEDBACK",
	models.ContextBilling:        "T09_BLAME_SEPARATION",
	models.ContextSupport:        "T05_APOLOGY",
	models.ContextContract:       "T06_REJECTION",
	models.ContextRecruiting:     "T01_GENERAL",
	models.ContextCivilComplaint: "T09_BLAME_SEPARATION",
	models.ContextGratitude:      "T10_RELATIONSHIP_RECOVERY",
}

var refundKeywords = regexp.MustCompile(`환불|취소|반품|결제\s*취소|카드\s*취소|refund|cancel`)

// Select resolves the template by purpose, then primary context, then
// default, applies the refund overrides, enforces S2 when accountability or
// negative feedback is present, and finally applies persona skip rules.
func Select(
	registry *Registry,
	persona models.Persona,
	contexts []models.SituationContext,
	topic models.Topic,
	purpose models.Purpose,
	labelStats models.LabelStats,
	maskedText string,
) SelectionResult {
	var templateID string
	switch {
	case purpose != "":
		templateID = purposeTemplate(purpose)
		slog.Info("Template selected by purpose", "purpose", purpose, "template", templateID)
	case len(contexts) > 0:
		templateID = contextTemplate(contexts[0])
		slog.Info("Template selected by context", "context", contexts[0], "template", templateID)
	default:
		templateID = DefaultTemplateID
		slog.Info("Template defaulted", "template", templateID)
	}

	if topic == models.TopicRefundCancel && isRejectionLike(purpose, contexts) {
		templateID = "T11_REFUND_REJECTION"
		slog.Info("Template override by topic", "template", templateID)
	}

	if templateID != "T11_REFUND_REJECTION" &&
		maskedText != "" &&
		refundKeywords.MatchString(maskedText) &&
		(labelStats.Has(models.LabelNegativeFeedback) || isRejectionLike(purpose, contexts)) {
		templateID = "T11_REFUND_REJECTION"
		slog.Info("Template override by refund keywords", "template", templateID)
	}

	tmpl := registry.Get(templateID)

	s2Enforced := false
	sectionOrder := make([]Section, len(tmpl.SectionOrder))
	copy(sectionOrder, tmpl.SectionOrder)

	if (labelStats.Has(models.LabelAccountability) || labelStats.Has(models.LabelNegativeFeedback)) &&
		!containsSection(sectionOrder, SectionOurEffort) {
		insertAfter := -1
		if idx := indexOfSection(sectionOrder, SectionAcknowledge); idx >= 0 {
			insertAfter = idx
		} else if idx := indexOfSection(sectionOrder, SectionGreeting); idx >= 0 {
			insertAfter = idx
		}
		sectionOrder = insertSection(sectionOrder, insertAfter+1, SectionOurEffort)
		s2Enforced = true
		slog.Info("S2 section enforced", "template", templateID)
	}

	return SelectionResult{
		Template:          tmpl,
		S2Enforced:        s2Enforced,
		EffectiveSections: applySkipRules(sectionOrder, tmpl, persona),
	}
}

func purposeTemplate(purpose models.Purpose) string {
	if id, ok := purposeTemplates[purpose]; ok {
		return id
	}
	return DefaultTemplateID
}

func contextTemplate(ctx models.SituationContext) string {
	if id, ok := contextTemplates[ctx]; ok {
		return id
	}
	return DefaultTemplateID
}

func isRejectionLike(purpose models.Purpose, contexts []models.SituationContext) bool {
	if purpose == models.PurposeRejectionNotice || purpose == models.PurposeRefundRejection {
		return true
	}
	for _, ctx := range contexts {
		if ctx == models.ContextRejection {
			return true
		}
	}
	return false
}

func applySkipRules(sectionOrder []Section, tmpl *Template, persona models.Persona) []Section {
	rule, ok := tmpl.PersonaRules[persona]
	if !ok || len(rule.Skip) == 0 {
		return sectionOrder
	}
	var result []Section
	for _, s := range sectionOrder {
		if !rule.Skip[s] {
			result = append(result, s)
		}
	}
	return result
}

func containsSection(sections []Section, target Section) bool {
	return indexOfSection(sections, target) >= 0
}

func indexOfSection(sections []Section, target Section) int {
	for i, s := range sections {
		if s == target {
			return i
		}
	}
	return -1
}

func insertSection(sections []Section, idx int, s Section) []Section {
	result := make([]Section, 0, len(sections)+1)
	result = append(result, sections[:idx]...)
	result = append(result, s)
	result = append(result, sections[idx:]...)
	return result
}
