package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/models"
)

func TestRegistryContainsAllTemplates(t *testing.T) {
	registry := NewRegistry()
	all := registry.All()
	require.Len(t, all, 12)
	assert.Equal(t, "T01_GENERAL", all[0].ID)
	assert.Equal(t, "T12_WARNING_PREVENTION", all[11].ID)
}

func TestRegistryGetUnknownFallsBack(t *testing.T) {
	registry := NewRegistry()
	assert.Equal(t, "T01_GENERAL", registry.Get("T99_NOPE").ID)
	assert.Equal(t, "T05_APOLOGY", registry.Get("T05_APOLOGY").ID)
}

func TestSectionMetadata(t *testing.T) {
	assert.Equal(t, "인사", SectionGreeting.Label())
	assert.Equal(t, "1문장", SectionGreeting.LengthHint())
	assert.NotEmpty(t, SectionOurEffort.ExpressionPool())
	assert.Empty(t, SectionFacts.ExpressionPool())
}

func TestSelectByPurpose(t *testing.T) {
	registry := NewRegistry()
	result := Select(registry, models.PersonaClient, nil, "", models.PurposeApologyRecovery, models.LabelStats{}, "")
	assert.Equal(t, "T05_APOLOGY", result.Template.ID)
	assert.False(t, result.S2Enforced)
}

func TestSelectByPrimaryContext(t *testing.T) {
	registry := NewRegistry()
	contexts := []models.SituationContext{models.ContextUrging, models.ContextRequest}
	result := Select(registry, models.PersonaBoss, contexts, "", "", models.LabelStats{}, "")
	assert.Equal(t, "T03_NAGGING_REMINDER", result.Template.ID)
}

func TestSelectDefault(t *testing.T) {
	registry := NewRegistry()
	result := Select(registry, models.PersonaOther, nil, "", "", models.LabelStats{}, "")
	assert.Equal(t, "T01_GENERAL", result.Template.ID)
}

func TestSelectPurposeWinsOverContext(t *testing.T) {
	registry := NewRegistry()
	contexts := []models.SituationContext{models.ContextUrging}
	result := Select(registry, models.PersonaBoss, contexts, "", models.PurposeAnnouncement, models.LabelStats{}, "")
	assert.Equal(t, "T07_ANNOUNCEMENT", result.Template.ID)
}

func TestSelectTopicRefundOverride(t *testing.T) {
	registry := NewRegistry()
	contexts := []models.SituationContext{models.ContextRejection}
	result := Select(registry, models.PersonaClient, contexts, models.TopicRefundCancel, "", models.LabelStats{}, "")
	assert.Equal(t, "T11_REFUND_REJECTION", result.Template.ID)
}

func TestSelectTopicRefundNeedsRejection(t *testing.T) {
	registry := NewRegistry()
	contexts := []models.SituationContext{models.ContextRequest}
	result := Select(registry, models.PersonaClient, contexts, models.TopicRefundCancel, "", models.LabelStats{}, "")
	assert.Equal(t, "T02_DATA_REQUEST", result.Template.ID)
}

func TestSelectKeywordRefundOverride(t *testing.T) {
	registry := NewRegistry()
	stats := models.LabelStatsFrom([]models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelNegativeFeedback},
	})
	result := Select(registry, models.PersonaClient, nil, "", "", stats, "환불 요청 주신 건 관련하여")
	assert.Equal(t, "T11_REFUND_REJECTION", result.Template.ID)
}

func TestSelectKeywordWithoutRejectionSignalKeepsTemplate(t *testing.T) {
	registry := NewRegistry()
	result := Select(registry, models.PersonaClient, nil, "", "", models.LabelStats{}, "환불 관련 문의입니다")
	assert.Equal(t, "T01_GENERAL", result.Template.ID)
}

func TestSelectS2Enforcement(t *testing.T) {
	registry := NewRegistry()
	stats := models.LabelStatsFrom([]models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelAccountability},
	})

	// T01 has no S2: it must be injected right after S1.
	result := Select(registry, models.PersonaOther, nil, "", models.PurposeInfoDelivery, stats, "")
	require.True(t, result.S2Enforced)
	idx := indexOfSection(result.EffectiveSections, SectionOurEffort)
	require.GreaterOrEqual(t, idx, 1)
	assert.Equal(t, SectionAcknowledge, result.EffectiveSections[idx-1])

	// T05 already has S2: no enforcement.
	result = Select(registry, models.PersonaOther, nil, "", models.PurposeApologyRecovery, stats, "")
	assert.False(t, result.S2Enforced)
}

func TestSelectS2EnforcementWithoutAcknowledge(t *testing.T) {
	registry := NewRegistry()
	stats := models.LabelStatsFrom([]models.LabeledSegment{
		{SegmentID: "T1", Label: models.LabelNegativeFeedback},
	})

	// T07 has no S1: S2 goes right after S0.
	result := Select(registry, models.PersonaOther, nil, "", models.PurposeAnnouncement, stats, "")
	require.True(t, result.S2Enforced)
	require.GreaterOrEqual(t, len(result.EffectiveSections), 2)
	assert.Equal(t, SectionGreeting, result.EffectiveSections[0])
	assert.Equal(t, SectionOurEffort, result.EffectiveSections[1])
}
