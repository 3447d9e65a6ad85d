package pipeline

import (
	"github.com/politeai/tonebridge/pkg/cushion"
	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/rag"
	"github.com/politeai/tonebridge/pkg/template"
)

// ProgressCallback receives analysis-phase milestones. The streaming surface
// turns these into SSE events; batch mode uses the no-op implementation.
type ProgressCallback interface {
	OnPhase(phase string)
	OnSpansExtracted(spans []models.LockedSpan, maskedText string)
	OnSegmented(segments []models.Segment)
	OnLabeled(labeled []models.LabeledSegment)
	OnSituationAnalysis(fired bool, result *models.SituationAnalysis)
	OnRedacted(labeled []models.LabeledSegment, redCount int)
	OnTemplateSelected(tmpl *template.Template, metadataOverridden bool)
	OnCushionStrategy(strategy *cushion.Strategy)
	OnRAGResults(results *rag.Results)
}

// NopCallback discards every milestone.
type NopCallback struct{}

func (NopCallback) OnPhase(string)                                     {}
func (NopCallback) OnSpansExtracted([]models.LockedSpan, string)       {}
func (NopCallback) OnSegmented([]models.Segment)                       {}
func (NopCallback) OnLabeled([]models.LabeledSegment)                  {}
func (NopCallback) OnSituationAnalysis(bool, *models.SituationAnalysis) {}
func (NopCallback) OnRedacted([]models.LabeledSegment, int)            {}
func (NopCallback) OnTemplateSelected(*template.Template, bool)        {}
func (NopCallback) OnCushionStrategy(*cushion.Strategy)                {}
func (NopCallback) OnRAGResults(*rag.Results)                          {}
