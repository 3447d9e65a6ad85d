// Package pipeline orchestrates the multi-stage tone transformation:
// preprocessing, optional identity boosting, segmentation, labeling,
// template selection with context gating, redaction, situation analysis,
// cushion planning, RAG retrieval, and the final generation with a single
// validation-driven retry.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/politeai/tonebridge/pkg/config"
	"github.com/politeai/tonebridge/pkg/cushion"
	"github.com/politeai/tonebridge/pkg/gating"
	"github.com/politeai/tonebridge/pkg/labeling"
	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/masking"
	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/prompt"
	"github.com/politeai/tonebridge/pkg/rag"
	"github.com/politeai/tonebridge/pkg/redaction"
	"github.com/politeai/tonebridge/pkg/segmentation"
	"github.com/politeai/tonebridge/pkg/situation"
	"github.com/politeai/tonebridge/pkg/template"
	"github.com/politeai/tonebridge/pkg/validation"
)

// Request is one transform invocation. Topic and Purpose are optional user
// metadata; empty means unspecified.
type Request struct {
	Persona               models.Persona
	Contexts              []models.SituationContext
	ToneLevel             models.ToneLevel
	Topic                 models.Topic
	Purpose               models.Purpose
	OriginalText          string
	UserPrompt            string
	SenderInfo            string
	IdentityBoosterToggle bool
}

// Retriever fetches reference material for the final prompts. Nil disables
// retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, maskedText string, filters rag.Filters) *rag.Results
}

// Pipeline wires the analysis stages and the final generation together.
type Pipeline struct {
	client     llm.Client
	settings   *config.Settings
	registry   *template.Registry
	segmenter  *segmentation.Segmenter
	refiner    *segmentation.Refiner
	labeler    *labeling.Labeler
	analyzer   *situation.Analyzer
	booster    *gating.Booster
	gate       *gating.ContextGate
	strategist *cushion.Strategist
	retriever  Retriever
	logger     *slog.Logger
}

// New builds a pipeline from settings. retriever may be nil.
func New(client llm.Client, settings *config.Settings, retriever Retriever, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client:   client,
		settings: settings,
		registry: template.NewRegistry(),
		segmenter: segmentation.NewSegmenter(
			settings.SegmenterMaxSegmentLength,
			settings.SegmenterDiscourseMarkerMinLength,
			settings.SegmenterEnumerationMinLength,
		),
		refiner:    segmentation.NewRefiner(client, 0, logger),
		labeler:    labeling.NewLabeler(client, settings.GeminiLabelModel, logger),
		analyzer:   situation.NewAnalyzer(client, logger),
		booster:    gating.NewBooster(client, settings.GeminiLabelModel, logger),
		gate:       gating.NewContextGate(client, logger),
		strategist: cushion.NewStrategist(client, settings.GeminiLabelModel, logger),
		retriever:  retriever,
		logger:     logger,
	}
}

// Analysis is everything the final generation needs from the analysis phase.
type Analysis struct {
	MaskedText               string
	LockedSpans              []models.LockedSpan
	Segments                 []models.Segment
	LabeledSegments          []models.LabeledSegment
	Redaction                redaction.Result
	SituationAnalysis        models.SituationAnalysis
	SummaryText              string
	CushionStrategy          *cushion.Strategy
	RAGResults               *rag.Results
	AnalysisPromptTokens     int
	AnalysisCompletionTokens int
	IdentityBoosterFired     bool
	SituationAnalysisFired   bool
	MetadataOverridden       bool
	YellowRecoveryApplied    bool
	YellowUpgradeCount       int
	ChosenTemplate           *template.Template
	EffectiveSections        []template.Section
	GreenCount               int
	YellowCount              int
	RedCount                 int
}

// ExecuteAnalysis runs every stage before the final generation. Situation
// analysis runs concurrently with the segment-label chain; its failure is
// fatal for the request.
func (p *Pipeline) ExecuteAnalysis(ctx context.Context, req Request, cb ProgressCallback) (*Analysis, error) {
	if cb == nil {
		cb = NopCallback{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cb.OnPhase("normalizing")
	normalized := masking.Normalize(req.OriginalText)

	cb.OnPhase("extracting")
	regexSpans := masking.Extract(normalized)
	masked := masking.Mask(normalized, regexSpans)
	cb.OnSpansExtracted(regexSpans, masked)
	if len(regexSpans) > 0 {
		p.logger.Info("Extracted regex locked spans", "count", len(regexSpans))
	}

	totalPrompt, totalCompletion := 0, 0

	// Situation analysis sees the pre-booster masked text, same as the
	// segment-label chain would without boosting.
	saFired := gating.ShouldFireSituationAnalysis()
	var saResult models.SituationAnalysis
	g, gctx := errgroup.WithContext(ctx)
	if saFired {
		saMasked := masked
		g.Go(func() error {
			result, err := p.analyzer.Analyze(gctx, req.Persona, req.Contexts, req.ToneLevel,
				saMasked, req.UserPrompt, req.SenderInfo)
			if err != nil {
				if llm.IsTransformError(err) {
					return err
				}
				return llm.NewTransformError(llm.KindOther, "상황 분석 중 오류가 발생했습니다.", err)
			}
			saResult = result
			return nil
		})
	}
	fail := func(err error) (*Analysis, error) {
		cancel()
		_ = g.Wait()
		return nil, err
	}

	allSpans := regexSpans
	boosterFired := false
	if gating.ShouldFireIdentityBooster(req.IdentityBoosterToggle, p.logger) {
		cb.OnPhase("identity_boosting")
		boost, err := p.booster.Boost(ctx, normalized, regexSpans, masked)
		if err != nil {
			return fail(err)
		}
		totalPrompt += boost.PromptTokens
		totalCompletion += boost.CompletionTokens
		boosterFired = true
		if len(boost.ExtraSpans) > 0 {
			allSpans = mergeSpans(regexSpans, boost.ExtraSpans)
			masked = masking.Mask(normalized, allSpans)
		}
		cb.OnSpansExtracted(allSpans, masked)
	} else {
		cb.OnPhase("identity_skipped")
	}

	cb.OnPhase("segmenting")
	segments := p.segmenter.Segment(masked)

	refine := p.refiner.Refine(ctx, segments, masked)
	if refine.PromptTokens > 0 {
		cb.OnPhase("segment_refining")
		segments = refine.Segments
		totalPrompt += refine.PromptTokens
		totalCompletion += refine.CompletionTokens
	} else {
		cb.OnPhase("segment_refining_skipped")
	}
	cb.OnSegmented(segments)

	cb.OnPhase("labeling")
	labelResult, err := p.labeler.Label(ctx, req.Persona, req.Contexts, req.ToneLevel,
		req.UserPrompt, req.SenderInfo, segments, masked)
	if err != nil {
		return fail(err)
	}
	totalPrompt += labelResult.PromptTokens
	totalCompletion += labelResult.CompletionTokens

	enforced := labeling.EnforceRedLabels(labelResult.LabeledSegments, p.logger)
	cb.OnLabeled(enforced)

	cb.OnPhase("template_selecting")
	labelStats := models.LabelStatsFrom(enforced)
	selection := template.Select(p.registry, req.Persona, req.Contexts, req.Topic, req.Purpose,
		labelStats, masked)
	chosen := selection.Template
	effective := selection.EffectiveSections
	metadataOverridden := false

	if gating.ShouldFireContextGating(req.Contexts, req.Topic, req.Purpose, p.logger) {
		cb.OnPhase("context_gating")
		verdict := p.gate.Evaluate(ctx, req.Persona, req.Contexts, req.Topic, req.Purpose,
			req.ToneLevel, masked, enforced)
		totalPrompt += verdict.PromptTokens
		totalCompletion += verdict.CompletionTokens

		if verdict.MeetsThreshold() {
			topic := req.Topic
			if verdict.InferredTopic != "" {
				topic = verdict.InferredTopic
			}
			purpose := req.Purpose
			if verdict.InferredPurpose != "" {
				purpose = verdict.InferredPurpose
			}
			contexts := req.Contexts
			if verdict.InferredPrimaryContext != "" {
				contexts = []models.SituationContext{verdict.InferredPrimaryContext}
			}
			overridden := template.Select(p.registry, req.Persona, contexts, topic, purpose,
				labelStats, masked)
			p.logger.Info("Context gating overrode template",
				"from", chosen.ID, "to", overridden.Template.ID,
				"confidence", verdict.Confidence)
			chosen = overridden.Template
			effective = overridden.EffectiveSections
			metadataOverridden = true
		}
	} else {
		cb.OnPhase("context_gating_skipped")
	}
	cb.OnTemplateSelected(chosen, metadataOverridden)

	cb.OnPhase("redacting")
	redacted := redaction.Process(enforced, p.logger)
	cb.OnRedacted(enforced, redacted.RedCount)

	if saFired {
		cb.OnPhase("situation_analyzing")
		if err := g.Wait(); err != nil {
			return nil, err
		}
		saResult = situation.FilterRedFacts(saResult, masked, enforced, p.logger)
		totalPrompt += saResult.PromptTokens
		totalCompletion += saResult.CompletionTokens
		cb.OnSituationAnalysis(true, &saResult)
	} else {
		cb.OnPhase("situation_skipped")
		cb.OnSituationAnalysis(false, nil)
	}

	var strategy *cushion.Strategy
	if redacted.YellowCount > 0 {
		cb.OnPhase("cushion_planning")
		strategy = p.strategist.Generate(ctx, saResult, enforced, req.SenderInfo)
		totalPrompt += strategy.PromptTokens
		totalCompletion += strategy.CompletionTokens
		cb.OnCushionStrategy(strategy)
	}

	var ragResults *rag.Results
	if p.retriever != nil {
		cb.OnPhase("retrieving")
		ragResults = p.retriever.Retrieve(ctx, masked, rag.Filters{
			Persona:      string(req.Persona),
			Contexts:     contextNames(req.Contexts),
			ToneLevel:    string(req.ToneLevel),
			Sections:     sectionNames(effective),
			YellowLabels: yellowLabelNames(enforced),
		})
		cb.OnRAGResults(ragResults)
	}

	greenCount := 0
	for _, ls := range enforced {
		if ls.Label.Tier() == models.TierGreen {
			greenCount++
		}
	}

	p.logger.Info("Analysis complete",
		"segments", len(segments),
		"green", greenCount, "yellow", redacted.YellowCount, "red", redacted.RedCount,
		"booster", boosterFired, "situation", saFired,
		"template", chosen.ID, "metadataOverridden", metadataOverridden)

	return &Analysis{
		MaskedText:               masked,
		LockedSpans:              allSpans,
		Segments:                 segments,
		LabeledSegments:          enforced,
		Redaction:                redacted,
		SituationAnalysis:        saResult,
		SummaryText:              labelResult.SummaryText,
		CushionStrategy:          strategy,
		RAGResults:               ragResults,
		AnalysisPromptTokens:     totalPrompt,
		AnalysisCompletionTokens: totalCompletion,
		IdentityBoosterFired:     boosterFired,
		SituationAnalysisFired:   saFired,
		MetadataOverridden:       metadataOverridden,
		YellowRecoveryApplied:    labelResult.YellowRecoveryApplied,
		YellowUpgradeCount:       labelResult.YellowUpgradeCount,
		ChosenTemplate:           chosen,
		EffectiveSections:        effective,
		GreenCount:               greenCount,
		YellowCount:              redacted.YellowCount,
		RedCount:                 redacted.RedCount,
	}, nil
}

// FinalPrompt is the assembled prompt pair for the final model.
type FinalPrompt struct {
	SystemPrompt string
	UserMessage  string
	LockedSpans  []models.LockedSpan
	RedactionMap map[string]string
}

// BuildFinalPrompt assembles the final model prompts from analysis results.
// withCushion appends the cushion strategy block when one exists.
func (p *Pipeline) BuildFinalPrompt(a *Analysis, req Request, withCushion bool) FinalPrompt {
	ordered := prompt.BuildOrderedSegments(a.LabeledSegments)

	system := prompt.BuildFinalSystemPrompt(req.Persona, req.Contexts, req.ToneLevel,
		a.ChosenTemplate, a.EffectiveSections, a.RAGResults)
	if withCushion && !a.CushionStrategy.IsEmpty() {
		system += a.CushionStrategy.FormatBlock()
	}

	user := prompt.BuildFinalUserMessage(req.Persona, req.Contexts, req.ToneLevel, req.SenderInfo,
		ordered, a.LockedSpans, &a.SituationAnalysis, a.SummaryText,
		a.ChosenTemplate, a.EffectiveSections, a.RAGResults)

	return FinalPrompt{
		SystemPrompt: system,
		UserMessage:  user,
		LockedSpans:  a.LockedSpans,
		RedactionMap: a.Redaction.RedactionMap,
	}
}

// Result is a completed transform.
type Result struct {
	TransformedText  string
	ValidationIssues []models.ValidationIssue
	Stats            models.PipelineStats
}

var retryableWarnings = map[models.ValidationIssueType]bool{
	models.IssueCoreNumberMissing:    true,
	models.IssueCoreDateMissing:      true,
	models.IssueSoftenContentDropped: true,
	models.IssueSectionS2Missing:     true,
	models.IssueInformalConjunction:  true,
}

const validationRetryHint = "\n\n[검증 재시도 지침] 원문에 있던 숫자/날짜는 모두 유지하세요. " +
	"SOFTEN 대상 내용을 삭제하지 말고 재작성하세요. " +
	"S2(내부 확인/점검) 섹션이 있으면 반드시 포함하세요. " +
	"구어체 접속사(어쨌든/아무튼/걍/근데)를 비즈니스 접속사로 대체하세요."

func hasRetryableWarning(issues []models.ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == models.SeverityWarning && retryableWarnings[issue.Type] {
			return true
		}
	}
	return false
}

func retryDiagnostics(issues []models.ValidationIssue) string {
	var msgs []string
	for _, issue := range issues {
		if issue.Severity == models.SeverityError || retryableWarnings[issue.Type] {
			msgs = append(msgs, issue.Message)
		}
	}
	return "\n\n[시스템 검증 오류] " + strings.Join(msgs, "; ")
}

func (p *Pipeline) validate(a *Analysis, req Request, fp FinalPrompt, unmasked, raw string) models.ValidationResult {
	var yellowTexts []string
	for _, ls := range a.LabeledSegments {
		if ls.Label.Tier() == models.TierYellow {
			yellowTexts = append(yellowTexts, ls.Text)
		}
	}
	return validation.Validate(validation.Input{
		FinalText:          unmasked,
		OriginalText:       req.OriginalText,
		Spans:              fp.LockedSpans,
		RawLLMOutput:       raw,
		Persona:            req.Persona,
		RedactionMap:       fp.RedactionMap,
		YellowSegmentTexts: yellowTexts,
		EffectiveSections:  a.EffectiveSections,
		LabeledSegments:    a.LabeledSegments,
	}, p.logger)
}

func (p *Pipeline) finalBudget(a *Analysis, req Request, model string) *int32 {
	if !strings.HasPrefix(model, "gemini-") {
		return nil
	}
	budget := ComputeThinkingBudget(a.Segments, a.LabeledSegments, req.OriginalText)
	return &budget
}

// ExecuteFinal calls the final model with the analysis results, validates the
// unmasked output, and retries once on any ERROR or retryable WARNING.
func (p *Pipeline) ExecuteFinal(ctx context.Context, a *Analysis, req Request) (*Result, error) {
	start := time.Now()

	fp := p.BuildFinalPrompt(a, req, true)
	model := p.settings.GeminiFinalModel
	maxTokens := p.settings.OpenAIMaxTokensPaid
	budget := p.finalBudget(a, req, model)

	finalResult, err := p.client.Call(ctx, llm.Request{
		Model:          model,
		System:         fp.SystemPrompt,
		User:           fp.UserMessage,
		Temperature:    -1,
		MaxTokens:      maxTokens,
		ThinkingBudget: budget,
	})
	if err != nil {
		return nil, err
	}

	unmask := masking.Unmask(finalResult.Content, fp.LockedSpans)
	verdict := p.validate(a, req, fp, unmask.Text, finalResult.Content)

	retryCount := 0
	if !verdict.Passed() || hasRetryableWarning(verdict.Issues) {
		p.logger.Warn("Final validation issues, retrying once",
			"errors", len(verdict.Errors()), "issues", len(verdict.Issues))
		retryCount = 1

		retryUser := fp.UserMessage + retryDiagnostics(verdict.Issues) +
			validation.BuildLockedSpanRetryHint(verdict.Issues, fp.LockedSpans)
		var retryBudget *int32
		if budget != nil {
			rb := RetryThinkingBudget(*budget)
			retryBudget = &rb
		}

		retryResult, err := p.client.Call(ctx, llm.Request{
			Model:          model,
			System:         fp.SystemPrompt + validationRetryHint,
			User:           retryUser,
			Temperature:    0.3,
			MaxTokens:      maxTokens,
			ThinkingBudget: retryBudget,
		})
		if err != nil {
			return nil, err
		}

		unmask = masking.Unmask(retryResult.Content, fp.LockedSpans)
		verdict = p.validate(a, req, fp, unmask.Text, retryResult.Content)
		finalResult = retryResult
	}

	return &Result{
		TransformedText:  unmask.Text,
		ValidationIssues: verdict.Issues,
		Stats:            p.buildStats(a, finalResult.PromptTokens, finalResult.CompletionTokens, retryCount, time.Since(start)),
	}, nil
}

// Transform runs the full batch pipeline.
func (p *Pipeline) Transform(ctx context.Context, req Request) (*Result, error) {
	analysis, err := p.ExecuteAnalysis(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return p.ExecuteFinal(ctx, analysis, req)
}

func (p *Pipeline) buildStats(a *Analysis, finalPrompt, finalCompletion, retryCount int, elapsed time.Duration) models.PipelineStats {
	return models.PipelineStats{
		AnalysisPromptTokens:     a.AnalysisPromptTokens,
		AnalysisCompletionTokens: a.AnalysisCompletionTokens,
		FinalPromptTokens:        finalPrompt,
		FinalCompletionTokens:    finalCompletion,
		SegmentCount:             len(a.Segments),
		GreenCount:               a.GreenCount,
		YellowCount:              a.YellowCount,
		RedCount:                 a.RedCount,
		LockedSpanCount:          len(a.LockedSpans),
		RetryCount:               retryCount,
		IdentityBoosterFired:     a.IdentityBoosterFired,
		SituationAnalysisFired:   a.SituationAnalysisFired,
		MetadataOverridden:       a.MetadataOverridden,
		YellowRecoveryApplied:    a.YellowRecoveryApplied,
		YellowUpgradeCount:       a.YellowUpgradeCount,
		ChosenTemplateID:         a.ChosenTemplate.ID,
		TotalLatencyMs:           elapsed.Milliseconds(),
	}
}

func mergeSpans(base, extra []models.LockedSpan) []models.LockedSpan {
	merged := make([]models.LockedSpan, 0, len(base)+len(extra))
	merged = append(merged, base...)
	merged = append(merged, extra...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	return merged
}

func contextNames(contexts []models.SituationContext) []string {
	names := make([]string, 0, len(contexts))
	for _, c := range contexts {
		names = append(names, string(c))
	}
	return names
}

func sectionNames(sections []template.Section) []string {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, string(s))
	}
	return names
}

func yellowLabelNames(labeled []models.LabeledSegment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ls := range labeled {
		if ls.Label.Tier() != models.TierYellow {
			continue
		}
		name := string(ls.Label)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
