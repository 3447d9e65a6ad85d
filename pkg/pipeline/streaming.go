package pipeline

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/politeai/tonebridge/pkg/cushion"
	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/masking"
	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/rag"
	"github.com/politeai/tonebridge/pkg/template"
	"github.com/politeai/tonebridge/pkg/validation"
)

// GenericTransformErrorMessage is the user-safe fallback for faults that are
// not already classified TransformErrors.
const GenericTransformErrorMessage = "AI 변환 서비스에 일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."

// Event is one streaming pipeline event. String data is sent raw over SSE;
// everything else is JSON-encoded by the transport.
type Event struct {
	Name string
	Data any
}

type emitFunc func(name string, data any) bool

// streamCallback forwards analysis milestones as events.
type streamCallback struct {
	emit emitFunc
}

func (s *streamCallback) OnPhase(phase string) {
	s.emit("phase", phase)
}

func (s *streamCallback) OnSpansExtracted(spans []models.LockedSpan, maskedText string) {
	payload := make([]map[string]any, 0, len(spans))
	for _, span := range spans {
		payload = append(payload, map[string]any{
			"placeholder": span.Placeholder,
			"original":    span.Original,
			"type":        string(span.Type),
		})
	}
	s.emit("spans", payload)
	s.emit("maskedText", maskedText)
}

func (s *streamCallback) OnSegmented(segments []models.Segment) {
	s.emit("segments", segments)
}

func (s *streamCallback) OnLabeled(labeled []models.LabeledSegment) {
	payload := make([]map[string]any, 0, len(labeled))
	for _, ls := range labeled {
		payload = append(payload, map[string]any{
			"segmentId": ls.SegmentID,
			"label":     string(ls.Label),
			"tier":      string(ls.Label.Tier()),
			"text":      ls.Text,
		})
	}
	s.emit("labels", payload)
}

func (s *streamCallback) OnSituationAnalysis(fired bool, result *models.SituationAnalysis) {
	if !fired || result == nil {
		return
	}
	s.emit("situationAnalysis", map[string]any{
		"facts":  result.Facts,
		"intent": result.Intent,
	})
}

func (s *streamCallback) OnRedacted(labeled []models.LabeledSegment, _ int) {
	payload := make([]map[string]any, 0, len(labeled))
	for _, ls := range labeled {
		var text any
		if ls.Label.Tier() != models.TierRed {
			text = ls.Text
		}
		payload = append(payload, map[string]any{
			"id":    ls.SegmentID,
			"tier":  string(ls.Label.Tier()),
			"label": string(ls.Label),
			"text":  text,
		})
	}
	s.emit("processedSegments", payload)
}

func (s *streamCallback) OnTemplateSelected(tmpl *template.Template, metadataOverridden bool) {
	s.emit("templateSelected", map[string]any{
		"templateId":         tmpl.ID,
		"templateName":       tmpl.Name,
		"metadataOverridden": metadataOverridden,
	})
}

func (s *streamCallback) OnCushionStrategy(strategy *cushion.Strategy) {
	if strategy.IsEmpty() {
		return
	}
	s.emit("cushionStrategy", map[string]any{
		"overallTone":     strategy.OverallTone,
		"strategies":      strategy.Strategies,
		"transitionNotes": strategy.TransitionNotes,
	})
}

func (s *streamCallback) OnRAGResults(results *rag.Results) {
	if results.IsEmpty() {
		return
	}
	s.emit("ragResults", map[string]any{
		"expressionPool": results.ExpressionPool,
		"cushion":        results.Cushion,
		"forbidden":      results.Forbidden,
		"policy":         results.Policy,
		"example":        results.Example,
		"domainContext":  results.DomainContext,
	})
}

// Stream runs the full pipeline and emits events onto the returned channel.
// The channel is closed when the stream completes; error terminates it early.
func (p *Pipeline) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		p.runStream(ctx, req, events)
	}()
	return events
}

func (p *Pipeline) runStream(ctx context.Context, req Request, events chan<- Event) {
	emit := func(name string, data any) bool {
		select {
		case events <- Event{Name: name, Data: data}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	start := time.Now()

	analysis, err := p.ExecuteAnalysis(ctx, req, &streamCallback{emit: emit})
	if err != nil {
		p.logger.Error("Streaming transform failed in analysis", "error", err)
		emit("error", userErrorMessage(err))
		return
	}

	fp := p.BuildFinalPrompt(analysis, req, true)
	emit("phase", "generating")

	model := p.settings.GeminiFinalModel
	maxTokens := p.settings.OpenAIMaxTokensPaid
	budget := p.finalBudget(analysis, req, model)

	outcome, err := p.streamFinal(ctx, model, fp.SystemPrompt, fp.UserMessage,
		fp.LockedSpans, maxTokens, budget, emit, "delta")
	if err != nil {
		p.logger.Error("Streaming transform failed in generation", "error", err)
		emit("error", userErrorMessage(err))
		return
	}

	emit("phase", "validating")
	verdict := p.validate(analysis, req, fp, outcome.unmaskedText, outcome.rawContent)

	retryCount := 0
	// Retry on ERROR only: deltas for warnings were already delivered.
	if !verdict.Passed() {
		p.logger.Warn("Streaming validation errors, retrying once",
			"errors", len(verdict.Errors()))
		retryCount = 1
		emit("retry", "validation_failed")

		var msgs []string
		for _, issue := range verdict.Errors() {
			msgs = append(msgs, issue.Message)
		}
		retryUser := fp.UserMessage + "\n\n[시스템 검증 오류] " + strings.Join(msgs, "; ") +
			validation.BuildLockedSpanRetryHint(verdict.Issues, fp.LockedSpans)

		var retryBudget *int32
		if budget != nil {
			rb := RetryThinkingBudget(*budget)
			retryBudget = &rb
		}

		retried, err := p.streamFinal(ctx, model, fp.SystemPrompt, retryUser,
			fp.LockedSpans, maxTokens, retryBudget, emit, "delta")
		if err != nil {
			p.logger.Error("Streaming retry failed", "error", err)
			emit("error", userErrorMessage(err))
			return
		}
		verdict = p.validate(analysis, req, fp, retried.unmaskedText, retried.rawContent)
		outcome = retried
	}

	emit("validationIssues", verdict.Issues)
	emit("phase", "complete")

	emit("stats", p.buildStats(analysis, outcome.promptTokens, outcome.completionTokens,
		retryCount, time.Since(start)))
	emit("usage", buildUsage(analysis.AnalysisPromptTokens, analysis.AnalysisCompletionTokens,
		outcome.promptTokens, outcome.completionTokens))

	emit("done", outcome.unmaskedText)
}

// StreamAB shares one analysis phase between two final generations: variant A
// without the cushion block, variant B with it. Variant events use the _a/_b
// suffixed names; A keeps the plain delta event.
func (p *Pipeline) StreamAB(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		p.runStreamAB(ctx, req, events)
	}()
	return events
}

func (p *Pipeline) runStreamAB(ctx context.Context, req Request, events chan<- Event) {
	emit := func(name string, data any) bool {
		select {
		case events <- Event{Name: name, Data: data}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	start := time.Now()

	analysis, err := p.ExecuteAnalysis(ctx, req, &streamCallback{emit: emit})
	if err != nil {
		p.logger.Error("A/B streaming failed in analysis", "error", err)
		emit("error", userErrorMessage(err))
		return
	}

	fpA := p.BuildFinalPrompt(analysis, req, false)
	fpB := p.BuildFinalPrompt(analysis, req, true)
	emit("phase", "generating")

	model := p.settings.GeminiFinalModel
	maxTokens := p.settings.OpenAIMaxTokensPaid
	budget := p.finalBudget(analysis, req, model)

	var outcomeA, outcomeB *streamOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outcomeA, err = p.streamFinal(gctx, model, fpA.SystemPrompt, fpA.UserMessage,
			fpA.LockedSpans, maxTokens, budget, emit, "delta")
		return err
	})
	g.Go(func() error {
		var err error
		outcomeB, err = p.streamFinal(gctx, model, fpB.SystemPrompt, fpB.UserMessage,
			fpB.LockedSpans, maxTokens, budget, emit, "delta_b")
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.Error("A/B streaming failed in generation", "error", err)
		emit("error", userErrorMessage(err))
		return
	}

	verdictA := p.validate(analysis, req, fpA, outcomeA.unmaskedText, outcomeA.rawContent)
	verdictB := p.validate(analysis, req, fpB, outcomeB.unmaskedText, outcomeB.rawContent)

	elapsed := time.Since(start)
	emit("validation_a", verdictA.Issues)
	emit("validation_b", verdictB.Issues)
	emit("stats_a", p.buildStats(analysis, outcomeA.promptTokens, outcomeA.completionTokens, 0, elapsed))
	emit("stats_b", p.buildStats(analysis, outcomeB.promptTokens, outcomeB.completionTokens, 0, elapsed))
	emit("usage", buildUsage(analysis.AnalysisPromptTokens, analysis.AnalysisCompletionTokens,
		outcomeA.promptTokens+outcomeB.promptTokens,
		outcomeA.completionTokens+outcomeB.completionTokens))

	emit("done_a", outcomeA.unmaskedText)
	emit("done_b", outcomeB.unmaskedText)
}

type streamOutcome struct {
	unmaskedText     string
	rawContent       string
	promptTokens     int
	completionTokens int
}

func (p *Pipeline) streamFinal(
	ctx context.Context,
	model, system, user string,
	spans []models.LockedSpan,
	maxTokens int,
	budget *int32,
	emit emitFunc,
	deltaEvent string,
) (*streamOutcome, error) {
	chunks, err := p.client.Stream(ctx, llm.Request{
		Model:          model,
		System:         system,
		User:           user,
		Temperature:    -1,
		MaxTokens:      maxTokens,
		ThinkingBudget: budget,
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	outcome := &streamOutcome{}
	for chunk := range chunks {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			b.WriteString(c.Content)
			emit(deltaEvent, c.Content)
		case *llm.UsageChunk:
			outcome.promptTokens = c.PromptTokens
			outcome.completionTokens = c.CompletionTokens
		case *llm.ErrorChunk:
			return nil, c.Err
		}
	}

	outcome.rawContent = strings.TrimSpace(b.String())
	unmask := masking.Unmask(outcome.rawContent, spans)
	outcome.unmaskedText = unmask.Text
	return outcome, nil
}

// buildUsage estimates request cost (USD per 1M tokens: 0.15 prompt, 0.60
// completion) plus monthly projections for three adoption scenarios.
func buildUsage(analysisPrompt, analysisCompletion, finalPrompt, finalCompletion int) map[string]any {
	analysisCost := (float64(analysisPrompt)*0.15 + float64(analysisCompletion)*0.60) / 1_000_000
	finalCost := (float64(finalPrompt)*0.15 + float64(finalCompletion)*0.60) / 1_000_000
	total := analysisCost + finalCost

	return map[string]any{
		"analysisPromptTokens":     analysisPrompt,
		"analysisCompletionTokens": analysisCompletion,
		"finalPromptTokens":        finalPrompt,
		"finalCompletionTokens":    finalCompletion,
		"totalCostUsd":             total,
		"monthly": map[string]float64{
			"mvp":    total * 1500,
			"growth": total * 6000,
			"mature": total * 20000,
		},
	}
}

func userErrorMessage(err error) string {
	if llm.IsTransformError(err) {
		return err.Error()
	}
	return GenericTransformErrorMessage
}
