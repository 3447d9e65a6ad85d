package llm

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API via the google.golang.org/genai SDK.
type GeminiClient struct {
	client             *genai.Client
	defaultTemperature float64
	defaultMaxTokens   int
}

// NewGeminiClient builds a Gemini client. The API key must be non-empty.
func NewGeminiClient(ctx context.Context, apiKey string, defaultTemperature float64, defaultMaxTokens int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, NewTransformError(KindAuth, "Gemini API 키가 설정되지 않았습니다. 서버 설정을 확인해주세요.", nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return &GeminiClient{
		client:             client,
		defaultTemperature: defaultTemperature,
		defaultMaxTokens:   defaultMaxTokens,
	}, nil
}

func (g *GeminiClient) generateConfig(req Request) *genai.GenerateContentConfig {
	temperature := req.Temperature
	if temperature < 0 {
		temperature = g.defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = g.defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(temperature)),
		MaxOutputTokens:   int32(maxTokens),
	}
	if req.ThinkingBudget != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(*req.ThinkingBudget)}
	}
	return config
}

// Call implements Client.
func (g *GeminiClient) Call(ctx context.Context, req Request) (*Result, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, req.Model, contents, g.generateConfig(req))
	if err != nil {
		slog.Error("Gemini API call failed", "model", req.Model, "error", err)
		return nil, wrapAPIError(err)
	}

	result := &Result{}
	if response.UsageMetadata != nil {
		result.PromptTokens = int(response.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(response.UsageMetadata.CandidatesTokenCount)
		slog.Info("Token usage",
			"model", req.Model,
			"prompt", result.PromptTokens,
			"completion", result.CompletionTokens,
			"total", response.UsageMetadata.TotalTokenCount)
	}

	content := strings.TrimSpace(response.Text())
	if content == "" {
		return nil, NewTransformError(KindOther, "Gemini 응답에 내용이 없습니다.", nil)
	}
	result.Content = content
	return result, nil
}

// Stream implements Client.
func (g *GeminiClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	out := make(chan Chunk)

	go func() {
		defer close(out)

		usage := &UsageChunk{}
		for response, err := range g.client.Models.GenerateContentStream(ctx, req.Model, contents, g.generateConfig(req)) {
			if err != nil {
				slog.Error("Gemini stream failed", "model", req.Model, "error", err)
				out <- &ErrorChunk{Err: wrapAPIError(err)}
				return
			}
			if text := response.Text(); text != "" {
				out <- &TextChunk{Content: text}
			}
			if response.UsageMetadata != nil {
				usage.PromptTokens = int(response.UsageMetadata.PromptTokenCount)
				usage.CompletionTokens = int(response.UsageMetadata.CandidatesTokenCount)
			}
		}
		out <- usage
	}()

	return out, nil
}
