package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	client             openai.Client
	defaultTemperature float64
	defaultMaxTokens   int
	cacheMetrics       *CacheMetrics
}

// NewOpenAIClient builds an OpenAI client.
func NewOpenAIClient(apiKey string, defaultTemperature float64, defaultMaxTokens int, cacheMetrics *CacheMetrics) *OpenAIClient {
	return &OpenAIClient{
		client:             openai.NewClient(option.WithAPIKey(apiKey)),
		defaultTemperature: defaultTemperature,
		defaultMaxTokens:   defaultMaxTokens,
		cacheMetrics:       cacheMetrics,
	}
}

func (o *OpenAIClient) completionParams(req Request) openai.ChatCompletionNewParams {
	temperature := req.Temperature
	if temperature < 0 {
		temperature = o.defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = o.defaultMaxTokens
	}

	return openai.ChatCompletionNewParams{
		Model:               req.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
}

// Call implements Client.
func (o *OpenAIClient) Call(ctx context.Context, req Request) (*Result, error) {
	completion, err := o.client.Chat.Completions.New(ctx, o.completionParams(req))
	if err != nil {
		slog.Error("OpenAI API call failed", "model", req.Model, "error", err)
		return nil, wrapAPIError(err)
	}

	result := &Result{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}
	slog.Info("Token usage",
		"model", req.Model,
		"prompt", result.PromptTokens,
		"completion", result.CompletionTokens,
		"total", completion.Usage.TotalTokens)
	if o.cacheMetrics != nil {
		o.cacheMetrics.RecordUsage(result.PromptTokens, int(completion.Usage.PromptTokensDetails.CachedTokens))
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, NewTransformError(KindOther, "OpenAI 응답에 내용이 없습니다.", nil)
	}
	result.Content = strings.TrimSpace(completion.Choices[0].Message.Content)
	return result, nil
}

// Stream implements Client.
func (o *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	params := o.completionParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan Chunk)

	go func() {
		defer close(out)
		defer stream.Close()

		usage := &UsageChunk{}
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				out <- &TextChunk{Content: chunk.Choices[0].Delta.Content}
			}
			if chunk.Usage.TotalTokens > 0 {
				usage.PromptTokens = int(chunk.Usage.PromptTokens)
				usage.CompletionTokens = int(chunk.Usage.CompletionTokens)
				usage.CachedTokens = int(chunk.Usage.PromptTokensDetails.CachedTokens)
			}
		}
		if err := stream.Err(); err != nil {
			slog.Error("OpenAI stream failed", "model", req.Model, "error", err)
			out <- &ErrorChunk{Err: wrapAPIError(err)}
			return
		}
		if o.cacheMetrics != nil {
			o.cacheMetrics.RecordUsage(usage.PromptTokens, usage.CachedTokens)
		}
		out <- usage
	}()

	return out, nil
}
