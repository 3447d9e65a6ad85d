// Package llm wraps the Gemini and OpenAI APIs behind a single client
// interface with model-prefix routing, token usage tracking, and a
// channel-based streaming API.
package llm

import (
	"context"
)

// Client is the provider-agnostic LLM interface.
type Client interface {
	// Call sends a system prompt and user message and returns the full response.
	Call(ctx context.Context, req Request) (*Result, error)

	// Stream sends the same request and returns a stream of chunks.
	// The returned channel is closed when the stream completes.
	// Errors are delivered as ErrorChunk values in the channel.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// Request carries one LLM call. Negative Temperature or MaxTokens means
// "use the configured default".
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int

	// ThinkingBudget caps Gemini reasoning tokens. nil = provider default,
	// zero disables thinking. Ignored by OpenAI models.
	ThinkingBudget *int32
}

// Result is a completed LLM call.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// TextChunk is a chunk of the LLM's text response.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption for this LLM call.
type UsageChunk struct{ PromptTokens, CompletionTokens, CachedTokens int }

// ErrorChunk signals an error from the LLM provider.
type ErrorChunk struct{ Err error }

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }
