package llm

import (
	"context"
	"strings"
)

// Router dispatches each request to Gemini or OpenAI by model name prefix.
// Models starting with "gemini-" go to Gemini, everything else to OpenAI.
type Router struct {
	gemini Client
	openai Client
}

// NewRouter builds a model-prefix router.
func NewRouter(gemini, openai Client) *Router {
	return &Router{gemini: gemini, openai: openai}
}

func (r *Router) route(model string) Client {
	if strings.HasPrefix(model, "gemini-") {
		return r.gemini
	}
	return r.openai
}

// Call implements Client.
func (r *Router) Call(ctx context.Context, req Request) (*Result, error) {
	return r.route(req.Model).Call(ctx, req)
}

// Stream implements Client.
func (r *Router) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return r.route(req.Model).Stream(ctx, req)
}
