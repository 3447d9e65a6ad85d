package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/pipeline"
)

// streamHandler handles POST /api/v1/transform/stream.
func (s *Server) streamHandler(c *echo.Context) error {
	return s.serveStream(c, s.pipeline.Stream)
}

// streamABHandler handles POST /api/v1/transform/stream-ab. Both variants
// share one analysis phase; events carry _a/_b suffixes.
func (s *Server) streamABHandler(c *echo.Context) error {
	return s.serveStream(c, s.pipeline.StreamAB)
}

func (s *Server) serveStream(c *echo.Context, stream func(ctx context.Context, req pipeline.Request) <-chan pipeline.Event) error {
	var req TransformRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, err.Error())
	}

	preq, err := s.toPipelineRequest(req)
	if err != nil {
		return validationError(c, err.Error())
	}

	w := c.Response()
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	ctx := c.Request().Context()

	for ev := range stream(ctx, preq) {
		if err := writeSSE(w, ev); err != nil {
			s.logger.Warn("SSE write failed, client likely disconnected", "error", err)
			return nil
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return nil
		}
	}
	return nil
}

// writeSSE writes one named SSE event. String payloads go out raw;
// everything else is JSON-encoded.
func writeSSE(w http.ResponseWriter, ev pipeline.Event) error {
	var payload string
	switch data := ev.Data.(type) {
	case string:
		payload = data
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(encoded)
	}

	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
	return err
}
