// Package api exposes the transform pipeline over HTTP: a batch endpoint,
// two SSE streaming endpoints, tier info, a health check, and an internal
// RAG admin surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/config"
	"github.com/politeai/tonebridge/pkg/database"
	"github.com/politeai/tonebridge/pkg/pipeline"
	"github.com/politeai/tonebridge/pkg/rag"
)

// Server holds the handler dependencies.
type Server struct {
	pipeline   *pipeline.Pipeline
	settings   *config.Settings
	db         *database.Client
	ragService *rag.Service
	logger     *slog.Logger
}

// NewServer creates the API server. db and ragService may be nil when the
// RAG store is not configured.
func NewServer(p *pipeline.Pipeline, settings *config.Settings, db *database.Client, ragService *rag.Service, logger *slog.Logger) *Server {
	return &Server{
		pipeline:   p,
		settings:   settings,
		db:         db,
		ragService: ragService,
		logger:     logger,
	}
}

// Register wires all routes onto the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.Use(requestID())
	e.Use(securityHeaders())

	e.GET("/api/health", s.healthHandler)

	v1 := e.Group("/api/v1/transform")
	v1.POST("", s.transformHandler)
	v1.POST("/stream", s.streamHandler)
	v1.POST("/stream-ab", s.streamABHandler)
	v1.GET("/tier", s.tierHandler)

	// Admin surface is only mounted when a token is configured.
	if s.settings.RAGAdminToken != "" {
		e.POST("/api/internal/rag/reload", s.ragReloadHandler)
	}
}

func (s *Server) healthHandler(c *echo.Context) error {
	resp := map[string]any{"status": "ok"}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := s.db.Health(ctx)
		resp["database"] = dbHealth
		if err != nil {
			resp["status"] = "unhealthy"
			resp["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}

	return c.JSON(http.StatusOK, resp)
}
