package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/database"
)

// ragReloadHandler handles POST /api/internal/rag/reload. The caller must
// present the configured admin token in X-Internal-Token.
func (s *Server) ragReloadHandler(c *echo.Context) error {
	token := c.Request().Header.Get("X-Internal-Token")
	if token == "" || token != s.settings.RAGAdminToken {
		return echo.NewHTTPError(http.StatusForbidden, "Invalid admin token")
	}
	if s.ragService == nil || s.db == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "RAG store not configured")
	}

	ctx := c.Request().Context()

	count, err := s.ragService.Reload(ctx)
	if err != nil {
		s.logger.Error("RAG index reload failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reload failed")
	}

	byCategory, err := database.NewRagStore(s.db.DB()).CountByCategory(ctx)
	if err != nil {
		s.logger.Error("RAG category count failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reload failed")
	}

	s.logger.Info("RAG index reloaded via admin", "entries", count)
	return c.JSON(http.StatusOK, map[string]any{
		"reloaded":    count,
		"by_category": byCategory,
	})
}
