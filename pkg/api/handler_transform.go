package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/models"
)

// TransformResponse is the batch transform result.
type TransformResponse struct {
	TransformedText  string                   `json:"transformedText"`
	ValidationIssues []models.ValidationIssue `json:"validationIssues"`
	Stats            models.PipelineStats     `json:"stats"`
}

// TierInfoResponse describes the caller's usage tier.
type TierInfoResponse struct {
	Tier          string `json:"tier"`
	MaxTextLength int    `json:"maxTextLength"`
	PromptEnabled bool   `json:"promptEnabled"`
}

// transformHandler handles POST /api/v1/transform.
func (s *Server) transformHandler(c *echo.Context) error {
	var req TransformRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, err.Error())
	}

	preq, err := s.toPipelineRequest(req)
	if err != nil {
		return validationError(c, err.Error())
	}

	result, err := s.pipeline.Transform(c.Request().Context(), preq)
	if err != nil {
		return s.mapTransformError(c, err)
	}

	return c.JSON(http.StatusOK, &TransformResponse{
		TransformedText:  result.TransformedText,
		ValidationIssues: result.ValidationIssues,
		Stats:            result.Stats,
	})
}

// tierHandler handles GET /api/v1/transform/tier.
func (s *Server) tierHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &TierInfoResponse{
		Tier:          "PAID",
		MaxTextLength: s.settings.TierPaidMaxTextLength,
		PromptEnabled: true,
	})
}
