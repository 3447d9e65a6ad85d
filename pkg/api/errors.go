package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/llm"
)

// errorBody is the error envelope every endpoint returns:
// a stable machine code plus a user-facing Korean message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const internalErrorMessage = "서버 내부 오류가 발생했습니다. 잠시 후 다시 시도해주세요."

func validationError(c *echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION_ERROR", Message: message})
}

// mapTransformError maps pipeline failures to HTTP error responses.
func (s *Server) mapTransformError(c *echo.Context, err error) error {
	if llm.IsTransformError(err) {
		return c.JSON(http.StatusServiceUnavailable, errorBody{
			Error:   "AI_TRANSFORM_ERROR",
			Message: err.Error(),
		})
	}

	s.logger.Error("Unexpected transform error", "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody{
		Error:   "INTERNAL_ERROR",
		Message: internalErrorMessage,
	})
}
