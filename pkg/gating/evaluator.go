package gating

import (
	"log/slog"

	"github.com/politeai/tonebridge/pkg/models"
)

// ShouldFireIdentityBooster gates the identity lock booster on the frontend
// toggle alone.
func ShouldFireIdentityBooster(frontendToggle bool, logger *slog.Logger) bool {
	if frontendToggle {
		logger.Info("Identity booster enabled by frontend toggle")
		return true
	}
	return false
}

// ShouldFireSituationAnalysis reports whether situation analysis runs.
// It is always on.
func ShouldFireSituationAnalysis() bool {
	return true
}

// ShouldFireContextGating reports whether the metadata-mismatch check runs.
// There is nothing to second-guess without user-supplied metadata, so it
// fires only when a context, topic, or purpose was given.
func ShouldFireContextGating(
	contexts []models.SituationContext,
	topic models.Topic,
	purpose models.Purpose,
	logger *slog.Logger,
) bool {
	if len(contexts) == 0 && topic == "" && purpose == "" {
		return false
	}
	logger.Info("Context gating enabled", "contexts", len(contexts), "topic", topic, "purpose", purpose)
	return true
}
