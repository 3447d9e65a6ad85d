package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, 0.85, s.OpenAITemperature)
	assert.Equal(t, 2000, s.OpenAIMaxTokens)
	assert.Equal(t, 4000, s.OpenAIMaxTokensPaid)
	assert.Equal(t, "gemini-2.5-flash", s.GeminiFinalModel)
	assert.Equal(t, "gemini-2.5-flash-lite", s.GeminiLabelModel)
	assert.Equal(t, 250, s.SegmenterMaxSegmentLength)
	assert.Equal(t, 80, s.SegmenterDiscourseMarkerMinLength)
	assert.Equal(t, 60, s.SegmenterEnumerationMinLength)
	assert.Equal(t, 2000, s.TierPaidMaxTextLength)
	assert.False(t, s.RAGEnabled)
	assert.Equal(t, "text-embedding-3-small", s.RAGEmbeddingModel)
	assert.Equal(t, 0.92, s.RAGMMRDuplicateThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TIER_PAID_MAX_TEXT_LENGTH", "500")
	t.Setenv("GEMINI_FINAL_MODEL", "gemini-2.5-pro")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", s.Port)
	assert.Equal(t, 500, s.TierPaidMaxTextLength)
	assert.Equal(t, "gemini-2.5-pro", s.GeminiFinalModel)
}

func TestLoadInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("OPENAI_MAX_TOKENS", "not-a-number")
	t.Setenv("RAG_ENABLED", "maybe")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2000, s.OpenAIMaxTokens)
	assert.False(t, s.RAGEnabled)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Setenv("TIER_PAID_MAX_TEXT_LENGTH", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRAGRequiresDatabaseURL(t *testing.T) {
	t.Setenv("RAG_ENABLED", "true")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
