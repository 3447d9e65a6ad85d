// Package config loads service settings from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings holds every tunable the service reads from the environment.
type Settings struct {
	// HTTP
	Port string

	// OpenAI
	OpenAIAPIKey       string
	OpenAITemperature  float64
	OpenAIMaxTokens    int
	OpenAIMaxTokensPaid int

	// Gemini
	GeminiAPIKey     string
	GeminiFinalModel string
	GeminiLabelModel string

	// Segmenter
	SegmenterMaxSegmentLength        int
	SegmenterDiscourseMarkerMinLength int
	SegmenterEnumerationMinLength    int

	// Tier
	TierPaidMaxTextLength int

	// RAG
	RAGEnabled               bool
	RAGEmbeddingModel        string
	RAGAdminToken            string
	RAGMMRDuplicateThreshold float64

	// Database (RAG store)
	DatabaseURL string
}

// Load reads settings from the environment, applying defaults.
// Required keys (provider API keys) are checked lazily at first provider use,
// not here, so offline tooling and tests can construct Settings freely.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	s := &Settings{
		Port: getEnvOrDefault("PORT", "8080"),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAITemperature:   getFloatOrDefault("OPENAI_TEMPERATURE", 0.85),
		OpenAIMaxTokens:     getIntOrDefault("OPENAI_MAX_TOKENS", 2000),
		OpenAIMaxTokensPaid: getIntOrDefault("OPENAI_MAX_TOKENS_PAID", 4000),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiFinalModel: getEnvOrDefault("GEMINI_FINAL_MODEL", "gemini-2.5-flash"),
		GeminiLabelModel: getEnvOrDefault("GEMINI_LABEL_MODEL", "gemini-2.5-flash-lite"),

		SegmenterMaxSegmentLength:         getIntOrDefault("SEGMENTER_MAX_SEGMENT_LENGTH", 250),
		SegmenterDiscourseMarkerMinLength: getIntOrDefault("SEGMENTER_DISCOURSE_MARKER_MIN_LENGTH", 80),
		SegmenterEnumerationMinLength:     getIntOrDefault("SEGMENTER_ENUMERATION_MIN_LENGTH", 60),

		TierPaidMaxTextLength: getIntOrDefault("TIER_PAID_MAX_TEXT_LENGTH", 2000),

		RAGEnabled:               getBoolOrDefault("RAG_ENABLED", false),
		RAGEmbeddingModel:        getEnvOrDefault("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
		RAGAdminToken:            os.Getenv("RAG_ADMIN_TOKEN"),
		RAGMMRDuplicateThreshold: getFloatOrDefault("RAG_MMR_DUPLICATE_THRESHOLD", 0.92),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.TierPaidMaxTextLength <= 0 {
		return fmt.Errorf("TIER_PAID_MAX_TEXT_LENGTH must be positive, got %d", s.TierPaidMaxTextLength)
	}
	if s.SegmenterMaxSegmentLength <= 0 {
		return fmt.Errorf("SEGMENTER_MAX_SEGMENT_LENGTH must be positive, got %d", s.SegmenterMaxSegmentLength)
	}
	if s.RAGMMRDuplicateThreshold <= 0 || s.RAGMMRDuplicateThreshold > 1 {
		return fmt.Errorf("RAG_MMR_DUPLICATE_THRESHOLD must be in (0,1], got %v", s.RAGMMRDuplicateThreshold)
	}
	if s.RAGEnabled && s.DatabaseURL == "" {
		return fmt.Errorf("RAG_ENABLED requires DATABASE_URL")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("Invalid integer environment value, using default", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("Invalid float environment value, using default", "key", key, "value", val)
		return defaultVal
	}
	return f
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("Invalid boolean environment value, using default", "key", key, "value", val)
		return defaultVal
	}
	return b
}
