package llm

import (
	"log/slog"
	"sync"
)

// CacheMetrics tracks OpenAI prompt-cache effectiveness across requests.
type CacheMetrics struct {
	mu                sync.Mutex
	totalRequests     int
	cacheHitRequests  int
	totalPromptTokens int
	totalCachedTokens int
}

// NewCacheMetrics returns an empty tracker.
func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{}
}

// RecordUsage records one request's prompt and cached token counts.
func (m *CacheMetrics) RecordUsage(promptTokens, cachedTokens int) {
	m.mu.Lock()
	m.totalRequests++
	m.totalPromptTokens += promptTokens
	if cachedTokens > 0 {
		m.cacheHitRequests++
		m.totalCachedTokens += cachedTokens
	}
	requestNum := m.totalRequests
	m.mu.Unlock()

	cacheRatio := 0.0
	if promptTokens > 0 {
		cacheRatio = float64(cachedTokens) / float64(promptTokens) * 100
	}
	slog.Info("Cache metrics",
		"request", requestNum,
		"promptTokens", promptTokens,
		"cachedTokens", cachedTokens,
		"cacheRatio", cacheRatio,
		"cacheHitRate", m.CacheHitRate(),
		"tokenCacheRate", m.TokenCacheRate())
}

// CacheHitRate returns the percentage of requests that hit the prompt cache.
func (m *CacheMetrics) CacheHitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalRequests == 0 {
		return 0
	}
	return float64(m.cacheHitRequests) / float64(m.totalRequests) * 100
}

// TokenCacheRate returns the percentage of prompt tokens served from cache.
func (m *CacheMetrics) TokenCacheRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalPromptTokens == 0 {
		return 0
	}
	return float64(m.totalCachedTokens) / float64(m.totalPromptTokens) * 100
}
