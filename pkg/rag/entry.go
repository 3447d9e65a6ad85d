package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Category partitions entries by how the final prompt uses them.
type Category string

const (
	CategoryExpressionPool Category = "expression_pool"
	CategoryCushion        Category = "cushion"
	CategoryForbidden      Category = "forbidden"
	CategoryPolicy         Category = "policy"
	CategoryExample        Category = "example"
	CategoryDomainContext  Category = "domain_context"
)

// AllCategories returns the closed category set in search order.
func AllCategories() []Category {
	return []Category{
		CategoryExpressionPool, CategoryCushion, CategoryForbidden,
		CategoryPolicy, CategoryExample, CategoryDomainContext,
	}
}

// CategoryConfig holds per-category retrieval knobs.
type CategoryConfig struct {
	Threshold    float64
	TopK         int
	FallbackTopK int
}

var categoryConfigs = map[Category]CategoryConfig{
	CategoryExpressionPool: {Threshold: 0.78, TopK: 5, FallbackTopK: 1},
	CategoryCushion:        {Threshold: 0.78, TopK: 3, FallbackTopK: 1},
	CategoryForbidden:      {Threshold: 0.72, TopK: 3, FallbackTopK: 0},
	CategoryPolicy:         {Threshold: 0.82, TopK: 3, FallbackTopK: 0},
	CategoryExample:        {Threshold: 0.80, TopK: 2, FallbackTopK: 1},
	CategoryDomainContext:  {Threshold: 0.82, TopK: 2, FallbackTopK: 0},
}

// ConfigFor returns the retrieval knobs for a category.
func ConfigFor(c Category) CategoryConfig {
	return categoryConfigs[c]
}

// Entry is one row of the rag_entries table. Metadata filter columns are CSV;
// an empty column matches every request.
type Entry struct {
	ID             int64
	Category       Category
	Content        string
	OriginalText   string
	Alternative    string
	TriggerPhrases string
	DedupeKey      string
	Personas       string
	Contexts       string
	ToneLevels     string
	Sections       string
	YellowLabels   string
	EmbeddingBlob  string
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ParseCSVFilter parses a CSV filter column into an uppercased set.
// Empty input yields an empty set, meaning match-all.
func ParseCSVFilter(value string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range strings.Split(value, ",") {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}

// ComputeDedupeKey hashes category|content|personas|contexts so re-imports
// of the same entry upsert instead of duplicating.
func ComputeDedupeKey(category Category, content, personas, contexts string) string {
	raw := strings.Join([]string{string(category), content, personas, contexts}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
