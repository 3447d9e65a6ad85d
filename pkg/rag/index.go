package rag

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Filters narrow retrieval to entries whose metadata columns match the
// request. Empty entry columns match everything.
type Filters struct {
	Persona      string
	Contexts     []string
	ToneLevel    string
	Sections     []string
	YellowLabels []string
}

// Query is one retrieval request against the index.
type Query struct {
	Embedding    []float32
	OriginalText string
	Filters
}

type cachedEntry struct {
	entry          Entry
	personas       map[string]bool
	contexts       map[string]bool
	toneLevels     map[string]bool
	sections       map[string]bool
	yellowLabels   map[string]bool
	triggerPhrases []string
	embedding      []float32 // L2-normalized
}

// Index is the in-memory vector index. Load swaps the whole entry set
// atomically so hot reloads never race with searches.
type Index struct {
	mu                    sync.RWMutex
	cached                []cachedEntry
	mmrDuplicateThreshold float64
	logger                *slog.Logger
}

func NewIndex(mmrDuplicateThreshold float64, logger *slog.Logger) *Index {
	return &Index{mmrDuplicateThreshold: mmrDuplicateThreshold, logger: logger}
}

// Size returns the number of indexed entries.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.cached)
}

// Load builds the index from entries and swaps it in. Entries without a
// parseable embedding are skipped. Returns the loaded count.
func (x *Index) Load(entries []Entry) int {
	cached := make([]cachedEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.EmbeddingBlob == "" {
			continue
		}
		emb, err := JSONToEmbedding(entry.EmbeddingBlob)
		if err != nil {
			x.logger.Warn("Skipping RAG entry with invalid embedding", "id", entry.ID, "error", err)
			continue
		}
		normalize(emb)

		// Short trigger tokens cause false positives
		var triggers []string
		for _, t := range strings.Split(entry.TriggerPhrases, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			if utf8.RuneCountInString(t) >= 3 {
				triggers = append(triggers, t)
			}
		}

		cached = append(cached, cachedEntry{
			entry:          entry,
			personas:       ParseCSVFilter(entry.Personas),
			contexts:       ParseCSVFilter(entry.Contexts),
			toneLevels:     ParseCSVFilter(entry.ToneLevels),
			sections:       ParseCSVFilter(entry.Sections),
			yellowLabels:   ParseCSVFilter(entry.YellowLabels),
			triggerPhrases: triggers,
			embedding:      emb,
		})
	}

	x.mu.Lock()
	x.cached = cached
	x.mu.Unlock()
	return len(cached)
}

// Search runs every category against the query and aggregates the hits.
func (x *Index) Search(q Query) *Results {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := &Results{}
	if len(x.cached) == 0 {
		return results
	}

	queryVec := make([]float32, len(q.Embedding))
	copy(queryVec, q.Embedding)
	normalize(queryVec)

	for _, cat := range AllCategories() {
		hits := x.searchCategory(queryVec, q, cat)
		switch cat {
		case CategoryExpressionPool:
			results.ExpressionPool = hits
		case CategoryCushion:
			results.Cushion = hits
		case CategoryForbidden:
			results.Forbidden = hits
		case CategoryPolicy:
			results.Policy = hits
		case CategoryExample:
			results.Example = hits
		case CategoryDomainContext:
			results.DomainContext = hits
		}
	}
	return results
}

type scoredIndex struct {
	idx   int
	score float64
}

func (x *Index) searchCategory(queryVec []float32, q Query, category Category) []Hit {
	config := categoryConfigs[category]

	var candidates []int
	for i, ce := range x.cached {
		if ce.entry.Category != category {
			continue
		}
		if !matchesFilters(ce, q.Filters) {
			continue
		}
		candidates = append(candidates, i)
	}

	// Forbidden entries also fire on lexical trigger phrases, bypassing the
	// metadata filters.
	triggerIndices := make(map[int]bool)
	if category == CategoryForbidden {
		normalizedText := strings.Join(strings.Fields(strings.ToLower(q.OriginalText)), " ")
		for i, ce := range x.cached {
			if ce.entry.Category != CategoryForbidden {
				continue
			}
			for _, trigger := range ce.triggerPhrases {
				if strings.Contains(normalizedText, trigger) {
					triggerIndices[i] = true
					break
				}
			}
		}
	}

	if len(candidates) == 0 && len(triggerIndices) == 0 {
		return nil
	}

	scored := make([]scoredIndex, 0, len(candidates)+len(triggerIndices))
	seen := make(map[int]bool, len(candidates))
	for _, idx := range candidates {
		scored = append(scored, scoredIndex{idx: idx, score: dot(x.cached[idx].embedding, queryVec)})
		seen[idx] = true
	}
	for idx := range triggerIndices {
		if !seen[idx] {
			scored = append(scored, scoredIndex{idx: idx, score: 1.0})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	preCandidates := scored
	if len(preCandidates) > config.TopK*3 {
		preCandidates = preCandidates[:config.TopK*3]
	}

	var aboveThreshold []scoredIndex
	for _, s := range preCandidates {
		if s.score >= config.Threshold {
			aboveThreshold = append(aboveThreshold, s)
		}
	}

	selected := x.applyMMR(aboveThreshold, config.TopK)

	usedFallback := false
	if len(selected) == 0 && config.FallbackTopK > 0 && len(preCandidates) > 0 {
		n := config.FallbackTopK
		if n > len(preCandidates) {
			n = len(preCandidates)
		}
		selected = preCandidates[:n]
		usedFallback = true
	}

	hits := make([]Hit, 0, len(selected))
	for _, s := range selected {
		entry := x.cached[s.idx].entry
		hits = append(hits, Hit{
			Content:      entry.Content,
			OriginalText: entry.OriginalText,
			Alternative:  entry.Alternative,
			Score:        s.score,
			Category:     category,
			UsedFallback: usedFallback,
		})
	}
	return hits
}

func matchesFilters(ce cachedEntry, f Filters) bool {
	if len(ce.personas) > 0 && f.Persona != "" && !ce.personas[strings.ToUpper(f.Persona)] {
		return false
	}
	if len(ce.contexts) > 0 && len(f.Contexts) > 0 && !intersects(ce.contexts, f.Contexts) {
		return false
	}
	if len(ce.toneLevels) > 0 && f.ToneLevel != "" && !ce.toneLevels[strings.ToUpper(f.ToneLevel)] {
		return false
	}
	if len(ce.sections) > 0 && len(f.Sections) > 0 && !intersects(ce.sections, f.Sections) {
		return false
	}
	if len(ce.yellowLabels) > 0 && len(f.YellowLabels) > 0 && !intersects(ce.yellowLabels, f.YellowLabels) {
		return false
	}
	return true
}

func intersects(set map[string]bool, values []string) bool {
	for _, v := range values {
		if set[strings.ToUpper(v)] {
			return true
		}
	}
	return false
}

// applyMMR drops near-duplicates: a candidate too similar to an already
// selected entry is skipped.
func (x *Index) applyMMR(candidates []scoredIndex, topK int) []scoredIndex {
	var selected []scoredIndex
	for _, c := range candidates {
		if len(selected) >= topK {
			break
		}
		duplicate := false
		for _, sel := range selected {
			if dot(x.cached[c.idx].embedding, x.cached[sel.idx].embedding) > x.mmrDuplicateThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			selected = append(selected, c)
		}
	}
	return selected
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
