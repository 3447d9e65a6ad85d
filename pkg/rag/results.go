// Package rag retrieves curated Korean reference material (expression pools,
// cushions, forbidden phrases, policies, examples, domain context) for the
// final model prompts.
package rag

// Hit is a single retrieved entry. OriginalText and Alternative are only
// populated for example and forbidden entries respectively. UsedFallback
// marks hits returned below threshold because the category would otherwise
// be empty.
type Hit struct {
	Content      string   `json:"content"`
	OriginalText string   `json:"originalText,omitempty"`
	Alternative  string   `json:"alternative,omitempty"`
	Score        float64  `json:"score"`
	Category     Category `json:"category,omitempty"`
	UsedFallback bool     `json:"usedFallback,omitempty"`
}

// Results groups retrieval hits by category for one transform request.
type Results struct {
	ExpressionPool []Hit
	Cushion        []Hit
	Forbidden      []Hit
	Policy         []Hit
	Example        []Hit
	DomainContext  []Hit
}

// IsEmpty reports whether no category returned any hit.
func (r *Results) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.ExpressionPool) == 0 && len(r.Cushion) == 0 && len(r.Forbidden) == 0 &&
		len(r.Policy) == 0 && len(r.Example) == 0 && len(r.DomainContext) == 0
}
