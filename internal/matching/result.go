package matching

import (
	"github.com/spigell/grant-ranker/internal/keywords"
	"github.com/spigell/grant-ranker/internal/weights"
)

// MatchResult is the outcome of scoring one opportunity for one organization.
// FilterReason is set iff Filtered; OverallScore is set iff not Filtered.
type MatchResult struct {
	OpportunityID   string                     `json:"opportunity_id"`
	Title           string                     `json:"title,omitempty"`
	Filtered        bool                       `json:"filtered"`
	FilterRule      string                     `json:"filter_rule,omitempty"`
	FilterReason    string                     `json:"filter_reason,omitempty"`
	OverallScore    *float64                   `json:"overall_score,omitempty"`
	Breakdown       map[weights.Factor]float64 `json:"breakdown,omitempty"`
	Weights         weights.Vector             `json:"weights,omitempty"`
	SemanticDropped bool                       `json:"semantic_dropped,omitempty"`
	Keywords        keywords.Set               `json:"keywords"`
	MatchedKeywords []string                   `json:"matched_keywords,omitempty"`
}

// Score returns the overall score, or -1 for filtered results.
func (r MatchResult) Score() float64 {
	if r.OverallScore == nil {
		return -1
	}
	return *r.OverallScore
}
