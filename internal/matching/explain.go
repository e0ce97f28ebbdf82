package matching

import (
	"fmt"
	"strings"

	"github.com/spigell/grant-ranker/internal/weights"
)

// FactorLine is one row of an explanation.
type FactorLine struct {
	Factor       weights.Factor `json:"factor"`
	Weight       float64        `json:"weight"`
	Score        float64        `json:"score"`
	Contribution float64        `json:"contribution"`
}

// Explanation is a read projection of a MatchResult for "why this grant" views.
type Explanation struct {
	OpportunityID     string       `json:"opportunity_id"`
	Title             string       `json:"title,omitempty"`
	Filtered          bool         `json:"filtered"`
	FilterReason      string       `json:"filter_reason,omitempty"`
	OverallScore      *float64     `json:"overall_score,omitempty"`
	PrimaryKeywords   []string     `json:"primary_keywords"`
	SecondaryKeywords []string     `json:"secondary_keywords"`
	MatchedKeywords   []string     `json:"matched_keywords"`
	Factors           []FactorLine `json:"factors"`
	SemanticDropped   bool         `json:"semantic_dropped,omitempty"`
	Summary           string       `json:"summary"`
}

// Explain projects r without recomputing anything.
func Explain(r MatchResult) Explanation {
	e := Explanation{
		OpportunityID:     r.OpportunityID,
		Title:             r.Title,
		Filtered:          r.Filtered,
		FilterReason:      r.FilterReason,
		OverallScore:      r.OverallScore,
		PrimaryKeywords:   nonNil(r.Keywords.Primary),
		SecondaryKeywords: nonNil(r.Keywords.Secondary),
		MatchedKeywords:   nonNil(r.MatchedKeywords),
		Factors:           []FactorLine{},
		SemanticDropped:   r.SemanticDropped,
	}

	for _, f := range weights.Factors {
		w, ok := r.Weights[f]
		if !ok {
			continue
		}
		score := r.Breakdown[f]
		e.Factors = append(e.Factors, FactorLine{
			Factor:       f,
			Weight:       w,
			Score:        score,
			Contribution: w * score,
		})
	}

	e.Summary = summarize(e)
	return e
}

func summarize(e Explanation) string {
	if e.Filtered {
		return fmt.Sprintf("Filtered out: %s.", e.FilterReason)
	}
	if e.OverallScore == nil {
		return "Not scored."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scored %.1f/100.", *e.OverallScore)

	if len(e.Factors) > 0 {
		best, worst := e.Factors[0], e.Factors[0]
		for _, line := range e.Factors[1:] {
			if line.Contribution > best.Contribution {
				best = line
			}
			if line.Score < worst.Score {
				worst = line
			}
		}
		fmt.Fprintf(&b, " Largest contribution: %s (%.0f).", best.Factor, best.Score)
		if worst.Factor != best.Factor {
			fmt.Fprintf(&b, " Weakest factor: %s (%.0f).", worst.Factor, worst.Score)
		}
	}

	if len(e.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, " Matched keywords: %s.", strings.Join(e.MatchedKeywords, ", "))
	} else {
		b.WriteString(" No profile keywords found in the opportunity text.")
	}
	if e.SemanticDropped {
		b.WriteString(" Semantic similarity was unavailable; remaining weights were rescaled.")
	}

	return b.String()
}

// String renders the explanation as plain text.
func (e Explanation) String() string {
	var b strings.Builder

	title := e.Title
	if title == "" {
		title = e.OpportunityID
	}
	fmt.Fprintf(&b, "%s [%s]\n", title, e.OpportunityID)
	b.WriteString(e.Summary)
	b.WriteString("\n")

	list := func(label string, values []string) {
		if len(values) == 0 {
			values = []string{"-"}
		}
		fmt.Fprintf(&b, "%-19s %s\n", label+":", strings.Join(values, ", "))
	}
	list("Primary keywords", e.PrimaryKeywords)
	list("Secondary keywords", e.SecondaryKeywords)
	list("Matched keywords", e.MatchedKeywords)

	if len(e.Factors) > 0 {
		fmt.Fprintf(&b, "%-12s %7s %7s %8s\n", "factor", "weight", "score", "points")
		for _, line := range e.Factors {
			fmt.Fprintf(&b, "%-12s %7.3f %7.1f %8.2f\n", line.Factor, line.Weight, line.Score, line.Contribution)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
