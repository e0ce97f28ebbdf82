// Package matching combines the exclusion filter, sub-scorers and weights into
// match results and ranks opportunity batches for an organization.
package matching

import (
	"math"
	"time"

	"github.com/spigell/grant-ranker/internal/filtering"
	"github.com/spigell/grant-ranker/internal/keywords"
	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
	"github.com/spigell/grant-ranker/internal/scoring"
	"github.com/spigell/grant-ranker/internal/semantic"
	"github.com/spigell/grant-ranker/internal/weights"
)

// Config groups the policy knobs of the calculator.
type Config struct {
	Weights   weights.Config   `mapstructure:"weights"`
	Scoring   scoring.Config   `mapstructure:"scoring"`
	Filtering filtering.Config `mapstructure:"filtering"`
}

func DefaultConfig() Config {
	return Config{
		Weights:   weights.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Filtering: filtering.DefaultConfig(),
	}
}

// Calculator scores one opportunity against one profile.
type Calculator struct {
	builder *keywords.Builder
	weights weights.Config
	scorer  *scoring.Scorer
	chain   *filtering.Chain
	now     func() time.Time
}

// NewCalculator builds a calculator. A nil table selects keywords.DefaultTable.
func NewCalculator(cfg Config, table *keywords.Table) *Calculator {
	builder := keywords.NewBuilder(table)
	return &Calculator{
		builder: builder,
		weights: cfg.Weights,
		scorer:  scoring.New(cfg.Scoring, builder.Table()),
		chain:   filtering.NewChain(cfg.Filtering),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to compute days until deadlines.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	if now != nil {
		c.now = now
	}
	return c
}

// Now returns the current time of the calculator clock.
func (c *Calculator) Now() time.Time {
	return c.now()
}

// Chain returns the exclusion filter chain.
func (c *Calculator) Chain() *filtering.Chain {
	return c.chain
}

// Prepared holds everything derived from a profile that is reused across a batch.
type Prepared struct {
	Profile  *profile.OrganizationProfile
	Keywords keywords.Set
	Weights  weights.Vector
	// Generic marks the profile-free fallback mode.
	Generic bool
}

// Prepare derives keywords and weights of p once.
func (c *Calculator) Prepare(p *profile.OrganizationProfile) *Prepared {
	if p == nil {
		return c.PrepareGeneric()
	}
	return &Prepared{
		Profile:  p,
		Keywords: c.builder.Build(p),
		Weights:  c.weights.Compute(p),
	}
}

// PrepareGeneric returns the profile-free mode: default keyword set, uniform
// weights, moderate capacity and no exclusions.
func (c *Calculator) PrepareGeneric() *Prepared {
	return &Prepared{
		Profile:  &profile.OrganizationProfile{GrantWritingCapacity: profile.DefaultCapacity},
		Keywords: c.builder.Generic(),
		Weights:  weights.MustValidate(weights.Uniform()),
		Generic:  true,
	}
}

// Score runs the whole pipeline for one pair. A nil semanticScore means the
// semantic collaborator was unavailable.
func (c *Calculator) Score(p *profile.OrganizationProfile, opp *opportunity.FundingOpportunity, semanticScore *float64) MatchResult {
	return c.ScorePrepared(c.Prepare(p), opp, semanticScore, c.now())
}

// Filter runs the exclusion chain only.
func (c *Calculator) Filter(prep *Prepared, opp *opportunity.FundingOpportunity, now time.Time) filtering.Verdict {
	return c.chain.Check(filtering.NewInput(prep.Profile, opp, now))
}

// ScorePrepared scores opp with prepared profile data at the given instant.
// The result depends only on its arguments.
func (c *Calculator) ScorePrepared(prep *Prepared, opp *opportunity.FundingOpportunity, semanticScore *float64, now time.Time) MatchResult {
	result := MatchResult{Keywords: prep.Keywords}
	if opp == nil {
		opp = &opportunity.FundingOpportunity{}
	}
	result.OpportunityID = opp.ID
	result.Title = opp.Title

	if verdict := c.Filter(prep, opp, now); verdict.Filtered {
		result.Filtered = true
		result.FilterRule = verdict.Rule
		result.FilterReason = verdict.Reason
		return result
	}

	p := prep.Profile
	capacity := p.Capacity()
	days, known := opp.DaysUntilDeadline(now)

	kw := c.scorer.Keyword(prep.Keywords, opp)
	breakdown := map[weights.Factor]float64{
		weights.Keyword:     kw.Score,
		weights.Funding:     c.scorer.Funding(p.PreferredGrantSize, opp),
		weights.Deadline:    c.scorer.Deadline(capacity, days, known),
		weights.Demographic: c.scorer.Demographic(p.TargetPopulations, opp),
		weights.Geographic:  c.scorer.Geographic(p.ServiceRegions, opp),
	}

	w := prep.Weights
	if sem, ok := usableSemantic(semanticScore); ok {
		breakdown[weights.Semantic] = sem
		w = w.Clone()
	} else {
		w = w.Without(weights.Semantic)
		result.SemanticDropped = true
	}
	weights.MustValidate(w)

	var overall float64
	for _, f := range weights.Factors {
		weight, ok := w[f]
		if !ok {
			continue
		}
		overall += breakdown[f] * weight
	}
	overall = math.Max(0, math.Min(100, overall))

	result.OverallScore = &overall
	result.Breakdown = breakdown
	result.Weights = w
	result.MatchedKeywords = kw.Matched
	return result
}

func usableSemantic(score *float64) (float64, bool) {
	if score == nil {
		return 0, false
	}
	v, err := semantic.Validate(*score)
	if err != nil {
		return 0, false
	}
	return v, true
}
