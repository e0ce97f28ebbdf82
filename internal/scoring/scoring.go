// Package scoring holds the five local sub-scorers. Every scorer returns a
// value in [0, 100] and degrades to Neutral on missing data instead of failing.
package scoring

import (
	"math"
	"strings"

	"github.com/spigell/grant-ranker/internal/keywords"
	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
)

// Neutral is the score reported when there is not enough data to judge a factor.
const Neutral = 50.0

// Config holds the tunable constants of the sub-scorers.
type Config struct {
	KeywordPrimaryWeight   float64 `mapstructure:"keyword-primary-weight"`
	KeywordSecondaryWeight float64 `mapstructure:"keyword-secondary-weight"`
	// KeywordSaturation is the smallest weighted-hit count that scores 100;
	// 0 disables saturation.
	KeywordSaturation float64 `mapstructure:"keyword-saturation"`
	// KeywordSaturationShare grows the saturation point with the keyword set:
	// it is at least this share of the maximum possible weighted hits.
	KeywordSaturationShare float64 `mapstructure:"keyword-saturation-share"`
	// DeadlineDays is the comfortable lead time per capacity tier.
	DeadlineDays map[profile.Capacity]int `mapstructure:"deadline-days"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		KeywordPrimaryWeight:   2,
		KeywordSecondaryWeight: 1,
		KeywordSaturation:      3,
		KeywordSaturationShare: 0.25,
		DeadlineDays: map[profile.Capacity]int{
			profile.CapacityLimited:  30,
			profile.CapacityModerate: 14,
			profile.CapacityAdvanced: 7,
		},
	}
}

// Scorer evaluates the local factors of an opportunity against profile data.
type Scorer struct {
	cfg   Config
	table *keywords.Table
}

// New creates a scorer. A nil table selects keywords.DefaultTable.
func New(cfg Config, table *keywords.Table) *Scorer {
	if table == nil {
		table = keywords.DefaultTable()
	}
	defaults := DefaultConfig()
	if cfg.KeywordPrimaryWeight <= 0 {
		cfg.KeywordPrimaryWeight = defaults.KeywordPrimaryWeight
	}
	if cfg.KeywordSecondaryWeight <= 0 {
		cfg.KeywordSecondaryWeight = defaults.KeywordSecondaryWeight
	}
	if cfg.KeywordSaturation < 0 {
		cfg.KeywordSaturation = 0
	}
	if cfg.KeywordSaturationShare < 0 || cfg.KeywordSaturationShare > 1 {
		cfg.KeywordSaturationShare = defaults.KeywordSaturationShare
	}
	days := make(map[profile.Capacity]int, len(defaults.DeadlineDays))
	for capacity, d := range defaults.DeadlineDays {
		days[capacity] = d
	}
	for capacity, d := range cfg.DeadlineDays {
		if d >= 0 {
			days[profile.ParseCapacity(string(capacity))] = d
		}
	}
	cfg.DeadlineDays = days

	return &Scorer{cfg: cfg, table: table}
}

// KeywordResult is the keyword score and the terms found in the opportunity.
type KeywordResult struct {
	Score   float64
	Matched []string
}

// Keyword scores the share of keyword terms found in the title and description.
// Primary hits weigh more than secondary ones. A missing description never
// scores below Neutral.
func (s *Scorer) Keyword(set keywords.Set, opp *opportunity.FundingOpportunity) KeywordResult {
	if set.Len() == 0 || opp == nil || !opp.HasText() {
		return KeywordResult{Score: Neutral}
	}

	text := strings.ToLower(opp.Title + "\n" + opp.Description)

	var hits float64
	var matched []string
	for _, term := range set.Primary {
		if strings.Contains(text, term) {
			hits += s.cfg.KeywordPrimaryWeight
			matched = append(matched, term)
		}
	}
	for _, term := range set.Secondary {
		if strings.Contains(text, term) {
			hits += s.cfg.KeywordSecondaryWeight
			matched = append(matched, term)
		}
	}

	score := clamp(100 * math.Min(1, hits/s.keywordDenominator(set)))
	if strings.TrimSpace(opp.Description) == "" && score < Neutral {
		score = Neutral
	}

	return KeywordResult{Score: score, Matched: matched}
}

// keywordDenominator is the weighted-hit count that scores 100: the maximum
// possible hits, lowered to the saturation point for large sets.
func (s *Scorer) keywordDenominator(set keywords.Set) float64 {
	maximum := s.cfg.KeywordPrimaryWeight*float64(len(set.Primary)) + s.cfg.KeywordSecondaryWeight*float64(len(set.Secondary))
	if s.cfg.KeywordSaturation <= 0 {
		return maximum
	}
	saturation := math.Max(s.cfg.KeywordSaturation, s.cfg.KeywordSaturationShare*maximum)
	return math.Min(maximum, saturation)
}

// Funding scores the representative award amount against the preferred range.
func (s *Scorer) Funding(preferred profile.GrantRange, opp *opportunity.FundingOpportunity) float64 {
	if opp == nil || !preferred.IsSet() {
		return Neutral
	}
	amount, ok := opp.Amount()
	if !ok {
		return Neutral
	}

	switch {
	case preferred.Contains(amount):
		return 100
	case preferred.Min != nil && amount < *preferred.Min:
		return clamp(50 * float64(amount) / float64(*preferred.Min))
	case preferred.Max != nil && amount > *preferred.Max:
		return clamp(50 + 50*float64(*preferred.Max)/float64(amount))
	default:
		return Neutral
	}
}

// Deadline scores how comfortably the organization can meet the deadline.
func (s *Scorer) Deadline(capacity profile.Capacity, days int, known bool) float64 {
	if !known {
		return Neutral
	}
	if days < 0 {
		return 0
	}
	threshold := s.LeadTime(capacity)
	if days >= threshold {
		return 100
	}
	return clamp(100 * float64(days) / float64(threshold))
}

// LeadTime returns the comfortable lead time in days for capacity.
func (s *Scorer) LeadTime(capacity profile.Capacity) int {
	return s.cfg.DeadlineDays[profile.ParseCapacity(string(capacity))]
}

// Demographic scores the share of target populations mentioned in the description.
func (s *Scorer) Demographic(populations []string, opp *opportunity.FundingOpportunity) float64 {
	if len(populations) == 0 || opp == nil || strings.TrimSpace(opp.Description) == "" {
		return Neutral
	}

	description := strings.ToLower(opp.Description)
	var found, total int
	for _, population := range populations {
		variants := s.table.PopulationVariants(population)
		if len(variants) == 0 {
			continue
		}
		total++
		for _, variant := range variants {
			if strings.Contains(description, variant) {
				found++
				break
			}
		}
	}

	switch {
	case total == 0:
		return Neutral
	case found == 0:
		return 25
	default:
		return clamp(50 + 50*float64(found)/float64(total))
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
