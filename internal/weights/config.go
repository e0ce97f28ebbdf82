package weights

import (
	"errors"
	"fmt"

	"github.com/spigell/grant-ranker/internal/profile"
)

// Base holds the starting weight of every factor.
type Base struct {
	Keyword     float64 `mapstructure:"keyword" json:"keyword"`
	Semantic    float64 `mapstructure:"semantic" json:"semantic"`
	Funding     float64 `mapstructure:"funding" json:"funding"`
	Deadline    float64 `mapstructure:"deadline" json:"deadline"`
	Demographic float64 `mapstructure:"demographic" json:"demographic"`
	Geographic  float64 `mapstructure:"geographic" json:"geographic"`
}

// Vector returns the base weights as a vector, not normalized.
func (b Base) Vector() Vector {
	return Vector{
		Keyword:     b.Keyword,
		Semantic:    b.Semantic,
		Funding:     b.Funding,
		Deadline:    b.Deadline,
		Demographic: b.Demographic,
		Geographic:  b.Geographic,
	}
}

// Adjustment multiplies the deadline and semantic weights for a capacity tier.
type Adjustment struct {
	Deadline float64 `mapstructure:"deadline" json:"deadline"`
	Semantic float64 `mapstructure:"semantic" json:"semantic"`
}

// Config is the Weight Calculator configuration.
type Config struct {
	Base     Base       `mapstructure:"base" json:"base"`
	Limited  Adjustment `mapstructure:"limited" json:"limited"`
	Advanced Adjustment `mapstructure:"advanced" json:"advanced"`
	// SmallGrantMax is the preferred maximum at or below which a budget counts as small.
	SmallGrantMax int64 `mapstructure:"small-grant-max" json:"small_grant_max"`
	// NarrowRangeRatio bounds max/min for a preferred range to count as narrow.
	NarrowRangeRatio float64 `mapstructure:"narrow-range-ratio" json:"narrow_range_ratio"`
	FundingBoost     float64 `mapstructure:"funding-boost" json:"funding_boost"`
}

// DefaultConfig returns the documented policy defaults.
func DefaultConfig() Config {
	return Config{
		Base: Base{
			Keyword:     0.30,
			Semantic:    0.40,
			Funding:     0.15,
			Deadline:    0.08,
			Demographic: 0.05,
			Geographic:  0.02,
		},
		Limited:          Adjustment{Deadline: 2.0, Semantic: 0.9},
		Advanced:         Adjustment{Deadline: 0.4, Semantic: 1.2},
		SmallGrantMax:    100000,
		NarrowRangeRatio: 1.5,
		FundingBoost:     1.3,
	}
}

// Validate rejects configurations that could break the weight invariant.
func (c Config) Validate() error {
	base := c.Base.Vector()
	for _, f := range Factors {
		if base[f] < 0 {
			return fmt.Errorf("base %s weight is negative", f)
		}
	}
	if base.Sum()-base[Semantic] <= 0 {
		return errors.New("at least one non-semantic base weight must be positive")
	}
	for name, m := range map[string]float64{
		"limited.deadline":  c.Limited.Deadline,
		"limited.semantic":  c.Limited.Semantic,
		"advanced.deadline": c.Advanced.Deadline,
		"advanced.semantic": c.Advanced.Semantic,
		"funding-boost":     c.FundingBoost,
	} {
		if m < 0 {
			return fmt.Errorf("multiplier %s is negative", name)
		}
	}
	if c.NarrowRangeRatio < 1 {
		return fmt.Errorf("narrow-range-ratio must be at least 1, got %v", c.NarrowRangeRatio)
	}
	return nil
}

// Compute derives the weight vector for p: capacity adjustment, then the
// budget rule, then renormalization. It panics if the result breaks the invariant.
func (c Config) Compute(p *profile.OrganizationProfile) Vector {
	v := c.Base.Vector()

	capacity := profile.DefaultCapacity
	if p != nil {
		capacity = p.Capacity()
	}

	switch capacity {
	case profile.CapacityLimited:
		v[Deadline] *= c.Limited.Deadline
		v[Semantic] *= c.Limited.Semantic
	case profile.CapacityAdvanced:
		v[Semantic] *= c.Advanced.Semantic
		v[Deadline] *= c.Advanced.Deadline
	}

	if p != nil && c.focusedBudget(p.PreferredGrantSize) {
		v[Funding] *= c.FundingBoost
	}

	return MustValidate(v.Normalize())
}

// focusedBudget reports whether the preferred range is small or narrow.
func (c Config) focusedBudget(r profile.GrantRange) bool {
	if r.Max != nil && *r.Max <= c.SmallGrantMax {
		return true
	}
	if r.Min != nil && r.Max != nil && *r.Min > 0 {
		return float64(*r.Max) <= c.NarrowRangeRatio*float64(*r.Min)
	}
	return false
}
