// Package profile defines the organization profile consumed by the ranking engine.
package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Capacity is an organization's self-declared grant writing capacity.
type Capacity string

const (
	CapacityLimited  Capacity = "limited"
	CapacityModerate Capacity = "moderate"
	CapacityAdvanced Capacity = "advanced"
)

// DefaultCapacity is used when a profile does not declare a known capacity.
const DefaultCapacity = CapacityModerate

// ParseCapacity folds case and whitespace. Unknown values map to DefaultCapacity.
func ParseCapacity(s string) Capacity {
	switch Capacity(strings.ToLower(strings.TrimSpace(s))) {
	case CapacityLimited:
		return CapacityLimited
	case CapacityAdvanced:
		return CapacityAdvanced
	case CapacityModerate:
		return CapacityModerate
	default:
		return DefaultCapacity
	}
}

// Program is one of the organization's key programs.
type Program struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

// GrantRange is the preferred grant size. Either bound may be absent.
type GrantRange struct {
	Min *int64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min" validate:"omitempty,gte=0"`
	Max *int64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max" validate:"omitempty,gte=0"`
}

// IsSet reports whether at least one bound is present.
func (r GrantRange) IsSet() bool {
	return r.Min != nil || r.Max != nil
}

// Contains reports whether amount lies inside the range. Missing bounds are unbounded.
func (r GrantRange) Contains(amount int64) bool {
	if r.Min != nil && amount < *r.Min {
		return false
	}
	if r.Max != nil && amount > *r.Max {
		return false
	}
	return true
}

func (r GrantRange) String() string {
	bound := func(v *int64) string {
		if v == nil {
			return "*"
		}
		return strconv.FormatInt(*v, 10)
	}
	return "[" + bound(r.Min) + ", " + bound(r.Max) + "]"
}

// OrganizationProfile is the strict form of an organization's profile.
// The engine only reads it.
type OrganizationProfile struct {
	ID                   string     `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	PrimaryFocusArea     string     `json:"primary_focus_area,omitempty" yaml:"primary_focus_area,omitempty" mapstructure:"primary_focus_area"`
	SecondaryFocusAreas  []string   `json:"secondary_focus_areas,omitempty" yaml:"secondary_focus_areas,omitempty" mapstructure:"secondary_focus_areas"`
	ServiceRegions       []string   `json:"service_regions,omitempty" yaml:"service_regions,omitempty" mapstructure:"service_regions"`
	TargetPopulations    []string   `json:"target_populations,omitempty" yaml:"target_populations,omitempty" mapstructure:"target_populations"`
	KeyPrograms          []Program  `json:"key_programs,omitempty" yaml:"key_programs,omitempty" mapstructure:"key_programs"`
	CustomKeywords       []string   `json:"custom_search_keywords,omitempty" yaml:"custom_search_keywords,omitempty" mapstructure:"custom_search_keywords"`
	ExcludedKeywords     []string   `json:"excluded_keywords,omitempty" yaml:"excluded_keywords,omitempty" mapstructure:"excluded_keywords"`
	PreferredGrantSize   GrantRange `json:"preferred_grant_size" yaml:"preferred_grant_size" mapstructure:"preferred_grant_size"`
	GrantWritingCapacity Capacity   `json:"grant_writing_capacity,omitempty" yaml:"grant_writing_capacity,omitempty" mapstructure:"grant_writing_capacity" validate:"omitempty,oneof=limited moderate advanced"`
	MatchingFundCapacity *float64   `json:"matching_fund_capacity,omitempty" yaml:"matching_fund_capacity,omitempty" mapstructure:"matching_fund_capacity" validate:"omitempty,gte=0,lte=100"`
	DonorRestrictions    string     `json:"donor_restrictions,omitempty" yaml:"donor_restrictions,omitempty" mapstructure:"donor_restrictions"`
}

// ErrInvalidRange is returned when the preferred grant range has min > max.
var ErrInvalidRange = errors.New("preferred grant size min is greater than max")

var validate = validator.New()

// Validate checks field constraints and the grant range invariant.
func (p *OrganizationProfile) Validate() error {
	if p == nil {
		return errors.New("profile is nil")
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("profile %q: %w", p.ID, err)
	}
	r := p.PreferredGrantSize
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("profile %q: %w (%s)", p.ID, ErrInvalidRange, r)
	}
	return nil
}

// Normalize applies the documented defaults in place: trimmed values, lower-cased
// keyword lists without duplicates, known capacity, and no custom keyword that
// is also excluded.
func (p *OrganizationProfile) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.PrimaryFocusArea = strings.TrimSpace(p.PrimaryFocusArea)
	p.SecondaryFocusAreas = dedupe(p.SecondaryFocusAreas, false)
	p.ServiceRegions = dedupe(p.ServiceRegions, false)
	p.TargetPopulations = dedupe(p.TargetPopulations, true)
	p.ExcludedKeywords = dedupe(p.ExcludedKeywords, true)
	p.CustomKeywords = dedupe(p.CustomKeywords, true)
	p.GrantWritingCapacity = ParseCapacity(string(p.GrantWritingCapacity))
	p.DonorRestrictions = strings.TrimSpace(p.DonorRestrictions)

	programs := p.KeyPrograms[:0]
	for _, program := range p.KeyPrograms {
		program.Name = strings.TrimSpace(program.Name)
		program.Description = strings.TrimSpace(program.Description)
		if program.Name == "" && program.Description == "" {
			continue
		}
		programs = append(programs, program)
	}
	p.KeyPrograms = programs

	if len(p.ExcludedKeywords) == 0 || len(p.CustomKeywords) == 0 {
		return
	}
	excluded := make(map[string]struct{}, len(p.ExcludedKeywords))
	for _, kw := range p.ExcludedKeywords {
		excluded[kw] = struct{}{}
	}
	custom := p.CustomKeywords[:0]
	for _, kw := range p.CustomKeywords {
		if _, ok := excluded[kw]; ok {
			continue
		}
		custom = append(custom, kw)
	}
	p.CustomKeywords = custom
}

// Capacity returns the grant writing capacity with the default applied.
func (p *OrganizationProfile) Capacity() Capacity {
	return ParseCapacity(string(p.GrantWritingCapacity))
}

// Text renders a stable plain-text summary used as the profile side of
// semantic similarity requests.
func (p *OrganizationProfile) Text() string {
	var b strings.Builder
	line := func(label string, values ...string) {
		var kept []string
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.Join(kept, ", "))
		b.WriteString("\n")
	}

	line("Primary focus", strings.ReplaceAll(p.PrimaryFocusArea, "-", " "))
	line("Secondary focus", p.SecondaryFocusAreas...)
	line("Target populations", p.TargetPopulations...)
	line("Service regions", p.ServiceRegions...)
	for _, program := range p.KeyPrograms {
		line("Program "+program.Name, program.Description)
	}
	line("Keywords", p.CustomKeywords...)

	return strings.TrimSpace(b.String())
}

func dedupe(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
