// Package filtering implements the hard exclusion gate applied before scoring.
package filtering

import (
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
)

// Filter represents a single exclusion rule.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	// Check returns the exclusion reason when the opportunity must be dropped.
	Check(in Input) (string, bool)
}

// Input is the data a rule inspects for one (profile, opportunity) pair.
type Input struct {
	Profile     *profile.OrganizationProfile
	Opportunity *opportunity.FundingOpportunity
	// Restrictions are the parsed donor-restriction keywords of Profile.
	Restrictions []string
	DaysLeft     int
	DeadlineSet  bool
}

// NewInput builds the rule input, parsing donor restrictions and the deadline.
func NewInput(p *profile.OrganizationProfile, opp *opportunity.FundingOpportunity, now time.Time) Input {
	in := Input{Profile: p, Opportunity: opp}
	if p != nil {
		in.Restrictions = p.Restrictions()
	}
	if opp != nil {
		in.DaysLeft, in.DeadlineSet = opp.DaysUntilDeadline(now)
	}
	return in
}

// Verdict is the outcome of the chain for one opportunity.
type Verdict struct {
	Filtered bool
	Rule     string
	Reason   string
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	// MinLeadTimeDays is the shortest deadline a limited-capacity organization can meet.
	MinLeadTimeDays int `mapstructure:"min-lead-time-days"`
	// Disabled lists rule names to switch off. Mandatory rules ignore it.
	Disabled []string `mapstructure:"disabled"`
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() Config {
	return Config{MinLeadTimeDays: 14}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Chain applies filters in order; the first match wins.
type Chain struct {
	filters []Filter
}

// NewChain builds the standard rule order. Expiry is checked first so that an
// expired opportunity is always reported as expired.
func NewChain(cfg Config) *Chain {
	if cfg.MinLeadTimeDays <= 0 {
		cfg.MinLeadTimeDays = DefaultConfig().MinLeadTimeDays
	}

	filters := []Filter{
		NewExpired(),
		NewExcludedKeyword(),
		NewDonorRestriction(),
		NewMatchingFunds(),
		NewLeadTime(cfg.MinLeadTimeDays),
	}
	for _, name := range cfg.Disabled {
		DisableByName(filters, name, "disabled in config")
	}

	return &Chain{filters: filters}
}

// Filters returns the rules of the chain in order.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Check runs the enabled rules and returns the first match.
func (c *Chain) Check(in Input) Verdict {
	if in.Opportunity == nil {
		return Verdict{}
	}
	for _, f := range c.filters {
		if !f.IsEnabled() {
			continue
		}
		if reason, ok := f.Check(in); ok {
			return Verdict{Filtered: true, Rule: f.Name(), Reason: reason}
		}
	}
	return Verdict{}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Step describes the result of one rule over a batch.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Stats aggregates verdicts of a batch.
type Stats struct {
	Initial int            `json:"initial"`
	Dropped int            `json:"dropped"`
	ByRule  map[string]int `json:"by_rule,omitempty"`
}

// Record adds one verdict to the stats.
func (s *Stats) Record(v Verdict) {
	s.Initial++
	if !v.Filtered {
		return
	}
	s.Dropped++
	if s.ByRule == nil {
		s.ByRule = make(map[string]int)
	}
	s.ByRule[v.Rule]++
}

// Left returns the number of opportunities that passed every rule.
func (s Stats) Left() int {
	return s.Initial - s.Dropped
}

// Steps replays stats as sequential per-rule steps in chain order.
func (c *Chain) Steps(s Stats) map[string]Step {
	steps := make(map[string]Step, len(c.filters))
	left := s.Initial
	for _, f := range c.filters {
		dropped := s.ByRule[f.Name()]
		steps[f.Name()] = Step{Initial: left, Dropped: dropped, Left: left - dropped}
		left -= dropped
	}
	return steps
}

// LogSteps writes one entry per rule the way a sequential filter pipeline reports itself.
func (c *Chain) LogSteps(logger *zap.Logger, s Stats) {
	if logger == nil {
		return
	}
	steps := c.Steps(s)
	for _, f := range c.filters {
		if !f.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", f.Name()))
			continue
		}
		info := steps[f.Name()]
		logger.Debug("filter step",
			zap.String("name", f.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}
	logger.Debug("filtering finished", zap.Int("initial", s.Initial), zap.Int("left", s.Left()))
}
