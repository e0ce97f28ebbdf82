package filtering

import (
	"strconv"
	"strings"

	"github.com/spigell/grant-ranker/internal/profile"
)

// Exclusion reasons reported in verdicts.
const (
	ReasonExpired          = "expired"
	ReasonExcludedKeyword  = "excluded keyword: "
	ReasonDonorRestriction = "donor restriction: "
	ReasonMatchingFunds    = "insufficient matching funds"
	ReasonInsufficientTime = "insufficient time to prepare"
	mandatoryReason        = "rule is mandatory"
)

// toggle is embedded by rules that can be switched off.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type expiredFilter struct{}

// NewExpired creates the rule dropping opportunities whose deadline has passed.
func NewExpired() Filter {
	return &expiredFilter{}
}

func (f *expiredFilter) Name() string { return "expired" }

func (f *expiredFilter) Disable(string) {}

func (f *expiredFilter) IsEnabled() bool { return true }

func (f *expiredFilter) Check(in Input) (string, bool) {
	if in.DeadlineSet && in.DaysLeft < 0 {
		return ReasonExpired, true
	}
	return "", false
}

func (f *expiredFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Reason: mandatoryReason}
}

type excludedKeywordFilter struct{}

// NewExcludedKeyword creates the rule dropping opportunities that mention an excluded keyword.
func NewExcludedKeyword() Filter {
	return &excludedKeywordFilter{}
}

func (f *excludedKeywordFilter) Name() string { return "excluded_keyword" }

func (f *excludedKeywordFilter) Disable(string) {}

func (f *excludedKeywordFilter) IsEnabled() bool { return true }

func (f *excludedKeywordFilter) Check(in Input) (string, bool) {
	if in.Profile == nil || len(in.Profile.ExcludedKeywords) == 0 {
		return "", false
	}
	text := strings.ToLower(in.Opportunity.Title + "\n" + in.Opportunity.Description)
	for _, kw := range in.Profile.ExcludedKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return ReasonExcludedKeyword + kw, true
		}
	}
	return "", false
}

func (f *excludedKeywordFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Reason: mandatoryReason}
}

type donorRestrictionFilter struct {
	toggle
}

// NewDonorRestriction creates the rule honoring the organization's donor restrictions.
func NewDonorRestriction() Filter {
	return &donorRestrictionFilter{}
}

func (f *donorRestrictionFilter) Name() string { return "donor_restriction" }

func (f *donorRestrictionFilter) Check(in Input) (string, bool) {
	for _, kw := range in.Restrictions {
		if _, ok := profile.MatchRestriction(kw, in.Opportunity.Funder, in.Opportunity.Description); ok {
			return ReasonDonorRestriction + kw, true
		}
	}
	return "", false
}

func (f *donorRestrictionFilter) Status() Status {
	details := map[string]string{
		"vocabulary_size": strconv.Itoa(len(profile.Restrictions())),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type matchingFundsFilter struct {
	toggle
}

// NewMatchingFunds creates the rule dropping opportunities whose cost share exceeds the organization's capacity.
func NewMatchingFunds() Filter {
	return &matchingFundsFilter{}
}

func (f *matchingFundsFilter) Name() string { return "matching_funds" }

func (f *matchingFundsFilter) Check(in Input) (string, bool) {
	if in.Profile == nil || in.Profile.MatchingFundCapacity == nil || in.Opportunity.CostSharePercent == nil {
		return "", false
	}
	if *in.Opportunity.CostSharePercent > *in.Profile.MatchingFundCapacity {
		return ReasonMatchingFunds, true
	}
	return "", false
}

func (f *matchingFundsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type leadTimeFilter struct {
	toggle
	minDays int
}

// NewLeadTime creates the rule dropping near deadlines for limited-capacity organizations.
func NewLeadTime(minDays int) Filter {
	return &leadTimeFilter{minDays: minDays}
}

func (f *leadTimeFilter) Name() string { return "lead_time" }

func (f *leadTimeFilter) Check(in Input) (string, bool) {
	if in.Profile == nil || in.Profile.Capacity() != profile.CapacityLimited || !in.DeadlineSet {
		return "", false
	}
	if in.DaysLeft >= 0 && in.DaysLeft < f.minDays {
		return ReasonInsufficientTime, true
	}
	return "", false
}

func (f *leadTimeFilter) Status() Status {
	details := map[string]string{
		"min_lead_time_days": strconv.Itoa(f.minDays),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
