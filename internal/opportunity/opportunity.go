// Package opportunity defines funding opportunity records and the sources they are read from.
package opportunity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FundingOpportunity is a candidate grant. It is treated as immutable input
// for the duration of one ranking pass.
type FundingOpportunity struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Title       string `json:"title" yaml:"title" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Funder      string `json:"funder,omitempty" yaml:"funder,omitempty"`
	AmountMin   *int64 `json:"amount_min,omitempty" yaml:"amount_min,omitempty" validate:"omitempty,gte=0"`
	AmountMax   *int64 `json:"amount_max,omitempty" yaml:"amount_max,omitempty" validate:"omitempty,gte=0"`
	Deadline    *Date  `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	// DeadlineForecasted marks a projected deadline that the funder has not published yet.
	DeadlineForecasted bool     `json:"deadline_forecasted,omitempty" yaml:"deadline_forecasted,omitempty"`
	GeographicFocus    string   `json:"geographic_focus,omitempty" yaml:"geographic_focus,omitempty"`
	CostSharePercent   *float64 `json:"cost_share_percent,omitempty" yaml:"cost_share_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	URL                string   `json:"url,omitempty" yaml:"url,omitempty"`
}

var validate = validator.New()

// Validate reports a malformed record. Malformed records are still ranked;
// the affected factors degrade to neutral.
func (o *FundingOpportunity) Validate() error {
	if o == nil {
		return errors.New("opportunity is nil")
	}
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("opportunity %q: %w", o.ID, err)
	}
	if o.AmountMin != nil && o.AmountMax != nil && *o.AmountMin > *o.AmountMax {
		return fmt.Errorf("opportunity %q: amount min is greater than max", o.ID)
	}
	return nil
}

// Amount returns the representative award amount: the maximum when present, else the minimum.
func (o *FundingOpportunity) Amount() (int64, bool) {
	switch {
	case o.AmountMax != nil:
		return *o.AmountMax, true
	case o.AmountMin != nil:
		return *o.AmountMin, true
	default:
		return 0, false
	}
}

// DaysUntilDeadline returns the whole calendar days left before the deadline.
// A forecasted deadline that has already passed is reported as absent.
func (o *FundingOpportunity) DaysUntilDeadline(now time.Time) (int, bool) {
	if o.Deadline == nil || o.Deadline.IsZero() {
		return 0, false
	}
	days := o.Deadline.DaysAfter(now)
	if days < 0 && o.DeadlineForecasted {
		return 0, false
	}
	return days, true
}

// Text is the searchable text of the opportunity: title and description.
func (o *FundingOpportunity) Text() string {
	return strings.TrimSpace(o.Title + "\n" + o.Description)
}

// HasText reports whether the opportunity carries any searchable text.
func (o *FundingOpportunity) HasText() bool {
	return strings.TrimSpace(o.Title) != "" || strings.TrimSpace(o.Description) != ""
}
