// Package profilestore loads organization profiles from the system of record.
package profilestore

import (
	"context"
	"errors"

	"github.com/spigell/grant-ranker/internal/profile"
)

// ErrNotFound is returned when the store has no profile for the organization.
var ErrNotFound = errors.New("organization profile not found")

// Store fetches one organization profile. Implementations return a validated,
// normalized profile or an error wrapping ErrNotFound.
type Store interface {
	GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error)
}

// Func adapts a function to Store.
type Func func(ctx context.Context, orgID string) (*profile.OrganizationProfile, error)

func (f Func) GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	return f(ctx, orgID)
}
