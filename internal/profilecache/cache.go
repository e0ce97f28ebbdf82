// Package profilecache keeps recently fetched organization profiles in memory.
package profilecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/profile"
	"github.com/spigell/grant-ranker/internal/profilestore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = 15 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// Lookup describes where a returned profile came from.
type Lookup string

const (
	LookupHit   Lookup = "hit"
	LookupMiss  Lookup = "miss"
	LookupStale Lookup = "stale"
)

type Config struct {
	TTL          time.Duration `mapstructure:"ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`
}

func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, FetchTimeout: DefaultFetchTimeout}
}

type entry struct {
	profile *profile.OrganizationProfile
	fetched time.Time
}

// Cache wraps a profile store. Concurrent misses for one organization share a
// single fetch, and a failed refresh falls back to the expired entry.
type Cache struct {
	store  profilestore.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	entries     map[string]entry
	generations map[string]uint64

	group singleflight.Group
}

func New(store profilestore.Store, cfg Config, log *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Cache{
		store:       store,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
	}
}

// Get returns the profile of orgID. The store fetch runs detached from ctx
// with its own timeout so that one impatient caller does not fail the others
// waiting on the same fetch.
func (c *Cache) Get(ctx context.Context, orgID string) (*profile.OrganizationProfile, Lookup, error) {
	cached, ok := c.lookup(orgID)
	if ok && c.fresh(cached) {
		metrics.ProfileCacheTotal.WithLabelValues(string(LookupHit)).Inc()
		return cached.profile, LookupHit, nil
	}

	ch := c.group.DoChan(orgID, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), orgID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, LookupMiss, ctx.Err()
	}

	if res.Err == nil {
		metrics.ProfileCacheTotal.WithLabelValues(string(LookupMiss)).Inc()
		return res.Val.(*profile.OrganizationProfile), LookupMiss, nil
	}

	if errors.Is(res.Err, profilestore.ErrNotFound) {
		c.Invalidate(orgID)
		metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
		return nil, LookupMiss, res.Err
	}

	if ok {
		c.logger.Warn("profile refresh failed, serving stale profile",
			zap.String(logger.FieldOrganization, orgID),
			zap.Time("fetched_at", cached.fetched),
			zap.Error(res.Err),
		)
		metrics.ProfileCacheTotal.WithLabelValues(string(LookupStale)).Inc()
		return cached.profile, LookupStale, nil
	}

	metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
	return nil, LookupMiss, res.Err
}

// Invalidate drops the cached profile of orgID. A fetch already in flight
// will not store its result.
func (c *Cache) Invalidate(orgID string) {
	c.mu.Lock()
	delete(c.entries, orgID)
	c.generations[orgID]++
	c.mu.Unlock()

	c.group.Forget(orgID)
	c.logger.Debug("profile invalidated", zap.String(logger.FieldOrganization, orgID))
}

// Len returns the number of cached profiles, fresh or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) fetch(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	c.mu.Lock()
	gen := c.generations[orgID]
	c.mu.Unlock()

	p, err := c.store.GetProfile(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load profile of organization %q: %w", orgID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("load profile of organization %q: store returned no profile", orgID)
	}

	c.mu.Lock()
	if c.generations[orgID] == gen {
		c.entries[orgID] = entry{profile: p, fetched: c.now()}
	}
	c.mu.Unlock()

	return p, nil
}

func (c *Cache) lookup(orgID string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[orgID]
	return e, ok
}

func (c *Cache) fresh(e entry) bool {
	return c.now().Sub(e.fetched) < c.cfg.TTL
}
