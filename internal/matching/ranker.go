package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/grant-ranker/internal/filtering"
	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
	"github.com/spigell/grant-ranker/internal/profilecache"
	"github.com/spigell/grant-ranker/internal/semantic"
)

// Mode tells whether a batch was ranked against the organization profile.
type Mode string

const (
	ModeOrganizationAware Mode = "organization_aware"
	ModeGenericFallback   Mode = "generic_fallback"
)

const (
	defaultWorkers         = 8
	defaultSemanticTimeout = 10 * time.Second
)

// ProfileSource returns organization profiles; *profilecache.Cache implements it.
type ProfileSource interface {
	Get(ctx context.Context, orgID string) (*profile.OrganizationProfile, profilecache.Lookup, error)
}

// RankerConfig bounds the batch work.
type RankerConfig struct {
	Workers         int           `mapstructure:"workers"`
	SemanticTimeout time.Duration `mapstructure:"semantic-timeout"`
}

func DefaultRankerConfig() RankerConfig {
	return RankerConfig{Workers: defaultWorkers, SemanticTimeout: defaultSemanticTimeout}
}

// RankOptions are per-request switches.
type RankOptions struct {
	// IncludeFiltered appends filtered results after the ranked ones.
	IncludeFiltered bool
}

// Stats summarizes one batch.
type Stats struct {
	Total           int            `json:"total"`
	Scored          int            `json:"scored"`
	Filtered        int            `json:"filtered"`
	SemanticDropped int            `json:"semantic_dropped"`
	Malformed       int            `json:"malformed"`
	ByRule          map[string]int `json:"by_rule,omitempty"`
}

// Batch is the ranking of one request.
type Batch struct {
	ID       string        `json:"id"`
	OrgID    string        `json:"org_id"`
	Mode     Mode          `json:"mode"`
	Warnings []string      `json:"warnings,omitempty"`
	Partial  bool          `json:"partial,omitempty"`
	Results  []MatchResult `json:"results"`
	Stats    Stats         `json:"stats"`
}

// Ranker scores opportunity batches concurrently.
type Ranker struct {
	calc     *Calculator
	profiles ProfileSource
	semantic semantic.Scorer
	cfg      RankerConfig
	logger   *zap.Logger
}

// NewRanker wires a ranker. A nil profile source always ranks in generic mode,
// a nil semantic scorer disables the semantic factor.
func NewRanker(calc *Calculator, profiles ProfileSource, sem semantic.Scorer, cfg RankerConfig, log *zap.Logger) *Ranker {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SemanticTimeout <= 0 {
		cfg.SemanticTimeout = defaultSemanticTimeout
	}
	if sem == nil {
		sem = semantic.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Ranker{
		calc:     calc,
		profiles: profiles,
		semantic: semantic.WithTimeout(sem, cfg.SemanticTimeout),
		cfg:      cfg,
		logger:   log,
	}
}

// Calculator returns the calculator used by the ranker.
func (r *Ranker) Calculator() *Calculator {
	return r.calc
}

type scored struct {
	result MatchResult
	index  int
	done   bool
}

// Rank scores opportunities for orgID. Results are sorted by overall score
// descending, ties by opportunity id. On cancellation the results finished so
// far are returned with Partial set, together with the context error.
func (r *Ranker) Rank(ctx context.Context, orgID string, opps []opportunity.FundingOpportunity, opts RankOptions) (*Batch, error) {
	start := time.Now()
	batch := &Batch{ID: uuid.NewString(), OrgID: orgID, Mode: ModeOrganizationAware}
	log := logger.WithBatch(r.logger, orgID, batch.ID)

	prep, err := r.prepare(ctx, orgID, batch, log)
	if err != nil {
		batch.Partial = true
		batch.Results = []MatchResult{}
		batch.Stats.Total = len(opps)
		return batch, err
	}

	var profileText string
	if !prep.Generic {
		profileText = prep.Profile.Text()
	}

	now := r.calc.Now()
	items := make([]scored, len(opps))
	failures := &semanticFailures{logger: log}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range opps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, ok := r.scoreOne(gctx, prep, &opps[i], profileText, now, failures)
			if ok {
				items[i] = scored{result: res, index: i, done: true}
			}
			return nil
		})
	}
	_ = g.Wait()

	r.collect(batch, opps, items, opts, log)
	batch.Partial = ctx.Err() != nil

	metrics.RankingsTotal.WithLabelValues(string(batch.Mode)).Inc()
	metrics.RankingDuration.WithLabelValues(string(batch.Mode)).Observe(time.Since(start).Seconds())

	log.Info("ranking finished",
		zap.String("mode", string(batch.Mode)),
		zap.Int("total", batch.Stats.Total),
		zap.Int("scored", batch.Stats.Scored),
		zap.Int("filtered", batch.Stats.Filtered),
		zap.Int("semantic_dropped", batch.Stats.SemanticDropped),
		zap.Bool("partial", batch.Partial),
		zap.Duration("duration", time.Since(start)),
	)

	if batch.Partial {
		return batch, ctx.Err()
	}
	return batch, nil
}

// prepare resolves the profile, falling back to generic mode when it cannot be loaded.
func (r *Ranker) prepare(ctx context.Context, orgID string, batch *Batch, log *zap.Logger) (*Prepared, error) {
	if r.profiles == nil {
		batch.Mode = ModeGenericFallback
		batch.Warnings = append(batch.Warnings, "no profile source configured; generic ranking used")
		return r.calc.PrepareGeneric(), nil
	}

	p, lookup, err := r.profiles.Get(ctx, orgID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("profile unavailable, ranking in generic mode", zap.Error(err))
		batch.Mode = ModeGenericFallback
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("profile unavailable: %v; generic ranking used", err))
		return r.calc.PrepareGeneric(), nil
	}

	if lookup == profilecache.LookupStale {
		batch.Warnings = append(batch.Warnings, "profile store unavailable; cached profile may be outdated")
	}

	return r.calc.Prepare(p), nil
}

func (r *Ranker) scoreOne(ctx context.Context, prep *Prepared, opp *opportunity.FundingOpportunity, profileText string, now time.Time, failures *semanticFailures) (MatchResult, bool) {
	if verdict := r.calc.Filter(prep, opp, now); verdict.Filtered {
		return r.calc.ScorePrepared(prep, opp, nil, now), true
	}

	var semanticScore *float64
	if profileText != "" && opp.HasText() {
		score, err := r.semantic.Similarity(ctx, profileText, opp.Text())
		if err == nil {
			score, err = semantic.Validate(score)
		}
		switch {
		case err == nil:
			semanticScore = &score
		case ctx.Err() != nil:
			return MatchResult{}, false
		default:
			failures.record(opp.ID, err)
		}
	}

	return r.calc.ScorePrepared(prep, opp, semanticScore, now), true
}

func (r *Ranker) collect(batch *Batch, opps []opportunity.FundingOpportunity, items []scored, opts RankOptions, log *zap.Logger) {
	var ranked, filtered []scored
	var stats filtering.Stats

	batch.Stats.Total = len(opps)
	for i := range items {
		item := items[i]
		if !item.done {
			continue
		}
		if err := opps[i].Validate(); err != nil {
			batch.Stats.Malformed++
			log.Debug("malformed opportunity scored with neutral defaults", zap.Int("index", i), zap.Error(err))
		}

		res := item.result
		stats.Record(filtering.Verdict{Filtered: res.Filtered, Rule: res.FilterRule, Reason: res.FilterReason})
		if res.Filtered {
			filtered = append(filtered, item)
			metrics.OpportunitiesTotal.WithLabelValues("filtered").Inc()
			metrics.FilteredTotal.WithLabelValues(res.FilterRule).Inc()
			continue
		}
		if res.SemanticDropped {
			batch.Stats.SemanticDropped++
		}
		ranked = append(ranked, item)
		metrics.OpportunitiesTotal.WithLabelValues("scored").Inc()
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].result, ranked[j].result
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.OpportunityID != b.OpportunityID {
			return a.OpportunityID < b.OpportunityID
		}
		return ranked[i].index < ranked[j].index
	})

	results := make([]MatchResult, 0, len(ranked)+len(filtered))
	for _, item := range ranked {
		results = append(results, item.result)
	}
	if opts.IncludeFiltered {
		for _, item := range filtered {
			results = append(results, item.result)
		}
	}

	batch.Results = results
	batch.Stats.Scored = len(ranked)
	batch.Stats.Filtered = len(filtered)
	batch.Stats.ByRule = stats.ByRule
	r.calc.Chain().LogSteps(log, stats)
}

// semanticFailures logs the first semantic failure of a batch and counts all of them.
type semanticFailures struct {
	logger *zap.Logger
	once   sync.Once
}

func (f *semanticFailures) record(opportunityID string, err error) {
	if errors.Is(err, semantic.ErrDisabled) {
		return
	}

	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	metrics.SemanticDroppedTotal.WithLabelValues(reason).Inc()

	f.once.Do(func() {
		f.logger.Warn("semantic similarity unavailable, scoring without it",
			zap.String("opportunity_id", opportunityID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	})
}
