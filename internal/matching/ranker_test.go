package matching

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
	"github.com/spigell/grant-ranker/internal/profilecache"
	"github.com/spigell/grant-ranker/internal/profilestore"
	"github.com/spigell/grant-ranker/internal/semantic"
)

type fakeProfiles struct {
	profile *profile.OrganizationProfile
	lookup  profilecache.Lookup
	err     error
}

func (f *fakeProfiles) Get(context.Context, string) (*profile.OrganizationProfile, profilecache.Lookup, error) {
	if f.err != nil {
		return nil, profilecache.LookupMiss, f.err
	}
	return f.profile, f.lookup, nil
}

func batchOpportunities() []opportunity.FundingOpportunity {
	return []opportunity.FundingOpportunity{
		{ID: "neutral", Title: "General Operating Support"},
		{ID: "military", Title: "Defense Training", Description: "military training", AmountMax: i64(100000)},
		{ID: "workforce", Title: "Workforce Digital Skills Grant", Description: "workforce training program", AmountMax: i64(50000), Deadline: dateIn(45)},
		{ID: "expired", Title: "Workforce Grant", Description: "workforce", Deadline: dateIn(-1)},
		{ID: "b-tie", Title: "Tie", Description: "unrelated words"},
		{ID: "a-tie", Title: "Tie", Description: "unrelated words"},
	}
}

func newTestRanker(profiles ProfileSource, sem semantic.Scorer, log *zap.Logger) *Ranker {
	return NewRanker(newTestCalculator(), profiles, sem, RankerConfig{Workers: 3, SemanticTimeout: time.Second}, log)
}

func TestRankOrdersAndFilters(t *testing.T) {
	r := newTestRanker(&fakeProfiles{profile: workforceProfile(), lookup: profilecache.LookupHit}, nil, nil)

	batch, err := r.Rank(context.Background(), "org-workforce", batchOpportunities(), RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Mode != ModeOrganizationAware || batch.ID == "" || batch.Partial {
		t.Fatalf("unexpected batch header: %+v", batch)
	}

	var ids []string
	for _, res := range batch.Results {
		if res.Filtered {
			t.Fatalf("filtered result returned without IncludeFiltered: %+v", res)
		}
		ids = append(ids, res.OpportunityID)
	}
	if len(ids) != 4 || ids[0] != "workforce" {
		t.Fatalf("unexpected order: %v", ids)
	}
	for i := 1; i < len(batch.Results); i++ {
		if batch.Results[i-1].Score() < batch.Results[i].Score() {
			t.Fatalf("results not sorted: %v", ids)
		}
	}

	// Equal scores fall back to id order.
	pos := map[string]int{}
	for i, id := range ids {
		pos[id] = i
	}
	if pos["a-tie"] > pos["b-tie"] {
		t.Fatalf("ties must be ordered by id: %v", ids)
	}

	if batch.Stats.Total != 6 || batch.Stats.Scored != 4 || batch.Stats.Filtered != 2 {
		t.Fatalf("unexpected stats: %+v", batch.Stats)
	}
	if batch.Stats.ByRule["excluded_keyword"] != 1 || batch.Stats.ByRule["expired"] != 1 {
		t.Fatalf("unexpected per-rule stats: %v", batch.Stats.ByRule)
	}
	if batch.Stats.SemanticDropped != 4 {
		t.Fatalf("expected semantic dropped for every scored result, got %d", batch.Stats.SemanticDropped)
	}
}

func TestRankIncludeFiltered(t *testing.T) {
	r := newTestRanker(&fakeProfiles{profile: workforceProfile()}, nil, nil)

	batch, err := r.Rank(context.Background(), "org-workforce", batchOpportunities(), RankOptions{IncludeFiltered: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(batch.Results))
	}

	tail := batch.Results[4:]
	if tail[0].OpportunityID != "military" || tail[1].OpportunityID != "expired" {
		t.Fatalf("filtered results must follow input order: %s, %s", tail[0].OpportunityID, tail[1].OpportunityID)
	}
	if tail[0].FilterReason != "excluded keyword: military" || tail[1].FilterReason != "expired" {
		t.Fatalf("unexpected reasons: %q, %q", tail[0].FilterReason, tail[1].FilterReason)
	}
}

func TestRankGenericFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newTestRanker(&fakeProfiles{err: profilestore.ErrNotFound}, nil, zap.New(core))

	batch, err := r.Rank(context.Background(), "unknown-org", batchOpportunities(), RankOptions{})
	if err != nil {
		t.Fatalf("fallback must not fail the batch: %v", err)
	}
	if batch.Mode != ModeGenericFallback || len(batch.Warnings) == 0 {
		t.Fatalf("expected generic mode with a warning: %+v", batch)
	}
	// Generic mode has no exclusions besides expiry.
	if batch.Stats.Filtered != 1 || batch.Stats.ByRule["expired"] != 1 {
		t.Fatalf("unexpected filtering in generic mode: %+v", batch.Stats)
	}
	if logs.FilterMessage("profile unavailable, ranking in generic mode").Len() != 1 {
		t.Fatalf("expected a fallback warning log")
	}

	r = newTestRanker(nil, nil, nil)
	batch, err = r.Rank(context.Background(), "any", batchOpportunities(), RankOptions{})
	if err != nil || batch.Mode != ModeGenericFallback {
		t.Fatalf("nil profile source must rank generically: %v %+v", err, batch)
	}
}

func TestRankStaleProfileWarning(t *testing.T) {
	r := newTestRanker(&fakeProfiles{profile: workforceProfile(), lookup: profilecache.LookupStale}, nil, nil)

	batch, err := r.Rank(context.Background(), "org-workforce", batchOpportunities(), RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Mode != ModeOrganizationAware || len(batch.Warnings) != 1 {
		t.Fatalf("expected organization-aware mode with one warning: %+v", batch)
	}
}

func TestRankUsesSemanticScores(t *testing.T) {
	var calls atomic.Int32
	sem := semantic.Func(func(_ context.Context, profileText, opportunityText string) (float64, error) {
		calls.Add(1)
		if profileText == "" || opportunityText == "" {
			t.Errorf("semantic scorer called with empty text")
		}
		return 90, nil
	})
	r := newTestRanker(&fakeProfiles{profile: workforceProfile()}, sem, nil)

	batch, err := r.Rank(context.Background(), "org-workforce", batchOpportunities(), RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected semantic calls only for unfiltered opportunities, got %d", calls.Load())
	}
	if batch.Stats.SemanticDropped != 0 {
		t.Fatalf("unexpected dropped semantic factors: %+v", batch.Stats)
	}
	for _, res := range batch.Results {
		if res.SemanticDropped {
			t.Fatalf("semantic factor missing: %+v", res)
		}
	}
}

func TestRankSemanticFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sem := semantic.Func(func(context.Context, string, string) (float64, error) {
		return 0, errors.New("service unavailable")
	})
	r := newTestRanker(&fakeProfiles{profile: workforceProfile()}, sem, zap.New(core))

	batch, err := r.Rank(context.Background(), "org-workforce", batchOpportunities(), RankOptions{})
	if err != nil {
		t.Fatalf("semantic failures must not fail the batch: %v", err)
	}
	if batch.Stats.SemanticDropped != 4 {
		t.Fatalf("expected 4 dropped semantic factors, got %+v", batch.Stats)
	}
	if got := logs.FilterMessage("semantic similarity unavailable, scoring without it").Len(); got != 1 {
		t.Fatalf("expected exactly one failure log, got %d", got)
	}
}

func TestRankCancellationReturnsPartialBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	sem := semantic.Func(func(ctx context.Context, _, _ string) (float64, error) {
		if calls.Add(1) == 3 {
			cancel()
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 60, nil
	})

	opps := make([]opportunity.FundingOpportunity, 10)
	for i := range opps {
		opps[i] = opportunity.FundingOpportunity{ID: string(rune('a' + i)), Title: "Workforce grant", Description: "workforce"}
	}

	r := NewRanker(newTestCalculator(), &fakeProfiles{profile: workforceProfile()}, sem, RankerConfig{Workers: 1}, nil)
	batch, err := r.Rank(ctx, "org-workforce", opps, RankOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if batch == nil || !batch.Partial {
		t.Fatalf("expected a partial batch, got %+v", batch)
	}
	if len(batch.Results) != 2 {
		t.Fatalf("expected the two finished results, got %d", len(batch.Results))
	}
	for _, res := range batch.Results {
		if res.OverallScore == nil || res.SemanticDropped {
			t.Fatalf("finished results must be complete: %+v", res)
		}
	}
}
