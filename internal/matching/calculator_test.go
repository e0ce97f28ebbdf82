package matching

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
	"github.com/spigell/grant-ranker/internal/weights"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func dateIn(days int) *opportunity.Date {
	d := opportunity.NewDate(fixedNow.AddDate(0, 0, days))
	return &d
}

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultConfig(), nil).WithClock(func() time.Time { return fixedNow })
}

func workforceProfile() *profile.OrganizationProfile {
	return &profile.OrganizationProfile{
		ID:                   "org-workforce",
		PrimaryFocusArea:     "workforce-development",
		PreferredGrantSize:   profile.GrantRange{Min: i64(25000), Max: i64(500000)},
		GrantWritingCapacity: profile.CapacityLimited,
		ExcludedKeywords:     []string{"military"},
	}
}

func TestScoreFiltersExcludedKeyword(t *testing.T) {
	calc := newTestCalculator()
	opp := &opportunity.FundingOpportunity{
		ID:          "A",
		Title:       "Department of Defense Cyber Training Grant",
		Description: "Supports military cyber readiness training.",
		AmountMax:   i64(100000),
	}

	res := calc.Score(workforceProfile(), opp, f64(90))
	if !res.Filtered || res.FilterReason != "excluded keyword: military" {
		t.Fatalf("expected excluded keyword filter, got %+v", res)
	}
	if res.OverallScore != nil || res.Breakdown != nil {
		t.Fatalf("filtered result must carry no score: %+v", res)
	}
}

func TestScoreOpportunityWithinRange(t *testing.T) {
	calc := newTestCalculator()
	opp := &opportunity.FundingOpportunity{
		ID:          "B",
		Title:       "Workforce Digital Skills Grant",
		Description: "workforce training program",
		AmountMax:   i64(50000),
		Deadline:    dateIn(45),
	}

	for name, sem := range map[string]*float64{"without semantic": nil, "with semantic": f64(80)} {
		t.Run(name, func(t *testing.T) {
			res := calc.Score(workforceProfile(), opp, sem)
			if res.Filtered {
				t.Fatalf("unexpected filter: %s", res.FilterReason)
			}
			if got := res.Breakdown[weights.Funding]; got != 100 {
				t.Fatalf("funding: expected 100, got %v", got)
			}
			if got := res.Breakdown[weights.Deadline]; got != 100 {
				t.Fatalf("deadline: expected 100, got %v", got)
			}
			if got := res.Breakdown[weights.Keyword]; got < 60 {
				t.Fatalf("keyword: expected a high score, got %v", got)
			}
			if !contains(res.MatchedKeywords, "workforce") {
				t.Fatalf("expected workforce among matched keywords: %v", res.MatchedKeywords)
			}
			if overall := res.Score(); overall < 75 || overall > 95 {
				t.Fatalf("overall %v outside 75..95", overall)
			}
			if err := res.Weights.Validate(); err != nil {
				t.Fatalf("weights: %v", err)
			}

			_, hasSemantic := res.Weights[weights.Semantic]
			if hasSemantic == (sem == nil) || res.SemanticDropped != (sem == nil) {
				t.Fatalf("semantic factor presence mismatch: %+v", res)
			}
		})
	}
}

func TestScoreNeutralOpportunity(t *testing.T) {
	calc := newTestCalculator()
	opp := &opportunity.FundingOpportunity{ID: "C", Title: "General Operating Support", Description: ""}

	res := calc.Score(workforceProfile(), opp, nil)
	if res.Filtered {
		t.Fatalf("unexpected filter: %s", res.FilterReason)
	}
	for f, v := range res.Breakdown {
		if v != 50 {
			t.Errorf("%s: expected neutral 50, got %v", f, v)
		}
	}
	if math.Abs(res.Score()-50) > 1e-9 {
		t.Fatalf("expected overall 50, got %v", res.Score())
	}
}

func TestScoreExpiredWinsOverOtherRules(t *testing.T) {
	calc := newTestCalculator()
	opp := &opportunity.FundingOpportunity{
		ID:               "D",
		Title:            "Military Workforce Grant",
		Description:      "military workforce training",
		Funder:           "Department of Defense",
		AmountMax:        i64(50000),
		CostSharePercent: f64(90),
		Deadline:         dateIn(-1),
	}

	p := workforceProfile()
	p.MatchingFundCapacity = f64(10)
	p.DonorRestrictions = "no government money"

	res := calc.Score(p, opp, f64(99))
	if !res.Filtered || res.FilterReason != "expired" {
		t.Fatalf("expected expired, got %+v", res)
	}
}

func TestNonTriviality(t *testing.T) {
	calc := newTestCalculator()
	corpus := []opportunity.FundingOpportunity{
		{ID: "1", Title: "Workforce Training Fund", Description: "employment and job training"},
		{ID: "2", Title: "Community Health Grant", Description: "healthcare and wellness programs"},
		{ID: "3", Title: "Arts Access", Description: "museum and creative programs"},
	}

	workforce := &profile.OrganizationProfile{ID: "a", PrimaryFocusArea: "workforce-development"}
	health := &profile.OrganizationProfile{ID: "b", PrimaryFocusArea: "health"}

	differs := false
	for i := range corpus {
		a := calc.Score(workforce, &corpus[i], nil)
		b := calc.Score(health, &corpus[i], nil)
		if a.Score() != b.Score() {
			differs = true
		}
	}
	if !differs {
		t.Fatal("different focus areas produced identical scores for every opportunity")
	}
}

func TestDeterminism(t *testing.T) {
	calc := newTestCalculator()
	p := workforceProfile()
	p.TargetPopulations = []string{"youth"}
	p.ServiceRegions = []string{"Portland, OR"}
	opp := &opportunity.FundingOpportunity{
		ID:              "E",
		Title:           "Youth Employment Grant",
		Description:     "job training for young adults in Oregon",
		AmountMin:       i64(20000),
		AmountMax:       i64(60000),
		Deadline:        dateIn(20),
		GeographicFocus: "Oregon",
	}

	first, err := json.Marshal(calc.Score(p, opp, f64(70)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(calc.Score(p, opp, f64(70)))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("results differ:\n%s\n%s", first, again)
		}
	}
}

func TestFundingMonotonicity(t *testing.T) {
	calc := newTestCalculator()
	p := &profile.OrganizationProfile{ID: "m", PreferredGrantSize: profile.GrantRange{Min: i64(50000), Max: i64(200000)}}
	prep := calc.Prepare(p)

	funding := func(amount int64) float64 {
		opp := &opportunity.FundingOpportunity{ID: "x", Title: "t", AmountMax: i64(amount)}
		return calc.ScorePrepared(prep, opp, nil, fixedNow).Breakdown[weights.Funding]
	}

	prev := -1.0
	for amount := int64(0); amount <= 50000; amount += 2500 {
		got := funding(amount)
		if got < prev {
			t.Fatalf("funding decreased below min at %d: %v < %v", amount, got, prev)
		}
		prev = got
	}

	prev = 101
	for amount := int64(200000); amount <= 2000000; amount += 50000 {
		got := funding(amount)
		if got > prev {
			t.Fatalf("funding increased above max at %d: %v > %v", amount, got, prev)
		}
		prev = got
	}
}

func TestInvalidSemanticScoreIsDropped(t *testing.T) {
	calc := newTestCalculator()
	opp := &opportunity.FundingOpportunity{ID: "s", Title: "Workforce grant", Description: "workforce"}

	for _, v := range []float64{-1, 101, math.NaN()} {
		res := calc.Score(workforceProfile(), opp, f64(v))
		if !res.SemanticDropped {
			t.Errorf("semantic %v: expected factor to be dropped", v)
		}
	}
}

func TestGenericPrepare(t *testing.T) {
	calc := newTestCalculator()
	prep := calc.PrepareGeneric()

	if !prep.Generic || len(prep.Keywords.Primary) == 0 {
		t.Fatalf("unexpected generic preparation: %+v", prep)
	}
	for _, f := range weights.Factors {
		if math.Abs(prep.Weights[f]-1.0/6) > 1e-12 {
			t.Fatalf("expected uniform weights, got %v", prep.Weights)
		}
	}

	opp := &opportunity.FundingOpportunity{ID: "g", Title: "Nonprofit capacity grant", Description: "general operating support"}
	res := calc.ScorePrepared(prep, opp, nil, fixedNow)
	if res.Filtered || res.Score() < 0 || res.Score() > 100 {
		t.Fatalf("unexpected generic result: %+v", res)
	}
	if !calc.Prepare(nil).Generic {
		t.Fatal("nil profile must prepare generic mode")
	}
}

func TestRangeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	calc := newTestCalculator()

	capacities := []profile.Capacity{profile.CapacityLimited, profile.CapacityModerate, profile.CapacityAdvanced, ""}
	areas := []string{"workforce-development", "health", "education", "housing", "", "space-exploration"}
	regions := []string{"Portland, OR", "Oregon", "rural", "national", "Austin, TX", "", "Ohio; Kentucky"}
	populations := []string{"youth", "veterans", "seniors", "low-income"}
	words := []string{"workforce", "health", "youth", "training", "rural", "veterans", "housing", "grant", "education", "seniors", "poverty"}

	pick := func(values []string) string { return values[rng.Intn(len(values))] }
	optional := func(max int64) *int64 {
		if rng.Intn(4) == 0 {
			return nil
		}
		return i64(rng.Int63n(max))
	}

	for i := 0; i < 2000; i++ {
		p := &profile.OrganizationProfile{
			ID:                   "fuzz",
			PrimaryFocusArea:     pick(areas),
			SecondaryFocusAreas:  []string{pick(areas)},
			ServiceRegions:       []string{pick(regions)},
			TargetPopulations:    []string{pick(populations)},
			GrantWritingCapacity: capacities[rng.Intn(len(capacities))],
		}
		lo, hi := optional(300000), optional(1000000)
		if lo != nil && hi != nil && *lo > *hi {
			lo, hi = hi, lo
		}
		p.PreferredGrantSize = profile.GrantRange{Min: lo, Max: hi}

		var desc []string
		for n := rng.Intn(8); n > 0; n-- {
			desc = append(desc, pick(words))
		}
		opp := &opportunity.FundingOpportunity{
			ID:              "o",
			Title:           pick(words) + " fund",
			Description:     strings.Join(desc, " "),
			AmountMin:       optional(500000),
			AmountMax:       optional(2000000),
			GeographicFocus: pick(regions),
		}
		if rng.Intn(3) > 0 {
			opp.Deadline = dateIn(rng.Intn(120) - 10)
		}

		var sem *float64
		switch rng.Intn(3) {
		case 0:
			sem = f64(rng.Float64() * 100)
		case 1:
			sem = f64(rng.Float64()*300 - 100)
		}

		res := calc.Score(p, opp, sem)
		if res.Filtered {
			if res.OverallScore != nil || res.FilterReason == "" {
				t.Fatalf("case %d: inconsistent filtered result %+v", i, res)
			}
			continue
		}
		if s := res.Score(); s < 0 || s > 100 || math.IsNaN(s) {
			t.Fatalf("case %d: overall %v out of range", i, s)
		}
		for f, v := range res.Breakdown {
			if v < 0 || v > 100 {
				t.Fatalf("case %d: %s sub-score %v out of range", i, f, v)
			}
		}
		if err := res.Weights.Validate(); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
