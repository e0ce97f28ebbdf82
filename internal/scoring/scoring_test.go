package scoring

import (
	"math"
	"testing"

	"github.com/spigell/grant-ranker/internal/keywords"
	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profile"
)

func int64Ptr(v int64) *int64 { return &v }

func newScorer() *Scorer { return New(DefaultConfig(), nil) }

func TestKeyword(t *testing.T) {
	t.Parallel()

	set := keywords.Set{
		Primary:   []string{"workforce development", "workforce", "job training", "employment"},
		Secondary: []string{"veterans", "apprenticeship"},
	}

	cases := []struct {
		name    string
		set     keywords.Set
		opp     opportunity.FundingOpportunity
		want    float64
		matched int
	}{
		{
			name: "no terms",
			set:  keywords.Set{},
			opp:  opportunity.FundingOpportunity{Title: "Anything", Description: "at all"},
			want: Neutral,
		},
		{
			name: "no text",
			set:  set,
			opp:  opportunity.FundingOpportunity{},
			want: Neutral,
		},
		{
			name:    "one primary hit",
			set:     set,
			opp:     opportunity.FundingOpportunity{Title: "Workforce Digital Skills Grant", Description: "workforce training program"},
			want:    200.0 / 3,
			matched: 1,
		},
		{
			name:    "primary and secondary saturate",
			set:     set,
			opp:     opportunity.FundingOpportunity{Title: "Employment for Veterans", Description: "Apprenticeship placements"},
			want:    100,
			matched: 3,
		},
		{
			name:    "secondary only",
			set:     set,
			opp:     opportunity.FundingOpportunity{Title: "Support", Description: "Programs for veterans"},
			want:    100.0 / 3,
			matched: 1,
		},
		{
			name: "miss",
			set:  set,
			opp:  opportunity.FundingOpportunity{Title: "Coral reef survey", Description: "marine biology"},
			want: 0,
		},
		{
			name: "miss without description stays neutral",
			set:  set,
			opp:  opportunity.FundingOpportunity{Title: "Coral reef survey"},
			want: Neutral,
		},
	}

	s := newScorer()
	for _, tc := range cases {
		got := s.Keyword(tc.set, &tc.opp)
		if math.Abs(got.Score-tc.want) > 1e-9 {
			t.Errorf("%s: score = %v, want %v", tc.name, got.Score, tc.want)
		}
		if len(got.Matched) != tc.matched {
			t.Errorf("%s: matched = %v, want %d terms", tc.name, got.Matched, tc.matched)
		}
	}
}

func TestKeywordSaturationGrowsWithSet(t *testing.T) {
	t.Parallel()

	large := keywords.Set{
		Primary:   []string{"workforce development", "workforce", "job training", "employment"},
		Secondary: []string{"education", "school", "students", "learning", "veterans", "apprenticeship", "coaching", "mentoring"},
	}
	few := opportunity.FundingOpportunity{Title: "Workforce grant", Description: "school partnerships"}
	many := opportunity.FundingOpportunity{Title: "Workforce employment grant", Description: "school apprenticeship for veterans"}

	s := newScorer()
	fewScore := s.Keyword(large, &few).Score
	manyScore := s.Keyword(large, &many).Score

	// 16 weighted units possible, saturating at a quarter of them.
	if math.Abs(fewScore-75) > 1e-9 {
		t.Fatalf("few hits: score = %v, want 75", fewScore)
	}
	if manyScore != 100 || manyScore <= fewScore {
		t.Fatalf("many hits: score = %v, want 100 above %v", manyScore, fewScore)
	}

	unsaturated := DefaultConfig()
	unsaturated.KeywordSaturation = 0
	got := New(unsaturated, nil).Keyword(large, &few).Score
	if math.Abs(got-100*3.0/16) > 1e-9 {
		t.Fatalf("without saturation: score = %v, want %v", got, 100*3.0/16)
	}
}

func TestFunding(t *testing.T) {
	t.Parallel()

	wide := profile.GrantRange{Min: int64Ptr(25000), Max: int64Ptr(500000)}
	cases := []struct {
		name string
		pref profile.GrantRange
		opp  opportunity.FundingOpportunity
		want float64
	}{
		{name: "no amount", pref: wide, want: 50},
		{name: "no preference", opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(100)}, want: 50},
		{name: "inside", pref: wide, opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(50000)}, want: 100},
		{name: "min bound inclusive", pref: wide, opp: opportunity.FundingOpportunity{AmountMin: int64Ptr(25000)}, want: 100},
		{name: "below", pref: wide, opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(12500)}, want: 25},
		{name: "above", pref: wide, opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(1000000)}, want: 75},
		{name: "max wins over min", pref: wide, opp: opportunity.FundingOpportunity{AmountMin: int64Ptr(1000), AmountMax: int64Ptr(30000)}, want: 100},
		{name: "open ended max", pref: profile.GrantRange{Min: int64Ptr(10)}, opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(1 << 40)}, want: 100},
		{name: "zero amount", pref: wide, opp: opportunity.FundingOpportunity{AmountMax: int64Ptr(0)}, want: 0},
	}

	s := newScorer()
	for _, tc := range cases {
		if got := s.Funding(tc.pref, &tc.opp); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Funding() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFundingMonotonic(t *testing.T) {
	s := newScorer()
	pref := profile.GrantRange{Min: int64Ptr(25000), Max: int64Ptr(500000)}

	prev := -1.0
	for amount := int64(0); amount <= 25000; amount += 500 {
		got := s.Funding(pref, &opportunity.FundingOpportunity{AmountMax: int64Ptr(amount)})
		if got < prev {
			t.Fatalf("funding decreased below min at %d: %v < %v", amount, got, prev)
		}
		prev = got
	}

	prev = 101.0
	for amount := int64(500000); amount <= 5000000; amount += 25000 {
		got := s.Funding(pref, &opportunity.FundingOpportunity{AmountMax: int64Ptr(amount)})
		if got > prev {
			t.Fatalf("funding increased above max at %d: %v > %v", amount, got, prev)
		}
		prev = got
	}
}

func TestDeadline(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		capacity profile.Capacity
		days     int
		known    bool
		want     float64
	}{
		{name: "absent", capacity: profile.CapacityLimited, want: 50},
		{name: "limited comfortable", capacity: profile.CapacityLimited, days: 45, known: true, want: 100},
		{name: "limited tight", capacity: profile.CapacityLimited, days: 15, known: true, want: 50},
		{name: "moderate boundary", capacity: profile.CapacityModerate, days: 14, known: true, want: 100},
		{name: "advanced short", capacity: profile.CapacityAdvanced, days: 7, known: true, want: 100},
		{name: "default capacity", capacity: "", days: 7, known: true, want: 50},
		{name: "today", capacity: profile.CapacityModerate, days: 0, known: true, want: 0},
		{name: "past", capacity: profile.CapacityModerate, days: -3, known: true, want: 0},
	}

	s := newScorer()
	for _, tc := range cases {
		if got := s.Deadline(tc.capacity, tc.days, tc.known); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Deadline() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDeadlineConfigOverride(t *testing.T) {
	s := New(Config{DeadlineDays: map[profile.Capacity]int{"Limited": 60}}, nil)
	if s.LeadTime(profile.CapacityLimited) != 60 {
		t.Fatalf("expected override, got %d", s.LeadTime(profile.CapacityLimited))
	}
	if s.LeadTime(profile.CapacityAdvanced) != 7 {
		t.Fatalf("expected default for advanced, got %d", s.LeadTime(profile.CapacityAdvanced))
	}
}

func TestDemographic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		populations []string
		description string
		want        float64
	}{
		{name: "no populations", description: "for veterans", want: 50},
		{name: "empty description", populations: []string{"veterans"}, want: 50},
		{name: "no match", populations: []string{"veterans"}, description: "coral reefs", want: 25},
		{name: "variant match", populations: []string{"veterans", "youth"}, description: "Serving military families", want: 75},
		{name: "all match", populations: []string{"low-income", "seniors"}, description: "Low-income older adults", want: 100},
		{name: "unknown population by name", populations: []string{"beekeepers"}, description: "Support for beekeepers", want: 100},
	}

	s := newScorer()
	for _, tc := range cases {
		opp := &opportunity.FundingOpportunity{Description: tc.description}
		if got := s.Demographic(tc.populations, opp); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Demographic() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGeographic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		regions []string
		focus   string
		want    float64
	}{
		{name: "national", regions: []string{"Chicago, IL"}, focus: "National", want: 100},
		{name: "nationwide no regions", focus: "Nationwide", want: 100},
		{name: "international is not national", regions: []string{"Chicago, IL"}, focus: "International", want: 25},
		{name: "exact", regions: []string{"Chicago, IL"}, focus: "chicago,  il", want: 90},
		{name: "same state", regions: []string{"Springfield, IL"}, focus: "Chicago, IL", want: 75},
		{name: "state name", regions: []string{"Charleston, WV"}, focus: "West Virginia", want: 75},
		{name: "longest state name wins", regions: []string{"Richmond, VA"}, focus: "West Virginia", want: 25},
		{name: "category", regions: []string{"Rural Kansas"}, focus: "rural communities", want: 70},
		{name: "no focus", regions: []string{"Chicago, IL"}, want: 50},
		{name: "no regions", focus: "Chicago, IL", want: 50},
		{name: "mismatch", regions: []string{"Austin, TX"}, focus: "Chicago, IL", want: 25},
		{name: "multiple focus", regions: []string{"Austin, TX"}, focus: "Chicago, IL; Texas", want: 75},
	}

	s := newScorer()
	for _, tc := range cases {
		opp := &opportunity.FundingOpportunity{GeographicFocus: tc.focus}
		if got := s.Geographic(tc.regions, opp); got != tc.want {
			t.Errorf("%s: Geographic() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestScoresStayInRange(t *testing.T) {
	s := newScorer()
	amounts := []*int64{nil, int64Ptr(0), int64Ptr(1), int64Ptr(24999), int64Ptr(1 << 50)}
	ranges := []profile.GrantRange{{}, {Min: int64Ptr(0)}, {Min: int64Ptr(25000), Max: int64Ptr(500000)}, {Max: int64Ptr(0)}}

	for _, a := range amounts {
		for _, r := range ranges {
			got := s.Funding(r, &opportunity.FundingOpportunity{AmountMax: a})
			if got < 0 || got > 100 {
				t.Fatalf("funding out of range: %v", got)
			}
		}
	}
	for days := -10; days < 60; days++ {
		for _, c := range []profile.Capacity{profile.CapacityLimited, profile.CapacityModerate, profile.CapacityAdvanced} {
			if got := s.Deadline(c, days, true); got < 0 || got > 100 {
				t.Fatalf("deadline out of range: %v", got)
			}
		}
	}
}
