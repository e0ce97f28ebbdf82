package keywords

import (
	"reflect"
	"slices"
	"testing"

	"github.com/spigell/grant-ranker/internal/profile"
)

func TestDefaultTableLoads(t *testing.T) {
	table := DefaultTable()
	if table.Version == "" {
		t.Fatalf("expected table version")
	}
	got := table.Expand("workforce-development")
	want := []string{"workforce development", "workforce", "job training", "employment"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand() = %v, want %v", got, want)
	}
	if len(table.Generic.Primary) == 0 {
		t.Fatalf("expected generic primary terms")
	}
}

func TestLoadTableIsolated(t *testing.T) {
	data := []byte(`
version: test-1
synonyms:
  Clean Water: [wells, Sanitation]
populations:
  farmers: [growers]
stopwords: [the, and]
generic:
  primary: [Grant]
`)
	table, err := LoadTable(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := table.Expand("clean_water"); !reflect.DeepEqual(got, []string{"clean water", "wells", "sanitation"}) {
		t.Fatalf("unexpected expansion: %v", got)
	}
	if got := table.PopulationVariants("Farmers"); !reflect.DeepEqual(got, []string{"farmers", "growers"}) {
		t.Fatalf("unexpected variants: %v", got)
	}
	if got := table.Expand("unknown-area"); !reflect.DeepEqual(got, []string{"unknown area"}) {
		t.Fatalf("unexpected expansion for unknown area: %v", got)
	}

	if _, err := LoadTable([]byte("synonyms: {}")); err == nil {
		t.Fatalf("expected error for table without version")
	}
	if _, err := LoadTable([]byte("version: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExtractTerms(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	got := table.ExtractTerms("We provide job coaching and job placement for 250 young adults, in 2024 and beyond. Coaching!")
	want := []string{"job", "coaching", "placement", "young", "adults", "beyond"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractTerms() = %v, want %v", got, want)
	}
}

func TestBuild(t *testing.T) {
	p := &profile.OrganizationProfile{
		ID:                  "org",
		PrimaryFocusArea:    "workforce-development",
		SecondaryFocusAreas: []string{"education"},
		KeyPrograms: []profile.Program{
			{Name: "Pathways", Description: "Employment coaching for veterans"},
		},
		TargetPopulations: []string{"Veterans"},
		CustomKeywords:    []string{"apprenticeship", "workforce"},
		ExcludedKeywords:  []string{"school"},
	}

	got := NewBuilder(nil).Build(p)

	wantPrimary := []string{"workforce development", "workforce", "job training", "employment"}
	wantSecondary := []string{"education", "students", "learning", "coaching", "veterans", "apprenticeship"}

	if !reflect.DeepEqual(got.Primary, wantPrimary) {
		t.Fatalf("primary = %v, want %v", got.Primary, wantPrimary)
	}
	if !reflect.DeepEqual(got.Secondary, wantSecondary) {
		t.Fatalf("secondary = %v, want %v", got.Secondary, wantSecondary)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	p := &profile.OrganizationProfile{
		ID:                  "org",
		PrimaryFocusArea:    "health",
		SecondaryFocusAreas: []string{"mental-health", "housing", "food-security"},
		TargetPopulations:   []string{"seniors", "low-income"},
	}

	b := NewBuilder(nil)
	first := b.Build(p)
	for i := 0; i < 20; i++ {
		if next := b.Build(p); !reflect.DeepEqual(first, next) {
			t.Fatalf("build %d differs: %v vs %v", i, first, next)
		}
	}
}

func TestBuildExcludedRemovedFromBothSets(t *testing.T) {
	p := &profile.OrganizationProfile{
		ID:                  "org",
		PrimaryFocusArea:    "veterans-services",
		SecondaryFocusAreas: []string{"youth-development"},
		ExcludedKeywords:    []string{"military", "youth"},
	}

	got := NewBuilder(nil).Build(p)
	for _, term := range append(got.Primary, got.Secondary...) {
		if term == "military families" || term == "youth" {
			t.Fatalf("excluded term %q was kept: %+v", term, got)
		}
	}
	if len(got.Primary) == 0 {
		t.Fatalf("expected remaining primary terms")
	}
}

func TestBuildExcludesWholeWordsOnly(t *testing.T) {
	p := &profile.OrganizationProfile{
		ID:               "org",
		PrimaryFocusArea: "community",
		CustomKeywords:   []string{"partnership", "departmental", "part-time jobs", "part"},
		ExcludedKeywords: []string{"part"},
	}

	got := NewBuilder(nil).Build(p)
	for _, want := range []string{"partnership", "departmental"} {
		if !slices.Contains(got.Secondary, want) {
			t.Fatalf("expected %q to be kept, got %v", want, got.Secondary)
		}
	}
	for _, dropped := range []string{"part-time jobs", "part"} {
		if slices.Contains(got.Secondary, dropped) {
			t.Fatalf("expected %q to be dropped, got %v", dropped, got.Secondary)
		}
	}
}

func TestBuildEmptyPrimary(t *testing.T) {
	got := NewBuilder(nil).Build(&profile.OrganizationProfile{ID: "org"})
	if got.Len() != 0 {
		t.Fatalf("expected empty set, got %+v", got)
	}
}
