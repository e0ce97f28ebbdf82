package keywords

import (
	"strings"
	"unicode"

	"github.com/spigell/grant-ranker/internal/profile"
)

// Set holds the ordered keyword sets derived from a profile.
type Set struct {
	Primary   []string `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Len returns the number of terms in both sets.
func (s Set) Len() int {
	return len(s.Primary) + len(s.Secondary)
}

// Builder derives keyword sets from profiles using a term table.
type Builder struct {
	table *Table
}

// NewBuilder creates a builder. A nil table selects DefaultTable.
func NewBuilder(table *Table) *Builder {
	if table == nil {
		table = DefaultTable()
	}
	return &Builder{table: table}
}

// Table returns the term table used by the builder.
func (b *Builder) Table() *Table {
	return b.table
}

// Build derives the primary and secondary sets. Order is first-seen across both
// sets; a term equal to an excluded keyword, or containing one as whole words,
// is dropped.
func (b *Builder) Build(p *profile.OrganizationProfile) Set {
	if p == nil {
		return Set{}
	}

	primary := b.table.Expand(p.PrimaryFocusArea)

	var secondary []string
	for _, area := range p.SecondaryFocusAreas {
		secondary = append(secondary, b.table.Expand(area)...)
	}
	for _, program := range p.KeyPrograms {
		secondary = append(secondary, b.table.ExtractTerms(program.Description)...)
	}
	secondary = append(secondary, lowerAll(p.TargetPopulations)...)
	secondary = append(secondary, lowerAll(p.CustomKeywords)...)

	excluded := lowerAll(p.ExcludedKeywords)
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	keep := func(terms []string) []string {
		var out []string
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			if isExcluded(term, excluded) {
				continue
			}
			out = append(out, term)
		}
		return out
	}

	return Set{
		Primary:   keep(primary),
		Secondary: keep(secondary),
	}
}

// Generic returns the keyword set used when no profile is available.
func (b *Builder) Generic() Set {
	return Set{
		Primary:   append([]string(nil), b.table.Generic.Primary...),
		Secondary: append([]string(nil), b.table.Generic.Secondary...),
	}
}

// isExcluded reports whether an excluded keyword occurs in term as whole words,
// so "military" drops "military families" but "part" keeps "partnership".
func isExcluded(term string, excluded []string) bool {
	words := " " + strings.Join(splitWords(term), " ") + " "
	for _, kw := range excluded {
		phrase := strings.Join(splitWords(kw), " ")
		if phrase != "" && strings.Contains(words, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
