// Package keywords derives the primary and secondary keyword sets of an
// organization profile from a versioned term table.
package keywords

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed table.yaml
var defaultTableData []byte

const minTermLength = 3

// Table is the versioned data asset behind keyword construction.
type Table struct {
	Version     string              `yaml:"version"`
	Synonyms    map[string][]string `yaml:"synonyms"`
	Populations map[string][]string `yaml:"populations"`
	Stopwords   []string            `yaml:"stopwords"`
	Generic     struct {
		Primary   []string `yaml:"primary"`
		Secondary []string `yaml:"secondary"`
	} `yaml:"generic"`

	stopwords map[string]struct{}
}

// LoadTable parses a term table.
func LoadTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse keyword table: %w", err)
	}
	if strings.TrimSpace(t.Version) == "" {
		return nil, fmt.Errorf("keyword table has no version")
	}

	synonyms := make(map[string][]string, len(t.Synonyms))
	for key, terms := range t.Synonyms {
		synonyms[slug(key)] = lowerAll(terms)
	}
	t.Synonyms = synonyms

	populations := make(map[string][]string, len(t.Populations))
	for key, terms := range t.Populations {
		populations[slug(key)] = lowerAll(terms)
	}
	t.Populations = populations

	t.stopwords = make(map[string]struct{}, len(t.Stopwords))
	for _, w := range t.Stopwords {
		t.stopwords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	t.Generic.Primary = lowerAll(t.Generic.Primary)
	t.Generic.Secondary = lowerAll(t.Generic.Secondary)

	return &t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the embedded term table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := LoadTable(defaultTableData)
		if err != nil {
			panic(fmt.Sprintf("embedded keyword table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Expand returns the humanized focus area followed by its synonyms.
func (t *Table) Expand(area string) []string {
	human := Humanize(area)
	if human == "" {
		return nil
	}
	return append([]string{human}, t.Synonyms[slug(area)]...)
}

// PopulationVariants returns the population itself followed by its known variants.
func (t *Table) PopulationVariants(population string) []string {
	base := strings.ToLower(strings.TrimSpace(population))
	if base == "" {
		return nil
	}
	return dedupe(append([]string{base}, t.Populations[slug(population)]...))
}

// ExtractTerms returns the significant lower-cased terms of text in order of
// first appearance: stop words, short tokens and pure numbers are dropped.
func (t *Table) ExtractTerms(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var terms []string
	for _, token := range tokens {
		token = strings.Trim(token, "-")
		if len([]rune(token)) < minTermLength || isNumber(token) {
			continue
		}
		if _, stop := t.stopwords[token]; stop {
			continue
		}
		terms = append(terms, token)
	}
	return dedupe(terms)
}

// Humanize turns an enum-like slug ("workforce-development") into words.
func Humanize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func slug(s string) string {
	return strings.ReplaceAll(Humanize(s), " ", "-")
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
