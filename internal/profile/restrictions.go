package profile

import (
	"regexp"
	"strings"
	"sync"
)

// Restriction is one entry of the controlled donor-restriction vocabulary.
// Aliases are looked up in the profile's free-text restriction field;
// Indicators are matched against the funder name and opportunity description.
type Restriction struct {
	Keyword    string
	Aliases    []string
	Indicators []string
}

var restrictions = []Restriction{
	{
		Keyword:    "government",
		Aliases:    []string{"government", "governmental", "federal", "public funds", "public funding"},
		Indicators: []string{"government", "federal", "department of", "u.s. department", "state agency"},
	},
	{
		Keyword:    "military",
		Aliases:    []string{"military", "defense", "defence", "armed forces", "weapons"},
		Indicators: []string{"military", "department of defense", "dod", "army", "navy", "air force", "defense"},
	},
	{
		Keyword:    "corporate",
		Aliases:    []string{"corporate", "corporation", "corporations", "business", "for-profit"},
		Indicators: []string{"corporate", "corporation", "inc", "llc", "corp", "company foundation"},
	},
	{
		Keyword:    "religious",
		Aliases:    []string{"religious", "religion", "faith-based", "church", "faith"},
		Indicators: []string{"religious", "church", "ministry", "ministries", "faith-based", "diocese", "parish"},
	},
	{
		Keyword:    "fossil-fuel",
		Aliases:    []string{"fossil-fuel", "fossil fuel", "fossil fuels", "oil and gas", "oil", "coal", "petroleum"},
		Indicators: []string{"fossil fuel", "oil", "petroleum", "coal", "natural gas", "energy company"},
	},
	{
		Keyword:    "tobacco",
		Aliases:    []string{"tobacco", "cigarette", "nicotine", "vaping"},
		Indicators: []string{"tobacco", "cigarette", "nicotine"},
	},
	{
		Keyword:    "alcohol",
		Aliases:    []string{"alcohol", "liquor", "brewery", "distillery", "spirits"},
		Indicators: []string{"alcohol", "brewing", "brewery", "distillery", "liquor", "winery"},
	},
	{
		Keyword:    "gambling",
		Aliases:    []string{"gambling", "casino", "casinos", "lottery", "betting"},
		Indicators: []string{"gambling", "casino", "lottery", "gaming commission", "betting"},
	},
}

// Restrictions returns a copy of the donor-restriction vocabulary in canonical order.
func Restrictions() []Restriction {
	out := make([]Restriction, len(restrictions))
	copy(out, restrictions)
	return out
}

// ParseRestrictions maps the free-text restriction field to vocabulary keywords,
// in vocabulary order. Unknown words are ignored, and so are clauses that
// accept a source ("we accept federal grants", "no restriction on corporate gifts").
func ParseRestrictions(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	var clauses []string
	for _, clause := range clauseSplitter.Split(text, -1) {
		if clause = strings.TrimSpace(clause); clause != "" && !acceptsSource(clause) {
			clauses = append(clauses, clause)
		}
	}

	var out []string
	for _, r := range restrictions {
		if declares(clauses, r.Aliases) {
			out = append(out, r.Keyword)
		}
	}
	return out
}

var (
	clauseSplitter = regexp.MustCompile(`[.;!?\n]+|\bbut\b|\bhowever\b`)

	permissiveCues = []string{"no restriction on", "no restrictions on", "not restricted", "without restriction"}
	acceptCues     = []string{"accept", "accepts", "accepted", "welcome", "welcomes", "open to", "fine with", "happy to receive"}
	negationCues   = []string{"not", "no", "never", "cannot", "refuse", "refuses", "decline", "declines"}
)

// acceptsSource reports whether clause states that a source is acceptable
// rather than restricted. A negated acceptance ("we do not accept") restricts.
func acceptsSource(clause string) bool {
	for _, cue := range permissiveCues {
		if strings.Contains(clause, cue) {
			return true
		}
	}

	accepting := false
	for _, cue := range acceptCues {
		if matchWord(clause, cue) {
			accepting = true
			break
		}
	}
	if !accepting || strings.Contains(clause, "n't") {
		return false
	}
	for _, cue := range negationCues {
		if matchWord(clause, cue) {
			return false
		}
	}
	return true
}

func declares(clauses, aliases []string) bool {
	for _, clause := range clauses {
		for _, alias := range aliases {
			if matchWord(clause, alias) {
				return true
			}
		}
	}
	return false
}

// Restrictions returns the vocabulary keywords declared by the profile.
func (p *OrganizationProfile) Restrictions() []string {
	return ParseRestrictions(p.DonorRestrictions)
}

// MatchRestriction reports the first indicator of keyword found in any of texts.
func MatchRestriction(keyword string, texts ...string) (string, bool) {
	for _, r := range restrictions {
		if r.Keyword != keyword {
			continue
		}
		for _, text := range texts {
			text = strings.ToLower(text)
			if text == "" {
				continue
			}
			for _, indicator := range r.Indicators {
				if matchWord(text, indicator) {
					return indicator, true
				}
			}
		}
	}
	return "", false
}

var (
	wordPatternsMu sync.RWMutex
	wordPatterns   = map[string]*regexp.Regexp{}
)

// matchWord matches term in lower-cased text on word boundaries.
func matchWord(text, term string) bool {
	wordPatternsMu.RLock()
	re, ok := wordPatterns[term]
	wordPatternsMu.RUnlock()
	if !ok {
		re = regexp.MustCompile(`(^|[^\pL\pN])` + regexp.QuoteMeta(term) + `($|[^\pL\pN])`)
		wordPatternsMu.Lock()
		wordPatterns[term] = re
		wordPatternsMu.Unlock()
	}
	return re.MatchString(text)
}
