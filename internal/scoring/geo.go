package scoring

import (
	"sort"
	"strings"
	"unicode"

	"github.com/spigell/grant-ranker/internal/opportunity"
)

var nationalTerms = map[string]struct{}{
	"national":      {},
	"nationwide":    {},
	"united states": {},
	"usa":           {},
	"us":            {},
	"u s":           {},
	"all states":    {},
}

var regionCategories = []string{
	"rural", "urban", "suburban", "tribal", "frontier", "statewide", "regional", "international",
}

var states = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas", "ca": "california",
	"co": "colorado", "ct": "connecticut", "de": "delaware", "fl": "florida", "ga": "georgia",
	"hi": "hawaii", "id": "idaho", "il": "illinois", "in": "indiana", "ia": "iowa",
	"ks": "kansas", "ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi", "mo": "missouri",
	"mt": "montana", "ne": "nebraska", "nv": "nevada", "nh": "new hampshire", "nj": "new jersey",
	"nm": "new mexico", "ny": "new york", "nc": "north carolina", "nd": "north dakota", "oh": "ohio",
	"ok": "oklahoma", "or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah", "vt": "vermont",
	"va": "virginia", "wa": "washington", "wv": "west virginia", "wi": "wisconsin", "wy": "wyoming",
	"dc": "district of columbia", "pr": "puerto rico",
}

var stateNames = func() map[string]string {
	byName := make(map[string]string, len(states))
	for code, name := range states {
		byName[name] = code
	}
	return byName
}()

// stateNameList is ordered longest first so "west virginia" wins over "virginia".
var stateNameList = func() []string {
	names := make([]string, 0, len(stateNames))
	for name := range stateNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// Geographic scores the opportunity's geographic focus against the service regions.
// Several opportunity regions may be separated by ";". The best pair wins.
func (s *Scorer) Geographic(regions []string, opp *opportunity.FundingOpportunity) float64 {
	if opp == nil {
		return Neutral
	}

	var focus []string
	for _, part := range strings.Split(opp.GeographicFocus, ";") {
		if r := normalizeRegion(part); r != "" {
			focus = append(focus, r)
		}
	}
	if len(focus) == 0 {
		return Neutral
	}

	for _, r := range focus {
		if isNational(r) {
			return 100
		}
	}

	var served []string
	for _, region := range regions {
		if r := normalizeRegion(region); r != "" {
			served = append(served, r)
		}
	}
	if len(served) == 0 {
		return Neutral
	}

	best := 25.0
	for _, f := range focus {
		for _, r := range served {
			if score := compareRegions(f, r); score > best {
				best = score
			}
		}
	}
	return best
}

func compareRegions(a, b string) float64 {
	if a == b {
		return 90
	}
	if sa, sb := stateOf(a), stateOf(b); sa != "" && sa == sb {
		return 75
	}
	for _, category := range regionCategories {
		if hasWord(a, category) && hasWord(b, category) {
			return 70
		}
	}
	return 25
}

// stateOf extracts a state code from "City, ST", a bare code or a state name.
func stateOf(region string) string {
	candidates := []string{region}
	if idx := strings.LastIndex(region, ","); idx != -1 {
		candidates = append([]string{strings.TrimSpace(region[idx+1:])}, candidates...)
	}
	for _, c := range candidates {
		if _, ok := states[c]; ok {
			return c
		}
		if code, ok := stateNames[c]; ok {
			return code
		}
		for _, name := range stateNameList {
			if strings.HasSuffix(c, " "+name) || strings.HasPrefix(c, name+" ") {
				return stateNames[name]
			}
		}
	}
	return ""
}

func isNational(region string) bool {
	if _, ok := nationalTerms[region]; ok {
		return true
	}
	return hasWord(region, "national") || hasWord(region, "nationwide")
}

func hasWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if field == word {
			return true
		}
	}
	return false
}

func normalizeRegion(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " ,", ",")
	return strings.Trim(s, " ,")
}
