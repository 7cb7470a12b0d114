package registry

import (
	"strings"
)

// Query is a search query classified by the rule that applies to it.
// ID holds the exact code, or a code prefix when Digits is set. Name is the
// normalized county name or name prefix.
type Query struct {
	Raw    string
	Match  MatchType
	ID     string
	Name   string
	State  State
	Digits bool
}

// ParseQuery classifies a query:
//   - five digits is an exact county FIPS or ZIP code
//   - "County, ST" or "County, State" is a county in that state
//   - a full state name lists the counties of the state
//   - anything else is a name prefix, or a code prefix when it is all digits
func ParseQuery(q string) (Query, error) {
	raw := strings.TrimSpace(q)
	if raw == "" {
		return Query{}, ErrEmptyQuery
	}
	p := Query{Raw: raw}

	if isDigits(raw) {
		if len(raw) == 5 {
			p.Match = MatchID
			p.ID = raw
			return p, nil
		}
		p.Match = MatchPrefix
		p.ID = raw
		p.Digits = true
		return p, nil
	}

	if i := strings.LastIndex(raw, ","); i > 0 {
		county := NormalizeCounty(raw[:i])
		if state, ok := LookupState(raw[i+1:]); ok && county != "" {
			p.Match = MatchCountyInState
			p.Name = county
			p.State = state
			return p, nil
		}
		p.Match = MatchPrefix
		p.Name = county
		return p, nil
	}

	if state, ok := StateByName(raw); ok {
		p.Match = MatchState
		p.State = state
		return p, nil
	}

	p.Match = MatchPrefix
	p.Name = strings.ToLower(raw)
	return p, nil
}

// NormalizeCounty lowercases a county name and drops a trailing "county" so that
// "Los Angeles County" matches the TIGER NAME "Los Angeles".
func NormalizeCounty(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimSuffix(s, " county")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
