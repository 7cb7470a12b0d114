package registry

import "strings"

// State is a US state or territory with its FIPS code.
type State struct {
	FIPS string `json:"fips"`
	Abbr string `json:"abbr"`
	Name string `json:"name"`
}

var states = []State{
	{"01", "AL", "Alabama"}, {"02", "AK", "Alaska"}, {"04", "AZ", "Arizona"},
	{"05", "AR", "Arkansas"}, {"06", "CA", "California"}, {"08", "CO", "Colorado"},
	{"09", "CT", "Connecticut"}, {"10", "DE", "Delaware"}, {"11", "DC", "District of Columbia"},
	{"12", "FL", "Florida"}, {"13", "GA", "Georgia"}, {"15", "HI", "Hawaii"},
	{"16", "ID", "Idaho"}, {"17", "IL", "Illinois"}, {"18", "IN", "Indiana"},
	{"19", "IA", "Iowa"}, {"20", "KS", "Kansas"}, {"21", "KY", "Kentucky"},
	{"22", "LA", "Louisiana"}, {"23", "ME", "Maine"}, {"24", "MD", "Maryland"},
	{"25", "MA", "Massachusetts"}, {"26", "MI", "Michigan"}, {"27", "MN", "Minnesota"},
	{"28", "MS", "Mississippi"}, {"29", "MO", "Missouri"}, {"30", "MT", "Montana"},
	{"31", "NE", "Nebraska"}, {"32", "NV", "Nevada"}, {"33", "NH", "New Hampshire"},
	{"34", "NJ", "New Jersey"}, {"35", "NM", "New Mexico"}, {"36", "NY", "New York"},
	{"37", "NC", "North Carolina"}, {"38", "ND", "North Dakota"}, {"39", "OH", "Ohio"},
	{"40", "OK", "Oklahoma"}, {"41", "OR", "Oregon"}, {"42", "PA", "Pennsylvania"},
	{"44", "RI", "Rhode Island"}, {"45", "SC", "South Carolina"}, {"46", "SD", "South Dakota"},
	{"47", "TN", "Tennessee"}, {"48", "TX", "Texas"}, {"49", "UT", "Utah"},
	{"50", "VT", "Vermont"}, {"51", "VA", "Virginia"}, {"53", "WA", "Washington"},
	{"54", "WV", "West Virginia"}, {"55", "WI", "Wisconsin"}, {"56", "WY", "Wyoming"},
	{"72", "PR", "Puerto Rico"}, {"78", "VI", "Virgin Islands"},
}

var (
	statesByFIPS = make(map[string]State, len(states))
	statesByName = make(map[string]State, len(states))
	statesByAbbr = make(map[string]State, len(states))
)

func init() {
	for _, s := range states {
		statesByFIPS[s.FIPS] = s
		statesByName[strings.ToLower(s.Name)] = s
		statesByAbbr[strings.ToLower(s.Abbr)] = s
	}
}

// StateByFIPS returns the state with the 2-digit FIPS code.
func StateByFIPS(fips string) (State, bool) {
	s, ok := statesByFIPS[fips]
	return s, ok
}

// StateByName matches a full state name, case-insensitively.
func StateByName(name string) (State, bool) {
	s, ok := statesByName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// LookupState matches a full state name or a 2-letter abbreviation.
func LookupState(q string) (State, bool) {
	q = strings.ToLower(strings.TrimSpace(q))
	if s, ok := statesByName[q]; ok {
		return s, true
	}
	s, ok := statesByAbbr[q]
	return s, ok
}

// StateAbbr returns the abbreviation for a FIPS code, or "" when unknown.
func StateAbbr(fips string) string {
	if s, ok := statesByFIPS[fips]; ok {
		return s.Abbr
	}
	return ""
}
