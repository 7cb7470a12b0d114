package models

import (
	"errors"
	"fmt"
	"strings"
)

// UnitKind identifies the kind of geographic unit a territory can hold.
type UnitKind string

const (
	// KindCounty is a US county keyed by its 5-digit state+county FIPS code.
	KindCounty UnitKind = "county"
	// KindZip is a ZIP code tabulation area keyed by its 5-digit code.
	KindZip UnitKind = "zip"
)

// unitIDLength is the length of both county FIPS codes and ZIP codes.
const unitIDLength = 5

// ErrInvalidUnitRef is returned when a unit kind or identifier is malformed.
var ErrInvalidUnitRef = errors.New("invalid unit reference")

// ParseUnitKind converts a string to a UnitKind.
// Accepts "county"/"counties" and "zip"/"zips" case-insensitively.
func ParseUnitKind(s string) (UnitKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "county", "counties":
		return KindCounty, nil
	case "zip", "zips", "zcta":
		return KindZip, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidUnitRef, s)
	}
}

// UnitRef is the (kind, id) key of a geographic unit.
type UnitRef struct {
	Kind UnitKind `json:"kind"`
	ID   string   `json:"id"`
}

// NewUnitRef builds and validates a UnitRef.
func NewUnitRef(kind, id string) (UnitRef, error) {
	k, err := ParseUnitKind(kind)
	if err != nil {
		return UnitRef{}, err
	}
	ref := UnitRef{Kind: k, ID: strings.TrimSpace(id)}
	if err := ref.Validate(); err != nil {
		return UnitRef{}, err
	}
	return ref, nil
}

// Validate checks that the identifier is exactly five ASCII digits.
func (r UnitRef) Validate() error {
	if r.Kind != KindCounty && r.Kind != KindZip {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidUnitRef, r.Kind)
	}
	if len(r.ID) != unitIDLength {
		return fmt.Errorf("%w: %s id must be %d digits, got %q", ErrInvalidUnitRef, r.Kind, unitIDLength, r.ID)
	}
	for _, ch := range r.ID {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("%w: %s id must be numeric, got %q", ErrInvalidUnitRef, r.Kind, r.ID)
		}
	}
	return nil
}

// Key returns the string form "kind:id" used for map keys and cache keys.
func (r UnitRef) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// String implements fmt.Stringer.
func (r UnitRef) String() string {
	return r.Key()
}

// StateFIPS returns the 2-digit state code of a county reference, or "" for ZIPs.
func (r UnitRef) StateFIPS() string {
	if r.Kind != KindCounty || len(r.ID) != unitIDLength {
		return ""
	}
	return r.ID[:2]
}

// CountyFIPS returns the 3-digit county code of a county reference, or "" for ZIPs.
func (r UnitRef) CountyFIPS() string {
	if r.Kind != KindCounty || len(r.ID) != unitIDLength {
		return ""
	}
	return r.ID[2:]
}

// UnitStats holds the demographic statistics of a single unit.
type UnitStats struct {
	Population       int64 `json:"population"`
	StandAloneHouses int64 `json:"stand_alone_houses"`
}

// Add returns the element-wise sum of s and o.
func (s UnitStats) Add(o UnitStats) UnitStats {
	return UnitStats{
		Population:       s.Population + o.Population,
		StandAloneHouses: s.StandAloneHouses + o.StandAloneHouses,
	}
}

// GeoUnit describes an addressable unit without its geometry.
type GeoUnit struct {
	UnitRef
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// DisplayName returns the unit name, falling back to the identifier.
func (u GeoUnit) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// UnitBoundary is a GeoUnit together with its boundary geometry.
type UnitBoundary struct {
	GeoUnit
	Boundary Boundary `json:"geometry"`
}
