// Package registry resolves county and ZIP boundaries: lookup by id, point
// lookup for map clicks, and the place search used to navigate the map.
package registry

import (
	"context"
	"errors"

	"github.com/stwalsh4118/territory-mapper/internal/models"
)

const (
	// DefaultSearchLimit caps search results when no limit is given.
	DefaultSearchLimit = 10
	// MaxSearchLimit is the largest limit a caller may request.
	MaxSearchLimit = 100
)

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// Registry is the read side of the unit store.
type Registry interface {
	// Get returns the unit with its boundary. Returns nil, nil when the unit is unknown.
	Get(ctx context.Context, ref models.UnitRef) (*models.UnitBoundary, error)

	// FindAtPoint returns the unit of kind containing the point.
	// Returns nil, nil when no unit contains it.
	FindAtPoint(ctx context.Context, kind models.UnitKind, lat, lng float64) (*models.UnitBoundary, error)

	// Search resolves a free-text place query. See MatchType for the rules.
	Search(ctx context.Context, query string, limit int) (SearchResult, error)

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
}

// MatchType tells the caller which search rule produced the results.
type MatchType string

const (
	// MatchID is an exact 5-digit county FIPS or ZIP code.
	MatchID MatchType = "id"
	// MatchCountyInState is a "County, State" query.
	MatchCountyInState MatchType = "county_in_state"
	// MatchState is a full state name; results are the counties of that state.
	MatchState MatchType = "state"
	// MatchPrefix is a case-insensitive name or code prefix.
	MatchPrefix MatchType = "prefix"
)

// Match is one search hit with the box the map should fit.
type Match struct {
	models.GeoUnit
	Bounds models.BBox `json:"bounds"`
}

// SearchResult is the answer to a place search. Bounds covers every unit the
// query designates, which for a state is the whole state even when Units is cut
// off by the limit.
type SearchResult struct {
	Query     string       `json:"query"`
	MatchType MatchType    `json:"match_type"`
	Units     []Match      `json:"units"`
	Bounds    *models.BBox `json:"bounds,omitempty"`
}

// NormalizeLimit applies the default and the maximum to a requested limit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

// UnionMatches returns the box covering every match, or nil when there are none.
func UnionMatches(matches []Match) *models.BBox {
	if len(matches) == 0 {
		return nil
	}
	box := matches[0].Bounds
	for _, m := range matches[1:] {
		box = extend(box, m.Bounds)
	}
	return &box
}

func extend(a, b models.BBox) models.BBox {
	return models.BBox{
		MinLng: min(a.MinLng, b.MinLng),
		MinLat: min(a.MinLat, b.MinLat),
		MaxLng: max(a.MaxLng, b.MaxLng),
		MaxLat: max(a.MaxLat, b.MaxLat),
	}
}
