package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stwalsh4118/territory-mapper/internal/models"
)

type memoryEntry struct {
	unit      models.UnitBoundary
	bounds    models.BBox
	nameLower string
}

// Memory is a Registry held entirely in memory, loaded from boundary files.
// Point lookups scan the units of one kind with a bounding box pre-filter.
type Memory struct {
	mu     sync.RWMutex
	units  map[string]*memoryEntry
	byKind map[models.UnitKind][]*memoryEntry
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		units:  make(map[string]*memoryEntry),
		byKind: make(map[models.UnitKind][]*memoryEntry),
	}
}

// Add inserts or replaces units. Units with an invalid reference or an empty
// boundary are rejected and nothing is added.
func (m *Memory) Add(units ...models.UnitBoundary) error {
	entries := make([]*memoryEntry, 0, len(units))
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return err
		}
		bounds, ok := u.Boundary.Bounds()
		if !ok {
			return fmt.Errorf("unit %s has an empty boundary", u.UnitRef)
		}
		entries = append(entries, &memoryEntry{
			unit:      u,
			bounds:    bounds,
			nameLower: strings.ToLower(u.Name),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[models.UnitKind]bool)
	for _, e := range entries {
		m.units[e.unit.Key()] = e
		touched[e.unit.Kind] = true
	}
	for kind := range touched {
		list := m.byKind[kind][:0]
		for key, e := range m.units {
			if e.unit.Kind == kind {
				list = append(list, m.units[key])
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].unit.ID < list[j].unit.ID })
		m.byKind[kind] = list
	}
	return nil
}

// Len returns the number of units of kind.
func (m *Memory) Len(kind models.UnitKind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKind[kind])
}

// Get returns a copy of the unit, or nil when unknown.
func (m *Memory) Get(_ context.Context, ref models.UnitRef) (*models.UnitBoundary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.units[ref.Key()]
	if !ok {
		return nil, nil
	}
	unit := e.unit
	return &unit, nil
}

// FindAtPoint returns the first unit of kind, in id order, whose boundary
// contains the point.
func (m *Memory) FindAtPoint(_ context.Context, kind models.UnitKind, lat, lng float64) (*models.UnitBoundary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.byKind[kind] {
		b := e.bounds
		if lng < b.MinLng || lng > b.MaxLng || lat < b.MinLat || lat > b.MaxLat {
			continue
		}
		if e.unit.Boundary.Contains(lng, lat) {
			unit := e.unit
			return &unit, nil
		}
	}
	return nil, nil
}

// Search applies the query rules over the loaded units.
func (m *Memory) Search(_ context.Context, query string, limit int) (SearchResult, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return SearchResult{}, err
	}
	limit = NormalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := SearchResult{Query: q.Raw, MatchType: q.Match}
	var all []Match

	switch q.Match {
	case MatchID:
		for _, kind := range []models.UnitKind{models.KindCounty, models.KindZip} {
			if e, ok := m.units[models.UnitRef{Kind: kind, ID: q.ID}.Key()]; ok {
				all = append(all, e.match())
			}
		}
	case MatchCountyInState:
		all = m.filter(models.KindCounty, func(e *memoryEntry) bool {
			return e.unit.StateFIPS() == q.State.FIPS && NormalizeCounty(e.nameLower) == q.Name
		})
	case MatchState:
		all = m.filter(models.KindCounty, func(e *memoryEntry) bool {
			return e.unit.StateFIPS() == q.State.FIPS
		})
	case MatchPrefix:
		if q.Digits {
			for _, kind := range []models.UnitKind{models.KindCounty, models.KindZip} {
				all = append(all, m.filter(kind, func(e *memoryEntry) bool {
					return strings.HasPrefix(e.unit.ID, q.ID)
				})...)
			}
		} else {
			all = m.filter(models.KindCounty, func(e *memoryEntry) bool {
				return strings.HasPrefix(e.nameLower, q.Name)
			})
		}
	}

	if !q.Digits && q.Match != MatchID {
		sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	}
	if q.Match == MatchState {
		result.Bounds = UnionMatches(all)
	}
	all = truncate(all, limit)
	if result.Bounds == nil {
		result.Bounds = UnionMatches(all)
	}
	result.Units = all
	if result.Units == nil {
		result.Units = []Match{}
	}
	return result, nil
}

// Ping succeeds once at least one unit is loaded.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.units) == 0 {
		return fmt.Errorf("registry has no units loaded")
	}
	return nil
}

func (m *Memory) filter(kind models.UnitKind, keep func(*memoryEntry) bool) []Match {
	var out []Match
	for _, e := range m.byKind[kind] {
		if keep(e) {
			out = append(out, e.match())
		}
	}
	return out
}

func (e *memoryEntry) match() Match {
	return Match{GeoUnit: e.unit.GeoUnit, Bounds: e.bounds}
}

func truncate(matches []Match, limit int) []Match {
	if len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
