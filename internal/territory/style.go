package territory

import (
	"errors"
	"strings"

	"github.com/stwalsh4118/territory-mapper/internal/models"
)

// ErrInvalidBoundaryMode is returned for an unknown boundary mode.
var ErrInvalidBoundaryMode = errors.New("invalid boundary mode")

// BoundaryMode selects which unit layers the map shows and accepts clicks on.
type BoundaryMode string

const (
	BoundaryCounties BoundaryMode = "counties"
	BoundaryZips     BoundaryMode = "zips"
	BoundaryBoth     BoundaryMode = "both"
)

// ParseBoundaryMode converts a string to a BoundaryMode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	mode := BoundaryMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", ErrInvalidBoundaryMode
	}
	return mode, nil
}

// Valid reports whether m is a known mode.
func (m BoundaryMode) Valid() bool {
	switch m {
	case BoundaryCounties, BoundaryZips, BoundaryBoth:
		return true
	}
	return false
}

// Shows reports whether units of kind are visible in this mode.
func (m BoundaryMode) Shows(kind models.UnitKind) bool {
	switch kind {
	case models.KindCounty:
		return m == BoundaryCounties || m == BoundaryBoth
	case models.KindZip:
		return m == BoundaryZips || m == BoundaryBoth
	}
	return false
}

// Style is the polygon style the map applies to a unit.
type Style struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Interactive bool    `json:"interactive"`
	Hidden      bool    `json:"hidden"`
}

type layerStyle struct {
	unowned      Style
	ownedWeight  float64
	ownedFill    float64
	activeWeight float64
	activeFill   float64
}

var layerStyles = map[models.UnitKind]layerStyle{
	models.KindCounty: {
		unowned:      Style{Color: "#8a9bb1", Weight: 1.2, Opacity: 1, FillColor: "#e2e8f0", FillOpacity: 0.4, Interactive: true},
		ownedWeight:  2,
		ownedFill:    0.5,
		activeWeight: 4,
		activeFill:   0.7,
	},
	models.KindZip: {
		unowned:      Style{Color: "#4b5563", Weight: 0.8, Opacity: 0.5, FillColor: "#e2e8f0", FillOpacity: 0.15, Interactive: true},
		ownedWeight:  2,
		ownedFill:    0.4,
		activeWeight: 4,
		activeFill:   0.6,
	},
}

// hiddenStyle is applied to layers switched off by the boundary mode.
var hiddenStyle = Style{Weight: 0, Opacity: 0, FillOpacity: 0, Interactive: false, Hidden: true}

// computeStyle derives a unit style from ownership. color is the owner color, or
// empty for an unowned unit.
func computeStyle(kind models.UnitKind, mode BoundaryMode, color string, active bool) Style {
	if !mode.Shows(kind) {
		return hiddenStyle
	}
	ls := layerStyles[kind]
	if color == "" {
		return ls.unowned
	}

	s := Style{
		Color:       color,
		Weight:      ls.ownedWeight,
		Opacity:     1,
		FillColor:   color,
		FillOpacity: ls.ownedFill,
		Interactive: true,
	}
	if active {
		s.Weight = ls.activeWeight
		s.FillOpacity = ls.activeFill
	}
	return s
}

// StyleSheet holds the default style per layer plus overrides for owned units.
type StyleSheet struct {
	BoundaryMode BoundaryMode              `json:"boundary_mode"`
	Version      uint64                    `json:"version"`
	Defaults     map[models.UnitKind]Style `json:"defaults"`
	Units        map[string]Style          `json:"units"`
	Owners       map[string]string         `json:"owners"`
}

// StyleFor returns the style of a single unit.
func (m *Model) StyleFor(ref models.UnitRef) Style {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.styleLocked(ref)
}

func (m *Model) styleLocked(ref models.UnitRef) Style {
	ownerID, owned := m.owners[ref.Key()]
	if !owned {
		return computeStyle(ref.Kind, m.boundaryMode, "", false)
	}
	owner := m.territories[ownerID]
	return computeStyle(ref.Kind, m.boundaryMode, owner.color, ownerID == m.activeID)
}

// Styles returns the layer defaults and the style of every owned unit, keyed by
// "kind:id", so the map can restyle in one pass.
func (m *Model) Styles() StyleSheet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sheet := StyleSheet{
		BoundaryMode: m.boundaryMode,
		Version:      m.version,
		Defaults: map[models.UnitKind]Style{
			models.KindCounty: computeStyle(models.KindCounty, m.boundaryMode, "", false),
			models.KindZip:    computeStyle(models.KindZip, m.boundaryMode, "", false),
		},
		Units:  make(map[string]Style, len(m.owners)),
		Owners: make(map[string]string, len(m.owners)),
	}
	for key, ownerID := range m.owners {
		member := m.territories[ownerID].members[key]
		sheet.Units[key] = m.styleLocked(member.Ref)
		sheet.Owners[key] = ownerID
	}
	return sheet
}
