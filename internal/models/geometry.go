package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// SRIDWGS84 is the spatial reference used for all unit boundaries.
const SRIDWGS84 = 4326

// Boundary is the outline of a geographic unit, always held as a MultiPolygon.
// Counties and ZIP areas with islands or exclaves have several polygons.
type Boundary struct {
	Geom *geom.MultiPolygon
	SRID int
}

// NewBoundary wraps a Polygon or MultiPolygon geometry.
func NewBoundary(g geom.T) (Boundary, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return Boundary{Geom: t, SRID: SRIDWGS84}, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return Boundary{}, fmt.Errorf("failed to wrap polygon: %w", err)
		}
		return Boundary{Geom: mp, SRID: SRIDWGS84}, nil
	case nil:
		return Boundary{}, nil
	default:
		return Boundary{}, fmt.Errorf("expected Polygon or MultiPolygon, got %T", g)
	}
}

// IsEmpty reports whether the boundary has no polygons.
func (b Boundary) IsEmpty() bool {
	return b.Geom == nil || b.Geom.NumPolygons() == 0
}

// Scan implements sql.Scanner for ST_AsGeoJSON output.
func (b *Boundary) Scan(value interface{}) error {
	if value == nil {
		*b = Boundary{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Boundary: expected []byte or string, got %T", value)
	}

	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to unmarshal boundary geometry: %w", err)
	}

	parsed, err := NewBoundary(g)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Value implements driver.Valuer, returning GeoJSON for ST_GeomFromGeoJSON.
func (b Boundary) Value() (driver.Value, error) {
	if b.IsEmpty() {
		return nil, nil
	}
	data, err := geojson.Marshal(b.Geom)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal boundary to GeoJSON: %w", err)
	}
	return string(data), nil
}

// MarshalJSON renders the boundary as a GeoJSON geometry, or null when empty.
func (b Boundary) MarshalJSON() ([]byte, error) {
	if b.IsEmpty() {
		return []byte("null"), nil
	}
	return geojson.Marshal(b.Geom)
}

// UnmarshalJSON parses a GeoJSON Polygon or MultiPolygon.
func (b *Boundary) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = Boundary{}
		return nil
	}
	return b.Scan(data)
}

// Contains reports whether the point lies inside the boundary.
// Points inside a hole are outside; points on an edge are inside.
func (b Boundary) Contains(lng, lat float64) bool {
	if b.IsEmpty() {
		return false
	}
	bounds := b.Geom.Bounds()
	if lng < bounds.Min(0) || lng > bounds.Max(0) || lat < bounds.Min(1) || lat > bounds.Max(1) {
		return false
	}

	layout := b.Geom.Layout()
	pt := geom.Coord{lng, lat}
	for i := 0; i < b.Geom.NumPolygons(); i++ {
		poly := b.Geom.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(layout, pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(layout, pt, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// BBox is a longitude/latitude bounding box used by the map to fit its view.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Bounds returns the bounding box of the boundary and false when it is empty.
func (b Boundary) Bounds() (BBox, bool) {
	return UnionBounds(b)
}

// UnionBounds returns the box covering all non-empty boundaries.
func UnionBounds(boundaries ...Boundary) (BBox, bool) {
	bounds := geom.NewBounds(geom.XY)
	found := false
	for _, b := range boundaries {
		if b.IsEmpty() {
			continue
		}
		bounds.Extend(b.Geom)
		found = true
	}
	if !found || bounds.IsEmpty() {
		return BBox{}, false
	}
	return BBox{
		MinLng: bounds.Min(0),
		MinLat: bounds.Min(1),
		MaxLng: bounds.Max(0),
		MaxLat: bounds.Max(1),
	}, true
}

// Center returns the midpoint of the box as (lng, lat).
func (bb BBox) Center() (float64, float64) {
	return (bb.MinLng + bb.MaxLng) / 2, (bb.MinLat + bb.MaxLat) / 2
}
