package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Property names tried, in order, for the unit id. County files carry GEOID or
// STATEFP+COUNTYFP; ZCTA files name the code after the census vintage.
var (
	countyIDFields = []string{"GEOID", "GEOID20", "GEOID10", "FIPS"}
	zipIDFields    = []string{"ZCTA5CE20", "ZCTA5CE10", "GEOID20", "GEOID10", "ZIP", "ZIPCODE", "GEOID"}
	nameFields     = []string{"NAME", "NAMELSAD", "NAME20", "NAME10"}
)

// LoadResult is the outcome of reading one boundary file.
type LoadResult struct {
	Units   []models.UnitBoundary
	Skipped int
}

// LoadFile reads a GeoJSON (.geojson, .json) or shapefile (.shp) of units of kind.
func LoadFile(path string, kind models.UnitKind) (LoadResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return LoadResult{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ReadGeoJSON(f, kind)
	case ".shp":
		return ReadShapefile(path, kind)
	default:
		return LoadResult{}, fmt.Errorf("unsupported boundary file %q: expected .geojson, .json or .shp", path)
	}
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         json.RawMessage        `json:"id"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// ReadGeoJSON parses a FeatureCollection. Features without a usable id or a
// polygonal geometry are skipped and counted.
func ReadGeoJSON(r io.Reader, kind models.UnitKind) (LoadResult, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return LoadResult{}, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return LoadResult{}, fmt.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}

	var res LoadResult
	for _, f := range fc.Features {
		attr := func(name string) string { return propertyString(f.Properties[name]) }
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			res.Skipped++
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			res.Skipped++
			continue
		}
		unit, ok := buildUnit(kind, attr, g)
		if !ok {
			res.Skipped++
			continue
		}
		res.Units = append(res.Units, unit)
	}
	return res, nil
}

// buildUnit assembles a unit from attribute lookups and a geometry.
func buildUnit(kind models.UnitKind, attr func(string) string, g geom.T) (models.UnitBoundary, bool) {
	id, stateFIPS := unitID(kind, attr)
	ref := models.UnitRef{Kind: kind, ID: id}
	if ref.Validate() != nil {
		return models.UnitBoundary{}, false
	}
	boundary, err := models.NewBoundary(g)
	if err != nil || boundary.IsEmpty() {
		return models.UnitBoundary{}, false
	}

	unit := models.UnitBoundary{
		GeoUnit:  models.GeoUnit{UnitRef: ref},
		Boundary: boundary,
	}
	if kind == models.KindCounty {
		unit.Name = firstAttr(attr, nameFields)
		if stateFIPS == "" {
			stateFIPS = ref.StateFIPS()
		}
		unit.State = StateAbbr(stateFIPS)
	} else {
		unit.Name = id
	}
	return unit, true
}

func unitID(kind models.UnitKind, attr func(string) string) (id, stateFIPS string) {
	if kind == models.KindZip {
		return padCode(firstAttr(attr, zipIDFields), 5), ""
	}
	stateFIPS = padCode(attr("STATEFP"), 2)
	if id = firstAttr(attr, countyIDFields); id != "" {
		return padCode(id, 5), stateFIPS
	}
	if county := attr("COUNTYFP"); stateFIPS != "" && county != "" {
		return stateFIPS + padCode(county, 3), stateFIPS
	}
	return "", stateFIPS
}

func firstAttr(attr func(string) string, names []string) string {
	for _, name := range names {
		if v := attr(name); v != "" {
			return v
		}
	}
	return ""
}

// padCode restores leading zeros lost when codes were stored as numbers.
func padCode(s string, width int) string {
	if s == "" || len(s) >= width || !isDigits(s) {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func propertyString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
