package registry

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ReadShapefile reads a TIGER/Line county or ZCTA shapefile. The .dbf must sit
// next to the .shp.
func ReadShapefile(path string, kind models.UnitKind) (LoadResult, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	fields := make(map[string]int)
	for i, f := range reader.Fields() {
		fields[strings.ToUpper(strings.TrimRight(f.String(), "\x00"))] = i
	}

	var res LoadResult
	for reader.Next() {
		_, shape := reader.Shape()
		attr := func(name string) string {
			idx, ok := fields[name]
			if !ok {
				return ""
			}
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			res.Skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			res.Skipped++
			continue
		}
		unit, ok := buildUnit(kind, attr, mp)
		if !ok {
			res.Skipped++
			continue
		}
		res.Units = append(res.Units, unit)
	}
	return res, nil
}

// polygonToMultiPolygon groups shapefile rings into polygons. Outer rings are
// clockwise and start a new polygon; counter-clockwise rings are holes of the
// polygon whose outer ring contains them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}
		ring := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			ring = append(ring, pt.X, pt.Y)
		}

		if !xy.IsRingCounterClockwise(geom.XY, ring) || len(polys) == 0 {
			polys = append(polys, [][]float64{ring})
			continue
		}
		owner := len(polys) - 1
		probe := geom.Coord{ring[0], ring[1]}
		for j := range polys {
			if xy.IsPointInRing(geom.XY, probe, polys[j][0]) {
				owner = j
				break
			}
		}
		polys[owner] = append(polys[owner], ring)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(models.SRIDWGS84)
	for _, rings := range polys {
		poly := geom.NewPolygon(geom.XY)
		for _, ring := range rings {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
				return nil
			}
		}
		if err := mp.Push(poly); err != nil {
			return nil
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
