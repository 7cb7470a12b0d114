package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

func TestReadGeoJSON_Counties(t *testing.T) {
	res, err := ReadGeoJSON(strings.NewReader(countyFixture), models.KindCounty)
	require.NoError(t, err)
	require.Len(t, res.Units, 5)

	la := res.Units[0]
	assert.Equal(t, models.UnitRef{Kind: models.KindCounty, ID: "06037"}, la.UnitRef)
	assert.Equal(t, "Los Angeles", la.Name)
	assert.Equal(t, "CA", la.State)
	assert.True(t, la.Boundary.Contains(-118, 34))

	clark := res.Units[4]
	assert.Equal(t, "32003", clark.ID, "id built from STATEFP and padded COUNTYFP")
	assert.Equal(t, "NV", clark.State)
}

func TestReadGeoJSON_Zips(t *testing.T) {
	res, err := ReadGeoJSON(strings.NewReader(zipFixture), models.KindZip)
	require.NoError(t, err)
	require.Len(t, res.Units, 3)

	assert.Equal(t, "90210", res.Units[0].ID)
	assert.Equal(t, "90211", res.Units[1].ID)
	assert.Equal(t, "01001", res.Units[2].ID, "numeric codes regain leading zeros")
	assert.Equal(t, "01001", res.Units[2].Name)
	assert.Empty(t, res.Units[2].State)
}

func TestReadGeoJSON_SkipsBadFeatures(t *testing.T) {
	data := collection(
		featureJSON(`{"GEOID":"06037","NAME":"Los Angeles"}`, box(-119, 33, -117, 35)),
		featureJSON(`{"NAME":"No id"}`, box(0, 0, 1, 1)),
		featureJSON(`{"GEOID":"06059"}`, `null`),
		featureJSON(`{"GEOID":"06073"}`, `{"type":"Point","coordinates":[0,0]}`),
		featureJSON(`{"GEOID":"6A073"}`, box(0, 0, 1, 1)),
	)

	res, err := ReadGeoJSON(strings.NewReader(data), models.KindCounty)
	require.NoError(t, err)
	assert.Len(t, res.Units, 1)
	assert.Equal(t, 4, res.Skipped)
}

func TestReadGeoJSON_Errors(t *testing.T) {
	_, err := ReadGeoJSON(strings.NewReader(`{"type":"Feature"}`), models.KindCounty)
	assert.Error(t, err)

	_, err = ReadGeoJSON(strings.NewReader(`not json`), models.KindCounty)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zips.geojson")
	require.NoError(t, os.WriteFile(path, []byte(zipFixture), 0o644))

	res, err := LoadFile(path, models.KindZip)
	require.NoError(t, err)
	assert.Len(t, res.Units, 3)

	_, err = LoadFile(filepath.Join(dir, "missing.geojson"), models.KindZip)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "zips.kml"), models.KindZip)
	assert.ErrorContains(t, err, "unsupported boundary file")
}

func TestPolygonToMultiPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 3,
		Parts:    []int32{0, 5, 10},
		Points: []shp.Point{
			// Outer ring, clockwise
			{X: -80.0, Y: 25.0},
			{X: -80.0, Y: 26.0},
			{X: -79.0, Y: 26.0},
			{X: -79.0, Y: 25.0},
			{X: -80.0, Y: 25.0},
			// Hole, counter-clockwise
			{X: -79.8, Y: 25.2},
			{X: -79.2, Y: 25.2},
			{X: -79.2, Y: 25.8},
			{X: -79.8, Y: 25.8},
			{X: -79.8, Y: 25.2},
			// Island, clockwise
			{X: -82.0, Y: 24.0},
			{X: -82.0, Y: 24.5},
			{X: -81.5, Y: 24.5},
			{X: -81.5, Y: 24.0},
			{X: -82.0, Y: 24.0},
		},
	}

	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())

	b, err := models.NewBoundary(mp)
	require.NoError(t, err)
	assert.True(t, b.Contains(-79.9, 25.9))
	assert.False(t, b.Contains(-79.5, 25.5), "point in the hole")
	assert.True(t, b.Contains(-81.7, 24.2), "point on the island")
}

func TestPolygonToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}

func TestPadCode(t *testing.T) {
	assert.Equal(t, "01001", padCode("1001", 5))
	assert.Equal(t, "06", padCode("6", 2))
	assert.Equal(t, "90210", padCode("90210", 5))
	assert.Equal(t, "abc", padCode("abc", 5))
}
