package registry

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

// box returns a GeoJSON Polygon for the rectangle.
func box(minLng, minLat, maxLng, maxLat float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		minLng, minLat, maxLng, minLat, maxLng, maxLat, minLng, maxLat, minLng, minLat)
}

func featureJSON(props, geometry string) string {
	return fmt.Sprintf(`{"type":"Feature","properties":%s,"geometry":%s}`, props, geometry)
}

func collection(features ...string) string {
	return `{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`
}

// countyFixture is a handful of counties laid out on a simple grid.
var countyFixture = collection(
	featureJSON(`{"GEOID":"06037","STATEFP":"06","NAME":"Los Angeles"}`, box(-119, 33, -117, 35)),
	featureJSON(`{"GEOID":"06059","STATEFP":"06","NAME":"Orange"}`, box(-117, 33, -116, 34)),
	featureJSON(`{"GEOID":"06073","STATEFP":"06","NAME":"San Diego"}`, box(-117, 32, -116, 33)),
	featureJSON(`{"GEOID":"12095","STATEFP":"12","NAME":"Orange"}`, box(-82, 28, -81, 29)),
	featureJSON(`{"STATEFP":"32","COUNTYFP":"3","NAME":"Clark"}`, box(-116, 35, -114, 37)),
)

var zipFixture = collection(
	featureJSON(`{"ZCTA5CE20":"90210"}`, box(-118.5, 34, -118.3, 34.2)),
	featureJSON(`{"ZCTA5CE10":"90211"}`, box(-118.3, 34, -118.2, 34.2)),
	featureJSON(`{"ZIP":1001}`, box(-72.7, 42, -72.5, 42.2)),
)

func loadFixture(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	for kind, data := range map[models.UnitKind]string{models.KindCounty: countyFixture, models.KindZip: zipFixture} {
		res, err := ReadGeoJSON(strings.NewReader(data), kind)
		require.NoError(t, err)
		require.Zero(t, res.Skipped)
		require.NoError(t, m.Add(res.Units...))
	}
	return m
}
