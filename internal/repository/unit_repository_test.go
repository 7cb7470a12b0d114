package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/territory-mapper/internal/config"
	"github.com/stwalsh4118/territory-mapper/internal/database"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const squareGeoJSON = `{"type":"MultiPolygon","coordinates":[[[[-118,34],[-117,34],[-117,35],[-118,35],[-118,34]]]]}`

var (
	unitCols  = []string{"kind", "geoid", "name", "state_fips", "geometry"}
	matchCols = []string{"kind", "geoid", "name", "state_fips", "min_lng", "min_lat", "max_lng", "max_lat"}
)

func newMockRepository(t *testing.T) (*UnitRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUnitRepository(mock), mock
}

func TestGet(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM geo_units\\s+WHERE kind = \\$1 AND geoid = \\$2").
		WithArgs("county", "06037").
		WillReturnRows(pgxmock.NewRows(unitCols).
			AddRow("county", "06037", "Los Angeles", "06", []byte(squareGeoJSON)))

	unit, err := repo.Get(context.Background(), models.UnitRef{Kind: models.KindCounty, ID: "06037"})
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, models.KindCounty, unit.Kind)
	assert.Equal(t, "Los Angeles", unit.Name)
	assert.Equal(t, "CA", unit.State)
	assert.True(t, unit.Boundary.Contains(-117.5, 34.5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM geo_units").
		WithArgs("zip", "00000").
		WillReturnError(pgx.ErrNoRows)

	unit, err := repo.Get(context.Background(), models.UnitRef{Kind: models.KindZip, ID: "00000"})
	assert.NoError(t, err)
	assert.Nil(t, unit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_DatabaseError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM geo_units").
		WithArgs("county", "06037").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), models.UnitRef{Kind: models.KindCounty, ID: "06037"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFindAtPoint(t *testing.T) {
	repo, mock := newMockRepository(t)

	// PostGIS takes (lng, lat).
	mock.ExpectQuery("ST_Contains\\(geom, ST_SetSRID\\(ST_MakePoint\\(\\$2, \\$3\\), 4326\\)\\)").
		WithArgs("zip", -117.5, 34.5).
		WillReturnRows(pgxmock.NewRows(unitCols).
			AddRow("zip", "91701", "", "", []byte(squareGeoJSON)))

	unit, err := repo.FindAtPoint(context.Background(), models.KindZip, 34.5, -117.5)
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "91701", unit.ID)
	assert.Equal(t, "91701", unit.Name, "ZIP names fall back to the code")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAtPoint_NoUnit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("ST_Contains").
		WithArgs("county", -93.0, 27.0).
		WillReturnError(pgx.ErrNoRows)

	unit, err := repo.FindAtPoint(context.Background(), models.KindCounty, 27.0, -93.0)
	assert.NoError(t, err)
	assert.Nil(t, unit)
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		sql       string
		args      []interface{}
		wantMatch registry.MatchType
	}{
		{
			name:      "exact code",
			query:     "06037",
			sql:       "WHERE geoid = \\$1\\s+ORDER BY kind\\s+LIMIT \\$2",
			args:      []interface{}{"06037", registry.DefaultSearchLimit},
			wantMatch: registry.MatchID,
		},
		{
			name:      "county in state",
			query:     "Los Angeles County, CA",
			sql:       "state_fips = \\$1 AND \\(lower\\(name\\) = \\$2",
			args:      []interface{}{"06", "los angeles", registry.DefaultSearchLimit},
			wantMatch: registry.MatchCountyInState,
		},
		{
			name:      "name prefix escapes wildcards",
			query:     "St_",
			sql:       "lower\\(name\\) LIKE \\$1",
			args:      []interface{}{`st\_%`, registry.DefaultSearchLimit},
			wantMatch: registry.MatchPrefix,
		},
		{
			name:      "code prefix",
			query:     "902",
			sql:       "geoid LIKE \\$1\\s+ORDER BY kind, geoid",
			args:      []interface{}{"902%", registry.DefaultSearchLimit},
			wantMatch: registry.MatchPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectQuery(tt.sql).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows(matchCols).
					AddRow("county", "06037", "Los Angeles", "06", -118.9, 32.8, -117.6, 34.8))

			result, err := repo.Search(context.Background(), tt.query, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatch, result.MatchType)
			require.Len(t, result.Units, 1)
			assert.Equal(t, "CA", result.Units[0].State)
			require.NotNil(t, result.Bounds)
			assert.Equal(t, -118.9, result.Bounds.MinLng)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSearch_StateUsesFullExtent(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("kind = 'county' AND state_fips = \\$1\\s+ORDER BY name").
		WithArgs("32", 2).
		WillReturnRows(pgxmock.NewRows(matchCols).
			AddRow("county", "32001", "Churchill", "32", -119.2, 39.0, -117.7, 40.0).
			AddRow("county", "32003", "Clark", "32", -115.9, 35.0, -114.0, 36.8))
	mock.ExpectQuery("ST_Extent\\(geom\\)").
		WithArgs("32").
		WillReturnRows(pgxmock.NewRows([]string{"xmin", "ymin", "xmax", "ymax"}).
			AddRow(ptr(-120.0), ptr(35.0), ptr(-114.0), ptr(42.0)))

	result, err := repo.Search(context.Background(), "Nevada", 2)
	require.NoError(t, err)
	assert.Equal(t, registry.MatchState, result.MatchType)
	assert.Len(t, result.Units, 2)
	require.NotNil(t, result.Bounds)
	assert.Equal(t, models.BBox{MinLng: -120, MinLat: 35, MaxLng: -114, MaxLat: 42}, *result.Bounds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_EmptyQuery(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, err := repo.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, registry.ErrEmptyQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	repo, mock := newMockRepository(t)

	boundary, err := models.NewBoundary(geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{-118, 34}, {-117, 34}, {-117, 35}, {-118, 35}, {-118, 34}},
	}))
	require.NoError(t, err)

	units := []models.UnitBoundary{
		{GeoUnit: models.GeoUnit{UnitRef: models.UnitRef{Kind: models.KindCounty, ID: "06037"}, Name: "Los Angeles"}, Boundary: boundary},
		{GeoUnit: models.GeoUnit{UnitRef: models.UnitRef{Kind: models.KindZip, ID: "91701"}, Name: "91701"}, Boundary: boundary},
		{GeoUnit: models.GeoUnit{UnitRef: models.UnitRef{Kind: models.KindZip, ID: "91702"}}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO geo_units").
		WithArgs("county", "06037", "Los Angeles", "06", ewkbWithSRID(models.SRIDWGS84)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO geo_units").
		WithArgs("zip", "91701", "91701", nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := repo.Upsert(context.Background(), units)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "units without a boundary are skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, boundary.Geom.SRID(), "caller's geometry is left untouched")
}

// ewkbWithSRID matches an EWKB argument carrying the given SRID.
type ewkbWithSRID int

func (s ewkbWithSRID) Match(v interface{}) bool {
	data, ok := v.([]byte)
	if !ok {
		return false
	}
	g, err := ewkb.Unmarshal(data)
	return err == nil && g.SRID() == int(s)
}

func TestUpsert_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepository(t)

	boundary, err := models.NewBoundary(geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
	}))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO geo_units").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = repo.Upsert(context.Background(), []models.UnitBoundary{
		{GeoUnit: models.GeoUnit{UnitRef: models.UnitRef{Kind: models.KindCounty, ID: "01001"}}, Boundary: boundary},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}

func ptr(f float64) *float64 { return &f }

// TestUnitRepository_Integration runs against a live PostGIS server when
// TEST_DATABASE=1.
func TestUnitRepository_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("TEST_DATABASE") != "1" {
		t.Skip("Skipping integration test; set TEST_DATABASE=1 to run")
	}

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, config.DatabaseConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		Name:     envOr("DB_NAME", "territories"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		PoolMin:  1,
		PoolMax:  2,
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.EnsureSchema(ctx, db.Pool))

	repo := NewUnitRepository(db.Pool)
	boundary, err := models.NewBoundary(geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}},
	}))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, []models.UnitBoundary{
		{GeoUnit: models.GeoUnit{UnitRef: models.UnitRef{Kind: models.KindZip, ID: "99999"}, Name: "99999"}, Boundary: boundary},
	})
	require.NoError(t, err)

	unit, err := repo.FindAtPoint(ctx, models.KindZip, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "99999", unit.ID)

	// Cancelled contexts surface as errors rather than "not found".
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.FindAtPoint(cctx, models.KindZip, 0, 0)
	assert.Error(t, err)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
