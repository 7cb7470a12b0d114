package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/territory-mapper/internal/database"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const unitColumns = `kind, geoid, name, COALESCE(state_fips, ''), ST_AsGeoJSON(geom)`

const matchColumns = `kind, geoid, name, COALESCE(state_fips, ''),
			ST_XMin(geom), ST_YMin(geom), ST_XMax(geom), ST_YMax(geom)`

// UnitRepository is the PostGIS-backed unit registry over the geo_units table.
type UnitRepository struct {
	pool database.Pool
}

var _ registry.Registry = (*UnitRepository)(nil)

// NewUnitRepository creates a repository on pool.
func NewUnitRepository(pool database.Pool) *UnitRepository {
	return &UnitRepository{pool: pool}
}

// Get returns the unit with its boundary, or nil, nil when the unit is absent.
func (r *UnitRepository) Get(ctx context.Context, ref models.UnitRef) (*models.UnitBoundary, error) {
	query := `
		SELECT ` + unitColumns + `
		FROM geo_units
		WHERE kind = $1 AND geoid = $2
	`

	unit, err := scanUnit(r.pool.QueryRow(ctx, query, string(ref.Kind), ref.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query unit %s: %w", ref, err)
	}
	return unit, nil
}

// FindAtPoint returns the unit of kind containing the point using ST_Contains.
// The GIST index on geom serves the lookup.
//
// Note: PostGIS functions expect (longitude, latitude) order, not (lat, lng).
func (r *UnitRepository) FindAtPoint(ctx context.Context, kind models.UnitKind, lat, lng float64) (*models.UnitBoundary, error) {
	query := `
		SELECT ` + unitColumns + `
		FROM geo_units
		WHERE kind = $1 AND ST_Contains(geom, ST_SetSRID(ST_MakePoint($2, $3), 4326))
		ORDER BY geoid
		LIMIT 1
	`

	unit, err := scanUnit(r.pool.QueryRow(ctx, query, string(kind), lng, lat))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query %s at point (lat=%f, lng=%f): %w", kind, lat, lng, err)
	}
	return unit, nil
}

// Search applies the place search rules in SQL.
func (r *UnitRepository) Search(ctx context.Context, query string, limit int) (registry.SearchResult, error) {
	q, err := registry.ParseQuery(query)
	if err != nil {
		return registry.SearchResult{}, err
	}
	limit = registry.NormalizeLimit(limit)

	var (
		where string
		args  []any
		order = "name"
	)
	switch q.Match {
	case registry.MatchID:
		where, order = "geoid = $1", "kind"
		args = []any{q.ID}
	case registry.MatchCountyInState:
		where = "kind = 'county' AND state_fips = $1 AND (lower(name) = $2 OR lower(name) = $2 || ' county')"
		args = []any{q.State.FIPS, q.Name}
	case registry.MatchState:
		where = "kind = 'county' AND state_fips = $1"
		args = []any{q.State.FIPS}
	case registry.MatchPrefix:
		if q.Digits {
			where, order = "geoid LIKE $1", "kind, geoid"
			args = []any{q.ID + "%"}
		} else {
			where = `kind = 'county' AND lower(name) LIKE $1 ESCAPE '\'`
			args = []any{escapeLike(q.Name) + "%"}
		}
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM geo_units
		WHERE %s
		ORDER BY %s
		LIMIT $%d
	`, matchColumns, where, order, len(args)+1)

	matches, err := r.queryMatches(ctx, sql, append(args, limit)...)
	if err != nil {
		return registry.SearchResult{}, fmt.Errorf("failed to search units for %q: %w", q.Raw, err)
	}

	result := registry.SearchResult{
		Query:     q.Raw,
		MatchType: q.Match,
		Units:     matches,
		Bounds:    registry.UnionMatches(matches),
	}
	if q.Match == registry.MatchState && len(matches) > 0 {
		bounds, err := r.stateExtent(ctx, q.State.FIPS)
		if err != nil {
			return registry.SearchResult{}, err
		}
		if bounds != nil {
			result.Bounds = bounds
		}
	}
	return result, nil
}

// Ping checks the database connection.
func (r *UnitRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Upsert writes units in one transaction, replacing existing rows with the same
// (kind, geoid). Geometries travel as EWKB.
func (r *UnitRepository) Upsert(ctx context.Context, units []models.UnitBoundary) (int, error) {
	query := `
		INSERT INTO geo_units (kind, geoid, name, state_fips, geom, updated_at)
		VALUES ($1, $2, $3, $4, ST_Multi(ST_GeomFromEWKB($5)), now())
		ON CONFLICT (kind, geoid) DO UPDATE SET
			name = EXCLUDED.name,
			state_fips = EXCLUDED.state_fips,
			geom = EXCLUDED.geom,
			updated_at = now()
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin unit import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	written := 0
	for _, u := range units {
		if u.Boundary.IsEmpty() {
			continue
		}
		// Encode a copy so the caller's geometry keeps its SRID.
		data, err := ewkb.Marshal(u.Boundary.Geom.Clone().SetSRID(models.SRIDWGS84), ewkb.NDR)
		if err != nil {
			return 0, fmt.Errorf("failed to encode boundary of %s: %w", u.UnitRef, err)
		}
		var state any
		if fips := u.StateFIPS(); fips != "" {
			state = fips
		}
		if _, err := tx.Exec(ctx, query, string(u.Kind), u.ID, u.Name, state, data); err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", u.UnitRef, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit unit import: %w", err)
	}
	return written, nil
}

func (r *UnitRepository) queryMatches(ctx context.Context, sql string, args ...any) ([]registry.Match, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []registry.Match{}
	for rows.Next() {
		var (
			m     registry.Match
			kind  string
			state string
		)
		if err := rows.Scan(&kind, &m.ID, &m.Name, &state,
			&m.Bounds.MinLng, &m.Bounds.MinLat, &m.Bounds.MaxLng, &m.Bounds.MaxLat); err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		m.Kind = models.UnitKind(kind)
		m.State = registry.StateAbbr(state)
		if m.Kind == models.KindZip && m.Name == "" {
			m.Name = m.ID
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit rows: %w", err)
	}
	return matches, nil
}

// stateExtent returns the box covering every county of a state, or nil when
// the state has no counties loaded.
func (r *UnitRepository) stateExtent(ctx context.Context, stateFIPS string) (*models.BBox, error) {
	query := `
		SELECT ST_XMin(e), ST_YMin(e), ST_XMax(e), ST_YMax(e)
		FROM (SELECT ST_Extent(geom) AS e FROM geo_units WHERE kind = 'county' AND state_fips = $1) s
	`

	var minLng, minLat, maxLng, maxLat *float64
	if err := r.pool.QueryRow(ctx, query, stateFIPS).Scan(&minLng, &minLat, &maxLng, &maxLat); err != nil {
		return nil, fmt.Errorf("failed to query extent of state %s: %w", stateFIPS, err)
	}
	if minLng == nil || minLat == nil || maxLng == nil || maxLat == nil {
		return nil, nil
	}
	return &models.BBox{MinLng: *minLng, MinLat: *minLat, MaxLng: *maxLng, MaxLat: *maxLat}, nil
}

func scanUnit(row pgx.Row) (*models.UnitBoundary, error) {
	var (
		unit     models.UnitBoundary
		kind     string
		state    string
		geomJSON []byte
	)
	if err := row.Scan(&kind, &unit.ID, &unit.Name, &state, &geomJSON); err != nil {
		return nil, err
	}
	unit.Kind = models.UnitKind(kind)
	unit.State = registry.StateAbbr(state)
	if unit.Kind == models.KindZip && unit.Name == "" {
		unit.Name = unit.ID
	}

	// Parse GeoJSON geometry using the Boundary scanner
	if err := unit.Boundary.Scan(geomJSON); err != nil {
		return nil, fmt.Errorf("failed to parse geometry for %s: %w", unit.UnitRef, err)
	}
	return &unit, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
