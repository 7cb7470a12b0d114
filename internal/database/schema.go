package database

import (
	"context"
	"fmt"
)

// GeoUnitsTable holds county and ZIP boundaries for the PostGIS registry.
const GeoUnitsTable = "geo_units"

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS geo_units (
		kind       TEXT NOT NULL CHECK (kind IN ('county', 'zip')),
		geoid      CHAR(5) NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		state_fips CHAR(2),
		geom       geometry(MultiPolygon, 4326) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (kind, geoid)
	)`,
	`CREATE INDEX IF NOT EXISTS geo_units_geom_idx ON geo_units USING GIST (geom)`,
	`CREATE INDEX IF NOT EXISTS geo_units_name_idx ON geo_units (kind, lower(name) text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS geo_units_state_idx ON geo_units (state_fips)`,
}

// EnsureSchema creates the PostGIS extension, the geo_units table and its indexes
// when they do not exist yet.
func EnsureSchema(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
