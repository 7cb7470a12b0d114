package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/stwalsh4118/territory-mapper/internal/territory"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrInvalidUnit        = errors.New("invalid unit")
	ErrEmptyQuery         = registry.ErrEmptyQuery
)

// Click actions.
const (
	ClickSelected = "selected"
	ClickToggled  = "toggled"
	ClickInfo     = "info"
)

// UnitDetail is a unit with its geometry, ownership and map style. Stats is nil
// when statistics were not requested or could not be fetched.
type UnitDetail struct {
	Unit    models.UnitBoundary `json:"unit"`
	Bounds  *models.BBox        `json:"bounds,omitempty"`
	OwnerID *string             `json:"owner_id"`
	Style   territory.Style     `json:"style"`
	Stats   *models.UnitStats   `json:"stats,omitempty"`
}

// ToggleResponse is a toggle outcome plus the unit's resulting style.
type ToggleResponse struct {
	territory.ToggleResult
	Style territory.Style `json:"style"`
}

// ClickResult reports what a click on a unit did. Territory is the selected
// owner, with the extent to fit the map to.
type ClickResult struct {
	Action    string             `json:"action"`
	Session   *territory.Session `json:"session,omitempty"`
	Territory *TerritoryDetail   `json:"territory,omitempty"`
	Toggle    *ToggleResponse    `json:"toggle,omitempty"`
	Unit      *UnitDetail        `json:"unit,omitempty"`
}

// UnitService defines unit lookup and toggle operations.
type UnitService interface {
	// Get returns a unit with its statistics.
	// Returns ErrInvalidUnit for a malformed reference and ErrUnitNotFound for an unknown unit.
	Get(ctx context.Context, kind, id string) (*UnitDetail, error)

	// AtPoint returns the unit containing the point. An empty kind follows the
	// session boundary mode, preferring ZIPs when both layers are shown.
	// Returns ErrInvalidCoordinates for out of range coordinates.
	AtPoint(ctx context.Context, kind string, lat, lng float64) (*UnitDetail, error)

	// Search resolves a place query.
	Search(ctx context.Context, query string, limit int) (registry.SearchResult, error)

	// Toggle adds or removes the unit from the add-mode territory.
	Toggle(ctx context.Context, kind, id string) (*ToggleResponse, error)

	// Click applies map click semantics: toggle in add mode, select the owner of
	// an owned unit, otherwise describe the unit.
	Click(ctx context.Context, kind, id string) (*ClickResult, error)
}

type unitService struct {
	registry registry.Registry
	stats    territory.StatsSource
	model    *territory.Model
	log      *logger.Logger
}

// NewUnitService creates a UnitService. stats should be the statistics cache.
func NewUnitService(reg registry.Registry, stats territory.StatsSource, model *territory.Model, log *logger.Logger) UnitService {
	return &unitService{
		registry: reg,
		stats:    stats,
		model:    model,
		log:      log,
	}
}

func (s *unitService) Get(ctx context.Context, kind, id string) (*UnitDetail, error) {
	ref, err := parseRef(kind, id)
	if err != nil {
		return nil, err
	}
	unit, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	detail := s.describe(unit)
	detail.Stats = s.fetchStats(ctx, ref)
	return detail, nil
}

func (s *unitService) AtPoint(ctx context.Context, kind string, lat, lng float64) (*UnitDetail, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		s.log.Warn("Invalid coordinates provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, err
	}

	kinds, err := s.pointKinds(kind)
	if err != nil {
		return nil, err
	}

	for _, k := range kinds {
		unit, err := s.registry.FindAtPoint(ctx, k, lat, lng)
		if err != nil {
			s.log.Error("Failed to query unit at point", err, map[string]interface{}{
				"kind": string(k),
				"lat":  lat,
				"lng":  lng,
			})
			return nil, fmt.Errorf("failed to query unit: %w", err)
		}
		if unit != nil {
			return s.describe(unit), nil
		}
	}

	s.log.Debug("No unit found at point", map[string]interface{}{
		"lat": lat,
		"lng": lng,
	})
	return nil, ErrUnitNotFound
}

func (s *unitService) Search(ctx context.Context, query string, limit int) (registry.SearchResult, error) {
	result, err := s.registry.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, registry.ErrEmptyQuery) {
			return registry.SearchResult{}, err
		}
		s.log.Error("Failed to search units", err, map[string]interface{}{
			"query": query,
		})
		return registry.SearchResult{}, fmt.Errorf("failed to search units: %w", err)
	}

	s.log.Debug("Unit search completed", map[string]interface{}{
		"query":      query,
		"match_type": string(result.MatchType),
		"count":      len(result.Units),
	})
	return result, nil
}

func (s *unitService) Toggle(ctx context.Context, kind, id string) (*ToggleResponse, error) {
	ref, err := parseRef(kind, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookup(ctx, ref); err != nil {
		return nil, err
	}

	result, err := s.model.Toggle(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
	}
	return &ToggleResponse{ToggleResult: result, Style: s.model.StyleFor(ref)}, nil
}

func (s *unitService) Click(ctx context.Context, kind, id string) (*ClickResult, error) {
	ref, err := parseRef(kind, id)
	if err != nil {
		return nil, err
	}

	if s.model.Session().AddModeTerritoryID != nil {
		toggle, err := s.Toggle(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return &ClickResult{Action: ClickToggled, Toggle: toggle}, nil
	}

	if owner, owned := s.model.OwnerOf(ref); owned {
		session, err := s.model.SetActive(owner)
		if err == nil {
			result := &ClickResult{Action: ClickSelected, Session: &session}
			if t, err := s.model.Get(owner); err == nil {
				result.Territory = describeTerritory(ctx, s.registry, s.log, t)
			}
			return result, nil
		}
		// The owner was deleted between the two calls; describe the unit instead.
	}

	detail, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return &ClickResult{Action: ClickInfo, Unit: detail}, nil
}

func (s *unitService) lookup(ctx context.Context, ref models.UnitRef) (*models.UnitBoundary, error) {
	unit, err := s.registry.Get(ctx, ref)
	if err != nil {
		s.log.Error("Failed to query unit", err, map[string]interface{}{
			"unit": ref.String(),
		})
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, ref)
	}
	return unit, nil
}

func (s *unitService) describe(unit *models.UnitBoundary) *UnitDetail {
	detail := &UnitDetail{
		Unit:  *unit,
		Style: s.model.StyleFor(unit.UnitRef),
	}
	if bounds, ok := unit.Boundary.Bounds(); ok {
		detail.Bounds = &bounds
	}
	if owner, ok := s.model.OwnerOf(unit.UnitRef); ok {
		detail.OwnerID = &owner
	}
	return detail
}

// fetchStats returns nil when statistics are unavailable; unit details never
// fail because of the Census API.
func (s *unitService) fetchStats(ctx context.Context, ref models.UnitRef) *models.UnitStats {
	stats, err := s.stats.Lookup(ctx, ref)
	if err != nil {
		s.log.Warn("Statistics unavailable for unit", map[string]interface{}{
			"unit":  ref.String(),
			"error": err.Error(),
		})
		return nil
	}
	return &stats
}

func (s *unitService) pointKinds(kind string) ([]models.UnitKind, error) {
	if kind != "" {
		k, err := models.ParseUnitKind(kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
		}
		return []models.UnitKind{k}, nil
	}

	switch s.model.Session().BoundaryMode {
	case territory.BoundaryZips:
		return []models.UnitKind{models.KindZip}, nil
	case territory.BoundaryBoth:
		return []models.UnitKind{models.KindZip, models.KindCounty}, nil
	default:
		return []models.UnitKind{models.KindCounty}, nil
	}
}

func parseRef(kind, id string) (models.UnitRef, error) {
	ref, err := models.NewUnitRef(kind, id)
	if err != nil {
		return models.UnitRef{}, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
	}
	return ref, nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}
	return nil
}
