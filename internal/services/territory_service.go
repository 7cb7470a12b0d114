package services

import (
	"context"

	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/stwalsh4118/territory-mapper/internal/territory"
)

// Territory errors, re-exported so handlers depend on the service layer only.
var (
	ErrTerritoryNotFound   = territory.ErrTerritoryNotFound
	ErrEmptyName           = territory.ErrEmptyName
	ErrInvalidBoundaryMode = territory.ErrInvalidBoundaryMode
)

// TerritoryDetail is a territory with the box covering its units, which the map
// fits to when the territory is selected. Bounds is nil for an empty territory.
type TerritoryDetail struct {
	territory.Territory
	Bounds *models.BBox `json:"bounds"`
}

// TerritoryService defines territory and session operations.
type TerritoryService interface {
	// Create adds a territory and puts it in add mode.
	Create() territory.Territory

	// List returns every territory in creation order.
	List() []territory.Territory

	// Get returns one territory with its extent.
	// Returns ErrTerritoryNotFound for an unknown id.
	Get(ctx context.Context, id string) (*TerritoryDetail, error)

	// Rename changes a territory name. Returns ErrEmptyName for a blank name.
	Rename(id, name string) (territory.Territory, error)

	// Delete removes a territory and releases its units.
	// Returns ErrTerritoryNotFound when nothing was removed.
	Delete(id string) error

	// Stats returns the aggregates of a territory.
	Stats(id string) (territory.Stats, error)

	// Session returns the selection pointers and boundary mode.
	Session() territory.Session

	// SetAddMode toggles add mode for id; an empty id turns it off.
	SetAddMode(id string) (territory.Session, error)

	// SetActive selects a territory; an empty id clears the selection.
	SetActive(id string) (territory.Session, error)

	// SetBoundaryMode switches the visible unit layers.
	SetBoundaryMode(mode string) (territory.Session, error)

	// Styles returns the map styles of every owned unit.
	Styles() territory.StyleSheet
}

type territoryService struct {
	model    *territory.Model
	registry registry.Registry
	log      *logger.Logger
}

// NewTerritoryService creates a TerritoryService over model. reg resolves
// member boundaries for territory extents.
func NewTerritoryService(model *territory.Model, reg registry.Registry, log *logger.Logger) TerritoryService {
	return &territoryService{
		model:    model,
		registry: reg,
		log:      log,
	}
}

func (s *territoryService) Create() territory.Territory {
	return s.model.Create()
}

func (s *territoryService) List() []territory.Territory {
	return s.model.List()
}

func (s *territoryService) Get(ctx context.Context, id string) (*TerritoryDetail, error) {
	t, err := s.model.Get(id)
	if err != nil {
		return nil, err
	}
	return describeTerritory(ctx, s.registry, s.log, t), nil
}

func (s *territoryService) Rename(id, name string) (territory.Territory, error) {
	t, err := s.model.Rename(id, name)
	if err != nil {
		return territory.Territory{}, err
	}
	s.log.Info("Territory renamed", map[string]interface{}{
		"territory_id": id,
		"name":         t.Name,
	})
	return t, nil
}

func (s *territoryService) Delete(id string) error {
	if !s.model.Delete(id) {
		return ErrTerritoryNotFound
	}
	return nil
}

func (s *territoryService) Stats(id string) (territory.Stats, error) {
	return s.model.StatsOf(id)
}

func (s *territoryService) Session() territory.Session {
	return s.model.Session()
}

func (s *territoryService) SetAddMode(id string) (territory.Session, error) {
	return s.model.SetAddMode(id)
}

func (s *territoryService) SetActive(id string) (territory.Session, error) {
	return s.model.SetActive(id)
}

func (s *territoryService) SetBoundaryMode(mode string) (territory.Session, error) {
	m, err := territory.ParseBoundaryMode(mode)
	if err != nil {
		return territory.Session{}, err
	}
	return s.model.SetBoundaryMode(m)
}

func (s *territoryService) Styles() territory.StyleSheet {
	return s.model.Styles()
}

// describeTerritory attaches the union of the members' boundaries. Members the
// registry cannot resolve are left out of the extent.
func describeTerritory(ctx context.Context, reg registry.Registry, log *logger.Logger, t territory.Territory) *TerritoryDetail {
	boundaries := make([]models.Boundary, 0, len(t.Units))
	for _, member := range t.Units {
		unit, err := reg.Get(ctx, member.Ref)
		if err != nil {
			log.Warn("Failed to resolve member boundary", map[string]interface{}{
				"territory_id": t.ID,
				"unit":         member.Ref.String(),
				"error":        err.Error(),
			})
			continue
		}
		if unit != nil {
			boundaries = append(boundaries, unit.Boundary)
		}
	}

	detail := &TerritoryDetail{Territory: t}
	if bounds, ok := models.UnionBounds(boundaries...); ok {
		detail.Bounds = &bounds
	}
	return detail
}
