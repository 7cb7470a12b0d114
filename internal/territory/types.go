package territory

import (
	"time"

	"github.com/stwalsh4118/territory-mapper/internal/models"
)

// Outcome describes what a toggle did.
type Outcome string

const (
	// OutcomeNoAddMode means no territory was accepting units.
	OutcomeNoAddMode Outcome = "no_add_mode"
	// OutcomeAdded means the unit joined the add-mode territory.
	OutcomeAdded Outcome = "added"
	// OutcomeRemoved means the unit left the add-mode territory.
	OutcomeRemoved Outcome = "removed"
	// OutcomeOwnedElsewhere means another territory holds the unit.
	OutcomeOwnedElsewhere Outcome = "owned_elsewhere"
	// OutcomeTerritoryGone means the target was deleted while statistics were loading.
	OutcomeTerritoryGone Outcome = "territory_gone"
	// OutcomeAlreadyMember means a concurrent toggle added the unit first.
	OutcomeAlreadyMember Outcome = "already_member"
)

// Changed reports whether the outcome altered membership.
func (o Outcome) Changed() bool {
	return o == OutcomeAdded || o == OutcomeRemoved
}

// Member is a unit inside a territory with the statistics recorded when it was added.
type Member struct {
	Ref      models.UnitRef   `json:"unit"`
	Stats    models.UnitStats `json:"stats"`
	Degraded bool             `json:"degraded"`
	AddedAt  time.Time        `json:"added_at"`
}

// Stats are the aggregates of a territory.
type Stats struct {
	Population       int64 `json:"population"`
	StandAloneHouses int64 `json:"stand_alone_houses"`
	UnitCount        int   `json:"unit_count"`
	DegradedUnits    int   `json:"degraded_units"`
}

// Territory is a point-in-time copy of a territory.
type Territory struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	Units     []Member  `json:"units"`
	Stats     Stats     `json:"stats"`
}

// Session holds the selection pointers and map layer mode.
type Session struct {
	ActiveTerritoryID  *string      `json:"active_territory_id"`
	AddModeTerritoryID *string      `json:"add_mode_territory_id"`
	BoundaryMode       BoundaryMode `json:"boundary_mode"`
	TerritoryCount     int          `json:"territory_count"`
	Version            uint64       `json:"version"`
}

// ToggleResult reports the outcome of Toggle.
type ToggleResult struct {
	Outcome     Outcome        `json:"outcome"`
	Unit        models.UnitRef `json:"unit"`
	TerritoryID string         `json:"territory_id,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	Member      *Member        `json:"member,omitempty"`
	Stats       Stats          `json:"territory_stats"`
	Degraded    bool           `json:"degraded"`
}
