package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/territory-mapper/internal/errors"
	"github.com/stwalsh4118/territory-mapper/internal/middleware"
	"github.com/stwalsh4118/territory-mapper/internal/services"
	"github.com/stwalsh4118/territory-mapper/internal/territory"
)

// UnitHandler handles geographic unit HTTP requests.
type UnitHandler struct {
	service     services.UnitService
	territories services.TerritoryService
}

// NewUnitHandler creates a new UnitHandler instance.
func NewUnitHandler(service services.UnitService, territories services.TerritoryService) *UnitHandler {
	return &UnitHandler{
		service:     service,
		territories: territories,
	}
}

// AtPointRequest represents the query parameters for finding a unit at a point.
type AtPointRequest struct {
	Kind string   `form:"kind" binding:"omitempty,oneof=county zip"`
	Lat  *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng  *float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// SearchRequest represents the query parameters for a unit search.
type SearchRequest struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=0,max=100"`
}

// AtPoint handles GET /api/v1/units/at-point.
// Without a kind the session boundary mode decides which layer is queried.
func (h *UnitHandler) AtPoint(c *gin.Context) {
	var req AtPointRequest
	if !bindQuery(c, &req) {
		return
	}

	detail, err := h.service.AtPoint(c.Request.Context(), req.Kind, *req.Lat, *req.Lng)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Unit found at point", map[string]interface{}{
			"unit": detail.Unit.UnitRef.String(),
			"lat":  *req.Lat,
			"lng":  *req.Lng,
		})
	}
	c.JSON(http.StatusOK, detail)
}

// Search handles GET /api/v1/units/search.
func (h *UnitHandler) Search(c *gin.Context) {
	var req SearchRequest
	if !bindQuery(c, &req) {
		return
	}

	result, err := h.service.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Styles handles GET /api/v1/units/styles.
// Returns the style of every owned unit plus the defaults for unowned ones.
func (h *UnitHandler) Styles(c *gin.Context) {
	c.JSON(http.StatusOK, h.territories.Styles())
}

// Get handles GET /api/v1/units/:kind/:id.
func (h *UnitHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("kind"), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Toggle handles POST /api/v1/units/:kind/:id/toggle.
func (h *UnitHandler) Toggle(c *gin.Context) {
	resp, err := h.service.Toggle(c.Request.Context(), c.Param("kind"), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.writeToggle(c, resp)
}

// Click handles POST /api/v1/units/:kind/:id/click.
func (h *UnitHandler) Click(c *gin.Context) {
	result, err := h.service.Click(c.Request.Context(), c.Param("kind"), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if result.Toggle != nil {
		if rejected := toggleConflict(c, result.Toggle); rejected {
			return
		}
	}
	c.JSON(http.StatusOK, result)
}

func (h *UnitHandler) writeToggle(c *gin.Context, resp *services.ToggleResponse) {
	if toggleConflict(c, resp) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// toggleConflict writes a 409 for outcomes that left membership unchanged
// because of the session state. already_member is treated as success.
func toggleConflict(c *gin.Context, resp *services.ToggleResponse) bool {
	switch resp.Outcome {
	case territory.OutcomeNoAddMode:
		apierrors.Conflict(c, apierrors.ErrNoAddMode, "No territory is in add mode", map[string]interface{}{
			"unit": resp.Unit.String(),
		})
		return true
	case territory.OutcomeOwnedElsewhere:
		apierrors.Conflict(c, apierrors.ErrUnitOwned, "Unit belongs to another territory", map[string]interface{}{
			"unit":     resp.Unit.String(),
			"owner_id": resp.OwnerID,
		})
		return true
	case territory.OutcomeTerritoryGone:
		apierrors.Conflict(c, apierrors.ErrConflict, "Territory was deleted before the unit could be added", map[string]interface{}{
			"unit":         resp.Unit.String(),
			"territory_id": resp.TerritoryID,
		})
		return true
	}
	return false
}

func (h *UnitHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidUnit):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCoordinates):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrEmptyQuery):
		apierrors.BadRequest(c, "Search query cannot be empty", nil)
	case errors.Is(err, services.ErrUnitNotFound):
		apierrors.NotFound(c, "No unit found")
	case errors.Is(err, services.ErrTerritoryNotFound):
		apierrors.NotFound(c, "Territory not found")
	default:
		apierrors.InternalServerError(c, "Failed to process unit request", err)
	}
}
