package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/territory-mapper/internal/errors"
	"github.com/stwalsh4118/territory-mapper/internal/services"
	"github.com/stwalsh4118/territory-mapper/internal/territory"
)

// TerritoryHandler handles territory and session HTTP requests.
type TerritoryHandler struct {
	service services.TerritoryService
}

// NewTerritoryHandler creates a new TerritoryHandler instance.
func NewTerritoryHandler(service services.TerritoryService) *TerritoryHandler {
	return &TerritoryHandler{
		service: service,
	}
}

// RenameRequest is the body of PATCH /api/v1/territories/:id.
type RenameRequest struct {
	Name string `json:"name"`
}

// SelectRequest is the body of the session pointer endpoints. A missing or
// empty territory_id clears the pointer.
type SelectRequest struct {
	TerritoryID string `json:"territory_id"`
}

// BoundaryModeRequest is the body of PUT /api/v1/session/boundary-mode.
type BoundaryModeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=counties zips both"`
}

// TerritoryListResponse wraps the territory list.
type TerritoryListResponse struct {
	Territories []territory.Territory `json:"territories"`
	Count       int                   `json:"count"`
}

// List handles GET /api/v1/territories.
func (h *TerritoryHandler) List(c *gin.Context) {
	territories := h.service.List()
	c.JSON(http.StatusOK, TerritoryListResponse{
		Territories: territories,
		Count:       len(territories),
	})
}

// Create handles POST /api/v1/territories.
// The new territory becomes active and enters add mode.
func (h *TerritoryHandler) Create(c *gin.Context) {
	c.JSON(http.StatusCreated, h.service.Create())
}

// Get handles GET /api/v1/territories/:id.
// The response carries the bounds of the territory's units for fitting the map.
func (h *TerritoryHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Rename handles PATCH /api/v1/territories/:id.
func (h *TerritoryHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.service.Rename(c.Param("id"), req.Name)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /api/v1/territories/:id.
func (h *TerritoryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/v1/territories/:id/stats.
func (h *TerritoryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Session handles GET /api/v1/session.
func (h *TerritoryHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Session())
}

// SetAddMode handles PUT /api/v1/session/add-mode.
// Sending the current add-mode territory again turns add mode off.
func (h *TerritoryHandler) SetAddMode(c *gin.Context) {
	var req SelectRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.service.SetAddMode(req.TerritoryID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SetActive handles PUT /api/v1/session/active.
func (h *TerritoryHandler) SetActive(c *gin.Context) {
	var req SelectRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.service.SetActive(req.TerritoryID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SetBoundaryMode handles PUT /api/v1/session/boundary-mode.
func (h *TerritoryHandler) SetBoundaryMode(c *gin.Context) {
	var req BoundaryModeRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.service.SetBoundaryMode(req.Mode)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *TerritoryHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTerritoryNotFound):
		apierrors.NotFound(c, "Territory not found")
	case errors.Is(err, services.ErrEmptyName):
		apierrors.BadRequest(c, "Territory name cannot be empty", map[string]interface{}{
			"name": "must contain at least one non-space character",
		})
	case errors.Is(err, services.ErrInvalidBoundaryMode):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process territory request", err)
	}
}
