package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted by RegisterRoutes.
type Routes struct {
	Health      *HealthHandler
	Territories *TerritoryHandler
	Units       *UnitHandler
	Metrics     http.Handler
}

// RegisterRoutes mounts the API on router.
func RegisterRoutes(router *gin.Engine, r Routes) {
	router.GET("/health", r.Health.Health)
	router.GET("/health/ready", r.Health.Ready)
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", r.Health.Info)

		territories := v1.Group("/territories")
		{
			territories.GET("", r.Territories.List)
			territories.POST("", r.Territories.Create)
			territories.GET("/:id", r.Territories.Get)
			territories.PATCH("/:id", r.Territories.Rename)
			territories.DELETE("/:id", r.Territories.Delete)
			territories.GET("/:id/stats", r.Territories.Stats)
		}

		session := v1.Group("/session")
		{
			session.GET("", r.Territories.Session)
			session.PUT("/add-mode", r.Territories.SetAddMode)
			session.PUT("/active", r.Territories.SetActive)
			session.PUT("/boundary-mode", r.Territories.SetBoundaryMode)
		}

		units := v1.Group("/units")
		{
			units.GET("/at-point", r.Units.AtPoint)
			units.GET("/search", r.Units.Search)
			units.GET("/styles", r.Units.Styles)
			units.GET("/:kind/:id", r.Units.Get)
			units.POST("/:kind/:id/toggle", r.Units.Toggle)
			units.POST("/:kind/:id/click", r.Units.Click)
		}
	}
}
