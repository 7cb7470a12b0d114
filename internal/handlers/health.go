package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/territory-mapper/internal/errors"
	"github.com/stwalsh4118/territory-mapper/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for dependency health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named readiness probe.
type Check struct {
	Name   string
	Pinger Pinger
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	checks    []Check
	startTime time.Time
	env       string
	registry  string
}

// NewHealthHandler creates a new HealthHandler instance. registrySource is
// reported by Info; checks run in order on every readiness probe.
func NewHealthHandler(env, registrySource string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		env:       env,
		registry:  registrySource,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Registry    string `json:"registry"`
	Uptime      string `json:"uptime"`
}

// Health handles GET /health endpoint.
// This is a basic health check that always returns 200 OK.
// It does not check any dependencies and is used for basic liveness checks.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready endpoint.
// It pings every registered dependency (unit registry, shared cache) and
// returns 503 with the per-check results if any of them fails.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			healthy = false
			results[check.Name] = "unavailable"
			if log := middleware.GetLogger(c); log != nil {
				log.Error("Health check failed", err, map[string]interface{}{
					"check":   check.Name,
					"timeout": HealthCheckTimeout.String(),
				})
			}
			continue
		}
		results[check.Name] = "ok"
	}

	if !healthy {
		details := make(map[string]interface{}, len(results))
		for name, status := range results {
			details[name] = status
		}
		apierrors.ServiceUnavailable(c, "One or more dependencies are unavailable", details)
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: results,
	})
}

// Info handles GET /api/v1/info endpoint.
// Returns API metadata including version, environment, and uptime.
func (h *HealthHandler) Info(c *gin.Context) {
	uptime := time.Since(h.startTime)

	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Registry:    h.registry,
		Uptime:      formatUptime(uptime),
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
