// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks that the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store   Pinger
	driver  string
	version string

	// stats reports connection pool statistics; nil for drivers without a pool.
	stats func() any
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, driver, version string, stats func() any) *HealthHandler {
	return &HealthHandler{store: store, driver: driver, version: version, stats: stats}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"storage": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"storage": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "apiresource",
		"version": h.version,
		"storage": h.driver,
	}
	if h.stats != nil {
		info["pool"] = h.stats()
	}
	c.JSON(http.StatusOK, info)
}
