package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/compara-core/pkg/logger"
)

// Pinger is implemented by the persistent cache tier when one is configured.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cache  Pinger // nil when running memory-only
	logger logger.Logger
}

func NewHealthHandler(cache Pinger, log logger.Logger) *HealthHandler {
	return &HealthHandler{cache: cache, logger: log}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

// ReadinessCheck handles GET /ready. Readiness degrades, it does not fail:
// a down persistent tier still serves requests memory-only.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := gin.H{"memory_cache": "ok"}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.HealthCheck(ctx); err != nil {
			h.logger.Warn("Persistent cache unreachable", "error", err)
			components["persistent_cache"] = "degraded"
		} else {
			components["persistent_cache"] = "ok"
		}
	} else {
		components["persistent_cache"] = "disabled"
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
