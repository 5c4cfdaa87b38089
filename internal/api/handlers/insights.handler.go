package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/compara-core/internal/api/middleware"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/services"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

// InsightsHandler exposes the insights pipeline over HTTP.
type InsightsHandler struct {
	service *services.InsightsService
	logger  logger.Logger
}

func NewInsightsHandler(service *services.InsightsService, log logger.Logger) *InsightsHandler {
	return &InsightsHandler{service: service, logger: log}
}

// insightsMeta is the response envelope metadata the dashboard renders.
type insightsMeta struct {
	Total            int                     `json:"total"`
	CacheStatus      string                  `json:"cacheStatus"` // "hit" | "miss"
	GenerationSource models.GenerationSource `json:"generationSource"`
	GenerationTimeMs int64                   `json:"generationTimeMs"`
	GeneratedAt      time.Time               `json:"generatedAt"`
}

// GetInsights handles GET /api/v1/datasets/:id/insights.
// Filters arrive as a JSON-encoded `filters` query parameter; `forceRefresh`
// bypasses both cache tiers.
func (h *InsightsHandler) GetInsights(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "Authentication required"})
		return
	}

	filters, err := parseFilters(c.Query("filters"))
	if err != nil {
		h.logger.Warn("Malformed filters parameter", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "filters must be a JSON object"})
		return
	}

	start := time.Now()
	result, err := h.service.Execute(c.Request.Context(), services.InsightsRequest{
		DatasetID:    c.Param("id"),
		UserID:       userID,
		Filters:      filters,
		ForceRefresh: c.Query("forceRefresh") == "true",
		Language:     c.Query("language"),
		UserContext:  c.Query("context"),
	})
	if err != nil {
		if errors.Is(err, models.ErrDatasetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "Dataset not found"})
			return
		}
		h.logger.Error("Insights generation failed", "dataset_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Insights generation failed"})
		return
	}

	cacheStatus := "miss"
	if result.FromCache {
		cacheStatus = "hit"
	}

	response := gin.H{
		"status":          "success",
		"insights":        result.Insights,
		"narrativeStatus": result.NarrativeStatus,
		"meta": insightsMeta{
			Total:            len(result.Insights),
			CacheStatus:      cacheStatus,
			GenerationSource: result.GenerationSource,
			GenerationTimeMs: time.Since(start).Milliseconds(),
			GeneratedAt:      time.Now().UTC(),
		},
	}
	if result.BusinessNarrative != nil {
		response["businessNarrative"] = result.BusinessNarrative
	}

	c.JSON(http.StatusOK, response)
}

// InvalidateCache handles DELETE /api/v1/datasets/:id/insights/cache.
// The dataset service calls this after an edit or delete.
func (h *InsightsHandler) InvalidateCache(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "Authentication required"})
		return
	}

	err := h.service.InvalidateCache(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, models.ErrDatasetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "Dataset not found"})
			return
		}
		h.logger.Error("Cache invalidation failed", "dataset_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Cache invalidation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func parseFilters(raw string) (models.DashboardFilters, error) {
	var filters models.DashboardFilters
	if raw == "" {
		return filters, nil
	}
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return models.DashboardFilters{}, models.ErrInvalidFilters
	}
	return filters, nil
}
