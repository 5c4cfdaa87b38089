package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/compara-core/internal/api/middleware"
	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/repo"
	"github.com/platformbuilds/compara-core/internal/services"
	"github.com/platformbuilds/compara-core/pkg/cache"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

func testRouter(t *testing.T, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	datasets := repo.NewMemoryDatasetRepository()
	datasets.Put(&models.Dataset{
		ID:      "ds-1",
		OwnerID: "user-1",
		Name:    "Q1 vs Q2",
		Schema: models.SchemaMapping{
			DimensionField: "country",
			KPIFields: []models.KPIField{
				{ColumnName: "revenue", Label: "Revenue", Format: "currency"},
			},
			CategoricalFields: []string{"country"},
		},
		Rows: []models.DatasetRow{
			{SourceGroup: models.GroupA, Columns: map[string]string{"country": "CO", "revenue": "300"}},
			{SourceGroup: models.GroupB, Columns: map[string]string{"country": "CO", "revenue": "200"}},
		},
	})

	insightsCfg := config.InsightsConfig{
		WarningThresholdPct: 10,
		AnomalyThresholdPct: 30,
		NeutralBandPct:      1,
		TopSegments:         3,
	}
	engine := services.NewRuleEngine(insightsCfg, log)
	store := cache.NewMemoryStore(5*time.Minute, log)
	service := services.NewInsightsService(datasets, store, engine, nil, config.AIConfig{
		DefaultLanguage: "es",
		PromptVersion:   "v1",
	}, log)

	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserID, userID)
			c.Next()
		})
	}

	handler := NewInsightsHandler(service, log)
	router.GET("/api/v1/datasets/:id/insights", handler.GetInsights)
	router.DELETE("/api/v1/datasets/:id/insights/cache", handler.InvalidateCache)
	return router
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetInsights_RequiresAuthentication(t *testing.T) {
	router := testRouter(t, "")

	w := doGet(router, "/api/v1/datasets/ds-1/insights")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetInsights_MalformedFilters(t *testing.T) {
	router := testRouter(t, "user-1")

	w := doGet(router, "/api/v1/datasets/ds-1/insights?filters="+url.QueryEscape("not-json"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "filters must be a JSON object")
}

func TestGetInsights_UnknownDataset(t *testing.T) {
	router := testRouter(t, "user-1")

	w := doGet(router, "/api/v1/datasets/nope/insights")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInsights_ForeignDatasetLooksMissing(t *testing.T) {
	router := testRouter(t, "intruder")

	w := doGet(router, "/api/v1/datasets/ds-1/insights")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInsights_MissThenHit(t *testing.T) {
	router := testRouter(t, "user-1")

	first := doGet(router, "/api/v1/datasets/ds-1/insights")
	require.Equal(t, http.StatusOK, first.Code)

	var body struct {
		Status          string          `json:"status"`
		Insights        []models.Insight `json:"insights"`
		NarrativeStatus string          `json:"narrativeStatus"`
		Meta            struct {
			Total            int    `json:"total"`
			CacheStatus      string `json:"cacheStatus"`
			GenerationSource string `json:"generationSource"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "miss", body.Meta.CacheStatus)
	assert.Equal(t, string(models.SourceRuleEngine), body.Meta.GenerationSource)
	assert.Equal(t, string(models.NarrativeNotRequested), body.NarrativeStatus)
	assert.NotEmpty(t, body.Insights)
	assert.Equal(t, len(body.Insights), body.Meta.Total)

	second := doGet(router, "/api/v1/datasets/ds-1/insights")
	require.Equal(t, http.StatusOK, second.Code)
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "hit", body.Meta.CacheStatus)
}

func TestGetInsights_ForceRefreshBypassesCache(t *testing.T) {
	router := testRouter(t, "user-1")

	require.Equal(t, http.StatusOK, doGet(router, "/api/v1/datasets/ds-1/insights").Code)

	w := doGet(router, "/api/v1/datasets/ds-1/insights?forceRefresh=true")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Meta struct {
			CacheStatus string `json:"cacheStatus"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "miss", body.Meta.CacheStatus)
}

func TestInvalidateCache_ForcesRecompute(t *testing.T) {
	router := testRouter(t, "user-1")

	require.Equal(t, http.StatusOK, doGet(router, "/api/v1/datasets/ds-1/insights").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/datasets/ds-1/insights/cache", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	after := doGet(router, "/api/v1/datasets/ds-1/insights")
	require.Equal(t, http.StatusOK, after.Code)

	var body struct {
		Meta struct {
			CacheStatus string `json:"cacheStatus"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(after.Body.Bytes(), &body))
	assert.Equal(t, "miss", body.Meta.CacheStatus)
}

func TestInvalidateCache_ForeignDatasetLooksMissing(t *testing.T) {
	router := testRouter(t, "intruder")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/datasets/ds-1/insights/cache", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler(nil, logger.NewNop())
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)

	health := doGet(router, "/health")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), "healthy")

	ready := doGet(router, "/ready")
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"persistent_cache":"disabled"`)
}
