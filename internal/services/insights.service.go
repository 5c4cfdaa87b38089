package services

import (
	"context"
	"errors"

	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/monitoring"
	"github.com/platformbuilds/compara-core/internal/repo"
	"github.com/platformbuilds/compara-core/pkg/cache"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

// InsightsRequest is one orchestrated insights computation.
type InsightsRequest struct {
	DatasetID    string
	UserID       string
	Filters      models.DashboardFilters
	ForceRefresh bool
	Language     string
	UserContext  string
}

// InsightsResult is what the HTTP layer renders.
type InsightsResult struct {
	Insights          []models.Insight
	NarrativeStatus   models.NarrativeStatus
	BusinessNarrative *models.BusinessNarrative
	FromCache         bool
	GenerationSource  models.GenerationSource
}

// InsightsService orchestrates cache lookup, generator selection and cache
// write-back for a single insights request.
type InsightsService struct {
	datasets  repo.DatasetRepository
	cache     cache.InsightsCache
	engine    *RuleEngine
	narrative NarrativeGenerator // nil disables the AI path globally
	aiCfg     config.AIConfig
	logger    logger.Logger
}

func NewInsightsService(
	datasets repo.DatasetRepository,
	insightsCache cache.InsightsCache,
	engine *RuleEngine,
	narrative NarrativeGenerator,
	aiCfg config.AIConfig,
	log logger.Logger,
) *InsightsService {
	return &InsightsService{
		datasets:  datasets,
		cache:     insightsCache,
		engine:    engine,
		narrative: narrative,
		aiCfg:     aiCfg,
		logger:    log,
	}
}

// Execute runs the per-request state machine:
// ownership check, cache lookup, generation (AI-augmented with fallback to
// rules), best-effort cache write-back.
//
// Concurrent identical misses are not coalesced: both compute and both
// write, last writer wins on the cache.
func (s *InsightsService) Execute(ctx context.Context, req InsightsRequest) (*InsightsResult, error) {
	dataset, err := s.datasets.FindByID(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatch is a not-found, so dataset IDs cannot be probed.
	if dataset.OwnerID != req.UserID {
		return nil, models.ErrDatasetNotFound
	}

	cctx := s.cacheContext(req)

	if !req.ForceRefresh {
		if payload, err := s.cache.FindCached(ctx, req.DatasetID, req.Filters, cctx); err == nil {
			s.logger.Debug("Insights cache hit", "dataset_id", req.DatasetID)
			return resultFromPayload(payload, true), nil
		} else if !errors.Is(err, models.ErrCacheMiss) {
			s.logger.Warn("Insights cache lookup failed, computing live", "dataset_id", req.DatasetID, "error", err)
		}
	}

	payload := s.generate(ctx, dataset, req, cctx.Language)

	// Best-effort write-back: a failed durable write is a durability concern,
	// not a request failure. The computed insights are still returned.
	if err := s.cache.SaveToCache(ctx, req.DatasetID, req.Filters, payload, cctx); err != nil {
		s.logger.Warn("Failed to persist insights to cache", "dataset_id", req.DatasetID, "error", err)
	}

	return resultFromPayload(payload, false), nil
}

// InvalidateCache drops every cached payload for the dataset across all
// tiers. Called after a dataset edit or delete.
func (s *InsightsService) InvalidateCache(ctx context.Context, datasetID, userID string) error {
	dataset, err := s.datasets.FindByID(ctx, datasetID)
	if err != nil {
		return err
	}
	if dataset.OwnerID != userID {
		return models.ErrDatasetNotFound
	}
	return s.cache.Invalidate(ctx, datasetID)
}

// generate selects the generation path. The AI path layers a narrative on
// the rule-engine insights; any AI failure degrades to rules-only and is
// never propagated to the caller.
func (s *InsightsService) generate(ctx context.Context, dataset *models.Dataset, req InsightsRequest, language string) *models.CachedInsightsPayload {
	analysis := s.engine.Analyze(dataset, req.Filters)
	insights := s.engine.Synthesize(dataset, analysis)

	payload := &models.CachedInsightsPayload{
		Insights:        insights,
		NarrativeStatus: models.NarrativeNotRequested,
	}

	if !s.aiEnabled(dataset) {
		monitoring.RecordInsightsGeneration(string(models.SourceRuleEngine))
		return payload
	}

	narrative, err := s.narrative.GenerateNarrative(ctx, NarrativeRequest{
		Dataset:     dataset,
		Analysis:    analysis,
		Insights:    insights,
		Language:    language,
		UserContext: req.UserContext,
	})
	if err != nil {
		s.logger.Warn("Narrative generation failed, falling back to rule-engine insights",
			"dataset_id", dataset.ID, "error", err)
		payload.NarrativeStatus = models.NarrativeFailed
		monitoring.RecordInsightsGeneration(string(models.SourceRuleEngine))
		return payload
	}

	payload.NarrativeStatus = models.NarrativeGenerated
	payload.BusinessNarrative = narrative
	monitoring.RecordInsightsGeneration(string(models.SourceAIModel))
	return payload
}

func (s *InsightsService) aiEnabled(dataset *models.Dataset) bool {
	return s.aiCfg.Enabled && dataset.AI.Enabled && s.narrative != nil
}

func (s *InsightsService) cacheContext(req InsightsRequest) models.CacheContext {
	language := req.Language
	if language == "" {
		language = s.aiCfg.DefaultLanguage
	}
	return models.CacheContext{Language: language, PromptVersion: s.aiCfg.PromptVersion}
}

func resultFromPayload(payload *models.CachedInsightsPayload, fromCache bool) *InsightsResult {
	source := models.SourceRuleEngine
	if payload.NarrativeStatus == models.NarrativeGenerated {
		source = models.SourceAIModel
	}
	return &InsightsResult{
		Insights:          payload.Insights,
		NarrativeStatus:   payload.NarrativeStatus,
		BusinessNarrative: payload.BusinessNarrative,
		FromCache:         fromCache,
		GenerationSource:  source,
	}
}
