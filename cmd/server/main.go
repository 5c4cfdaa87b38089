package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/compara-core/internal/api"
	"github.com/platformbuilds/compara-core/internal/api/handlers"
	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/repo"
	"github.com/platformbuilds/compara-core/internal/services"
	"github.com/platformbuilds/compara-core/pkg/cache"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting COMPARA-CORE", "environment", cfg.Environment)

	// Cache tiers: in-process memory first, Valkey as the durable source of
	// truth. A missing Valkey degrades to memory-only rather than refusing
	// to boot.
	memoryTier := cache.NewMemoryStore(time.Duration(cfg.Cache.MemoryTTL)*time.Second, logger)
	tiers := []cache.InsightsCache{memoryTier}

	var cachePing *cache.ValkeyStore
	valkeyTier, err := cache.NewValkeyStore(
		cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password,
		time.Duration(cfg.Cache.TTL)*time.Second, logger,
	)
	if err != nil {
		logger.Warn("Valkey unavailable, running memory-cache only; cached insights will not survive restarts", "error", err)
	} else {
		tiers = append(tiers, valkeyTier)
		cachePing = valkeyTier
		logger.Info("Valkey cache tier initialized", "addr", cfg.Cache.Addr, "ttl_seconds", cfg.Cache.TTL)
	}
	tieredCache := cache.NewTieredCache(logger, tiers...)

	datasets := repo.NewMemoryDatasetRepository()
	if cfg.Datasets.SeedPath != "" {
		seeded, err := repo.NewMemoryDatasetRepositoryFromFile(cfg.Datasets.SeedPath)
		if err != nil {
			logger.Fatal("Failed to load dataset seed file", "path", cfg.Datasets.SeedPath, "error", err)
		}
		datasets = seeded
		logger.Info("Dataset repository seeded", "path", cfg.Datasets.SeedPath)
	}

	engine := services.NewRuleEngine(cfg.Insights, logger)

	var narrative services.NarrativeGenerator
	if cfg.AI.Enabled {
		narrative, err = services.NewOpenAINarrativeGenerator(cfg.AI, cfg.Insights.TopSegments, logger)
		if err != nil {
			logger.Fatal("Failed to initialize narrative generator", "error", err)
		}
		logger.Info("Narrative generator initialized", "provider", cfg.AI.Provider, "model", cfg.AI.OpenAI.Model)
	}

	insights := services.NewInsightsService(datasets, tieredCache, engine, narrative, cfg.AI, logger)

	var ping handlers.Pinger
	if cachePing != nil {
		ping = cachePing
	}
	apiServer := api.NewServer(cfg, logger, insights, ping)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}

	logger.Info("COMPARA-CORE shutdown complete")
}
