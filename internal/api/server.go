package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/compara-core/internal/api/handlers"
	"github.com/platformbuilds/compara-core/internal/api/middleware"
	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/monitoring"
	"github.com/platformbuilds/compara-core/internal/services"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	insights   *services.InsightsService
	cachePing  handlers.Pinger
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	insights *services.InsightsService,
	cachePing handlers.Pinger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:    cfg,
		logger:    log,
		insights:  insights,
		cachePing: cachePing,
		router:    gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(monitoring.HTTPMetricsMiddleware())

	if s.config.Auth.Enabled {
		s.router.Use(middleware.AuthMiddleware(s.config.Auth))
	} else {
		s.router.Use(middleware.NoAuthMiddleware())
		s.logger.Warn("Authentication is DISABLED by configuration; requests will use an anonymous user")
	}

	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cachePing, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	insightsHandler := handlers.NewInsightsHandler(s.insights, s.logger)

	v1 := s.router.Group("/api/v1")
	v1.GET("/datasets/:id/insights", insightsHandler.GetInsights)
	v1.DELETE("/datasets/:id/insights/cache", insightsHandler.InvalidateCache)
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
