// Package api implements the read-only HTTP JSON interface over
// stored candles, ticker snapshots, and on-the-fly indicator
// computation, following the teacher's gin+cors server construction
// idiom (internal/api/server.go in the original trading bot).
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"smartchart-ingest/config"
	"smartchart-ingest/internal/cache"
	"smartchart-ingest/internal/database"
	"smartchart-ingest/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the read-only candle/indicator HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	cache      *cache.IndicatorCache
	logger     *logging.Logger
	config     config.ServerConfig
}

// NewServer builds a Server and wires its routes.
func NewServer(cfg config.ServerConfig, repo *database.Repository, indicatorCache *cache.IndicatorCache, logger *logging.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router,
		repo:   repo,
		cache:  indicatorCache,
		logger: logger.WithComponent("api"),
		config: cfg,
	}

	router.Use(s.traceAndMetricsMiddleware())
	s.setupRoutes()
	return s
}

// traceAndMetricsMiddleware attaches a uuid trace ID to every request
// (per SPEC_FULL.md §4.I) and records api_requests_total.
func (s *Server) traceAndMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.NewString()
		c.Set("logger", s.logger.WithTraceID(traceID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		recordAPIRequest(route, c.Writer.Status())
	}
}

func (s *Server) requestLogger(c *gin.Context) *logging.Logger {
	if l, ok := c.Get("logger"); ok {
		if logger, ok := l.(*logging.Logger); ok {
			return logger
		}
	}
	return s.logger
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/candles/:symbol", s.handleGetCandles)
		api.GET("/symbols", s.handleGetSymbols)
		api.GET("/indicators/:indicator/:symbol", s.handleGetIndicator)
		api.GET("/test-db", s.handleTestDB)
	}
}

// Start runs the HTTP server until it is shut down or fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting read API", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("read API server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down read API")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "healthy"})
}

func (s *Server) handleTestDB(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		s.requestLogger(c).Error("test-db query failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "database unreachable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "database reachable"})
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
