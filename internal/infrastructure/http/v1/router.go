package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"apiresource/internal/dispatcher"
	"apiresource/internal/infrastructure/http/v1/handlers"
	"apiresource/internal/infrastructure/http/v1/middleware"
	"apiresource/internal/infrastructure/metrics"
	"apiresource/internal/metadata"
	"apiresource/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Dispatcher runs resource operations.
	Dispatcher *dispatcher.Dispatcher

	// BasePath is the prefix of resource routes, e.g. "/api".
	BasePath string

	// MaxBodyBytes limits request bodies; 0 selects the default.
	MaxBodyBytes int64

	// MetadataRegistry documents registered resources.
	MetadataRegistry *metadata.Registry

	// Store is checked by the readiness probe.
	Store handlers.Pinger

	// StorageDriver and PoolStats are reported by /health/info.
	StorageDriver string
	PoolStats     func() any

	Version string

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation; nil disables authentication.
	JWTValidator middleware.JWTValidator

	// Metrics enables /metrics and request instrumentation when set.
	Metrics *metrics.Metrics
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	// Global middleware (order matters!). Recovery sits inside ErrorHandler
	// so that a recovered panic is still rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery(cfg.Logger))

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.StorageDriver, cfg.Version, cfg.PoolStats)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.MetadataRegistry != nil {
		RegisterMetaRoutes(&router.RouterGroup, handlers.NewMetadataHandler(base, cfg.MetadataRegistry))
	}

	apiHandler := handlers.NewAPIHandler(base, cfg.Dispatcher, cfg.MaxBodyBytes)
	RegisterAPIRoutes(router, cfg.BasePath, apiHandler, middleware.OptionalAuth(cfg.JWTValidator))

	return router
}

// NewHandler wraps the router with response compression when enabled.
func NewHandler(router *gin.Engine, compress bool) http.Handler {
	if !compress {
		return router
	}
	return gzhttp.GzipHandler(router)
}
