package handler

import (
	"github.com/SergeiKhy/shorturls/internal/metrics"
	"github.com/SergeiKhy/shorturls/internal/middleware"
	"github.com/SergeiKhy/shorturls/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig собирает зависимости HTTP-слоя
type RouterConfig struct {
	LinkService service.LinkService
	Store       Pinger
	Metrics     *metrics.Metrics
	// Gatherer nil отключает /metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	BaseURL  string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		cfg.Metrics.Middleware(),
	)

	linkHandler := NewLinkHandler(cfg.LinkService, cfg.BaseURL, logger)

	router.GET("/health", HealthCheck(cfg.Store, logger))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	AddSwaggerRoutes(router)

	shorturls := router.Group("/shorturls")
	{
		shorturls.POST("", linkHandler.CreateShortURL)
		shorturls.GET("/:code", linkHandler.Redirect)
		shorturls.GET("/:code/stats", linkHandler.GetStats)
	}

	// Редирект по корневому пути
	router.GET("/:code", linkHandler.Redirect)

	return router
}
