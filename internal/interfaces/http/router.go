package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

func NewRouter(epochs domain.EpochRepository, pools domain.PoolRepository, accounts domain.AccountRepository, logger *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(),
		RateLimitMiddleware(100, 200),
	)

	handler := NewHandler(epochs, pools, accounts, logger)

	router.GET("/health", handler.GetHealth)
	router.GET("/ready", handler.GetReadiness)

	api := router.Group("/ada")
	{
		api.GET("/accounts/:address/history", handler.GetAccountHistory)
		api.GET("/pools/:poolID/history", handler.GetPoolHistory)
	}

	router.GET("/stats", handler.GetStats)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
