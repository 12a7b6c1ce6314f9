package http

import (
	"github.com/gin-gonic/gin"

	"github.com/shelfscore/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/resolve", handler.ResolveProduct)

		scans := v1.Group("/scans")
		{
			scans.POST("", handler.RecordScan)
			scans.DELETE("/:scanId", handler.HideScan)
		}

		v1.GET("/consensus/:identityKey", handler.GetConsensus)
		v1.GET("/stats", handler.GetStats)
		v1.GET("/users/:userId/scans", handler.ListUserScans)
	}

	return router
}
