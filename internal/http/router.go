package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, env string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/vehicles/:id/validations", handler.validateVehicleTrips)
		protected.GET("/vehicles/:id/recovery-scenarios", handler.analyzeDataRecovery)
		protected.GET("/data-quality/summary", handler.dataQualitySummary)

		protected.GET("/edge-cases", handler.systemWideEdgeCases)
		protected.PUT("/edge-cases/:id/resolution", handler.updateEdgeCaseResolution)

		protected.GET("/audit-trail", handler.searchAuditTrail)
		protected.GET("/audit-trail/stats", handler.auditTrailStats)
		protected.GET("/audit-trail/export", handler.exportAuditTrail)
	}

	return router
}
