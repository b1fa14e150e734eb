package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	portssvc "github.com/ledgerconsole/fee_gateway/internal/core/ports/services"
	"github.com/ledgerconsole/fee_gateway/internal/middleware"
	"github.com/ledgerconsole/fee_gateway/internal/platform/config"
)

// RegisterRoutes sets up all the API routes on the given router group.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, services *portssvc.ServiceContainer, limiterInstance *limiter.Limiter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	feeHandler := newFeeHandler(services.FeeCalculation)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.OrganizationMiddleware(cfg.OrgHeaderRequired))
	{
		ledgers := apiV1.Group("/ledgers/:ledgerID/fees")
		{
			// Calculation fans out to the engine, so it carries the rate limit.
			ledgers.POST("/calculate", middleware.RateLimit(limiterInstance), feeHandler.calculateFees)
			ledgers.POST("/validate", feeHandler.validateRequest)
		}

		fees := apiV1.Group("/fees")
		{
			fees.GET("/packages", feeHandler.listFeePackages)
			fees.GET("/packages/:packageID", feeHandler.getFeePackage)
			fees.DELETE("/packages/cache", feeHandler.clearPackageCache)
			fees.GET("/status", feeHandler.serviceStatus)
		}
	}
}
