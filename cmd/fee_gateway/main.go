package main

import (
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ledgerconsole/fee_gateway/internal/adapters/feeengine"
	portssvc "github.com/ledgerconsole/fee_gateway/internal/core/ports/services"
	"github.com/ledgerconsole/fee_gateway/internal/core/services"
	"github.com/ledgerconsole/fee_gateway/internal/handlers"
	"github.com/ledgerconsole/fee_gateway/internal/middleware"
	"github.com/ledgerconsole/fee_gateway/internal/platform/cache"
	"github.com/ledgerconsole/fee_gateway/internal/platform/config"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire the fee pipeline: engine client behind the breaker, package
	// cache, and the calculation service on top.
	engineClient := feeengine.NewClient(cfg, logger)
	packageCache := cache.NewFeePackageCache(cfg.PackageCacheSize, cfg.PackageCacheTTL)
	feeService := services.NewFeeService(cfg, engineClient, packageCache, logger)

	serviceContainer := &portssvc.ServiceContainer{
		FeeCalculation: feeService,
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.OrgHeader},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
	}))

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid rate limit configuration", slog.String("rate_limit", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}
	limiterInstance := limiter.New(memory.NewStore(), rate)

	handlers.RegisterRoutes(r, cfg, serviceContainer, limiterInstance)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
