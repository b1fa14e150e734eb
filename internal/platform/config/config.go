package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port         string
	IsProduction bool

	// Fee engine integration
	FeesEnabled       bool
	FeeEngineBaseURL  string
	FeePackageBaseURL string
	OrgHeaderRequired bool

	// Outbound call tuning
	EngineRequestTimeout time.Duration
	RetryMaxAttempts     int
	RetryInitialBackoff  time.Duration
	RetryBackoffFactor   int
	RetryMaxBackoff      time.Duration

	// Circuit breaker
	BreakerFailureThreshold uint32
	BreakerRecoveryTimeout  time.Duration

	// Fee package cache
	PackageCacheSize int
	PackageCacheTTL  time.Duration

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimit          string // ulule/limiter format, e.g. "100-M"
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("FEES_ENABLED", true)
	viper.SetDefault("FEE_ENGINE_BASE_URL", "")
	viper.SetDefault("FEE_PACKAGE_BASE_URL", "")
	viper.SetDefault("ORG_HEADER_REQUIRED", true)
	viper.SetDefault("ENGINE_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("RETRY_INITIAL_BACKOFF", "1s")
	viper.SetDefault("RETRY_BACKOFF_FACTOR", 2)
	viper.SetDefault("RETRY_MAX_BACKOFF", "10s")
	viper.SetDefault("BREAKER_FAILURE_THRESHOLD", 5)
	viper.SetDefault("BREAKER_RECOVERY_TIMEOUT", "60s")
	viper.SetDefault("PACKAGE_CACHE_SIZE", 100)
	viper.SetDefault("PACKAGE_CACHE_TTL", "5m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("RATE_LIMIT", "100-M")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.FeesEnabled = viper.GetBool("FEES_ENABLED")
	cfg.FeeEngineBaseURL = viper.GetString("FEE_ENGINE_BASE_URL")
	if cfg.FeeEngineBaseURL == "" {
		// Not fatal at boot: the status endpoint and calculation calls
		// report this as a configuration error instead.
		log.Println("Warning: FEE_ENGINE_BASE_URL environment variable not set. Fee calculation will be unavailable.")
	}
	cfg.FeePackageBaseURL = viper.GetString("FEE_PACKAGE_BASE_URL")
	if cfg.FeePackageBaseURL == "" {
		cfg.FeePackageBaseURL = cfg.FeeEngineBaseURL
	}
	cfg.OrgHeaderRequired = viper.GetBool("ORG_HEADER_REQUIRED")

	cfg.EngineRequestTimeout = durationOrDefault("ENGINE_REQUEST_TIMEOUT", 30*time.Second)
	cfg.RetryMaxAttempts = viper.GetInt("RETRY_MAX_ATTEMPTS")
	cfg.RetryInitialBackoff = durationOrDefault("RETRY_INITIAL_BACKOFF", time.Second)
	cfg.RetryBackoffFactor = viper.GetInt("RETRY_BACKOFF_FACTOR")
	cfg.RetryMaxBackoff = durationOrDefault("RETRY_MAX_BACKOFF", 10*time.Second)

	cfg.BreakerFailureThreshold = viper.GetUint32("BREAKER_FAILURE_THRESHOLD")
	cfg.BreakerRecoveryTimeout = durationOrDefault("BREAKER_RECOVERY_TIMEOUT", 60*time.Second)

	cfg.PackageCacheSize = viper.GetInt("PACKAGE_CACHE_SIZE")
	cfg.PackageCacheTTL = durationOrDefault("PACKAGE_CACHE_TTL", 5*time.Minute)

	cfg.CORSAllowedOrigins = viper.GetStringSlice("CORS_ALLOWED_ORIGINS")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	return cfg, nil
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}
