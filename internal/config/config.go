package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/adflow-systems/showads-connector/pkg/config"
)

// Config holds the core runtime configuration for a connector instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "showads-connector"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // status/health HTTP port
	MetricsPort int    // Prometheus metrics port

	// Source data
	CustomerDataPath string // path to the customer CSV file
	BatchSize        int    // rows read+validated per provider batch

	// Validation bounds
	MinAge      int
	MaxAge      int
	MinBannerID int
	MaxBannerID int

	// ShowAds API
	ShowAdsBaseURL     string
	ProjectKey         string // credential; may be overridden by secrets manager
	ProjectKeySecretID string // AWS Secrets Manager secret ID (optional)
	AWSRegion          string
	BulkLimit          int           // max records per bulk call
	MaxAttempts        int           // attempts per API call before giving up
	RetryBaseDelay     time.Duration // base backoff delay
	TokenTTL           time.Duration // cached token lifetime (safety margin below server-side 24h)
	HTTPTimeout        time.Duration // per-request connect/read timeout

	// Outbound rate limiting
	RequestsPerSecond int
	Burst             int

	// Delivery journal (both optional)
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DedupTTL    time.Duration // how long a delivered cookie suppresses re-sends
	DatabaseURL string

	// Event publishing (optional)
	NATSURL         string
	DeliverySubject string
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "showads-connector"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Port:        pkgconfig.GetEnvInt("PORT", 9030),
		MetricsPort: pkgconfig.GetEnvInt("METRICS_PORT", 9130),

		CustomerDataPath: pkgconfig.GetEnv("CUSTOMER_DATA_PATH", "./data/data.csv"),
		BatchSize:        pkgconfig.GetEnvInt("BATCH_SIZE", 10000),

		MinAge:      pkgconfig.GetEnvInt("MIN_AGE", 18),
		MaxAge:      pkgconfig.GetEnvInt("MAX_AGE", 100),
		MinBannerID: pkgconfig.GetEnvInt("MIN_BANNER_ID", 0),
		MaxBannerID: pkgconfig.GetEnvInt("MAX_BANNER_ID", 99),

		ShowAdsBaseURL:     pkgconfig.GetEnv("SHOWADS_BASE_URL", "https://api.showads.example.com"),
		ProjectKey:         pkgconfig.GetEnv("PROJECT_KEY", ""),
		ProjectKeySecretID: pkgconfig.GetEnv("PROJECT_KEY_SECRET_ID", ""),
		AWSRegion:          pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		BulkLimit:          pkgconfig.GetEnvInt("BULK_LIMIT", 1000),
		MaxAttempts:        pkgconfig.GetEnvInt("MAX_ATTEMPTS", 5),
		RetryBaseDelay:     pkgconfig.GetEnvDuration("RETRY_BASE_DELAY", time.Second),
		TokenTTL:           pkgconfig.GetEnvDuration("TOKEN_TTL", 23*time.Hour),
		HTTPTimeout:        pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		RequestsPerSecond: pkgconfig.GetEnvInt("REQUESTS_PER_SECOND", 5),
		Burst:             pkgconfig.GetEnvInt("BURST", 10),

		RedisAddr:   pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:     pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:   pkgconfig.GetEnv("REDIS_PASS", ""),
		DedupTTL:    pkgconfig.GetEnvDuration("DEDUP_TTL", 24*time.Hour),
		DatabaseURL: pkgconfig.GetEnv("DATABASE_URL", ""),

		NATSURL:         pkgconfig.GetEnv("NATS_URL", ""),
		DeliverySubject: pkgconfig.GetEnv("DELIVERY_SUBJECT", "evt.showads.delivery.v1"),
	}

	return cfg
}
