package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Proxy     ProxyConfig
	Jobs      JobsConfig
	Networks  NetworksConfig
	Pricing   PricingConfig
	Notifier  NotifierConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int
	Host          string
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	IdleTimeout   int // seconds
	MaxBodySizeKB int
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds per-IP rate limiting settings for the HTTP API
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// JobsConfig holds the periodic job settings. Cron expressions use the
// standard five-field syntax.
type JobsConfig struct {
	VerifyCronExpression   string
	BackfillCronExpression string
	// VerifyConcurrentJobs caps in-flight verification jobs. Etherscan's
	// free plan allows 5 req/s, so this stays in low single digits.
	VerifyConcurrentJobs int
	// ResolveTimeout bounds every network transaction lookup (seconds).
	ResolveTimeout int
}

// NetworksConfig points at the chain configuration files
type NetworksConfig struct {
	// File is a YAML file listing supported networks and their endpoints.
	File string
	// TokensFile is a TOML registry of non-native tokens per network.
	TokensFile string
}

// PricingConfig holds the historic price oracle settings
type PricingConfig struct {
	OracleBaseURL string
	// Currencies whose market price is unreliable or absent at donation
	// creation time; the backfill job repairs these.
	BackfillCurrencies []string
	RequestTimeout     int // seconds
}

// NotifierConfig holds the terminal-transition webhook settings
type NotifierConfig struct {
	WebhookURL     string
	RequestTimeout int // seconds
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first, if present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvInt("PORT", 8080),
			Host:          getEnv("HOST", "0.0.0.0"),
			ReadTimeout:   getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:  getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:   getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			MaxBodySizeKB: getEnvInt("SERVER_MAX_BODY_SIZE_KB", 64),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/donationwatch.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "none"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Jobs: JobsConfig{
			VerifyCronExpression:   getEnv("VERIFY_CRON_EXPRESSION", "0 * * * *"),
			BackfillCronExpression: getEnv("PRICE_BACKFILL_CRON_EXPRESSION", "0 0 * * *"),
			VerifyConcurrentJobs:   getEnvInt("VERIFY_CONCURRENT_JOBS", 1),
			ResolveTimeout:         getEnvInt("RESOLVE_TIMEOUT", 30),
		},
		Networks: NetworksConfig{
			File:       getEnv("NETWORKS_FILE", "./config/networks.yaml"),
			TokensFile: getEnv("TOKENS_FILE", "./config/tokens.toml"),
		},
		Pricing: PricingConfig{
			OracleBaseURL:      getEnv("PRICE_ORACLE_URL", ""),
			BackfillCurrencies: getEnvStringSlice("PRICE_BACKFILL_CURRENCIES", []string{"GIV"}),
			RequestTimeout:     getEnvInt("PRICE_ORACLE_TIMEOUT", 15),
		},
		Notifier: NotifierConfig{
			WebhookURL:     getEnv("NOTIFIER_WEBHOOK_URL", ""),
			RequestTimeout: getEnvInt("NOTIFIER_TIMEOUT", 10),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
