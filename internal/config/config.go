package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	BackendBaseURL     string
	BackendTimeout     time.Duration
	BackendMaxAttempts int
	BackendBackoff     time.Duration
	BackendBreakerMin  int
	BackendBreakerOpen time.Duration

	// DatabaseURL is optional; audit persistence is disabled without it.
	DatabaseURL string
	RedisURL    string

	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	JWTClockSkew     time.Duration
	AccessCookieName string

	CORSAllowedOrigins []string
	CSRFHeader         string
	BodyLimitBytes     int64
	HSTSMaxAge         int
	TenantBaseDomain   string
	DefaultStoreID     string

	OriginPostalCode  string
	CatalogCacheTTL   time.Duration
	CatalogPerPage    int
	CatalogMaxPerPage int
	AnalyticsCacheTTL time.Duration
	LowStockThreshold int64
	IdempotencyTTL    time.Duration
	RateLimit         string
	CheckoutRateLimit string

	WorkerConcurrency int
	TaskMaxRetry      int
	TaskUniqueTTL     time.Duration

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv: valueOrDefault(k.String("APP_ENV"), "development"),
		Port:   valueOrDefault(k.String("PORT"), "8080"),

		BackendBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "5s"),
		BackendMaxAttempts: parseInt(k.String("BACKEND_MAX_ATTEMPTS"), 3),
		BackendBackoff:     parseDuration(k.String("BACKEND_BACKOFF"), "150ms"),
		BackendBreakerMin:  parseInt(k.String("BACKEND_BREAKER_MIN_REQUESTS"), 20),
		BackendBreakerOpen: parseDuration(k.String("BACKEND_BREAKER_OPEN_FOR"), "30s"),

		DatabaseURL: strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(k.String("REDIS_URL")),

		JWTSecret:        k.String("JWT_SECRET"),
		JWTIssuer:        strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:      strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTClockSkew:     parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		AccessCookieName: valueOrDefault(k.String("ACCESS_COOKIE_NAME"), "access_token"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CSRFHeader:         valueOrDefault(k.String("CSRF_HEADER"), "X-CSRF-Token"),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		HSTSMaxAge:         parseNonNegative(k.String("SECURE_HSTS_MAX_AGE"), 0),
		TenantBaseDomain:   strings.TrimSpace(k.String("TENANT_BASE_DOMAIN")),
		DefaultStoreID:     strings.TrimSpace(k.String("DEFAULT_STORE_ID")),

		OriginPostalCode:  valueOrDefault(k.String("ORIGIN_POSTAL_CODE"), "40111"),
		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogPerPage:    parseInt(k.String("CATALOG_PER_PAGE"), 20),
		CatalogMaxPerPage: parseInt(k.String("CATALOG_MAX_PER_PAGE"), 100),
		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "5m"),
		LowStockThreshold: int64(parseInt(k.String("LOW_STOCK_THRESHOLD"), 5)),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:         valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		CheckoutRateLimit: valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "10-M"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 10),
		TaskMaxRetry:      parseInt(k.String("TASK_MAX_RETRY"), 5),
		TaskUniqueTTL:     parseDuration(k.String("TASK_UNIQUE_TTL"), "10m"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storefront"),
		MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
	}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if u, err := url.Parse(cfg.BackendBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is not an absolute url: %q", cfg.BackendBaseURL)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.CatalogMaxPerPage < cfg.CatalogPerPage {
		cfg.CatalogMaxPerPage = cfg.CatalogPerPage
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AuditEnabled reports whether a database was configured for audit records.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseNonNegative(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
