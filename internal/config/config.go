package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	Port     string
	LogLevel string

	// HTTP edge
	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	TrustProxy      bool

	// Spreadsheet store
	StoreBackend          string
	SpreadsheetID         string
	GoogleCredentialsFile string
	StoreTimeout          time.Duration
	StoreRetryMax         int
	StoreRetryBackoff     time.Duration
	BreakerMaxFailures    int
	BreakerResetTimeout   time.Duration
	CacheTTL              time.Duration
	SchemaConfigPath      string

	// Auth
	JWTSecret string
	JWTExpiry time.Duration
	JWTIssuer string

	// Image offload
	ImageBucket    string
	ImagePublicURL string
	ImageMaxBytes  int

	// Trigger framework
	TriggerRetryMax     int
	TriggerRetryBackoff time.Duration
	TriggerRPCTimeout   time.Duration
}

func Load() Config {
	return Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CORSOrigins:           getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitMax:          getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:       getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		TrustProxy:            getEnvBool("TRUST_PROXY", false),
		StoreBackend:          getEnv("STORE_BACKEND", BackendSheets),
		SpreadsheetID:         getEnv("SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		StoreTimeout:          getEnvDuration("STORE_TIMEOUT", 15*time.Second),
		StoreRetryMax:         getEnvInt("STORE_RETRY_MAX", 2),
		StoreRetryBackoff:     getEnvDuration("STORE_RETRY_BACKOFF", 200*time.Millisecond),
		BreakerMaxFailures:    getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout:   getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		CacheTTL:              getEnvDuration("CACHE_TTL", 5*time.Minute),
		SchemaConfigPath:      getEnv("SCHEMA_CONFIG_PATH", ""),
		JWTSecret:             getEnvRequired("JWT_SECRET"),
		JWTExpiry:             getEnvDuration("JWT_EXPIRY", 720*time.Hour),
		JWTIssuer:             getEnv("JWT_ISSUER", "sheetcms"),
		ImageBucket:           getEnv("IMAGE_BUCKET", ""),
		ImagePublicURL:        getEnv("IMAGE_PUBLIC_URL", ""),
		ImageMaxBytes:         getEnvInt("IMAGE_MAX_BYTES", 5<<20),
		TriggerRetryMax:       getEnvInt("TRIGGER_RETRY_MAX", 3),
		TriggerRetryBackoff:   getEnvDuration("TRIGGER_RETRY_BACKOFF", 100*time.Millisecond),
		TriggerRPCTimeout:     getEnvDuration("TRIGGER_RPC_TIMEOUT", 5*time.Second),
	}
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	switch c.StoreBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			errs = multierror.Append(errs, fmt.Errorf("SPREADSHEET_ID is required with STORE_BACKEND=%s", BackendSheets))
		}
	case BackendMemory:
	default:
		errs = multierror.Append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendSheets, BackendMemory, c.StoreBackend))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.StoreTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("STORE_TIMEOUT must be positive"))
	}
	if c.StoreRetryMax < 0 {
		errs = multierror.Append(errs, fmt.Errorf("STORE_RETRY_MAX must not be negative"))
	}
	if c.BreakerMaxFailures < 1 {
		errs = multierror.Append(errs, fmt.Errorf("BREAKER_MAX_FAILURES must be at least 1"))
	}
	if c.RateLimitMax < 0 {
		errs = multierror.Append(errs, fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must not be negative"))
	}
	if c.RateLimitMax > 0 && c.RateLimitWindow <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.ImageMaxBytes < 1 {
		errs = multierror.Append(errs, fmt.Errorf("IMAGE_MAX_BYTES must be positive"))
	}
	if c.CacheTTL <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("CACHE_TTL must be positive"))
	}
	if c.JWTExpiry <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("JWT_EXPIRY must be positive"))
	}
	if len(c.JWTSecret) < 16 {
		errs = multierror.Append(errs, fmt.Errorf("JWT_SECRET must be at least 16 characters"))
	}
	return errs.ErrorOrNil()
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return b
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
