package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Backing store (Supabase PostgREST)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// External IPCA index lookup
	IPCAAPIURL  string
	IPCATimeout time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience (reads only; writes are single-shot)
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CorrectionCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth glue: tokens are issued by the external auth service; this
	// service only validates them. AuthRequired=false skips the
	// middleware for local development.
	JWTSecret    string
	AuthRequired bool

	// CORS
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		IPCAAPIURL:  getEnv("IPCA_API_URL", "http://localhost:8091"),
		IPCATimeout: getEnvDuration("IPCA_TIMEOUT", 5*time.Second),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CorrectionCacheTTL: getEnvDuration("CORRECTION_CACHE_TTL", 12*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:    getEnv("JWT_SECRET", "gestor-default-dev-secret-change-me"),
		AuthRequired: getEnv("AUTH_REQUIRED", "false") == "true",

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
