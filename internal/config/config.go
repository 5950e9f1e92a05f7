package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PlaceholderBackendURL is substituted when no backend endpoint is configured.
// Requests against it fail fast, which the portal treats as "offline".
const PlaceholderBackendURL = "https://placeholder.supabase.co"

// Config aggregates runtime configuration for the portal.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	StaticDir      string

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	BackendURL     string
	BackendAPIKey  string
	BackendJWTKey  string
	RequestTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleAllowedDomains []string
	GoogleAllowedEmails  []string
	FrontendURL          string

	ProfileRetries    int
	ProfileBackoff    time.Duration
	SignupDelay       time.Duration
	LocalProfileDelay time.Duration
	ClientIdleTTL     time.Duration
	OutboxInterval    time.Duration
	AuthRatePerSecond int
	AuthRateBurst     int

	// Warnings collects non-fatal problems found while loading, logged once the logger exists.
	Warnings []string
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/pecportal_database_url")
	if err != nil {
		return Config{}, err
	}

	backendURL, err := lookupFirst([]string{"SUPABASE_URL", "VITE_SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"}, "/run/secrets/pecportal_supabase_url")
	if err != nil {
		return Config{}, err
	}

	backendKey, err := lookupFirst([]string{"SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"}, "/run/secrets/pecportal_supabase_anon_key")
	if err != nil {
		return Config{}, err
	}

	jwtKey, err := getEnvOrFile("SUPABASE_JWT_SECRET", "/run/secrets/pecportal_jwt_secret")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		DatabaseURL:          databaseURL,
		DataStore:            strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins:       parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		StaticDir:            getEnv("WEB_DIST_PATH", "web/dist"),
		BackendURL:           strings.TrimRight(strings.TrimSpace(backendURL), "/"),
		BackendAPIKey:        strings.TrimSpace(backendKey),
		BackendJWTKey:        strings.TrimSpace(jwtKey),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		GoogleClientID:       strings.TrimSpace(getEnv("AUTH_GOOGLE_CLIENT_ID", "")),
		GoogleClientSecret:   strings.TrimSpace(googleSecret),
		GoogleRedirectURL:    getEnv("AUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		GoogleAllowedDomains: parseCSV(getEnv("AUTH_GOOGLE_ALLOWED_DOMAINS", "")),
		GoogleAllowedEmails:  parseCSV(getEnv("AUTH_GOOGLE_ALLOWED_EMAILS", "")),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if raw := strings.TrimSpace(os.Getenv("TRUST_PROXY_HEADERS")); raw != "" {
		if cfg.TrustProxyHeaders, err = strconv.ParseBool(raw); err != nil {
			return Config{}, fmt.Errorf("invalid TRUST_PROXY_HEADERS %q: %w", raw, err)
		}
	}

	if cfg.ProfileRetries, err = getEnvInt("PROFILE_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if cfg.AuthRatePerSecond, err = getEnvInt("AUTH_RATE_PER_SECOND", 5); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateBurst, err = getEnvInt("AUTH_RATE_BURST", 10); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"REQUEST_TIMEOUT", 10 * time.Second, &cfg.RequestTimeout},
		{"PROFILE_BACKOFF", 500 * time.Millisecond, &cfg.ProfileBackoff},
		{"SIGNUP_DELAY", time.Second, &cfg.SignupDelay},
		{"LOCAL_PROFILE_DELAY", 300 * time.Millisecond, &cfg.LocalProfileDelay},
		{"CLIENT_IDLE_TTL", 30 * time.Minute, &cfg.ClientIdleTTL},
		{"OUTBOX_INTERVAL", 15 * time.Second, &cfg.OutboxInterval},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = value
	}

	switch cfg.DataStore {
	case "memory", "postgres", "supabase":
	default:
		return Config{}, fmt.Errorf("unsupported DATA_STORE %q", cfg.DataStore)
	}

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	if cfg.BackendURL == "" || cfg.BackendAPIKey == "" {
		if cfg.DataStore == "supabase" {
			cfg.Warnings = append(cfg.Warnings, "backend credentials missing: set SUPABASE_URL and SUPABASE_ANON_KEY; portal runs against a placeholder endpoint")
		}
		if cfg.BackendURL == "" {
			cfg.BackendURL = PlaceholderBackendURL
		}
	}

	if !strings.EqualFold(cfg.Environment, "development") && cfg.GoogleClientID != "" && cfg.GoogleClientSecret == "" {
		return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_SECRET is required when AUTH_GOOGLE_CLIENT_ID is set")
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// UseHostedBackend returns true if data and auth go through the hosted backend.
func (c Config) UseHostedBackend() bool {
	return c.DataStore == "supabase"
}

// GoogleSignInEnabled reports whether campus Google sign-in is configured.
func (c Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// lookupFirst tries each key (and its _FILE variant) in order before the secret path.
func lookupFirst(keys []string, defaultPath string) (string, error) {
	for _, key := range keys {
		value, err := getEnvOrFile(key, "")
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	if defaultPath == "" {
		return "", nil
	}
	return readSecret(defaultPath, keys[0])
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
