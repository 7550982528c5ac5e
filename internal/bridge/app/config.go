package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
)

type Config struct {
	JWTSecret string // Required: shared secret for HS256 access tokens
	Issuer    string // Optional: issuer claim for tokens (default: mcp-bridge)

	OAuthClientID       string        // Optional: the one configured OAuth client id
	AllowedRedirectURIs []string      // Optional: exact redirect URIs approved without consent
	TrustedDomains      []string      // Optional: domains approved without consent (default: claude.ai, localhost)
	AuthProvider        string        // Optional: auth provider claim on access tokens (default: local)
	AccessTokenTTL      time.Duration // Optional: access token lifetime (default: 1h)
	RefreshTokenTTL     time.Duration // Optional: refresh token lifetime (default: 30 days)
	AuthCodeTTL         time.Duration // Optional: authorization code lifetime (default: 10m)

	StoreDriver  string // Optional: token store driver (memory, sqlite) (default: memory)
	DatabaseFile string // Optional: path to SQLite database file (default: ./bridge.db)

	RenderAPIURL string // Optional: Render API base URL (default: https://api.render.com/v1)
	RenderAPIKey string // Required when the render proxy is used

	PublicURL            string        // Optional: externally reachable base URL, used to build the advertised auth URL
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 10000)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-grant sweep interval (default: 1h)
	KeepaliveInterval    time.Duration // SSE keepalive interval (default: 30s)
}

func LoadConfig() Config {
	cfg := Config{
		JWTSecret: os.Getenv("JWT_SECRET"),
		Issuer:    getEnvOrDefault("TOKEN_ISSUER", "mcp-bridge"),

		OAuthClientID:       os.Getenv("OAUTH_CLIENT_ID"),
		AllowedRedirectURIs: splitList(os.Getenv("ALLOWED_REDIRECT_URIS")),
		TrustedDomains: splitList(
			getEnvOrDefault("TRUSTED_REDIRECT_DOMAINS", "claude.ai,localhost"),
		),
		AuthProvider:    getEnvOrDefault("AUTH_PROVIDER", "local"),
		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", domain.DefaultRefreshTokenTTL),
		AuthCodeTTL:     getEnvDurationOrDefault("AUTH_CODE_TTL", domain.DefaultAuthorizationCodeTTL),

		StoreDriver:  getEnvOrDefault("STORE_DRIVER", "memory"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "bridge.db"),

		RenderAPIURL: getEnvOrDefault("RENDER_API_URL", "https://api.render.com/v1"),
		RenderAPIKey: os.Getenv("RENDER_API_KEY"),

		PublicURL:            os.Getenv("PUBLIC_URL"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 10000),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		KeepaliveInterval:    getEnvDurationOrDefault("SSE_KEEPALIVE_INTERVAL", 30*time.Second),
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + strconv.Itoa(cfg.Port)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	return cfg
}

// Validate reports configuration the application cannot start without.
func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.StoreDriver != "memory" && cfg.StoreDriver != "sqlite" {
		return errors.New("STORE_DRIVER must be memory or sqlite")
	}
	return nil
}

// DevMode reports whether the app runs with developer conveniences such as
// verbose error descriptions on the callback page.
func (cfg Config) DevMode() bool {
	return cfg.Env == "dev"
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are treated as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
