package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "mcp-bridge", cfg.Issuer)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, []string{"claude.ai", "localhost"}, cfg.TrustedDomains)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 10000, cfg.Port)
	require.Equal(t, "http://localhost:10000", cfg.PublicURL)
	require.Equal(t, "https://api.render.com/v1", cfg.RenderAPIURL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("TRUSTED_REDIRECT_DOMAINS", "claude.ai, example.com ,")
	t.Setenv("ALLOWED_REDIRECT_URIS", "https://claude.ai/oauth/callback")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("HOUSEKEEPING_INTERVAL", "30")
	t.Setenv("PUBLIC_URL", "https://bridge.example.com/")
	t.Setenv("PORT", "8080")

	cfg := LoadConfig()

	require.Equal(t, "secret", cfg.JWTSecret)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, []string{"claude.ai", "example.com"}, cfg.TrustedDomains)
	require.Equal(t, []string{"https://claude.ai/oauth/callback"}, cfg.AllowedRedirectURIs)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, "https://bridge.example.com", cfg.PublicURL)
	require.Equal(t, 8080, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := LoadConfig()
	require.Error(t, cfg.Validate(), "missing JWT secret must fail validation")

	cfg.JWTSecret = "secret"
	cfg.StoreDriver = "postgres"
	require.Error(t, cfg.Validate())

	cfg.StoreDriver = "memory"
	require.NoError(t, cfg.Validate())
}
