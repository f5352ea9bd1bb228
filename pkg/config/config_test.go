package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ROLEGATE_APP_URL", "https://verify.example.com")
	t.Setenv("ROLEGATE_DISCORD_TOKEN", "bot-token")
	t.Setenv("ROLEGATE_KEYCLOAK_URL", "https://sso.example.com")
	t.Setenv("ROLEGATE_KEYCLOAK_REALM", "campus")
	t.Setenv("ROLEGATE_KEYCLOAK_OIDC_CLIENT_ID", "rolegate-web")
	t.Setenv("ROLEGATE_KEYCLOAK_OIDC_CLIENT_SECRET", "web-secret")
	t.Setenv("ROLEGATE_KEYCLOAK_ADMIN_CLIENT_ID", "rolegate-admin")
	t.Setenv("ROLEGATE_KEYCLOAK_ADMIN_CLIENT_SECRET", "admin-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "redis://localhost:6379", cfg.Store.RedisURL)
	assert.True(t, cfg.Store.CacheEnabled)
	assert.Equal(t, 1024, cfg.Store.CacheSize)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ROLEGATE_PORT", "8081")
	t.Setenv("ROLEGATE_LOG_LEVEL", "debug")
	t.Setenv("ROLEGATE_CACHE_ENABLED", "false")
	t.Setenv("ROLEGATE_REDIS_POOL_SIZE", "25")
	t.Setenv("ROLEGATE_READ_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Store.CacheEnabled)
	assert.Equal(t, 25, cfg.Store.RedisPoolSize)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing app url", "ROLEGATE_APP_URL"},
		{"missing discord token", "ROLEGATE_DISCORD_TOKEN"},
		{"missing keycloak url", "ROLEGATE_KEYCLOAK_URL"},
		{"missing realm", "ROLEGATE_KEYCLOAK_REALM"},
		{"missing oidc secret", "ROLEGATE_KEYCLOAK_OIDC_CLIENT_SECRET"},
		{"missing admin secret", "ROLEGATE_KEYCLOAK_ADMIN_CLIENT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsTrailingSlashAppURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ROLEGATE_APP_URL", "https://verify.example.com/")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestIssuerURL(t *testing.T) {
	kc := KeycloakConfig{URL: "https://sso.example.com/", Realm: "campus"}
	assert.Equal(t, "https://sso.example.com/realms/campus", kc.IssuerURL())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("garbage"))
}
