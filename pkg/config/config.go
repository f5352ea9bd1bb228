package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rolegate/rolegate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Discord configuration
	Discord DiscordConfig

	// Keycloak configuration
	Keycloak KeycloakConfig

	// Store configuration
	Store StoreConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// AppURL is the externally reachable base URL of the web flow,
	// used when building verification and OIDC redirect links.
	AppURL string
}

// DiscordConfig holds Discord bot configuration
type DiscordConfig struct {
	Token string
}

// KeycloakConfig holds Keycloak connection configuration.
// The OIDC client drives the user-facing login flow; the admin client
// is a service account with permission to manage federated identities.
type KeycloakConfig struct {
	URL               string
	Realm             string
	OIDCClientID      string
	OIDCClientSecret  string
	AdminClientID     string
	AdminClientSecret string
}

// StoreConfig holds Redis store configuration
type StoreConfig struct {
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// In-process cache in front of the durable store
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Discord:       loadDiscordConfig(),
		Keycloak:      loadKeycloakConfig(),
		Store:         loadStoreConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ROLEGATE_HOST", "0.0.0.0"),
		Port:            getEnv("ROLEGATE_PORT", "3000"),
		ReadTimeout:     getEnvDuration("ROLEGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ROLEGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ROLEGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ROLEGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		AppURL:          getEnv("ROLEGATE_APP_URL", ""),
	}
}

// loadDiscordConfig loads Discord configuration from environment
func loadDiscordConfig() DiscordConfig {
	return DiscordConfig{
		Token: getEnv("ROLEGATE_DISCORD_TOKEN", ""),
	}
}

// loadKeycloakConfig loads Keycloak configuration from environment
func loadKeycloakConfig() KeycloakConfig {
	return KeycloakConfig{
		URL:               getEnv("ROLEGATE_KEYCLOAK_URL", ""),
		Realm:             getEnv("ROLEGATE_KEYCLOAK_REALM", ""),
		OIDCClientID:      getEnv("ROLEGATE_KEYCLOAK_OIDC_CLIENT_ID", ""),
		OIDCClientSecret:  getEnv("ROLEGATE_KEYCLOAK_OIDC_CLIENT_SECRET", ""),
		AdminClientID:     getEnv("ROLEGATE_KEYCLOAK_ADMIN_CLIENT_ID", ""),
		AdminClientSecret: getEnv("ROLEGATE_KEYCLOAK_ADMIN_CLIENT_SECRET", ""),
	}
}

// loadStoreConfig loads store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RedisURL:        getEnv("ROLEGATE_REDIS_URL", "redis://localhost:6379"),
		RedisPassword:   getEnv("ROLEGATE_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("ROLEGATE_REDIS_DB", -1),
		RedisMaxRetries: getEnvInt("ROLEGATE_REDIS_MAX_RETRIES", 3),
		RedisPoolSize:   getEnvInt("ROLEGATE_REDIS_POOL_SIZE", 10),
		CacheEnabled:    getEnvBool("ROLEGATE_CACHE_ENABLED", true),
		CacheSize:       getEnvInt("ROLEGATE_CACHE_SIZE", 1024),
		CacheTTL:        getEnvDuration("ROLEGATE_CACHE_TTL", 5*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ROLEGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ROLEGATE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.AppURL == "" {
		return fmt.Errorf("ROLEGATE_APP_URL is required")
	}
	if strings.HasSuffix(c.Server.AppURL, "/") {
		return fmt.Errorf("ROLEGATE_APP_URL must not end with a slash")
	}

	if c.Discord.Token == "" {
		return fmt.Errorf("ROLEGATE_DISCORD_TOKEN is required")
	}

	if c.Keycloak.URL == "" {
		return fmt.Errorf("ROLEGATE_KEYCLOAK_URL is required")
	}
	if c.Keycloak.Realm == "" {
		return fmt.Errorf("ROLEGATE_KEYCLOAK_REALM is required")
	}
	if c.Keycloak.OIDCClientID == "" || c.Keycloak.OIDCClientSecret == "" {
		return fmt.Errorf("Keycloak OIDC client credentials are required")
	}
	if c.Keycloak.AdminClientID == "" || c.Keycloak.AdminClientSecret == "" {
		return fmt.Errorf("Keycloak admin client credentials are required")
	}

	if c.Store.RedisURL == "" {
		return fmt.Errorf("ROLEGATE_REDIS_URL is required")
	}
	if c.Store.CacheEnabled && c.Store.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive when the cache is enabled")
	}

	return nil
}

// IssuerURL returns the OIDC issuer URL for the configured realm
func (c *KeycloakConfig) IssuerURL() string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimSuffix(c.URL, "/"), c.Realm)
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
