package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"potsync/database"
	"potsync/domain/entities"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `toml:"database_url"`
	DatabaseName string `toml:"database_name"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // "text" or "json"

	// Worker and HTTP surface
	SyncIntervalSeconds int    `toml:"sync_interval_seconds"`
	HTTPAddr            string `toml:"http_addr"`

	// NATS configuration
	NATSEnabled bool   `toml:"nats_enabled"`
	NATSServers string `toml:"nats_servers"` // comma-separated

	// Discord notifications
	DiscordToken     string `toml:"discord_token"`
	DiscordChannelID string `toml:"discord_channel_id"`

	// Primary account provider
	PrimaryAPIURL       string `toml:"primary_api_url"`
	PrimaryAuthURL      string `toml:"primary_auth_url"`
	PrimaryClientID     string `toml:"primary_client_id"`
	PrimaryClientSecret string `toml:"primary_client_secret"`
	FeedNotifications   bool   `toml:"feed_notifications"`

	// Credit facility provider
	CreditAPIURL       string `toml:"credit_api_url"`
	CreditAuthURL      string `toml:"credit_auth_url"`
	CreditClientID     string `toml:"credit_client_id"`
	CreditClientSecret string `toml:"credit_client_secret"`

	// Provider calls
	APITimeoutSeconds int `toml:"api_timeout_seconds"`
	APIMaxRetries     int `toml:"api_max_retries"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `toml:"otel_enabled"`
	OTelExporterType         string `toml:"otel_exporter_type"` // "console", "otlp" or "none"
	OTelOTLPEndpoint         string `toml:"otel_otlp_endpoint"`
	OTelServiceName          string `toml:"otel_service_name"`
	OTelExportIntervalMillis int    `toml:"otel_export_interval_millis"`

	// Defaults for runtime settings missing from the settings table
	EnableSync               bool `toml:"enable_sync"`
	OverrideCooldownSpending bool `toml:"override_cooldown_spending"`
	DepositCooldownHours     int  `toml:"deposit_cooldown_hours"`
	SuspiciousChangeGuard    bool `toml:"suspicious_change_guard"`

	// Environment
	Environment string `toml:"environment"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// SyncInterval returns the delay between scheduled ticks
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// APITimeout returns the per-request timeout for provider calls
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// DefaultSettings returns the runtime settings used when the settings table has no value
func (c *Config) DefaultSettings() entities.Settings {
	return entities.Settings{
		EnableSync:               c.EnableSync,
		OverrideCooldownSpending: c.OverrideCooldownSpending,
		DepositCooldownHours:     c.DepositCooldownHours,
		SuspiciousChangeGuard:    c.SuspiciousChangeGuard,
	}
}

// Init loads the configuration and installs it as the global instance
func Init() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	instance = cfg
	return cfg, nil
}

// Load builds a configuration from defaults, the optional TOML file named by
// POTSYNC_CONFIG and the environment, in increasing order of precedence
func Load() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	defaults := entities.DefaultSettings()
	config := &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		SyncIntervalSeconds:      300,
		HTTPAddr:                 ":8080",
		NATSServers:              "nats://nats:4222",
		PrimaryAPIURL:            "https://api.monzo.com",
		CreditAPIURL:             "https://api.truelayer.com",
		CreditAuthURL:            "https://auth.truelayer.com",
		APITimeoutSeconds:        10,
		APIMaxRetries:            3,
		OTelExporterType:         "none",
		OTelServiceName:          "potsync",
		OTelExportIntervalMillis: 30000,
		EnableSync:               defaults.EnableSync,
		OverrideCooldownSpending: defaults.OverrideCooldownSpending,
		DepositCooldownHours:     defaults.DepositCooldownHours,
		SuspiciousChangeGuard:    defaults.SuspiciousChangeGuard,
	}

	if path := os.Getenv("POTSYNC_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(config *Config) error {
	envString(&config.DatabaseURL, "DATABASE_URL")
	envString(&config.DatabaseName, "DATABASE_NAME")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.LogFormat, "LOG_FORMAT")
	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.NATSServers, "NATS_SERVERS")
	envString(&config.DiscordToken, "DISCORD_TOKEN")
	envString(&config.DiscordChannelID, "DISCORD_CHANNEL_ID")
	envString(&config.PrimaryAPIURL, "PRIMARY_API_URL")
	envString(&config.PrimaryAuthURL, "PRIMARY_AUTH_URL")
	envString(&config.PrimaryClientID, "PRIMARY_CLIENT_ID")
	envString(&config.PrimaryClientSecret, "PRIMARY_CLIENT_SECRET")
	envString(&config.CreditAPIURL, "CREDIT_API_URL")
	envString(&config.CreditAuthURL, "CREDIT_AUTH_URL")
	envString(&config.CreditClientID, "CREDIT_CLIENT_ID")
	envString(&config.CreditClientSecret, "CREDIT_CLIENT_SECRET")
	envString(&config.OTelExporterType, "OTEL_EXPORTER_TYPE")
	envString(&config.OTelOTLPEndpoint, "OTEL_OTLP_ENDPOINT")
	envString(&config.OTelServiceName, "OTEL_SERVICE_NAME")
	envString(&config.Environment, "ENVIRONMENT")

	ints := []struct {
		key    string
		target *int
	}{
		{"SYNC_INTERVAL_SECONDS", &config.SyncIntervalSeconds},
		{"API_TIMEOUT_SECONDS", &config.APITimeoutSeconds},
		{"API_MAX_RETRIES", &config.APIMaxRetries},
		{"OTEL_EXPORT_INTERVAL_MILLIS", &config.OTelExportIntervalMillis},
		{"DEPOSIT_COOLDOWN_HOURS", &config.DepositCooldownHours},
	}
	for _, i := range ints {
		if err := envInt(i.target, i.key); err != nil {
			return err
		}
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{"NATS_ENABLED", &config.NATSEnabled},
		{"FEED_NOTIFICATIONS", &config.FeedNotifications},
		{"OTEL_ENABLED", &config.OTelEnabled},
		{"ENABLE_SYNC", &config.EnableSync},
		{"OVERRIDE_COOLDOWN_SPENDING", &config.OverrideCooldownSpending},
		{"SUSPICIOUS_CHANGE_GUARD", &config.SuspiciousChangeGuard},
	}
	for _, b := range bools {
		if err := envBool(b.target, b.key); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validate() error {
	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be positive, got %d", c.SyncIntervalSeconds)
	}
	if c.DepositCooldownHours <= 0 {
		return fmt.Errorf("DEPOSIT_COOLDOWN_HOURS must be positive, got %d", c.DepositCooldownHours)
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES cannot be negative, got %d", c.APIMaxRetries)
	}
	switch c.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return fmt.Errorf("unknown OTEL_EXPORTER_TYPE %q", c.OTelExporterType)
	}

	if c.Environment == "test" {
		return nil
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}

	return nil
}

func envString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envInt(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*target = parsed
	return nil
}

func envBool(target *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, ok := entities.ParseBool(value)
	if !ok {
		return fmt.Errorf("invalid %s %q: expected true/false/1/0/on/off", key, value)
	}
	*target = parsed
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	defaults := entities.DefaultSettings()
	return &Config{
		Environment:              "test",
		LogLevel:                 "debug",
		LogFormat:                "text",
		SyncIntervalSeconds:      60,
		HTTPAddr:                 ":0",
		APITimeoutSeconds:        1,
		APIMaxRetries:            1,
		OTelExporterType:         "none",
		OTelServiceName:          "potsync-test",
		OTelExportIntervalMillis: 1000,
		EnableSync:               defaults.EnableSync,
		OverrideCooldownSpending: defaults.OverrideCooldownSpending,
		DepositCooldownHours:     defaults.DepositCooldownHours,
		SuspiciousChangeGuard:    defaults.SuspiciousChangeGuard,
	}
}
