// Package config provides configuration management for the meetscribe
// command-line tool. It supports loading configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultProviderBaseURL = "https://api.conferencing.example.com"
	DefaultDownloadTimeout = 30 * time.Second
	DefaultMaxAttempts     = 3
	DefaultSweepGroupSize  = 3
	DefaultSweepGroupPause = 2 * time.Second
	DefaultOutputFormat    = OutputFormatText
	DefaultConfigDir       = ".meetscribe"
	DefaultConfigFile      = "config.yaml"
)

// ProviderConfig holds conferencing provider API settings.
type ProviderConfig struct {
	// BaseURL is the provider's REST API base URL.
	BaseURL string `yaml:"base_url"`

	// APIToken is the bearer token for provider API calls.
	APIToken string `yaml:"api_token,omitempty"`

	// DownloadTimeout bounds a single transcript download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// FetchConfig holds retry and sweep settings for transcript retrieval.
type FetchConfig struct {
	// MaxAttempts is the per-meeting fetch attempt budget.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the pause before the second attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the backoff curve.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffFactor multiplies the backoff between attempts.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// SweepGroupSize is how many meetings a sweep fetches before pausing.
	SweepGroupSize int `yaml:"sweep_group_size"`

	// SweepGroupPause is the pause between sweep groups.
	SweepGroupPause time.Duration `yaml:"sweep_group_pause"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// IsConfigured returns true when a database connection can be attempted.
func (c *DatabaseConfig) IsConfigured() bool {
	return c != nil && c.Host != "" && c.Database != "" && c.User != ""
}

// RedisConfig holds Redis connection settings for event publishing.
type RedisConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// IsConfigured returns true when event publishing is enabled.
func (c *RedisConfig) IsConfigured() bool {
	return c != nil && c.Host != ""
}

// Config holds the meetscribe configuration settings.
type Config struct {
	// Provider holds conferencing provider API settings.
	Provider ProviderConfig `yaml:"provider"`

	// Fetch holds retry and sweep settings.
	Fetch FetchConfig `yaml:"fetch"`

	// Database holds PostgreSQL settings for durable meeting storage.
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Redis holds event publishing settings.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// TenantID is the default tenant identifier for multi-tenant operations.
	TenantID string `yaml:"tenant_id,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:         DefaultProviderBaseURL,
			DownloadTimeout: DefaultDownloadTimeout,
		},
		Fetch: FetchConfig{
			MaxAttempts:     DefaultMaxAttempts,
			InitialBackoff:  2 * time.Second,
			MaxBackoff:      2 * time.Minute,
			BackoffFactor:   2.0,
			SweepGroupSize:  DefaultSweepGroupSize,
			SweepGroupPause: DefaultSweepGroupPause,
		},
		OutputFormat: DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MEETSCRIBE_CONFIG_DIR if set, otherwise ~/.meetscribe
func ConfigDir() (string, error) {
	if dir := os.Getenv("MEETSCRIBE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.meetscribe/config.yaml or $MEETSCRIBE_CONFIG_DIR/config.yaml)
// 3. Environment variables (MEETSCRIBE_*)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	// Durations are written as strings in the file; decode through an
	// intermediate shape.
	type providerFile struct {
		BaseURL         string `yaml:"base_url"`
		APIToken        string `yaml:"api_token"`
		DownloadTimeout string `yaml:"download_timeout"`
	}
	type fetchFile struct {
		MaxAttempts     *int    `yaml:"max_attempts"`
		InitialBackoff  string  `yaml:"initial_backoff"`
		MaxBackoff      string  `yaml:"max_backoff"`
		BackoffFactor   float64 `yaml:"backoff_factor"`
		SweepGroupSize  *int    `yaml:"sweep_group_size"`
		SweepGroupPause string  `yaml:"sweep_group_pause"`
	}
	type configFile struct {
		Provider     providerFile    `yaml:"provider"`
		Fetch        fetchFile       `yaml:"fetch"`
		Database     *DatabaseConfig `yaml:"database"`
		Redis        *RedisConfig    `yaml:"redis"`
		OutputFormat string          `yaml:"output_format"`
		TenantID     string          `yaml:"tenant_id"`
		Debug        bool            `yaml:"debug"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if fileCfg.Provider.BaseURL != "" {
		cfg.Provider.BaseURL = fileCfg.Provider.BaseURL
	}
	if fileCfg.Provider.APIToken != "" {
		cfg.Provider.APIToken = fileCfg.Provider.APIToken
	}
	if fileCfg.Provider.DownloadTimeout != "" {
		d, err := time.ParseDuration(fileCfg.Provider.DownloadTimeout)
		if err != nil {
			return fmt.Errorf("invalid provider.download_timeout: %w", err)
		}
		cfg.Provider.DownloadTimeout = d
	}

	if fileCfg.Fetch.MaxAttempts != nil {
		cfg.Fetch.MaxAttempts = *fileCfg.Fetch.MaxAttempts
	}
	if fileCfg.Fetch.InitialBackoff != "" {
		d, err := time.ParseDuration(fileCfg.Fetch.InitialBackoff)
		if err != nil {
			return fmt.Errorf("invalid fetch.initial_backoff: %w", err)
		}
		cfg.Fetch.InitialBackoff = d
	}
	if fileCfg.Fetch.MaxBackoff != "" {
		d, err := time.ParseDuration(fileCfg.Fetch.MaxBackoff)
		if err != nil {
			return fmt.Errorf("invalid fetch.max_backoff: %w", err)
		}
		cfg.Fetch.MaxBackoff = d
	}
	if fileCfg.Fetch.BackoffFactor > 0 {
		cfg.Fetch.BackoffFactor = fileCfg.Fetch.BackoffFactor
	}
	if fileCfg.Fetch.SweepGroupSize != nil {
		cfg.Fetch.SweepGroupSize = *fileCfg.Fetch.SweepGroupSize
	}
	if fileCfg.Fetch.SweepGroupPause != "" {
		d, err := time.ParseDuration(fileCfg.Fetch.SweepGroupPause)
		if err != nil {
			return fmt.Errorf("invalid fetch.sweep_group_pause: %w", err)
		}
		cfg.Fetch.SweepGroupPause = d
	}

	if fileCfg.Database != nil {
		cfg.Database = fileCfg.Database
	}
	if fileCfg.Redis != nil {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = OutputFormat(fileCfg.OutputFormat)
	}
	if fileCfg.TenantID != "" {
		cfg.TenantID = fileCfg.TenantID
	}
	if fileCfg.Debug {
		cfg.Debug = true
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("MEETSCRIBE_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("MEETSCRIBE_PROVIDER_API_TOKEN"); v != "" {
		cfg.Provider.APIToken = v
	}
	if v := os.Getenv("MEETSCRIBE_DOWNLOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.DownloadTimeout = d
		}
	}

	if v := os.Getenv("MEETSCRIBE_FETCH_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxAttempts = n
		}
	}
	if v := os.Getenv("MEETSCRIBE_SWEEP_GROUP_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.SweepGroupSize = n
		}
	}
	if v := os.Getenv("MEETSCRIBE_SWEEP_GROUP_PAUSE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Fetch.SweepGroupPause = d
		}
	}

	if v := os.Getenv("MEETSCRIBE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("MEETSCRIBE_TENANT_ID"); v != "" {
		cfg.TenantID = v
	}
	if v := os.Getenv("MEETSCRIBE_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	loadDatabaseFromEnv(cfg)
	loadRedisFromEnv(cfg)
}

// loadDatabaseFromEnv overlays database environment variables.
func loadDatabaseFromEnv(cfg *Config) {
	host := os.Getenv("MEETSCRIBE_DB_HOST")
	database := os.Getenv("MEETSCRIBE_DB_NAME")
	user := os.Getenv("MEETSCRIBE_DB_USER")

	if host == "" && database == "" && user == "" {
		return
	}

	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}

	if host != "" {
		cfg.Database.Host = host
	}
	if database != "" {
		cfg.Database.Database = database
	}
	if user != "" {
		cfg.Database.User = user
	}
	if v := os.Getenv("MEETSCRIBE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("MEETSCRIBE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("MEETSCRIBE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
}

// loadRedisFromEnv overlays Redis environment variables.
func loadRedisFromEnv(cfg *Config) {
	host := os.Getenv("MEETSCRIBE_REDIS_HOST")
	if host == "" {
		return
	}

	if cfg.Redis == nil {
		cfg.Redis = &RedisConfig{}
	}
	cfg.Redis.Host = host

	if v := os.Getenv("MEETSCRIBE_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("MEETSCRIBE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MEETSCRIBE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.DownloadTimeout <= 0 {
		return fmt.Errorf("provider.download_timeout must be positive")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be positive")
	}
	if c.Fetch.SweepGroupSize <= 0 {
		return fmt.Errorf("fetch.sweep_group_size must be positive")
	}
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}
	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	// Durations are written as strings for readability.
	type providerFile struct {
		BaseURL         string `yaml:"base_url"`
		APIToken        string `yaml:"api_token,omitempty"`
		DownloadTimeout string `yaml:"download_timeout"`
	}
	type fetchFile struct {
		MaxAttempts     int     `yaml:"max_attempts"`
		InitialBackoff  string  `yaml:"initial_backoff"`
		MaxBackoff      string  `yaml:"max_backoff"`
		BackoffFactor   float64 `yaml:"backoff_factor"`
		SweepGroupSize  int     `yaml:"sweep_group_size"`
		SweepGroupPause string  `yaml:"sweep_group_pause"`
	}
	type configFile struct {
		Provider     providerFile    `yaml:"provider"`
		Fetch        fetchFile       `yaml:"fetch"`
		Database     *DatabaseConfig `yaml:"database,omitempty"`
		Redis        *RedisConfig    `yaml:"redis,omitempty"`
		OutputFormat OutputFormat    `yaml:"output_format"`
		TenantID     string          `yaml:"tenant_id,omitempty"`
		Debug        bool            `yaml:"debug,omitempty"`
	}

	fileCfg := configFile{
		Provider: providerFile{
			BaseURL:         cfg.Provider.BaseURL,
			APIToken:        cfg.Provider.APIToken,
			DownloadTimeout: cfg.Provider.DownloadTimeout.String(),
		},
		Fetch: fetchFile{
			MaxAttempts:     cfg.Fetch.MaxAttempts,
			InitialBackoff:  cfg.Fetch.InitialBackoff.String(),
			MaxBackoff:      cfg.Fetch.MaxBackoff.String(),
			BackoffFactor:   cfg.Fetch.BackoffFactor,
			SweepGroupSize:  cfg.Fetch.SweepGroupSize,
			SweepGroupPause: cfg.Fetch.SweepGroupPause.String(),
		},
		Database:     cfg.Database,
		Redis:        cfg.Redis,
		OutputFormat: cfg.OutputFormat,
		TenantID:     cfg.TenantID,
		Debug:        cfg.Debug,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
