package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	API        APIConfig        `mapstructure:"api"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StoreConfig describes the content store the reconciler walks
type StoreConfig struct {
	RootDir          string `mapstructure:"root_dir"`
	IntakeFolder     string `mapstructure:"intake_folder"`
	CategoriesFolder string `mapstructure:"categories_folder"`
	ArchiveFolder    string `mapstructure:"archive_folder"`
}

// DatabaseConfig contains metadata index settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
	CacheTTL      string `mapstructure:"cache_ttl"`
	CacheSize     int    `mapstructure:"cache_size"`
	LockWait      string `mapstructure:"lock_wait"`
}

// SyncConfig contains reconciliation settings
type SyncConfig struct {
	ScanInterval  string `mapstructure:"scan_interval"`
	LockWait      string `mapstructure:"lock_wait"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// EnrichmentConfig contains classification provider settings
type EnrichmentConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"max_retries"`
	InitialBackoff string `mapstructure:"initial_backoff"`
	CallInterval   string `mapstructure:"call_interval"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// WebhookConfig contains change notification settings
type WebhookConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	SigningSecret string `mapstructure:"signing_secret"`
	FlushInterval string `mapstructure:"flush_interval"`
	MaxBatch      int    `mapstructure:"max_batch"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// APIConfig contains inbound request authentication settings
type APIConfig struct {
	SigningSecret   string   `mapstructure:"signing_secret"`
	AdminIdentities []string `mapstructure:"admin_identities"`
	FreshnessWindow string   `mapstructure:"freshness_window"`
	RateLimitWindow string   `mapstructure:"rate_limit_window"`
	RateLimitMax    int      `mapstructure:"rate_limit_max"`
	PageSizeDefault int      `mapstructure:"page_size_default"`
	PageSizeMax     int      `mapstructure:"page_size_max"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("store.intake_folder", "Uncategorized")
	viper.SetDefault("store.categories_folder", "AutoCategorized")
	viper.SetDefault("store.archive_folder", "Archived")
	viper.SetDefault("database.path", "gallery-sync.db")
	viper.SetDefault("database.busy_timeout_ms", 5000)
	viper.SetDefault("database.cache_ttl", "30s")
	viper.SetDefault("database.cache_size", 2048)
	viper.SetDefault("database.lock_wait", "30s")
	viper.SetDefault("sync.scan_interval", "1m")
	viper.SetDefault("sync.lock_wait", "10s")
	viper.SetDefault("sync.retention_days", 30)
	viper.SetDefault("enrichment.provider", "gemini")
	viper.SetDefault("enrichment.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("enrichment.model", "gemini-3-flash-preview")
	viper.SetDefault("enrichment.max_retries", 3)
	viper.SetDefault("enrichment.initial_backoff", "1s")
	viper.SetDefault("enrichment.call_interval", "1200ms")
	viper.SetDefault("enrichment.request_timeout", "30s")
	viper.SetDefault("webhook.flush_interval", "30s")
	viper.SetDefault("webhook.max_batch", 50)
	viper.SetDefault("webhook.max_retries", 3)
	viper.SetDefault("api.freshness_window", "5m")
	viper.SetDefault("api.rate_limit_window", "1m")
	viper.SetDefault("api.rate_limit_max", 60)
	viper.SetDefault("api.page_size_default", 24)
	viper.SetDefault("api.page_size_max", 100)
	viper.SetDefault("http.bind_addr", "0.0.0.0:8080")
	viper.SetDefault("http.read_timeout", "30s")
	viper.SetDefault("http.write_timeout", "30s")
	viper.SetDefault("http.idle_timeout", "60s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.RootDir == "" {
		return fmt.Errorf("store.root_dir is required")
	}
	if c.API.SigningSecret == "" {
		return fmt.Errorf("api.signing_secret is required")
	}
	if c.Webhook.Endpoint != "" && c.Webhook.SigningSecret == "" {
		return fmt.Errorf("webhook.signing_secret is required when webhook.endpoint is set")
	}

	if c.Webhook.MaxBatch <= 0 {
		return fmt.Errorf("webhook.max_batch must be positive")
	}
	if c.Webhook.MaxRetries <= 0 {
		return fmt.Errorf("webhook.max_retries must be positive")
	}
	if c.Enrichment.MaxRetries < 0 {
		return fmt.Errorf("enrichment.max_retries must not be negative")
	}
	if c.API.RateLimitMax <= 0 {
		return fmt.Errorf("api.rate_limit_max must be positive")
	}
	if c.API.PageSizeDefault <= 0 || c.API.PageSizeDefault > c.API.PageSizeMax {
		return fmt.Errorf("api.page_size_default must be between 1 and api.page_size_max")
	}

	// Validate durations
	durations := map[string]string{
		"database.cache_ttl":         c.Database.CacheTTL,
		"database.lock_wait":         c.Database.LockWait,
		"sync.scan_interval":         c.Sync.ScanInterval,
		"sync.lock_wait":             c.Sync.LockWait,
		"enrichment.initial_backoff": c.Enrichment.InitialBackoff,
		"enrichment.call_interval":   c.Enrichment.CallInterval,
		"webhook.flush_interval":     c.Webhook.FlushInterval,
		"api.freshness_window":       c.API.FreshnessWindow,
		"api.rate_limit_window":      c.API.RateLimitWindow,
	}
	for key, val := range durations {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d == 0 {
		return fallback
	}
	return d
}

// GetScanInterval returns the reconciliation interval as time.Duration
func (c *SyncConfig) GetScanInterval() time.Duration {
	return parseDuration(c.ScanInterval, time.Minute)
}

// GetLockWait returns the single-flight lock acquisition bound
func (c *SyncConfig) GetLockWait() time.Duration {
	return parseDuration(c.LockWait, 10*time.Second)
}

// GetCacheTTL returns the lookup cache TTL
func (c *DatabaseConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 30*time.Second)
}

// GetLockWait returns the table lock acquisition bound
func (c *DatabaseConfig) GetLockWait() time.Duration {
	return parseDuration(c.LockWait, 30*time.Second)
}

// GetInitialBackoff returns the first retry delay for provider calls
func (c *EnrichmentConfig) GetInitialBackoff() time.Duration {
	return parseDuration(c.InitialBackoff, time.Second)
}

// GetCallInterval returns the minimum spacing between provider calls
func (c *EnrichmentConfig) GetCallInterval() time.Duration {
	return parseDuration(c.CallInterval, 1200*time.Millisecond)
}

// GetRequestTimeout returns the provider request timeout
func (c *EnrichmentConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// GetFlushInterval returns the dispatcher flush interval
func (c *WebhookConfig) GetFlushInterval() time.Duration {
	return parseDuration(c.FlushInterval, 30*time.Second)
}

// GetFreshnessWindow returns the signed request freshness bound
func (c *APIConfig) GetFreshnessWindow() time.Duration {
	return parseDuration(c.FreshnessWindow, 5*time.Minute)
}

// GetRateLimitWindow returns the quota window
func (c *APIConfig) GetRateLimitWindow() time.Duration {
	return parseDuration(c.RateLimitWindow, time.Minute)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}
