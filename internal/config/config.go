package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the photodex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Queue     QueueConfig     `yaml:"queue"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Geo       GeoConfig       `yaml:"geo"`
	Storage   StorageConfig   `yaml:"storage"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN              string `yaml:"dsn"`
	MaxConns         int    `yaml:"max_conns"`
	MinConns         int    `yaml:"min_conns"`
	ConnMaxLifetime  int    `yaml:"conn_max_lifetime_sec"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	Migrate          bool   `yaml:"migrate"`
}

// CacheConfig holds the query embedding fast-tier settings.
type CacheConfig struct {
	Addrs       []string `yaml:"addrs"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	QueryTTLSec int      `yaml:"query_ttl_sec"`
}

// QueryTTL returns the fast-tier TTL.
func (c CacheConfig) QueryTTL() time.Duration {
	return time.Duration(c.QueryTTLSec) * time.Second
}

// QueueConfig holds embedding job queue settings.
type QueueConfig struct {
	Driver  string `yaml:"driver"` // local, redis (default: local)
	Workers int    `yaml:"workers"`
	Buffer  int    `yaml:"buffer"`
	// Redis Streams settings, used when driver=redis.
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Stream           string   `yaml:"stream"`
	Group            string   `yaml:"group"`
	ClaimIntervalSec int      `yaml:"claim_interval_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Project        string  `yaml:"project"`
	Model          string  `yaml:"model"`
	Dimensions     int     `yaml:"dimensions"`
	MaxImagePixels int     `yaml:"max_image_px"`
	RateLimit      float64 `yaml:"rate_limit_per_sec"` // 0 = unlimited
	RateBurst      int     `yaml:"rate_burst"`
	TimeoutSec     int     `yaml:"timeout_sec"`
}

// GeoConfig holds reverse geocoding and timezone settings.
type GeoConfig struct {
	NominatimURL    string `yaml:"nominatim_url"`
	Language        string `yaml:"language"`
	UserAgent       string `yaml:"user_agent"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	DefaultTimezone string `yaml:"default_timezone"`
	Disabled        bool   `yaml:"disabled"`
}

// StorageConfig holds image file storage settings.
type StorageConfig struct {
	Driver string             `yaml:"driver"` // local, minio (default: local)
	Local  LocalStorageConfig `yaml:"local"`
	Minio  MinioStorageConfig `yaml:"minio"`
}

// LocalStorageConfig holds filesystem storage settings.
type LocalStorageConfig struct {
	Root    string `yaml:"root"`
	BaseURL string `yaml:"base_url"`
}

// MinioStorageConfig holds S3-compatible object storage settings.
type MinioStorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"`
}

// JobsConfig holds embedding job retry and sweep settings.
type JobsConfig struct {
	MaxAttempts           int    `yaml:"max_attempts"`
	RetryBackoffSec       int    `yaml:"retry_backoff_sec"`
	ProcessingTimeoutSec  int    `yaml:"processing_timeout_sec"`
	RetryFailedCron       string `yaml:"retry_failed_cron"` // empty = disabled
	ReclaimCron           string `yaml:"reclaim_cron"`      // empty = disabled
	RequeuePendingOnStart bool   `yaml:"requeue_pending_on_start"`
}

// RetryBackoff returns the delay between attempts.
func (c JobsConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSec) * time.Second
}

// ProcessingTimeout returns the processing lease length.
func (c JobsConfig) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.QueryTTLSec <= 0 {
		c.Cache.QueryTTLSec = 24 * 60 * 60
	}
	c.applyQueueDefaults()
	c.applyEmbeddingDefaults()
	if c.Geo.NominatimURL == "" {
		c.Geo.NominatimURL = "https://nominatim.openstreetmap.org"
	}
	if c.Geo.Language == "" {
		c.Geo.Language = "ko"
	}
	if c.Geo.UserAgent == "" {
		c.Geo.UserAgent = "photodex"
	}
	if c.Geo.TimeoutSec <= 0 {
		c.Geo.TimeoutSec = 5
	}
	if c.Geo.DefaultTimezone == "" {
		c.Geo.DefaultTimezone = "Asia/Seoul"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "./media"
	}
	if c.Storage.Local.BaseURL == "" {
		c.Storage.Local.BaseURL = "/media"
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 3
	}
	if c.Jobs.RetryBackoffSec <= 0 {
		c.Jobs.RetryBackoffSec = 60
	}
	if c.Jobs.ProcessingTimeoutSec <= 0 {
		c.Jobs.ProcessingTimeoutSec = 15 * 60
	}
}

func (c *Config) applyQueueDefaults() {
	if c.Queue.Driver == "" {
		c.Queue.Driver = "local"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 100
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "photodex:embedding"
	}
	if c.Queue.Group == "" {
		c.Queue.Group = "embedders"
	}
	if c.Queue.ClaimIntervalSec <= 0 {
		c.Queue.ClaimIntervalSec = 300
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Model == "" {
		c.Embedding.Model = "multimodalembedding@001"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1408
	}
	if c.Embedding.MaxImagePixels <= 0 {
		c.Embedding.MaxImagePixels = 1024
	}
	if c.Embedding.RateBurst <= 0 {
		c.Embedding.RateBurst = 1
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	switch c.Queue.Driver {
	case "local":
	case "redis":
		if len(c.Queue.Addrs) == 0 {
			return fmt.Errorf("queue.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("queue.driver must be \"local\" or \"redis\", got %q", c.Queue.Driver)
	}
	if c.Embedding.Dimensions != 1408 {
		return fmt.Errorf("embedding.dimensions must be 1408, got %d", c.Embedding.Dimensions)
	}
	switch c.Storage.Driver {
	case "local":
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
	default:
		return fmt.Errorf("storage.driver must be \"local\" or \"minio\", got %q", c.Storage.Driver)
	}
	if _, err := time.LoadLocation(c.Geo.DefaultTimezone); err != nil {
		return fmt.Errorf("geo.default_timezone: %w", err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
