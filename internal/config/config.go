package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Email     EmailConfig     `yaml:"email"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection for the shared rate limiter
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// EmailConfig holds delivery tuning and the platform-level SMTP defaults
// that seed new events. Per-event config in the database overrides these.
type EmailConfig struct {
	DefaultHost        string `yaml:"default_host"`
	DefaultPort        int    `yaml:"default_port"`
	DefaultFromName    string `yaml:"default_from_name"`
	DefaultFromAddress string `yaml:"default_from_address"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`

	// RateLimitStore selects the limiter backend: "memory" (process-local)
	// or "redis" (shared across instances).
	RateLimitStore string `yaml:"rate_limit_store"`
	HourlyLimit    int    `yaml:"hourly_limit"`
	BatchSize      int    `yaml:"batch_size"`
	BatchDelayMs   int    `yaml:"batch_delay_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BatchDelay returns the pause between bulk batches as a duration
func (c EmailConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// Timeout returns the SMTP operation timeout as a duration
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig holds certificate template storage settings
type StorageConfig struct {
	TemplateDir string `yaml:"template_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// MaxUploadBytes returns the template upload size cap in bytes
func (c StorageConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// RetentionConfig holds the email log retention policy
type RetentionConfig struct {
	EmailLogDays      int `yaml:"email_log_days"`
	SweepIntervalMins int `yaml:"sweep_interval_mins"`
}

// EmailLogMaxAge returns how long log entries are kept
func (c RetentionConfig) EmailLogMaxAge() time.Duration {
	return time.Duration(c.EmailLogDays) * 24 * time.Hour
}

// SweepInterval returns how often the retention worker runs
func (c RetentionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMins) * time.Minute
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Email.DefaultPort == 0 {
		cfg.Email.DefaultPort = 587
	}
	if cfg.Email.RateLimitStore == "" {
		cfg.Email.RateLimitStore = "memory"
	}
	if cfg.Email.HourlyLimit == 0 {
		cfg.Email.HourlyLimit = 100
	}
	if cfg.Email.BatchSize == 0 {
		cfg.Email.BatchSize = 5
	}
	if cfg.Email.BatchDelayMs == 0 {
		cfg.Email.BatchDelayMs = 1000
	}
	if cfg.Email.TimeoutSeconds == 0 {
		cfg.Email.TimeoutSeconds = 30
	}
	if cfg.Storage.TemplateDir == "" {
		cfg.Storage.TemplateDir = "data/templates"
	}
	if cfg.Storage.MaxUploadMB == 0 {
		cfg.Storage.MaxUploadMB = 10
	}
	if cfg.Retention.EmailLogDays == 0 {
		cfg.Retention.EmailLogDays = 90
	}
	if cfg.Retention.SweepIntervalMins == 0 {
		cfg.Retention.SweepIntervalMins = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}

	// SMTP defaults for new events
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.DefaultHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		cfg.Email.DefaultPort = port
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("SMTP_FROM_NAME"); v != "" {
		cfg.Email.DefaultFromName = v
	}
	if v := os.Getenv("SMTP_FROM_ADDRESS"); v != "" {
		cfg.Email.DefaultFromAddress = v
	}
	if v := os.Getenv("EMAIL_RATE_LIMIT_STORE"); v != "" {
		cfg.Email.RateLimitStore = v
	}
	if v := os.Getenv("TEMPLATE_DIR"); v != "" {
		cfg.Storage.TemplateDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	switch c.Email.RateLimitStore {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("email.rate_limit_store is %q but redis.url (or REDIS_URL) is empty", c.Email.RateLimitStore)
		}
	default:
		return fmt.Errorf("email.rate_limit_store must be \"memory\" or \"redis\", got %q", c.Email.RateLimitStore)
	}
	return nil
}
