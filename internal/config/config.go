// Package config holds the extractor's configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	infraconfig "github.com/onronder/p-958660-sub000/infrastructure/config"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/infrastructure/profiling"
	"github.com/onronder/p-958660-sub000/internal/shopify"
)

const (
	defaultServerPort      = 8070
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultRateLimit       = 4
	defaultRateBurst       = 8
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second

	defaultFullTimeout          = 30 * time.Second
	defaultPreviewTimeout       = 15 * time.Second
	defaultConnectionTimeout    = 5 * time.Second
	defaultMaxPreviewBytes      = 1 << 20
	defaultDependentConcurrency = 5
	defaultWorkers              = 4
	defaultQueueSize            = 256
	defaultTaskTimeout          = 60 * time.Second

	defaultSessionTTL       = time.Hour
	defaultTemplateCacheTTL = 10 * time.Minute
)

type Config struct {
	Debug      bool               `env:"APP_DEBUG" yaml:"debug"`
	Server     ServerConfig       `yaml:"server"`
	Database   DatabaseConfig     `yaml:"database"`
	Redis      RedisConfig        `yaml:"redis"`
	Logging    infralogger.Config `yaml:"logging"`
	Shopify    ShopifyConfig      `yaml:"shopify"`
	Extraction ExtractionConfig   `yaml:"extraction"`
	Preview    PreviewConfig      `yaml:"preview"`
	Profiling  profiling.Config   `yaml:"profiling"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig backs events, dead letters, the template cache and preview
// sessions. Everything degrades to in-process behaviour when disabled.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
}

type ShopifyConfig struct {
	BaseURL         string        `env:"SHOPIFY_BASE_URL"    yaml:"base_url"`
	APIVersion      string        `env:"SHOPIFY_API_VERSION" yaml:"api_version"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

type ExtractionConfig struct {
	FullTimeout          time.Duration `env:"EXTRACTION_FULL_TIMEOUT"    yaml:"full_timeout"`
	PreviewTimeout       time.Duration `env:"EXTRACTION_PREVIEW_TIMEOUT" yaml:"preview_timeout"`
	ConnectionTimeout    time.Duration `yaml:"connection_timeout"`
	MaxPreviewBytes      int           `yaml:"max_preview_bytes"`
	DependentConcurrency int           `yaml:"dependent_concurrency"`
	Workers              int           `env:"EXTRACTION_WORKERS"         yaml:"workers"`
	QueueSize            int           `yaml:"queue_size"`
	TaskTimeout          time.Duration `yaml:"task_timeout"`
}

type PreviewConfig struct {
	SessionTTL       time.Duration `yaml:"session_ttl"`
	TemplateCacheTTL time.Duration `yaml:"template_cache_ttl"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if err := infraconfig.Port("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := infraconfig.Required("database.host", c.Database.Host); err != nil {
		return err
	}
	if err := infraconfig.Port("database.port", c.Database.Port); err != nil {
		return err
	}
	if err := infraconfig.Required("database.user", c.Database.User); err != nil {
		return err
	}
	if err := infraconfig.Required("database.dbname", c.Database.DBName); err != nil {
		return err
	}
	if c.Redis.Enabled {
		if err := infraconfig.Required("redis.address", c.Redis.Address); err != nil {
			return err
		}
	}
	if err := infraconfig.Positive("shopify.rate_limit", c.Shopify.RateLimit); err != nil {
		return err
	}
	if err := infraconfig.Positive("extraction.dependent_concurrency", c.Extraction.DependentConcurrency); err != nil {
		return err
	}
	if err := infraconfig.Positive("extraction.workers", c.Extraction.Workers); err != nil {
		return err
	}
	return infraconfig.Positive("extraction.queue_size", c.Extraction.QueueSize)
}

func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * defaultServerTimeout * time.Second
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	setShopifyDefaults(&cfg.Shopify)
	setExtractionDefaults(&cfg.Extraction)
	if cfg.Preview.SessionTTL == 0 {
		cfg.Preview.SessionTTL = defaultSessionTTL
	}
	if cfg.Preview.TemplateCacheTTL == 0 {
		cfg.Preview.TemplateCacheTTL = defaultTemplateCacheTTL
	}
}

func setShopifyDefaults(s *ShopifyConfig) {
	if s.APIVersion == "" {
		s.APIVersion = shopify.DefaultAPIVersion
	}
	if s.RateLimit == 0 {
		s.RateLimit = defaultRateLimit
	}
	if s.RateBurst == 0 {
		s.RateBurst = defaultRateBurst
	}
	if s.BreakerFailures == 0 {
		s.BreakerFailures = defaultBreakerFailures
	}
	if s.BreakerTimeout == 0 {
		s.BreakerTimeout = defaultBreakerTimeout
	}
}

func setExtractionDefaults(e *ExtractionConfig) {
	if e.FullTimeout == 0 {
		e.FullTimeout = defaultFullTimeout
	}
	if e.PreviewTimeout == 0 {
		e.PreviewTimeout = defaultPreviewTimeout
	}
	if e.ConnectionTimeout == 0 {
		e.ConnectionTimeout = defaultConnectionTimeout
	}
	if e.MaxPreviewBytes == 0 {
		e.MaxPreviewBytes = defaultMaxPreviewBytes
	}
	if e.DependentConcurrency == 0 {
		e.DependentConcurrency = defaultDependentConcurrency
	}
	if e.Workers == 0 {
		e.Workers = defaultWorkers
	}
	if e.QueueSize == 0 {
		e.QueueSize = defaultQueueSize
	}
	if e.TaskTimeout == 0 {
		e.TaskTimeout = defaultTaskTimeout
	}
}
