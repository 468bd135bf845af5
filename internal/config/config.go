package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Hermes    HermesConfig    `yaml:"hermes"`
	Redis     RedisConfig     `yaml:"redis"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Weights   WeightsConfig   `yaml:"weights"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Documents DocumentsConfig `yaml:"documents"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	MetricsPort        int      `yaml:"metrics_port"`
	AdminToken         string   `yaml:"admin_token"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	CORSOrigins        []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type HermesConfig struct {
	URL                string `yaml:"url"`
	Stream             string `yaml:"stream"`
	MaxAgeHours        int    `yaml:"max_age_hours"`
	DuplicateWindowSec int    `yaml:"duplicate_window_sec"`
	PublishTimeoutMs   int    `yaml:"publish_timeout_ms"`
}

// RedisConfig enables the cross-instance weight lock when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	LockTTLMs int    `yaml:"lock_ttl_ms"`
}

type ExtractorConfig struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"`
}

type WeightsConfig struct {
	StrictLimit bool `yaml:"strict_limit"`
	LockWaitMs  int  `yaml:"lock_wait_ms"`
}

type RankingConfig struct {
	Workers          int `yaml:"workers"`
	DefaultYearsFrom int `yaml:"default_years_from"`
	StandingsLimit   int `yaml:"standings_limit"`
}

// DocumentsConfig selects where annual report files live. Files go to S3
// when Bucket is set and under Dir otherwise.
type DocumentsConfig struct {
	Dir         string `yaml:"dir"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLMs) * time.Millisecond
}

func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Weights.LockWaitMs) * time.Millisecond
}

func (c *Config) HermesMaxAge() time.Duration {
	return time.Duration(c.Hermes.MaxAgeHours) * time.Hour
}

func (c *Config) HermesDuplicateWindow() time.Duration {
	return time.Duration(c.Hermes.DuplicateWindowSec) * time.Second
}

func (c *Config) HermesPublishTimeout() time.Duration {
	return time.Duration(c.Hermes.PublishTimeoutMs) * time.Millisecond
}

func (c *Config) ExtractorTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
		},
		Database: DatabaseConfig{
			Migrate: true,
		},
		Hermes: HermesConfig{
			Stream:             "RANKING_EVENTS",
			MaxAgeHours:        720,
			DuplicateWindowSec: 600,
			PublishTimeoutMs:   2000,
		},
		Redis: RedisConfig{
			LockTTLMs: 10000,
		},
		Extractor: ExtractorConfig{
			URL:        "http://localhost:8000",
			TimeoutMs:  30000,
			MaxRetries: 3,
		},
		Weights: WeightsConfig{
			LockWaitMs: 5000,
		},
		Ranking: RankingConfig{
			Workers:          1,
			DefaultYearsFrom: 2020,
			StandingsLimit:   5,
		},
		Documents: DocumentsConfig{
			Dir:         "data/documents",
			MaxUploadMB: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyEnv(cfg *Config) {
	envInt("RANKING_PORT", &cfg.Server.Port)
	envInt("RANKING_METRICS_PORT", &cfg.Server.MetricsPort)
	envString("RANKING_ADMIN_TOKEN", &cfg.Server.AdminToken)
	envInt("RANKING_RATE_LIMIT_PER_MINUTE", &cfg.Server.RateLimitPerMinute)
	if v := os.Getenv("RANKING_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	envString("RANKING_DATABASE_URL", &cfg.Database.URL)
	envBool("RANKING_DATABASE_MIGRATE", &cfg.Database.Migrate)
	envString("RANKING_HERMES_URL", &cfg.Hermes.URL)
	envString("RANKING_HERMES_STREAM", &cfg.Hermes.Stream)

	envString("RANKING_REDIS_ADDR", &cfg.Redis.Addr)
	envString("RANKING_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("RANKING_REDIS_DB", &cfg.Redis.DB)

	envString("RANKING_EXTRACTOR_URL", &cfg.Extractor.URL)
	envString("RANKING_EXTRACTOR_TOKEN", &cfg.Extractor.Token)
	envInt("RANKING_EXTRACTOR_MAX_RETRIES", &cfg.Extractor.MaxRetries)

	envBool("RANKING_WEIGHTS_STRICT_LIMIT", &cfg.Weights.StrictLimit)
	envInt("RANKING_WORKERS", &cfg.Ranking.Workers)

	envString("RANKING_DOCUMENTS_DIR", &cfg.Documents.Dir)
	envString("RANKING_DOCUMENTS_BUCKET", &cfg.Documents.Bucket)
	envString("RANKING_DOCUMENTS_PREFIX", &cfg.Documents.Prefix)
	envString("RANKING_DOCUMENTS_REGION", &cfg.Documents.Region)

	envString("RANKING_LOG_LEVEL", &cfg.Logging.Level)
	envString("RANKING_LOG_FORMAT", &cfg.Logging.Format)
}
