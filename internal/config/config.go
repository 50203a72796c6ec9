// Package config provides centralized configuration management for the dataset
// service. Values come from struct-tag defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Broker     BrokerConfig     `yaml:"broker"`
	Validation ValidationConfig `yaml:"validation"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the operational HTTP listener settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the health/readiness port (default: 8081)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8081"`

	// ReadTimeout is the maximum duration for reading a request (default: 5s)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"5s"`

	// ShutdownTimeout bounds graceful shutdown, including validation drain (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds registry database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"2"`

	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StorageConfig holds object storage settings. An empty endpoint leaves
// storage uninitialized, which makes upload initiation report Unavailable.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
	Region    string `yaml:"region" env:"STORAGE_REGION"`
	AccessKey string `yaml:"access_key" env:"STORAGE_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"STORAGE_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"STORAGE_USE_SSL" default:"false"`
	Bucket    string `yaml:"bucket" env:"STORAGE_BUCKET" default:"datasets"`

	// LocalRoot switches to filesystem-backed storage (development only)
	LocalRoot string `yaml:"local_root" env:"STORAGE_LOCAL_ROOT"`

	// Prefix is prepended to every dataset's storage path (default: datasets)
	Prefix string `yaml:"prefix" env:"STORAGE_PREFIX" default:"datasets"`

	// UploadURLExpiry is the validity window of issued write references (default: 1h)
	UploadURLExpiry time.Duration `yaml:"upload_url_expiry" env:"STORAGE_UPLOAD_URL_EXPIRY" default:"1h"`
}

// RedisConfig holds progress store settings. An empty address disables the
// progress store; polling then always reports no snapshot.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`

	// ProgressTTL bounds how long snapshots are retained (default: 24h)
	ProgressTTL time.Duration `yaml:"progress_ttl" env:"REDIS_PROGRESS_TTL" default:"24h"`
}

// BrokerConfig holds durable queue settings.
type BrokerConfig struct {
	// Enabled controls whether validation jobs are queued at all (default: true)
	Enabled bool `yaml:"enabled" env:"BROKER_ENABLED" default:"true"`

	HostPort  string `yaml:"host_port" env:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	Namespace string `yaml:"namespace" env:"TEMPORAL_NAMESPACE" default:"default"`
	TaskQueue string `yaml:"task_queue" env:"TEMPORAL_TASK_QUEUE" default:"dataset-validation"`

	// HealthTimeout bounds the per-dispatch connectivity check (default: 2s)
	HealthTimeout time.Duration `yaml:"health_timeout" env:"BROKER_HEALTH_TIMEOUT" default:"2s"`
}

// ValidationConfig holds validate-and-update execution settings.
type ValidationConfig struct {
	// MaxConcurrent is the maximum number of parallel validation runs (default: 4)
	MaxConcurrent int `yaml:"max_concurrent" env:"VALIDATION_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a run waits for a slot before failing (default: 2m)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"VALIDATION_MAX_WAIT_TIME" default:"2m"`

	// Timeout bounds a single validate-and-update run (default: 10m)
	Timeout time.Duration `yaml:"timeout" env:"VALIDATION_TIMEOUT" default:"10m"`

	ManifestPath     string `yaml:"manifest_path" env:"VALIDATION_MANIFEST_PATH" default:"meta/info.json"`
	StatsPath        string `yaml:"stats_path" env:"VALIDATION_STATS_PATH" default:"meta/stats.json"`
	EpisodeIndexPath string `yaml:"episode_index_path" env:"VALIDATION_EPISODE_INDEX_PATH" default:"meta/episodes.jsonl"`
}

// ScoringConfig holds the quality scorer constants.
type ScoringConfig struct {
	EpisodeCeiling  int     `yaml:"episode_ceiling" env:"SCORING_EPISODE_CEILING" default:"50"`
	DurationCeiling float64 `yaml:"duration_ceiling" env:"SCORING_DURATION_CEILING" default:"3600"`

	// DiversityThreshold is the episode count above which the high diversity fraction applies
	DiversityThreshold int     `yaml:"diversity_threshold" env:"SCORING_DIVERSITY_THRESHOLD" default:"10"`
	DiversityHigh      float64 `yaml:"diversity_high" env:"SCORING_DIVERSITY_HIGH" default:"0.8"`
	DiversityLow       float64 `yaml:"diversity_low" env:"SCORING_DIVERSITY_LOW" default:"0.4"`

	DemonstrationMax float64 `yaml:"demonstration_max" env:"SCORING_DEMONSTRATION_MAX" default:"40"`
	DurationMax      float64 `yaml:"duration_max" env:"SCORING_DURATION_MAX" default:"30"`
	DiversityMax     float64 `yaml:"diversity_max" env:"SCORING_DIVERSITY_MAX" default:"20"`

	// Format compliance credit: manifest + stats + structural validity
	ManifestCredit float64 `yaml:"manifest_credit" env:"SCORING_MANIFEST_CREDIT" default:"4"`
	StatsCredit    float64 `yaml:"stats_credit" env:"SCORING_STATS_CREDIT" default:"3"`
	ValidityCredit float64 `yaml:"validity_credit" env:"SCORING_VALIDITY_CREDIT" default:"3"`
}

// MonitorConfig holds stale-validation monitor settings.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled" env:"MONITOR_ENABLED" default:"true"`

	// StaleAfter is how long a dataset may sit in validating before it is reported (default: 30m)
	StaleAfter time.Duration `yaml:"stale_after" env:"MONITOR_STALE_AFTER" default:"30m"`

	// CheckInterval is how often the monitor runs (default: 5m)
	CheckInterval time.Duration `yaml:"check_interval" env:"MONITOR_CHECK_INTERVAL" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`

	// File enables a rotated log file next to stdout when set
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" default:"28"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// MaxScore returns the sum of all component maxima.
func (c *ScoringConfig) MaxScore() float64 {
	return c.DemonstrationMax + c.DurationMax + c.DiversityMax + c.FormatMax()
}

// FormatMax returns the total format-compliance credit.
func (c *ScoringConfig) FormatMax() float64 {
	return c.ManifestCredit + c.StatsCredit + c.ValidityCredit
}
