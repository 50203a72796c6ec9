package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "CONFIG_FILE"

// Load reads configuration from tag defaults, the optional YAML file and
// environment variables, then validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}
	root := reflect.ValueOf(cfg).Elem()

	if err := loadStruct(root, applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadStruct(root, applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadFile overlays YAML values onto cfg. Keys absent from the file keep
// whatever the defaults pass already set.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// fieldPass decides the raw value for one tagged field. ok=false leaves the
// field untouched.
type fieldPass func(field reflect.StructField, current reflect.Value) (value string, ok bool, err error)

func applyDefault(field reflect.StructField, _ reflect.Value) (string, bool, error) {
	def := field.Tag.Get("default")
	return def, def != "", nil
}

func applyEnv(field reflect.StructField, current reflect.Value) (string, bool, error) {
	envName := field.Tag.Get("env")
	value := os.Getenv(envName)
	if value == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			value = os.Getenv(alt)
		}
	}
	if value != "" {
		return value, true, nil
	}
	// Required fields may still be satisfied by the YAML file.
	if field.Tag.Get("required") == "true" && current.IsZero() {
		return "", false, fmt.Errorf("required environment variable %s is not set", envName)
	}
	return "", false, nil
}

// loadStruct recursively populates tagged struct fields using pass.
func loadStruct(v reflect.Value, pass fieldPass) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, pass); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok, err := pass(field, fieldVal)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Storage.Endpoint != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		errs = append(errs, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENDPOINT is set")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		errs = append(errs, "STORAGE_BUCKET is required when STORAGE_ENDPOINT is set")
	}
	if c.Storage.UploadURLExpiry <= 0 {
		errs = append(errs, "STORAGE_UPLOAD_URL_EXPIRY must be positive")
	}

	if c.Broker.Enabled && c.Broker.TaskQueue == "" {
		errs = append(errs, "TEMPORAL_TASK_QUEUE is required when BROKER_ENABLED is true")
	}
	if c.Broker.HealthTimeout <= 0 {
		errs = append(errs, "BROKER_HEALTH_TIMEOUT must be positive")
	}

	if c.Validation.MaxConcurrent <= 0 {
		errs = append(errs, "VALIDATION_MAX_CONCURRENT must be positive")
	}
	if c.Validation.MaxWaitTime <= 0 {
		errs = append(errs, "VALIDATION_MAX_WAIT_TIME must be positive")
	}
	if c.Validation.Timeout <= 0 {
		errs = append(errs, "VALIDATION_TIMEOUT must be positive")
	}
	if c.Validation.ManifestPath == "" {
		errs = append(errs, "VALIDATION_MANIFEST_PATH is required")
	}

	if c.Scoring.EpisodeCeiling <= 0 {
		errs = append(errs, "SCORING_EPISODE_CEILING must be positive")
	}
	if c.Scoring.DurationCeiling <= 0 {
		errs = append(errs, "SCORING_DURATION_CEILING must be positive")
	}
	if c.Scoring.DiversityLow < 0 || c.Scoring.DiversityHigh > 1 || c.Scoring.DiversityLow > c.Scoring.DiversityHigh {
		errs = append(errs, "SCORING_DIVERSITY_LOW/HIGH must satisfy 0 <= low <= high <= 1")
	}
	if total := c.Scoring.MaxScore(); total > 100 {
		errs = append(errs, fmt.Sprintf("scoring component maxima sum to %.1f, must be <= 100", total))
	}

	if c.Monitor.Enabled && (c.Monitor.StaleAfter <= 0 || c.Monitor.CheckInterval <= 0) {
		errs = append(errs, "MONITOR_STALE_AFTER and MONITOR_CHECK_INTERVAL must be positive when the monitor is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Storage: {Endpoint: %q, Bucket: %q, SecretKey: %s}, ",
		c.Storage.Endpoint, c.Storage.Bucket, mask(c.Storage.SecretKey))
	fmt.Fprintf(&b, "Redis: {Addr: %q, Password: %s}, ", c.Redis.Addr, mask(c.Redis.Password))
	fmt.Fprintf(&b, "Broker: {Enabled: %v, HostPort: %q, TaskQueue: %q}, ",
		c.Broker.Enabled, c.Broker.HostPort, c.Broker.TaskQueue)
	fmt.Fprintf(&b, "Validation: {MaxConcurrent: %d, Timeout: %s}, ",
		c.Validation.MaxConcurrent, c.Validation.Timeout)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}
	return "[MASKED]"
}
