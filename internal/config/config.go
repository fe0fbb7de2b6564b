// Package config loads service configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Cloud        CloudConfig        `yaml:"cloud"`
	Legacy       LegacyConfig       `yaml:"legacy"`
	Redis        RedisConfig        `yaml:"redis"`
	Sync         SyncConfig         `yaml:"sync"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CloudConfig holds the DynamoDB-backed cloud store settings.
type CloudConfig struct {
	TableName   string `yaml:"table_name"`
	MSISDNIndex string `yaml:"msisdn_index"`
	IMSIIndex   string `yaml:"imsi_index"`
	Region      string `yaml:"region"`
	AWSProfile  string `yaml:"aws_profile"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

// Timeout returns the per-call timeout for the cloud store.
func (c CloudConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// LegacyConfig holds the relational legacy store settings. Its timeout
// is independent of the cloud one; the legacy system is slower.
type LegacyConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Timeout returns the per-query timeout for the legacy store.
func (l LegacyConfig) Timeout() time.Duration { return time.Duration(l.TimeoutMS) * time.Millisecond }

// RedisConfig holds the Redis connection used for the audit stream, the
// bulk job store, and job locks. Optional: an empty Addr disables all
// Redis-backed features.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// SyncConfig holds reconciliation and bulk sync tuning.
type SyncConfig struct {
	Workers          int    `yaml:"workers"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
	RetryBaseMS      int    `yaml:"retry_base_ms"`
	RetryMaxMS       int    `yaml:"retry_max_ms"`
	AuditStream      string `yaml:"audit_stream"`
	JobTTLHours      int    `yaml:"job_ttl_hours"`
	LockTTLSeconds   int    `yaml:"lock_ttl_seconds"`
}

// RetryBase returns the base backoff delay.
func (s SyncConfig) RetryBase() time.Duration { return time.Duration(s.RetryBaseMS) * time.Millisecond }

// RetryMax returns the backoff delay cap.
func (s SyncConfig) RetryMax() time.Duration { return time.Duration(s.RetryMaxMS) * time.Millisecond }

// JobTTL returns how long finished job snapshots are kept.
func (s SyncConfig) JobTTL() time.Duration { return time.Duration(s.JobTTLHours) * time.Hour }

// LockTTL returns the bulk job lock lifetime.
func (s SyncConfig) LockTTL() time.Duration { return time.Duration(s.LockTTLSeconds) * time.Second }

// ProvisioningConfig holds provisioning defaults. The mode is only a
// default for callers that do not choose one explicitly per request.
type ProvisioningConfig struct {
	DefaultMode string `yaml:"default_mode"`
}

// Load reads the YAML file at path and applies defaults.
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
	if cfg.Cloud.TimeoutMS == 0 {
		cfg.Cloud.TimeoutMS = 5000
	}
	if cfg.Cloud.MSISDNIndex == "" {
		cfg.Cloud.MSISDNIndex = "msisdn-index"
	}
	if cfg.Cloud.IMSIIndex == "" {
		cfg.Cloud.IMSIIndex = "imsi-index"
	}
	if cfg.Cloud.Region == "" {
		cfg.Cloud.Region = "us-east-1"
	}
	if cfg.Legacy.TimeoutMS == 0 {
		cfg.Legacy.TimeoutMS = 10000
	}
	if cfg.Legacy.MaxOpenConns == 0 {
		cfg.Legacy.MaxOpenConns = 25
	}
	if cfg.Legacy.MaxIdleConns == 0 {
		cfg.Legacy.MaxIdleConns = 10
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.RetryMaxAttempts == 0 {
		cfg.Sync.RetryMaxAttempts = 3
	}
	if cfg.Sync.RetryBaseMS == 0 {
		cfg.Sync.RetryBaseMS = 250
	}
	if cfg.Sync.RetryMaxMS == 0 {
		cfg.Sync.RetryMaxMS = 5000
	}
	if cfg.Sync.AuditStream == "" {
		cfg.Sync.AuditStream = "subscriber-audit"
	}
	if cfg.Sync.JobTTLHours == 0 {
		cfg.Sync.JobTTLHours = 24
	}
	if cfg.Sync.LockTTLSeconds == 0 {
		cfg.Sync.LockTTLSeconds = 300
	}
	if cfg.Provisioning.DefaultMode == "" {
		cfg.Provisioning.DefaultMode = "DUAL"
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML file, then overrides from the environment.
// A .env file is honored if present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Legacy.DatabaseURL = dbURL
	}
	if table := os.Getenv("CLOUD_TABLE_NAME"); table != "" {
		cfg.Cloud.TableName = table
	}
	if region := os.Getenv("CLOUD_AWS_REGION"); region != "" {
		cfg.Cloud.Region = region
	}
	if key := os.Getenv("CLOUD_AWS_ACCESS_KEY"); key != "" {
		cfg.Cloud.AccessKey = key
	}
	if secret := os.Getenv("CLOUD_AWS_SECRET_KEY"); secret != "" {
		cfg.Cloud.SecretKey = secret
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	return cfg, nil
}
