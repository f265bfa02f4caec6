// Package config loads service configuration from a YAML file with
// environment variable overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Redis    RedisConfig    `yaml:"redis"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SourceConfig selects and configures the event-source backend.
type SourceConfig struct {
	// Backend is "grid" (the table-store HTTP API) or "postgres" (a mirrored
	// events schema).
	Backend  string         `yaml:"backend"`
	Grid     GridConfig     `yaml:"grid"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// GridConfig holds grid API connection settings.
type GridConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PostgresConfig holds the mirrored-events database settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds result-cache settings.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// SnapshotConfig holds S3 snapshot persistence settings.
type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactEnabled returns the redaction setting, defaulting to on.
func (l LoggingConfig) RedactEnabled() bool {
	if l.RedactPII == nil {
		return true
	}
	return *l.RedactPII
}

// Load reads configuration from a YAML file, applies defaults, and
// validates.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Source.Backend == "" {
		cfg.Source.Backend = "grid"
	}
	if cfg.Source.Grid.TimeoutSeconds == 0 {
		cfg.Source.Grid.TimeoutSeconds = 60
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTLMinutes == 0 {
		cfg.Redis.TTLMinutes = 5
	}
	if cfg.Snapshot.S3Region == "" {
		cfg.Snapshot.S3Region = "us-west-2"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validate(cfg *Config) error {
	switch cfg.Source.Backend {
	case "grid":
		if cfg.Source.Grid.BaseURL == "" {
			return fmt.Errorf("source.grid.base_url is required for the grid backend")
		}
	case "postgres":
		if cfg.Source.Postgres.DSN == "" {
			return fmt.Errorf("source.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown source backend %q (want grid or postgres)", cfg.Source.Backend)
	}
	if cfg.Snapshot.Enabled && cfg.Snapshot.S3Bucket == "" {
		return fmt.Errorf("snapshot.s3_bucket is required when snapshots are enabled")
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides. A
// .env file is read first when present, so secrets can live there locally
// and in real env vars in deployment. Validation runs after the overrides,
// so required values may come from either the file or the environment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("GRID_BASE_URL"); v != "" {
		cfg.Source.Grid.BaseURL = v
	}
	if v := os.Getenv("GRID_API_TOKEN"); v != "" {
		cfg.Source.Grid.APIToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Source.Postgres.DSN = v
	}
	if v := os.Getenv("SOURCE_BACKEND"); v != "" {
		cfg.Source.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SNAPSHOT_S3_BUCKET"); v != "" {
		cfg.Snapshot.S3Bucket = v
		cfg.Snapshot.Enabled = true
	}
	if v := os.Getenv("SNAPSHOT_S3_REGION"); v != "" {
		cfg.Snapshot.S3Region = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
