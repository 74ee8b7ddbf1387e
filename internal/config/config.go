// Package config loads server settings from an optional YAML file, a .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the heartrisk server configuration.
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string   `yaml:"port"`
	GinMode              string   `yaml:"gin_mode"`
	ReadHeaderTimeoutSec int      `yaml:"read_header_timeout_sec"`
	ReadTimeoutSec       int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec      int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec       int      `yaml:"idle_timeout_sec"`
	ShutdownSec          int      `yaml:"shutdown_timeout_sec"`
	BodyLimitBytes       int64    `yaml:"body_limit_bytes"`
	StaticDir            string   `yaml:"static_dir"`
	CORSOrigins          []string `yaml:"cors_origins"`
}

// DatabaseConfig selects the submission store.
type DatabaseConfig struct {
	// URL is postgres://... for PostgreSQL, otherwise a SQLite path (optionally sqlite://path).
	URL                 string `yaml:"url"`
	ReadinessTimeoutSec int    `yaml:"readiness_timeout_sec"`
}

// ModelConfig locates the classifier bundle and training dataset.
type ModelConfig struct {
	BundlePath     string  `yaml:"bundle_path"`
	DatasetPath    string  `yaml:"dataset_path"`
	TestFraction   float64 `yaml:"test_fraction"`
	Seed           int64   `yaml:"seed"`
	HistogramBins  int     `yaml:"histogram_bins"`
	TrainIfMissing bool    `yaml:"train_if_missing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: "local",
		Server: ServerConfig{
			Port:                 "8080",
			GinMode:              "release",
			ReadHeaderTimeoutSec: 5,
			ReadTimeoutSec:       10,
			WriteTimeoutSec:      15,
			IdleTimeoutSec:       60,
			ShutdownSec:          5,
			BodyLimitBytes:       1 << 20,
			StaticDir:            "web/dist",
			CORSOrigins:          []string{"*"},
		},
		Database: DatabaseConfig{
			URL:                 "app.db",
			ReadinessTimeoutSec: 2,
		},
		Model: ModelConfig{
			BundlePath:     "models/model.json",
			DatasetPath:    "data/heart.csv",
			TestFraction:   0.2,
			Seed:           42,
			HistogramBins:  20,
			TrainIfMissing: true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case HEARTRISK_CONFIG is
// consulted; with neither set only defaults and the environment apply.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("HEARTRISK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("ENV", c.Env)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Model.BundlePath = getEnv("MODEL_PATH", c.Model.BundlePath)
	c.Model.DatasetPath = getEnv("DATASET_PATH", c.Model.DatasetPath)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRAIN_IF_MISSING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRAIN_IF_MISSING: %w", err)
		}
		c.Model.TrainIfMissing = b
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Env == "" {
		c.Env = d.Env
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = d.Server.GinMode
	}
	if c.Server.ReadHeaderTimeoutSec <= 0 {
		c.Server.ReadHeaderTimeoutSec = d.Server.ReadHeaderTimeoutSec
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = d.Server.ReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = d.Server.WriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = d.Server.IdleTimeoutSec
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = d.Server.ShutdownSec
	}
	if c.Server.BodyLimitBytes <= 0 {
		c.Server.BodyLimitBytes = d.Server.BodyLimitBytes
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = d.Server.CORSOrigins
	}
	if c.Database.URL == "" {
		c.Database.URL = d.Database.URL
	}
	if c.Database.ReadinessTimeoutSec <= 0 {
		c.Database.ReadinessTimeoutSec = d.Database.ReadinessTimeoutSec
	}
	if c.Model.BundlePath == "" {
		c.Model.BundlePath = d.Model.BundlePath
	}
	if c.Model.DatasetPath == "" {
		c.Model.DatasetPath = d.Model.DatasetPath
	}
	if c.Model.TestFraction == 0 {
		c.Model.TestFraction = d.Model.TestFraction
	}
	if c.Model.HistogramBins <= 0 {
		c.Model.HistogramBins = d.Model.HistogramBins
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Env {
	case "local", "dev", "test", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, test, prod, got %q", c.Env)
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %q", c.Server.Port)
	}

	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}

	if c.Model.TestFraction <= 0 || c.Model.TestFraction >= 1 {
		return fmt.Errorf("model.test_fraction must be in (0, 1), got %v", c.Model.TestFraction)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return ":" + s.Port }

// Timeout helpers.
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSec) * time.Second
}

func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSec) * time.Second
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownSec) * time.Second
}

// ReadinessTimeout bounds database pings.
func (d DatabaseConfig) ReadinessTimeout() time.Duration {
	return time.Duration(d.ReadinessTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
