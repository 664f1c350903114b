// Package config loads the settings shared by the store daemon and the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend kinds accepted in StorageConfig.Backend.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Sync     SyncConfig     `yaml:"sync"`
	Insights InsightsConfig `yaml:"insights"`
	App      AppConfig      `yaml:"app"`
}

// StorageConfig selects where the envelope lives.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	Key         string `yaml:"key"`
	// MasterKey is a hex encoded 32-byte key. When set, stored values are sealed.
	MasterKey string `yaml:"master_key"`
}

// ServerConfig holds the listeners of ilpi-stored.
type ServerConfig struct {
	Port       string `yaml:"port"`
	HTTPPort   string `yaml:"http_port"`
	DisableTLS bool   `yaml:"disable_tls"`
}

// ClientConfig points the facade at a remote daemon. Empty means embedded.
type ClientConfig struct {
	StoreAddr string `yaml:"store_addr"`
}

// SyncConfig tunes the simulated round-trip and the optimistic update policy.
type SyncConfig struct {
	Latency    time.Duration `yaml:"-"`
	LatencyRaw string        `yaml:"latency"`
	Rollback   bool          `yaml:"rollback"`
}

type InsightsConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: "./data",
			Key:     "ILPI_DATABASE",
		},
		Server: ServerConfig{
			Port:     "7101",
			HTTPPort: "7102",
		},
		Sync: SyncConfig{
			Latency:    300 * time.Millisecond,
			LatencyRaw: "300ms",
		},
		Insights: InsightsConfig{
			Model:    "gemini-3-flash-preview",
			Endpoint: "https://generativelanguage.googleapis.com/",
		},
		App: AppConfig{
			Env:      "development",
			LogLevel: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path
// and finally the environment (a .env file in the working directory is read
// first if present).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	cfg := Defaults()
	if path == "" {
		path = os.Getenv("ILPI_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Backend = getEnv("ILPI_BACKEND", c.Storage.Backend)
	c.Storage.DataDir = getEnv("ILPI_DATA_DIR", c.Storage.DataDir)
	c.Storage.DatabaseURL = getEnv("ILPI_DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.Key = getEnv("ILPI_STORE_KEY", c.Storage.Key)
	c.Storage.MasterKey = getEnv("ILPI_MASTER_KEY", c.Storage.MasterKey)

	c.Server.Port = getEnv("ILPI_PORT", c.Server.Port)
	c.Server.HTTPPort = getEnv("ILPI_HTTP_PORT", c.Server.HTTPPort)
	c.Server.DisableTLS = getEnvBool("ILPI_DISABLE_TLS", c.Server.DisableTLS)

	c.Client.StoreAddr = getEnv("ILPI_STORE_ADDR", c.Client.StoreAddr)

	c.Sync.LatencyRaw = getEnv("ILPI_LATENCY", c.Sync.LatencyRaw)
	c.Sync.Rollback = getEnvBool("ILPI_ROLLBACK", c.Sync.Rollback)

	c.Insights.APIKey = getEnv("GEMINI_API_KEY", c.Insights.APIKey)
	c.Insights.Model = getEnv("ILPI_INSIGHTS_MODEL", c.Insights.Model)

	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.LogLevel = getEnv("ILPI_LOG_LEVEL", c.App.LogLevel)
}

func (c *Config) validateAndNormalize() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendBadger:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("config: storage.data_dir must be set for backend %q", c.Storage.Backend)
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("config: storage.database_url must be set for backend %q", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("config: storage.key must be set")
	}

	latency, err := parseDurationAllowEmpty(c.Sync.LatencyRaw)
	if err != nil {
		return fmt.Errorf("config: sync.latency: %w", err)
	}
	if latency < 0 {
		return fmt.Errorf("config: sync.latency must not be negative")
	}
	c.Sync.Latency = latency

	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		return fmt.Errorf("config: app.log_level: %w", err)
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
