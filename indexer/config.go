package indexer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes a bloom-indexer deployment.
type Config struct {
	Environment   string          `yaml:"environment"`
	NodeURL       string          `yaml:"nodeUrl"`
	ListenAddress string          `yaml:"listenAddress"`
	ExportDir     string          `yaml:"exportDir"`
	Database      DatabaseConfig  `yaml:"database"`
	Redis         RedisConfig     `yaml:"redis"`
	Reconnect     BackoffConfig   `yaml:"reconnect"`
	Log           LogConfig       `yaml:"log"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the user profile cache when Address is set.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// LoadConfig reads the YAML file at path. Variables from an optional .env file
// next to the process are loaded first, ${VAR} references in the file are
// expanded and BLOOM_INDEXER_* variables override file values.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("indexer config: load .env: %w", err)
	}
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("indexer config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("indexer config: decode %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"BLOOM_INDEXER_NODE_URL":  &c.NodeURL,
		"BLOOM_INDEXER_LISTEN":    &c.ListenAddress,
		"BLOOM_INDEXER_DB_DRIVER": &c.Database.Driver,
		"BLOOM_INDEXER_DB_DSN":    &c.Database.DSN,
		"BLOOM_INDEXER_REDIS":     &c.Redis.Address,
		"BLOOM_INDEXER_ENV":       &c.Environment,
	}
	for key, dst := range overrides {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
		}
	}
}

func (c *Config) applyDefaults() {
	if c.NodeURL == "" {
		c.NodeURL = "ws://127.0.0.1:8545/ws/events"
	}
	if c.ListenAddress == "" {
		c.ListenAddress = ":8090"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = "bloom-indexer.db"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = time.Minute
	}
	if c.Reconnect.Initial <= 0 {
		c.Reconnect.Initial = 500 * time.Millisecond
	}
	if c.Reconnect.Max <= 0 {
		c.Reconnect.Max = 30 * time.Second
	}
	if c.ExportDir == "" {
		c.ExportDir = "exports"
	}
	if c.Environment == "" {
		c.Environment = "local"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("indexer config: unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("indexer config: database dsn required")
	}
	if !strings.HasPrefix(c.NodeURL, "ws://") && !strings.HasPrefix(c.NodeURL, "wss://") {
		return fmt.Errorf("indexer config: nodeUrl must be a websocket url, got %q", c.NodeURL)
	}
	if c.Reconnect.Max < c.Reconnect.Initial {
		return fmt.Errorf("indexer config: reconnect.max must be >= reconnect.initial")
	}
	return nil
}
