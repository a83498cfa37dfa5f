// Package config reads the YAML configuration used by the CLI's
// serve command.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = 8080
	DefaultBackend  = "memory"
	DefaultLogLevel = "info"
	DefaultTimeout  = 60 * time.Second
	DefaultMaxSize  = 800 << 20
)

type FeedConfig struct {
	// A local path, an http(s):// URL or a gs://bucket/object URL.
	Source                 string            `yaml:"source" validate:"required"`
	Headers                map[string]string `yaml:"headers"`
	CaseInsensitiveHeaders bool              `yaml:"caseInsensitiveHeaders"`
	Timeout                Duration          `yaml:"timeout" validate:"gte=0"`
	MaxSize                int               `yaml:"maxSize" validate:"gte=0"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" validate:"gt=0,lt=65536"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	SQLiteDirectory string `yaml:"sqliteDirectory"`
	PostgresConnStr string `yaml:"postgresConnStr" validate:"required_if=Backend postgres"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// Duration is a time.Duration written as "30s", "5m" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse reads YAML, fills in defaults, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = Duration(DefaultTimeout)
	}
	if c.Feed.MaxSize == 0 {
		c.Feed.MaxSize = DefaultMaxSize
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GTFS_FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("GTFS_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GTFS_SERVER_PORT '%s': %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GTFS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GTFS_POSTGRES_CONN"); v != "" {
		c.Storage.PostgresConnStr = v
	}
	return nil
}
