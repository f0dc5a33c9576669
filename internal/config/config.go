// Package config loads and validates the asrsd.yml configuration file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/siamwms/asrsd/internal/mover"
	"github.com/siamwms/asrsd/internal/plc"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the top-level asrsd.yml configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Instance string         `yaml:"instance"`
	PLC      PLCConfig      `yaml:"plc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	API      APIConfig      `yaml:"api"`
	Crane    CraneConfig    `yaml:"crane"`
}

// PLCConfig specifies the OPC UA connection and register map.
type PLCConfig struct {
	Endpoint   string     `yaml:"endpoint"`
	RetryDelay Duration   `yaml:"retry_delay,omitempty"`
	MaxRetries int        `yaml:"max_retries,omitempty"` // 0 = retry forever
	Nodes      *plc.Nodes `yaml:"nodes,omitempty"`       // nil = plant defaults
}

// DatabaseConfig specifies the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig specifies the Redis instance backing the status feed.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// APIConfig specifies the HTTP listen address.
type APIConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// CraneConfig tunes the mover for one installation.
type CraneConfig struct {
	Calibration    *mover.Calibration `yaml:"calibration,omitempty"` // nil = plant defaults
	QRInterval     Duration           `yaml:"qr_interval,omitempty"`
	StatusInterval Duration           `yaml:"status_interval,omitempty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}

	if c.PLC.Endpoint == "" {
		return fmt.Errorf("plc.endpoint is required")
	}
	u, err := url.Parse(c.PLC.Endpoint)
	if err != nil || u.Scheme != "opc.tcp" || u.Hostname() == "" || u.Port() == "" {
		return fmt.Errorf("invalid OPC UA endpoint: %s (expected opc.tcp://host:port)", c.PLC.Endpoint)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PLC.RetryDelay <= 0 {
		c.PLC.RetryDelay = Duration(2 * time.Second)
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8001"
	}
	if c.Crane.QRInterval <= 0 {
		c.Crane.QRInterval = Duration(500 * time.Millisecond)
	}
	if c.Crane.StatusInterval <= 0 {
		c.Crane.StatusInterval = Duration(time.Second)
	}
}

// Nodes returns the configured register map or the plant defaults.
func (c *Config) Nodes() plc.Nodes {
	if c.PLC.Nodes != nil {
		return *c.PLC.Nodes
	}
	return plc.DefaultNodes()
}

// Calibration returns the configured encoder calibration or the plant
// defaults.
func (c *Config) Calibration() mover.Calibration {
	if c.Crane.Calibration != nil {
		return *c.Crane.Calibration
	}
	return mover.DefaultCalibration()
}
