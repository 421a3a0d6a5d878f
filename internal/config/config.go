package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr    = "0.0.0.0:40090"
	defaultSlotDuration  = 400 * time.Millisecond
	defaultCommitmentTTL = 150
	defaultRequestWindow = 150
)

// Config is the securedrawd configuration file.
type Config struct {
	Version       string       `yaml:"version"`
	ListenAddr    string       `yaml:"listen_addr,omitempty"`
	StorePath     string       `yaml:"store_path"`
	DatabasePath  string       `yaml:"database_path,omitempty"` // empty keeps the ledger in memory
	Redis         *RedisConfig `yaml:"redis,omitempty"`         // replaces the DuckDB ledger when set
	Clock         ClockConfig  `yaml:"clock,omitempty"`
	CommitmentTTL uint64       `yaml:"commitment_ttl,omitempty"` // in slots
	RequestWindow uint64       `yaml:"request_window,omitempty"` // in slots
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

type ClockConfig struct {
	Genesis      time.Time     `yaml:"genesis,omitempty"`
	SlotDuration time.Duration `yaml:"slot_duration,omitempty"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.Clock.SlotDuration == 0 {
		c.Clock.SlotDuration = defaultSlotDuration
	}
	if c.CommitmentTTL == 0 {
		c.CommitmentTTL = defaultCommitmentTTL
	}
	if c.RequestWindow == 0 {
		c.RequestWindow = defaultRequestWindow
	}
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.Clock.SlotDuration < 0 {
		return fmt.Errorf("clock.slot_duration must be positive, got %s", c.Clock.SlotDuration)
	}
	if c.Redis != nil {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when redis is configured")
		}
		if c.Redis.Namespace == "" {
			return fmt.Errorf("redis.namespace is required when redis is configured")
		}
		if c.DatabasePath != "" {
			return fmt.Errorf("database_path and redis are mutually exclusive")
		}
	}
	return nil
}
