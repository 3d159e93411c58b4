// Package config loads the custody service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ftchann/uniswap-custody/lib/custody"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	Custody struct {
		// Account is the label the custody account address is derived from.
		Account            string            `yaml:"account"`
		DecreaseSettlement string            `yaml:"decrease_settlement"`
		Access             map[string]string `yaml:"access"`
	} `yaml:"custody"`

	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Metrics struct {
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// Default returns a configuration with every field set except the decrease
// settlement, which a deployment has to choose.
func Default() *Config {
	var cfg Config
	cfg.Custody.Account = "custody"
	cfg.Store.Driver = DriverMemory
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Metrics.Namespace = "uniswap"
	return &cfg
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	cfg.OverrideWithEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads a document over the defaults without applying the environment
// or validating.
func Decode(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// OverrideWithEnv applies CUSTODY_* environment variables. They take
// precedence over the file.
func (c *Config) OverrideWithEnv() {
	if v := os.Getenv("CUSTODY_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("CUSTODY_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CUSTODY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CUSTODY_DECREASE_SETTLEMENT"); v != "" {
		c.Custody.DecreaseSettlement = v
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Custody.Account) == "" {
		return fmt.Errorf("%w: custody.account is empty", ErrInvalid)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Policy builds the custody policy: the default access table overlaid with
// custody.access, and the named decrease settlement.
func (c *Config) Policy() (custody.Policy, error) {
	settlement, err := custody.ParseSettlement(c.Custody.DecreaseSettlement)
	if err != nil {
		return custody.Policy{}, err
	}
	policy := custody.NewPolicy(settlement)
	for op, value := range c.Custody.Access {
		access, err := custody.ParseAccess(value)
		if err != nil {
			return custody.Policy{}, err
		}
		policy.Access[custody.Operation(op)] = access
	}
	return policy, policy.Validate()
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
