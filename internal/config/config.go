// Package config loads proxytrace command configuration from a YAML file
// and PROXYTRACE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/abczzz13/proxytrace"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PROXYTRACE_"

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the command configuration.
//
// Environment variables take precedence over the file. Trust accepts a
// single string or a list in YAML and a comma-separated list in the
// environment; an empty Trust trusts every hop.
type Config struct {
	Trust          TrustList `yaml:"trust" env:"TRUST" envSeparator:","`
	MaxChainLength int       `yaml:"max_chain_length" env:"MAX_CHAIN_LENGTH"`
	Listen         string    `yaml:"listen" env:"LISTEN"`
	GRPCListen     string    `yaml:"grpc_listen" env:"GRPC_LISTEN"`
	LogLevel       string    `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string    `yaml:"log_format" env:"LOG_FORMAT"`

	// RateLimit is the number of requests per second the server accepts
	// from one resolved peer. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// Default returns the configuration used when neither file nor environment
// set a field.
func Default() Config {
	return Config{
		MaxChainLength: proxytrace.DefaultMaxChainLength,
		Listen:         ":8080",
		LogLevel:       "info",
		LogFormat:      LogFormatText,
		RateBurst:      20,
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// TrustList is a list of trust entries that may be written as a single
// string in YAML.
type TrustList []string

// UnmarshalYAML accepts a scalar or a sequence of strings.
func (l *TrustList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = TrustList{value.Value}
		return nil
	case yaml.SequenceNode:
		var entries []string
		if err := value.Decode(&entries); err != nil {
			return fmt.Errorf("trust: %w", err)
		}
		*l = entries
		return nil
	default:
		return fmt.Errorf("trust: line %d: expected a string or a list of strings", value.Line)
	}
}

// Validate reports configuration errors, including trust entries that do
// not compile.
func (c Config) Validate() error {
	var errs []error

	if c.MaxChainLength <= 0 {
		errs = append(errs, fmt.Errorf("max_chain_length must be > 0, got %d", c.MaxChainLength))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log_format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must be >= 0, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_burst must be >= 1 when rate_limit is set, got %d", c.RateBurst))
	}
	if _, err := proxytrace.CompileTrust(c.TrustSpec()); err != nil {
		errs = append(errs, fmt.Errorf("trust: %w", err))
	}

	return errors.Join(errs...)
}

// TrustSpec returns the configured trust as a proxytrace.TrustSpec.
func (c Config) TrustSpec() proxytrace.TrustSpec {
	if len(c.Trust) == 0 {
		return proxytrace.TrustSpec{}
	}

	addrs := make([]string, len(c.Trust))
	copy(addrs, c.Trust)
	return proxytrace.TrustSpec{Addrs: addrs}
}

// TracerOptions returns the proxytrace options derived from c.
func (c Config) TracerOptions() []proxytrace.Option {
	return []proxytrace.Option{
		proxytrace.Trust(c.TrustSpec()),
		proxytrace.MaxChainLength(c.MaxChainLength),
	}
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
