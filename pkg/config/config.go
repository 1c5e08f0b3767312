// Package config holds the yaml-backed settings for a single supervisor
// run: how long to wait for causal skew to settle, where to write the
// snapshot, and the log level. TraceFile is stored and round-tripped by
// Load/Save, but `syncordian replay` takes its trace path from its
// argument and does not read it. Peers themselves hold no config of their
// own and persist nothing across restarts — only the driver's run-to-run
// preferences live here.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const configFilePerm = 0o600

// Config is the top-level settings document for `syncordian replay`.
type Config struct {
	TraceFile          string        `yaml:"traceFile"`
	SnapshotOutputFile string        `yaml:"snapshotOutputFile,omitempty"`
	QuiescenceTimeout  time.Duration `yaml:"quiescenceTimeout,omitempty"`
	LogLevel           string        `yaml:"logLevel,omitempty"`
}

const DefaultQuiescenceTimeout = 5 * time.Second

// QuiescenceTimeoutOrDefault returns the configured timeout, falling back
// to DefaultQuiescenceTimeout when unset.
func (c Config) QuiescenceTimeoutOrDefault() time.Duration {
	if c.QuiescenceTimeout <= 0 {
		return DefaultQuiescenceTimeout
	}
	return c.QuiescenceTimeout
}

// Load reads and validates a config file. A missing file is not an
// error — callers get a zero-value Config and rely on flags/defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.QuiescenceTimeout < 0 {
		return errors.New("config: quiescenceTimeout must be >= 0")
	}
	return nil
}

// Save writes cfg to path, overwriting any existing file.
func Save(path string, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	encoded, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, encoded, configFilePerm); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

type contextKey struct{}

// WithContext attaches cfg to ctx so subcommands sharing the root command's
// context can retrieve the resolved configuration without re-reading it.
func WithContext(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the Config attached by WithContext, or the zero value
// if none was attached.
func FromContext(ctx context.Context) Config {
	cfg, _ := ctx.Value(contextKey{}).(Config)
	return cfg
}
