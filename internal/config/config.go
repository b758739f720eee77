// Package config loads the runner configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tothlab/toth/internal/dynload"
)

// Config controls which extensions the runner loads and the loader's default
// symbol-resolution policy. Load hooks can still override the policy per
// library.
type Config struct {
	Preload       []string `yaml:"preload"`
	DynamicLookup *bool    `yaml:"dynamic_lookup"`
	MaxLibraries  int      `yaml:"max_libraries"`
	Verbose       bool     `yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MaxLibraries: dynload.DefaultMaxLibraries,
	}
}

// Load reads a YAML config file. A missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxLibraries <= 0 {
		cfg.MaxLibraries = dynload.DefaultMaxLibraries
	}
	return cfg, nil
}

// LoaderOptions translates the config into loader options.
func (c Config) LoaderOptions() []dynload.LoaderOption {
	opts := []dynload.LoaderOption{
		dynload.WithMaxLibraries(c.MaxLibraries),
	}
	if c.DynamicLookup != nil {
		opts = append(opts, dynload.WithDynamicLookup(*c.DynamicLookup))
	}
	return opts
}
