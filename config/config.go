// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runtime settings from an optional YAML file and the
// environment, environment winning.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config carries the settings the composition root needs.
type Config struct {
	// DataDir is where the document store keeps its files. Ignored when
	// InMemory is set.
	DataDir string `yaml:"data_dir" env:"CLASSGRAPH_DATA_DIR"`

	// InMemory runs the document store without touching disk.
	InMemory bool `yaml:"in_memory" env:"CLASSGRAPH_IN_MEMORY"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"CLASSGRAPH_LOG_LEVEL"`

	// Timezone names the IANA location used for quota window boundaries,
	// e.g. "Europe/Lisbon". Empty means the host's local time.
	Timezone string `yaml:"timezone" env:"CLASSGRAPH_TIMEZONE"`

	// PoolSize bounds the federated repository's fan-out workers.
	// Zero picks a default from the CPU count.
	PoolSize int `yaml:"pool_size" env:"CLASSGRAPH_POOL_SIZE"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "info",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SlogLevel maps LogLevel onto slog's scale. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
