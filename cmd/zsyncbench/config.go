package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var errInvalidConfig = errors.New("zsyncbench: invalid config")

// Config is the run configuration. It is loaded from YAML and then overridden by flags.
type Config struct {
	Workers    int           `yaml:"workers"`
	Iterations int           `yaml:"iterations"`
	Keys       int           `yaml:"keys"`
	Rate       int           `yaml:"rate"`
	Per        time.Duration `yaml:"per"`
	Burst      int           `yaml:"burst"`
	// PruneEvery is the interval of the background prune task; 0 disables it.
	PruneEvery time.Duration `yaml:"prune_every"`
	Listen     string        `yaml:"listen"`
}

func defaultConfig() Config {
	return Config{
		Workers:    8,
		Iterations: 1000,
		Keys:       4,
		Rate:       100,
		Per:        time.Second,
		Burst:      10,
		PruneEvery: time.Second,
	}
}

// loadConfig reads path on top of the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0, got %d", errInvalidConfig, c.Workers)
	case c.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be > 0, got %d", errInvalidConfig, c.Iterations)
	case c.Keys <= 0:
		return fmt.Errorf("%w: keys must be > 0, got %d", errInvalidConfig, c.Keys)
	case c.PruneEvery < 0:
		return fmt.Errorf("%w: prune_every must be >= 0, got %s", errInvalidConfig, c.PruneEvery)
	}
	return nil
}
