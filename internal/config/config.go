package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds the engine tunables. Values come from an optional YAML file
// plus environment overrides; everything has a usable default.
type Config struct {
	// Accepted year bounds for area activity ranges and visit facts.
	MinYear int `yaml:"min_year"`
	MaxYear int `yaml:"max_year"`

	// Reaction kinds users may pick from.
	ReactionKinds []string `yaml:"reaction_kinds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MinYear:       1900,
		MaxYear:       2100,
		ReactionKinds: []string{"like", "love", "laugh", "wow", "sad", "angry"},
	}
}

// LoadFile parses a YAML config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load resolves configuration for a process.
//
// Environment variables:
//   - ENGINE_CONFIG: path to a YAML config file (optional)
//
// .env.local is loaded first if present, matching how every binary in this
// repo boots.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")

	path := strings.TrimSpace(os.Getenv("ENGINE_CONFIG"))
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

func (c Config) validate() error {
	if c.MinYear > c.MaxYear {
		return fmt.Errorf("min_year %d exceeds max_year %d", c.MinYear, c.MaxYear)
	}
	if len(c.ReactionKinds) == 0 {
		return fmt.Errorf("reaction_kinds must not be empty")
	}
	return nil
}
