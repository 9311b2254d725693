package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that defaults cannot repair.
func (c *AppConfig) Validate() error {
	seen := make(map[domain.Variant]bool)
	for _, v := range c.Variants {
		if _, err := domain.ParseVariant(string(v.Name)); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if seen[v.Name] {
			return fmt.Errorf("invalid config: variant %s declared twice", v.Name)
		}
		seen[v.Name] = true
		if len(v.Endpoints) == 0 {
			return fmt.Errorf("invalid config: variant %s has no endpoints", v.Name)
		}
	}
	if c.Quality.MinAmount < 0 || c.Quality.MaxAmount < c.Quality.MinAmount {
		return fmt.Errorf("invalid config: quality amount range [%v, %v]", c.Quality.MinAmount, c.Quality.MaxAmount)
	}
	if c.Refresh.Multiplier < 1 {
		return fmt.Errorf("invalid config: refresh multiplier %v must be >= 1", c.Refresh.Multiplier)
	}
	return nil
}
