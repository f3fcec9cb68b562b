package driver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a pipeline in a YAML file, as an alternative to the
// positional command-line form.
type Config struct {
	QueueSize int      `yaml:"queueSize"`
	Stages    []string `yaml:"stages"`
}

// LoadConfig loads and validates a pipeline description from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", cfg.QueueSize)
	}
	if len(cfg.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	return nil
}
