package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML renders the configuration in the file format Load reads
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
