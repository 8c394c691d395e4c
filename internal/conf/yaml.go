package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a network configuration document and builds it.
//
// Example document:
//
//	seed: 42
//	defaults:
//	  activation: tanh
//	  learning_rate: 0.1
//	layers:
//	  - {type: dense, n_in: 4, n_out: 3}
//	  - {type: output, n_out: 3, loss: mcxent}
func ParseYAML(data []byte) (*NetworkConfig, error) {
	var c NetworkConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse network config: %w", err)
	}
	return c.Build()
}

// LoadYAML reads and builds a network configuration file.
func LoadYAML(path string) (*NetworkConfig, error) {
	//nolint:gosec // G304: config path comes from the caller by design
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network config: %w", err)
	}
	return ParseYAML(data)
}

// MarshalYAML encodes c as a YAML document.
func MarshalYAML(c *NetworkConfig) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode network config: %w", err)
	}
	return data, nil
}
