// Package txmap loads the transaction map: the out-of-scope REST/JSON
// invocation router's configuration data, read once at startup per
// spec.md §3. Only the data load is in scope; the router itself is
// not built here.
package txmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParameterConfig describes one named parameter a transaction accepts.
type ParameterConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// TransactionConfig describes how to route one transaction ID to a
// backend protocol and server.
type TransactionConfig struct {
	Protocol         string            `yaml:"protocol"`
	Server           string            `yaml:"server"`
	Parameters       []ParameterConfig `yaml:"parameters"`
	ExpectedResponse any               `yaml:"expected_response,omitempty"`
}

// TransactionMap is transaction ID to TransactionConfig.
type TransactionMap struct {
	Transactions map[string]TransactionConfig `yaml:"transactions"`
}

// Load reads and parses a transaction map YAML file at path.
func Load(path string) (TransactionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TransactionMap{}, fmt.Errorf("txmap: read %s: %w", path, err)
	}

	var tm TransactionMap
	if err := yaml.Unmarshal(data, &tm); err != nil {
		return TransactionMap{}, fmt.Errorf("txmap: parse %s: %w", path, err)
	}
	return tm, nil
}

// Lookup returns the configuration for a transaction ID.
func (tm TransactionMap) Lookup(txID string) (TransactionConfig, bool) {
	cfg, ok := tm.Transactions[txID]
	return cfg, ok
}
