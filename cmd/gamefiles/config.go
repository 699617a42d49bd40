package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML file named by --config. Flags given on
// the command line win over values from the file.
type fileConfig struct {
	// Workers bounds concurrent entry extraction. Zero picks a default.
	Workers int `yaml:"workers"`

	// Convert controls XMB to XML conversion on extract and XML to XMB
	// conversion on pack.
	Convert *bool `yaml:"convert"`

	// FileTimes records file modification times when packing.
	FileTimes bool `yaml:"file_times"`

	// KeepCompressed lists extensions kept in l33t containers.
	KeepCompressed []string `yaml:"keep_compressed"`

	// MarkupExtensions lists extensions converted to XMB when packing.
	MarkupExtensions []string `yaml:"markup_extensions"`

	Verbose bool `yaml:"verbose"`
}

// loadConfig reads path. An empty path yields the zero config.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *fileConfig) validate() error {
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	return nil
}

// convert reports the effective conversion setting.
func (c *fileConfig) convert() bool {
	return c.Convert == nil || *c.Convert
}
