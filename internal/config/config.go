// Package config loads the pipeline settings file: the record schema, node
// defaults and batch tuning.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/record"
	"github.com/airsense/airsense/internal/uplink"
)

// ErrInvalidConfig is returned when the settings file fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config mirrors the pipeline settings file.
//
//	schema:
//	  value_keys: [vBat, pm, aqi]
//	  tag_keys: [location]
//	defaults:
//	  node_type: Catena 4630
//	batch:
//	  concurrency: 8
//	  timeout: 2s
type Config struct {
	Schema   record.Schema        `yaml:"schema"`
	Defaults uplink.Local         `yaml:"defaults"`
	Batch    pipeline.BatchConfig `yaml:"batch"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Schema: record.DefaultSchema(),
		Batch:  pipeline.DefaultBatchConfig(),
	}
}

// Load reads and validates the settings file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes settings from YAML. Absent sections keep their defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Schema.ValueKeys) == 0 && len(c.Schema.TagKeys) == 0 {
		c.Schema = record.DefaultSchema()
	}
	d := pipeline.DefaultBatchConfig()
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = d.Concurrency
	}
	if c.Batch.Timeout == 0 {
		c.Batch.Timeout = d.Timeout
	}
}

// Validate checks the settings for mistakes that would silently drop data.
func (c *Config) Validate() error {
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("%w: batch.concurrency must not be negative", ErrInvalidConfig)
	}
	if c.Batch.Timeout < 0 {
		return fmt.Errorf("%w: batch.timeout must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]string, len(c.Schema.ValueKeys)+len(c.Schema.TagKeys))
	check := func(section string, keys []string) error {
		for _, k := range keys {
			if k == "" {
				return fmt.Errorf("%w: empty key in schema.%s", ErrInvalidConfig, section)
			}
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("%w: key %q listed in schema.%s and schema.%s", ErrInvalidConfig, k, prev, section)
			}
			seen[k] = section
		}
		return nil
	}
	if err := check("value_keys", c.Schema.ValueKeys); err != nil {
		return err
	}
	return check("tag_keys", c.Schema.TagKeys)
}
