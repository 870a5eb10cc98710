package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config carries process-level settings sourced from the environment. The
// pipeline itself is configured through YAML files (see PipelineConfig).
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DataDir    string `envconfig:"FIREHOSE_DATA_DIR" default:"data"`
	ConfigPath string `envconfig:"FIREHOSE_CONFIG" default:"config/config.yaml"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("FIREHOSE_DATA_DIR is required")
	}
	if strings.TrimSpace(c.ConfigPath) == "" {
		return fmt.Errorf("FIREHOSE_CONFIG is required")
	}
	return nil
}

// ResolveDataPath anchors a store path from the YAML config under the data
// directory unless it is already absolute.
func (c *Config) ResolveDataPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
