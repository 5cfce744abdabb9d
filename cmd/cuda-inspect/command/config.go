// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package command

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/DataDog/cuda-inspect/pkg/util/log"
)

const (
	defaultLogLevel  = "warn"
	defaultCacheSize = 64
)

// Config holds the settings read from the configuration file
type Config struct {
	// LogLevel is the minimum level of the messages written to stderr
	LogLevel string `yaml:"log_level"`
	// SmVersions restricts decoding to cubins of these SM versions, empty means all
	SmVersions []uint32 `yaml:"sm_versions"`
	// Workers is the number of files parsed concurrently
	Workers int `yaml:"workers"`
	// CacheSize is the number of parsed files kept in memory
	CacheSize int `yaml:"cache_size"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  defaultLogLevel,
		Workers:   runtime.NumCPU(),
		CacheSize: defaultCacheSize,
	}
}

// LoadConfig reads the YAML configuration file at path on top of the defaults.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	return nil
}

// WantedSmVersions returns the SM version filter expected by the parser, nil
// when all versions are wanted
func (c *Config) WantedSmVersions() map[uint32]struct{} {
	if len(c.SmVersions) == 0 {
		return nil
	}
	wanted := make(map[uint32]struct{}, len(c.SmVersions))
	for _, v := range c.SmVersions {
		wanted[v] = struct{}{}
	}
	return wanted
}

// Setup loads the configuration referenced by the global flags and configures
// the logger. Subcommands call it first thing in their RunE.
func Setup(globalParams *GlobalParams) (*Config, error) {
	cfg, err := LoadConfig(globalParams.ConfFilePath)
	if err != nil {
		return nil, err
	}

	if globalParams.LogLevel != "" {
		cfg.LogLevel = globalParams.LogLevel
	}
	if err := log.SetupLogger(os.Stderr, cfg.LogLevel); err != nil {
		return nil, err
	}

	log.Debugf("Loaded configuration: %+v", *cfg)
	return cfg, nil
}
