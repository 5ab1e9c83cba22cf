package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration loaded from apitest.yaml.
type Config struct {
	DefaultEnvironment string                       `yaml:"defaultEnvironment,omitempty"`
	Timeout            int                          `yaml:"timeout,omitempty"` // milliseconds
	Retries            int                          `yaml:"retries,omitempty"`
	RetryDelay         int                          `yaml:"retryDelay,omitempty"` // milliseconds
	FollowRedirects    *bool                        `yaml:"followRedirects,omitempty"`
	MaxRedirects       int                          `yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                        `yaml:"validateSSL,omitempty"`
	Proxy              string                       `yaml:"proxy,omitempty"`
	Headers            map[string]string            `yaml:"headers,omitempty"` // default headers for all requests
	Reporters          []string                     `yaml:"reporters,omitempty"`
	OutputDir          string                       `yaml:"outputDir,omitempty"`
	SnapshotDir        string                       `yaml:"snapshotDir,omitempty"`
	Parallel           *bool                        `yaml:"parallel,omitempty"`
	Concurrency        int                          `yaml:"concurrency,omitempty"`
	Rate               float64                      `yaml:"rate,omitempty"` // requests per second, 0 = unlimited
	Bail               *bool                        `yaml:"bail,omitempty"`
	Verbose            *bool                        `yaml:"verbose,omitempty"`
	NoColor            *bool                        `yaml:"noColor,omitempty"`
	Database           string                       `yaml:"database,omitempty"` // sqlite path for db assertions
	Environments       map[string]map[string]string `yaml:"environments,omitempty"`
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true.
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true.
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetParallel returns the parallel setting, defaulting to false.
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetBail returns the bail setting, defaulting to false.
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false.
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false.
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// EnvironmentVariables returns the variable map configured for the named
// environment, or nil when the environment has no entry.
func (c *Config) EnvironmentVariables(name string) map[string]string {
	if c.Environments == nil {
		return nil
	}
	return c.Environments[name]
}

// ConfigFilenames lists the file names searched for project configuration,
// in priority order.
var ConfigFilenames = []string{
	"apitest.yaml",
	"apitest.yml",
	".apitest.yaml",
	".apitest.yml",
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30000,
		Retries:      0,
		RetryDelay:   1000,
		MaxRedirects: 10,
		Reporters:    []string{"console"},
		Concurrency:  5,
		Headers:      map[string]string{},
	}
}

// LoadConfig loads configuration from the specified path, or searches the
// current directory for a config file when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory.
// Defaults are returned when no file is found.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence.
// Zero values in other leave the receiver's values unchanged.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.SnapshotDir != "" {
		result.SnapshotDir = other.SnapshotDir
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Database != "" {
		result.Database = other.Database
	}
	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]string, len(c.Environments)+len(other.Environments))
		for k, v := range c.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}
