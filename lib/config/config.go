// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/backlog/lib/depgraph"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is a single developer's checkout.
	Development Environment = "development"
	// Staging is a shared pre-production backlog.
	Staging Environment = "staging"
	// Production is a backlog worked by a fleet of agents.
	Production Environment = "production"
)

// ConfigEnvVar names the environment variable [Load] reads.
const ConfigEnvVar = "BACKLOG_CONFIG"

// DefaultRoot is the backlog directory used when neither a config
// file nor --root names one.
const DefaultRoot = ".backlog"

// Config is the backlog configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Lock configures the priority lock.
	Lock LockConfig `yaml:"lock"`

	// Limits configures the dependency engine.
	Limits LimitsConfig `yaml:"limits"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Empty strings and zero limits leave the base value.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Lock   *LockConfig   `yaml:"lock,omitempty"`
	Limits *LimitsConfig `yaml:"limits,omitempty"`
}

// PathsConfig configures file locations. Database, Lock, and
// MetricsTextfile may refer to ${BACKLOG_ROOT}.
type PathsConfig struct {
	// Root is the backlog directory.
	Root string `yaml:"root"`

	// Database is the SQLite file.
	Database string `yaml:"database"`

	// Lock is the priority lock marker file.
	Lock string `yaml:"lock"`

	// MetricsTextfile, when set, receives the lock metrics in
	// Prometheus text format after each command that takes the lock.
	// Point it into node_exporter's textfile collector directory.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LockConfig configures the priority lock. Values are Go duration
// strings ("30s", "100ms").
type LockConfig struct {
	Timeout      string `yaml:"timeout"`
	PollInterval string `yaml:"poll_interval"`

	// StaleAfter is the marker age beyond which a waiter reclaims the
	// lock. Empty means the same as Timeout.
	StaleAfter string `yaml:"stale_after"`
}

// LimitsConfig configures the dependency engine's static limits.
type LimitsConfig struct {
	MaxDependencies    int `yaml:"max_dependencies"`
	MaxDependencyDepth int `yaml:"max_dependency_depth"`
}

// Default returns the default configuration rooted at DefaultRoot,
// with variables already expanded.
func Default() *Config {
	return ForRoot(DefaultRoot)
}

// ForRoot returns the default configuration rooted at root. This is
// what the CLI uses when no config file is given.
func ForRoot(root string) *Config {
	cfg := defaults()
	cfg.Paths.Root = root
	cfg.expandVariables()
	return cfg
}

func defaults() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     DefaultRoot,
			Database: "${BACKLOG_ROOT}/backlog.db",
			Lock:     "${BACKLOG_ROOT}/priority.lock",
		},
		Lock: LockConfig{
			Timeout:      "30s",
			PollInterval: "100ms",
		},
		Limits: LimitsConfig{
			MaxDependencies:    depgraph.MaxDependencies,
			MaxDependencyDepth: depgraph.MaxDependencyDepth,
		},
	}
}

// Load loads configuration from the file named by BACKLOG_CONFIG.
// There is no discovery: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your backlog.yaml config file, or use --config flag", ConfigEnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the override
// section for the configured environment, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production workers can be slow; do not reclaim a marker
		// until it is clearly abandoned.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Lock: &LockConfig{StaleAfter: "5m"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		setString(&c.Paths.Root, overrides.Paths.Root)
		setString(&c.Paths.Database, overrides.Paths.Database)
		setString(&c.Paths.Lock, overrides.Paths.Lock)
		setString(&c.Paths.MetricsTextfile, overrides.Paths.MetricsTextfile)
	}
	if overrides.Lock != nil {
		setString(&c.Lock.Timeout, overrides.Lock.Timeout)
		setString(&c.Lock.PollInterval, overrides.Lock.PollInterval)
		setString(&c.Lock.StaleAfter, overrides.Lock.StaleAfter)
	}
	if overrides.Limits != nil {
		if overrides.Limits.MaxDependencies != 0 {
			c.Limits.MaxDependencies = overrides.Limits.MaxDependencies
		}
		if overrides.Limits.MaxDependencyDepth != 0 {
			c.Limits.MaxDependencyDepth = overrides.Limits.MaxDependencyDepth
		}
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"BACKLOG_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["BACKLOG_ROOT"] = c.Paths.Root

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Lock = expandVars(c.Paths.Lock, vars)
	c.Paths.MetricsTextfile = expandVars(c.Paths.MetricsTextfile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars take precedence
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// LockDurations holds the parsed lock timing.
type LockDurations struct {
	Timeout      time.Duration
	PollInterval time.Duration
	StaleAfter   time.Duration
}

// Durations parses the lock timing. An empty StaleAfter yields zero,
// which the lock treats as "same as Timeout".
func (l LockConfig) Durations() (LockDurations, error) {
	var (
		durations LockDurations
		errs      []error
	)
	parse := func(field, value string, target *time.Duration, required bool) {
		if value == "" {
			if required {
				errs = append(errs, fmt.Errorf("lock.%s is required", field))
			}
			return
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("lock.%s: %w", field, err))
			return
		}
		if parsed <= 0 {
			errs = append(errs, fmt.Errorf("lock.%s must be positive, got %s", field, value))
			return
		}
		*target = parsed
	}
	parse("timeout", l.Timeout, &durations.Timeout, true)
	parse("poll_interval", l.PollInterval, &durations.PollInterval, true)
	parse("stale_after", l.StaleAfter, &durations.StaleAfter, false)

	if len(errs) > 0 {
		return LockDurations{}, errors.Join(errs...)
	}
	return durations, nil
}

// Engine converts the limits into depgraph limits.
func (l LimitsConfig) Engine() depgraph.Limits {
	return depgraph.Limits{
		MaxDependencies:    l.MaxDependencies,
		MaxDependencyDepth: l.MaxDependencyDepth,
	}
}

// Validate checks the configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}
	if c.Paths.Lock == "" {
		errs = append(errs, fmt.Errorf("paths.lock is required"))
	}
	if _, err := c.Lock.Durations(); err != nil {
		errs = append(errs, err)
	}
	if c.Limits.MaxDependencies < 1 {
		errs = append(errs, fmt.Errorf("limits.max_dependencies must be at least 1, got %d", c.Limits.MaxDependencies))
	}
	if c.Limits.MaxDependencyDepth < 1 {
		errs = append(errs, fmt.Errorf("limits.max_dependency_depth must be at least 1, got %d", c.Limits.MaxDependencyDepth))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the root directory and the parent directories
// of every configured file.
func (c *Config) EnsurePaths() error {
	directories := []string{c.Paths.Root}
	for _, file := range []string{c.Paths.Database, c.Paths.Lock, c.Paths.MetricsTextfile} {
		if file != "" {
			directories = append(directories, filepath.Dir(file))
		}
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
