// Package config loads the repo-wide configuration: store/backend/
// resources/autodep settings and the declarative rule list that stands in
// for an Lmakefile (spec §4.2 "Rule ingestion (STUB)": since the
// rule-authoring DSL is out of scope, rules are loaded from YAML instead of
// evaluated from a script). Structure and env-override idiom follow the
// teacher's own config.go (DefaultConfig/Load/Save/applyEnvOverrides).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lmake/internal/logging"
)

// Config holds everything needed to stand up one lmake repo.
type Config struct {
	Repo      RepoConfig      `yaml:"repo"`
	Backend   BackendConfig   `yaml:"backend"`
	Resources ResourcesConfig `yaml:"resources"`
	Autodep   AutodepConfig   `yaml:"autodep"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Rules is the YAML stand-in for an Lmakefile: one entry per RuleDesc
	// the compiler (internal/rule) expects.
	Rules []RuleConfig `yaml:"rules"`
}

// DefaultConfig returns the configuration a freshly-initialized repo gets
// before any lmake.yaml is read.
func DefaultConfig() *Config {
	return &Config{
		Repo:      DefaultRepoConfig(),
		Backend:   DefaultBackendConfig(),
		Resources: DefaultResourcesConfig(),
		Autodep:   DefaultAutodepConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads path as YAML over DefaultConfig, falling back to pure
// defaults when the file does not exist yet (a repo with no lmake.yaml is
// not an error, same as the teacher's Load treating a missing config file
// as "use defaults").
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	log := logging.Get(logging.CategoryConfig)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	log.Infof("config loaded: root=%s rules=%d", cfg.Repo.Root, len(cfg.Rules))
	return cfg, nil
}

// Save writes cfg back out as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides lets a small number of settings be overridden without
// editing lmake.yaml, the same env-first idiom the teacher's config uses
// for its LLM API keys and service URLs.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("LMAKE_ROOT"); root != "" {
		c.Repo.Root = root
	}
	if dir := os.Getenv("LMAKE_STORE_DIR"); dir != "" {
		c.Repo.StoreDir = dir
	}
	if sock := os.Getenv("LMAKE_SOCK_DIR"); sock != "" {
		c.Autodep.SockDir = sock
	}
	if level := os.Getenv("LMAKE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the loaded configuration is internally consistent enough
// to start an engine (spec §7 "ConfigError — unrecoverable").
func (c *Config) Validate() error {
	if c.Repo.Root == "" {
		return fmt.Errorf("config: repo.root is required")
	}
	if c.Backend.Capacity <= 0 {
		return fmt.Errorf("config: backend.capacity must be positive")
	}
	if c.Resources.DefaultCPU <= 0 {
		return fmt.Errorf("config: resources.default_cpu must be positive")
	}
	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if r.Name == "" {
			return fmt.Errorf("config: rule with empty name")
		}
		if seen[r.Name] {
			return fmt.Errorf("config: duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// GetBackendHeartbeatPeriod returns the configured heartbeat sweep period.
func (c *Config) GetBackendHeartbeatPeriod() time.Duration {
	d, err := time.ParseDuration(c.Backend.HeartbeatPeriod)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetBackendRoundTrip returns the configured mngt round-trip grace period.
func (c *Config) GetBackendRoundTrip() time.Duration {
	d, err := time.ParseDuration(c.Backend.RoundTrip)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
