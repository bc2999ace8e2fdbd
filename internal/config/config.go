// ABOUTME: Configuration loading and parsing for the agentlite gateway
// ABOUTME: Supports YAML and TOML files with env var expansion, layered overlays, and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete agentlite gateway configuration
type Config struct {
	Server       ServerConfig           `yaml:"server" toml:"server"`
	Database     DatabaseConfig         `yaml:"database" toml:"database"`
	Logging      LoggingConfig          `yaml:"logging" toml:"logging"`
	Session      SessionConfig          `yaml:"session" toml:"session"`
	Models       map[string]ModelConfig `yaml:"models" toml:"models"`
	Agents       map[string]AgentConfig `yaml:"agents" toml:"agents"`
	ActiveAgents []string               `yaml:"active_agents" toml:"active_agents"`
}

// ServerConfig holds server address and dispatch configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// MaxDispatch caps concurrently running command handlers (0 = default)
	MaxDispatch int `yaml:"max_dispatch" toml:"max_dispatch"`
}

// DatabaseConfig holds conversation store configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// SessionConfig holds request/bridge timing configuration
type SessionConfig struct {
	RequestTimeout time.Duration `yaml:"-" toml:"-"`
	BridgeGrace    time.Duration `yaml:"-" toml:"-"`

	// Raw string values for file unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
	BridgeGraceRaw    string `yaml:"bridge_grace" toml:"bridge_grace"`
}

// ModelConfig describes one LLM endpoint an agent may use
type ModelConfig struct {
	Provider  string `yaml:"provider" toml:"provider"`
	ModelName string `yaml:"model_name" toml:"model_name"`
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
}

// AgentConfig describes one named agent built at startup
type AgentConfig struct {
	SystemPrompt string   `yaml:"system_prompt" toml:"system_prompt"`
	Model        string   `yaml:"model" toml:"model"`
	MaxTurns     int      `yaml:"max_turns" toml:"max_turns"`
	Tools        []string `yaml:"tools" toml:"tools"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	raw, err := loadRaw(path)
	if err != nil {
		return nil, err
	}
	return fromRaw(raw)
}

// LoadLayered loads configuration in three overlay layers, later layers
// overriding earlier ones key by key:
//
//  1. dir/config.yaml               (base)
//  2. dir/{env}/config.yaml         (environment overlay, optional)
//  3. dir/{env}/{ns}/config.yaml    (namespace overlay, optional)
func LoadLayered(dir, env, namespace string) (*Config, error) {
	raw, err := loadRaw(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}

	if env != "" {
		overlay, err := loadRawOptional(filepath.Join(dir, env, "config.yaml"))
		if err != nil {
			return nil, err
		}
		raw = deepMerge(raw, overlay)

		if namespace != "" {
			overlay, err := loadRawOptional(filepath.Join(dir, env, namespace, "config.yaml"))
			if err != nil {
				return nil, err
			}
			raw = deepMerge(raw, overlay)
		}
	}

	return fromRaw(raw)
}

// loadRaw reads and decodes one config file into a raw map.
func loadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	raw := map[string]any{}
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return raw, nil
}

// loadRawOptional is loadRaw but a missing file yields an empty map.
func loadRawOptional(path string) (map[string]any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	return loadRaw(path)
}

// fromRaw converts a merged raw map into a validated Config.
// Round-tripping through YAML keeps one set of struct tags authoritative.
func fromRaw(raw map[string]any) (*Config, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encoding merged config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing merged config: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// deepMerge recursively merges override into base, returning a new map.
// Nested maps merge key by key; any other value type is replaced outright.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		bv, exists := result[k]
		bm, bok := bv.(map[string]any)
		om, ook := v.(map[string]any)
		if exists && bok && ook {
			result[k] = deepMerge(bm, om)
		} else {
			result[k] = v
		}
	}
	return result
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	for _, name := range c.ActiveAgents {
		if _, ok := c.Agents[name]; !ok {
			return fmt.Errorf("active agent %q is not defined under agents", name)
		}
	}

	for name, agent := range c.Agents {
		if agent.Model != "" {
			if _, ok := c.Models[agent.Model]; !ok {
				return fmt.Errorf("agent %q references undefined model %q", name, agent.Model)
			}
		}
	}

	if c.Session.BridgeGrace <= 0 {
		c.Session.BridgeGrace = 30 * time.Second
	}

	return nil
}

// GetModel returns the named model config or an error listing what exists.
func (c *Config) GetModel(name string) (ModelConfig, error) {
	m, ok := c.Models[name]
	if !ok {
		names := make([]string, 0, len(c.Models))
		for n := range c.Models {
			names = append(names, n)
		}
		return ModelConfig{}, fmt.Errorf("model %q is not defined, available: %s", name, strings.Join(names, ", "))
	}
	return m, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.RequestTimeoutRaw != "" {
		cfg.Session.RequestTimeout, err = time.ParseDuration(cfg.Session.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Session.RequestTimeoutRaw, err)
		}
	}

	if cfg.Session.BridgeGraceRaw != "" {
		cfg.Session.BridgeGrace, err = time.ParseDuration(cfg.Session.BridgeGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing bridge_grace %q: %w", cfg.Session.BridgeGraceRaw, err)
		}
	}

	return nil
}
