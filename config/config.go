package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// ComponentConfigs holds component instance configurations.
// The map key is the instance name (e.g., "antsdr-main").
// Components are only created if both:
// 1. Their factory has been registered
// 2. They have an entry in this config map with enabled=true
type ComponentConfigs map[string]types.ComponentConfig

// Config represents the complete application configuration
type Config struct {
	Version    string           `json:"version"    yaml:"version"` // Semantic version (e.g., "1.0.0")
	Platform   PlatformConfig   `json:"platform"   yaml:"platform"`
	NATS       NATSConfig       `json:"nats"       yaml:"nats"`
	Metrics    MetricsConfig    `json:"metrics"    yaml:"metrics"`
	Components ComponentConfigs `json:"components" yaml:"components"`
}

// PlatformConfig defines platform identity
type PlatformConfig struct {
	Org         string `json:"org"                   yaml:"org"`         // Organization namespace (e.g., "alphafox02")
	ID          string `json:"id"                    yaml:"id"`          // Sensor platform identifier (e.g., "antsdr-1")
	Environment string `json:"environment,omitempty" yaml:"environment"` // "prod", "dev", "test"
}

// Meta converts the platform config to the shared identity type
func (p PlatformConfig) Meta() types.PlatformMeta {
	return types.PlatformMeta{Org: p.Org, Platform: p.ID}
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url,omitempty"            yaml:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait"`
	Username      string        `json:"username,omitempty"       yaml:"username"`
	Password      string        `json:"password,omitempty"       yaml:"password"`
	Token         string        `json:"token,omitempty"          yaml:"token"`
}

// MetricsConfig defines the Prometheus metrics server settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled"        yaml:"enabled"`
	Port    int    `json:"port,omitempty" yaml:"port"`
	Path    string `json:"path,omitempty" yaml:"path"`
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Platform.Org == "" {
		return errors.New("platform.org is required")
	}

	c.Platform.Org = strings.ToLower(c.Platform.Org)

	if !isValidNATSSubjectPart(c.Platform.Org) {
		return fmt.Errorf(
			"platform.org '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Platform.Org,
		)
	}

	if c.Platform.ID == "" {
		return errors.New("platform.id is required")
	}

	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}

	if c.Metrics.Enabled && c.Metrics.Port != 0 {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d outside valid range 1-65535", c.Metrics.Port)
		}
	}

	for instanceName, componentCfg := range c.Components {
		if instanceName == "" {
			return errors.New("component instance name cannot be empty")
		}
		if err := componentCfg.Validate(); err != nil {
			return fmt.Errorf("component %s: %w", instanceName, err)
		}
	}

	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Loader handles configuration loading with defaults and env overrides
type Loader struct {
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  "DRONEID",
	}
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single JSON or YAML file, applies
// defaults and environment overrides, and validates the result
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := l.getDefaults()

	rawConfig, err := l.loadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	cfg = l.mergeFromMap(cfg, rawConfig)

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Version: "1.0.0",
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// loadRaw loads configuration from a JSON or YAML file as a map.
// The format is chosen by file extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		rawConfig = normalizeYAMLMap(rawConfig)
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// normalizeYAMLMap converts nested map[any]any values (as produced by older
// YAML decoders) into map[string]any so the JSON merge path can handle them
func normalizeYAMLMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeYAMLValue(v)
	}
	return m
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeYAMLMap(val)
	case map[any]any:
		converted := make(map[string]any, len(val))
		for k, inner := range val {
			converted[fmt.Sprintf("%v", k)] = normalizeYAMLValue(inner)
		}
		return converted
	case []any:
		for i, elem := range val {
			val[i] = normalizeYAMLValue(elem)
		}
		return val
	default:
		return v
	}
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if natsMap, ok := data["nats"].(map[string]any); ok {
		if wait, ok := natsMap["reconnect_wait"].(string); ok {
			if d, err := time.ParseDuration(wait); err == nil {
				natsMap["reconnect_wait"] = d.Nanoseconds()
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := getenvBounded(l.envPrefix + "_PLATFORM_ORG"); val != "" {
		cfg.Platform.Org = val
	}
	if val := getenvBounded(l.envPrefix + "_PLATFORM_ID"); val != "" {
		cfg.Platform.ID = val
	}
	if val := getenvBounded(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := getenvBounded(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := getenvBounded(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := getenvBounded(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
}

// getenvBounded returns an environment variable value, ignoring oversized values
func getenvBounded(key string) string {
	val := os.Getenv(key)
	if len(val) > maxEnvVarLen {
		return ""
	}
	return val
}

// ToJSON converts config to JSON string for debugging
func (c *Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
