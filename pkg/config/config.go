// Package config loads and validates the service configuration from
// shipmentqa.yaml plus environment variables. The result of Initialize is
// immutable after startup; components receive their section by value.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Graph     GraphConfig     `yaml:"graph"`
	Scope     ScopeConfig     `yaml:"scope"`
	DomainRef DomainRefConfig `yaml:"domain_reference"`
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig selects and parametrizes the language-model provider.
type LLMConfig struct {
	// Provider is "openai" or "mock". Mock is for tests and local runs
	// without credentials.
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// SessionConfig selects the conversation state backend.
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend string   `yaml:"backend"`
	TTL     Duration `yaml:"ttl"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// DatasetConfig locates the daily shipment snapshot.
type DatasetConfig struct {
	CacheDir string `yaml:"cache_dir"`
	Bucket   string `yaml:"bucket"`
	Object   string `yaml:"object"`
	// TestMode substitutes a small built-in fixture for the cloud snapshot.
	TestMode bool `yaml:"test_mode"`
}

// RetrievalConfig parametrizes the hybrid search backend.
type RetrievalConfig struct {
	Host   string  `yaml:"host"`
	Scheme string  `yaml:"scheme"`
	Class  string  `yaml:"class"`
	Alpha  float64 `yaml:"alpha"`
}

// AnalyticsConfig bounds query execution and gates charting.
type AnalyticsConfig struct {
	Timeout      Duration `yaml:"timeout"`
	RowCap       int      `yaml:"row_cap"`
	GroupCap     int      `yaml:"group_cap"`
	ChartEnabled bool     `yaml:"chart_enabled"`
}

// GraphConfig bounds the orchestration machine.
type GraphConfig struct {
	TurnTimeout       Duration `yaml:"turn_timeout"`
	JudgeRetryCeiling int      `yaml:"judge_retry_ceiling"`
	ReplanCeiling     int      `yaml:"replan_ceiling"`
	SearchLimit       int      `yaml:"search_limit"`
}

// ScopeConfig governs principal-to-consignee resolution.
type ScopeConfig struct {
	RegistryPath string `yaml:"registry_path"`
	// Production disables every development affordance, most importantly
	// the scope override below.
	Production bool `yaml:"production"`
	// DevOverrideCodes grants these consignee codes to all principals.
	// Ignored when Production is true.
	DevOverrideCodes []string `yaml:"dev_override_codes"`
}

// DomainRefConfig points at an external domain reference file. Empty means
// the built-in reference compiled into the binary.
type DomainRefConfig struct {
	Path string `yaml:"path"`
}
