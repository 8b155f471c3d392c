package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFileName is the single configuration file under the config dir.
const configFileName = "shipmentqa.yaml"

// Initialize loads, merges, and validates configuration.
//
// Steps performed:
//  1. Read shipmentqa.yaml from configDir (a missing file is allowed;
//     defaults plus environment variables then fully describe the service)
//  2. Expand environment variables in the YAML text
//  3. Parse and merge over built-in defaults
//  4. Apply environment overrides for operational flags
//  5. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"llm_provider", cfg.LLM.Provider,
		"session_backend", cfg.Session.Backend,
		"dataset_test_mode", cfg.Dataset.TestMode,
		"chart_enabled", cfg.Analytics.ChartEnabled,
		"production", cfg.Scope.Production,
	)
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	cfg := &Config{configDir: configDir}

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("No configuration file found, using defaults", "path", path)
		data = nil
	} else if err != nil {
		return nil, &LoadError{File: configFileName, Err: err}
	}

	if len(data) > 0 {
		expanded := ExpandEnv(data)
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, &LoadError{File: configFileName, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
		}
	}

	// Defaults fill in whatever the file left unset.
	if err := mergo.Merge(cfg, defaults()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets operators flip operational switches without
// editing the config file. These take precedence over YAML.
func applyEnvOverrides(cfg *Config) {
	if v, ok := boolEnv("CHART_ENABLED"); ok {
		cfg.Analytics.ChartEnabled = v
	}
	if v, ok := boolEnv("DATASET_TEST_MODE"); ok {
		cfg.Dataset.TestMode = v
	}
	if v, ok := boolEnv("PRODUCTION"); ok {
		cfg.Scope.Production = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func boolEnv(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Ignoring malformed boolean environment variable", "name", name, "value", raw)
		return false, false
	}
	return v, true
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Server.Port))
	}

	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return NewValidationError("llm", "api_key", ErrMissingRequiredField)
		}
	case "mock":
	default:
		return NewValidationError("llm", "provider", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.LLM.Provider))
	}

	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Session.RedisAddr == "" {
			return NewValidationError("session", "redis_addr", ErrMissingRequiredField)
		}
	default:
		return NewValidationError("session", "backend", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.Session.Backend))
	}

	if !cfg.Dataset.TestMode && cfg.Dataset.Bucket == "" {
		return NewValidationError("dataset", "bucket", fmt.Errorf("%w (required unless test_mode is set)", ErrMissingRequiredField))
	}

	if cfg.Retrieval.Alpha < 0 || cfg.Retrieval.Alpha > 1 {
		return NewValidationError("retrieval", "alpha", fmt.Errorf("%w: %v (must be in [0,1])", ErrInvalidValue, cfg.Retrieval.Alpha))
	}

	if cfg.Scope.Production && len(cfg.Scope.DevOverrideCodes) > 0 {
		return NewValidationError("scope", "dev_override_codes", fmt.Errorf("%w: overrides are not allowed in production", ErrInvalidValue))
	}
	if cfg.Scope.RegistryPath == "" && len(cfg.Scope.DevOverrideCodes) == 0 {
		return NewValidationError("scope", "registry_path", fmt.Errorf("%w (a scope registry or dev override is required)", ErrMissingRequiredField))
	}

	return nil
}
