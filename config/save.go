package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Save writes the persistent subset of cfg as YAML to path with 0600
// permissions, creating the parent directory when needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("api_key", cfg.APIKey)
	v.Set("base_url", cfg.BaseURL)
	if cfg.AuthURL != "" {
		v.Set("auth_url", cfg.AuthURL)
	}
	v.Set("timeout", cfg.Timeout.String())
	v.Set("max_retries", cfg.MaxRetries)
	v.Set("backoff_factor", cfg.BackoffFactor)
	v.Set("log_detailed", cfg.LogDetailed)
	v.Set("circuit.failure_threshold", cfg.Circuit.FailureThreshold)
	v.Set("circuit.recovery_timeout", cfg.Circuit.RecoveryTimeout.String())
	v.Set("optimizer.enabled", cfg.Optimizer.Enabled)
	if cfg.Optimizer.Priority != "" {
		v.Set("optimizer.priority", string(cfg.Optimizer.Priority))
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("config: chmod %s: %w", path, err)
	}
	return nil
}
