package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "FREESEEK"
	// FileName is the default config file name looked up in the working
	// directory and then in the home directory.
	FileName = ".freeseek.yaml"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	UserHomeDir() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// Resolver handles finding the config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths if provided, otherwise searches the
// working directory and then the home directory.
func (r *Resolver) ResolveFiles(opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.findConfigFile()
	}
	if resolved.EnvFile == "" && r.FileSystem.Exists(".env") {
		resolved.EnvFile = ".env"
	}
	return resolved
}

func (r *Resolver) findConfigFile() string {
	searchPaths := []string{"./" + FileName}
	if home, err := r.FileSystem.UserHomeDir(); err == nil && home != "" {
		searchPaths = append(searchPaths, filepath.Join(home, FileName))
	}
	for _, path := range searchPaths {
		if r.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// DefaultPath returns $HOME/.freeseek.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	// SkipValidation returns the config without calling Validate, for
	// commands that run before an API key exists.
	SkipValidation bool
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithoutValidation skips Validate after loading.
func WithoutValidation() LoaderOption {
	return func(lc *LoaderConfig) { lc.SkipValidation = true }
}

// Load builds a Config from defaults, the YAML config file, a .env file and
// FREESEEK_* environment variables, in increasing order of precedence.
// Nested keys map to underscores: circuit.failure_threshold is read from
// FREESEEK_CIRCUIT_FAILURE_THRESHOLD.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(lc)

	cfg, err := loadFromResolvedFiles(files, lc.FileSystem)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if lc.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromResolvedFiles(files ResolvedFiles, fs FileSystem) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 1. YAML config file
	if files.ConfigFile != "" {
		if !fs.Exists(files.ConfigFile) {
			return nil, fmt.Errorf("config: file %s not found", files.ConfigFile)
		}
		v.SetConfigFile(files.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", files.ConfigFile, err)
		}
	}

	// 2. .env file, without overriding variables already in the process
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", files.EnvFile, err)
		}
	}

	// 3. Environment variables
	bindEnv(v)
	normalizeDurations(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// defaults registers every key viper should know about. Keys without a
// default are registered with BindEnv so AutomaticEnv still finds them.
var defaults = map[string]any{
	"base_url":                  DefaultBaseURL,
	"timeout":                   DefaultTimeout.String(),
	"max_retries":               DefaultMaxRetries,
	"backoff_factor":            DefaultBackoffFactor,
	"retry_wait_min":            DefaultRetryWaitMin.String(),
	"retry_wait_max":            DefaultRetryWaitMax.String(),
	"log_detailed":              true,
	"batch_concurrency":         DefaultBatchConcurrency,
	"max_in_flight":             0,
	"requests_per_second":       0.0,
	"validate_schema":           false,
	"circuit.failure_threshold": DefaultFailureThreshold,
	"circuit.recovery_timeout":  DefaultRecoveryTimeout.String(),
	"token.grace_period":        DefaultGracePeriod.String(),
	"token.refresh_attempts":    DefaultRefreshAttempts,
	"cache.enabled":             true,
	"cache.size":                128,
	"cache.ttl":                 "5m",
	"optimizer.enabled":         false,
	"optimizer.priority":        "balanced",
	"logging.level":             "info",
	"logging.format":            "console",
	"logging.output":            "stderr",
}

var envOnlyKeys = []string{
	"api_key",
	"auth_url",
	"cache.redis.addr",
	"cache.redis.password",
	"cache.redis.db",
	"cache.redis.key_prefix",
	"optimizer.low_quota_threshold",
	"optimizer.cache_size",
}

var durationKeys = []string{
	"timeout",
	"retry_wait_min",
	"retry_wait_max",
	"circuit.recovery_timeout",
	"token.grace_period",
	"cache.ttl",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}
}

// normalizeDurations accepts bare numbers as seconds, so FREESEEK_TIMEOUT=30
// means thirty seconds.
func normalizeDurations(v *viper.Viper) {
	for _, key := range durationKeys {
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			v.Set(key, strconv.FormatFloat(secs, 'f', -1, 64)+"s")
		}
	}
}
