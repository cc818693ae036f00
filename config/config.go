package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/freeseek/freeseek-go/cache"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/optimizer"
	"github.com/freeseek/freeseek-go/validation"
)

// Defaults for the client configuration surface.
const (
	DefaultBaseURL          = "https://api.freeseek.com/v1"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultBackoffFactor    = 1.0
	DefaultRetryWaitMin     = 2 * time.Second
	DefaultRetryWaitMax     = 10 * time.Second
	DefaultFailureThreshold = 3
	DefaultRecoveryTimeout  = 30 * time.Second
	DefaultGracePeriod      = 300 * time.Second
	DefaultRefreshAttempts  = 3
	DefaultBatchConcurrency = 5

	authPath = "/auth/token"
)

// Config is the complete client configuration.
type Config struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key" validate:"required,notblank"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// AuthURL defaults to BaseURL + "/auth/token".
	AuthURL string `yaml:"auth_url" mapstructure:"auth_url" validate:"omitempty,url"`

	// Timeout applies to each transport attempt, not to a whole call.
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries" validate:"min=1"`
	BackoffFactor float64       `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"gt=0"`
	RetryWaitMin  time.Duration `yaml:"retry_wait_min" mapstructure:"retry_wait_min" validate:"gte=0"`
	RetryWaitMax  time.Duration `yaml:"retry_wait_max" mapstructure:"retry_wait_max" validate:"gtefield=RetryWaitMin"`

	// LogDetailed enables per-middleware and per-attempt debug logging.
	LogDetailed      bool `yaml:"log_detailed" mapstructure:"log_detailed"`
	BatchConcurrency int  `yaml:"batch_concurrency" mapstructure:"batch_concurrency" validate:"min=1"`

	// MaxInFlight caps concurrent transport attempts. Zero disables the cap.
	MaxInFlight int `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"min=0"`
	// RequestsPerSecond paces transport attempts. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
	// ValidateSchema checks required schema fields before Infer.
	ValidateSchema bool `yaml:"validate_schema" mapstructure:"validate_schema"`

	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Token     TokenConfig     `yaml:"token" mapstructure:"token"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Logging   logger.Config   `yaml:"logging" mapstructure:"logging"`
}

// CircuitConfig configures the circuit breaker.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"min=1"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout" validate:"gt=0"`
}

// TokenConfig configures bearer token refresh.
type TokenConfig struct {
	GracePeriod     time.Duration `yaml:"grace_period" mapstructure:"grace_period" validate:"gte=0"`
	RefreshAttempts int           `yaml:"refresh_attempts" mapstructure:"refresh_attempts" validate:"min=1"`
}

// CacheConfig configures the model metadata cache. A non-empty Redis.Addr
// selects the Redis store over the in-memory one.
type CacheConfig struct {
	Enabled bool              `yaml:"enabled" mapstructure:"enabled"`
	Size    int               `yaml:"size" mapstructure:"size" validate:"min=0"`
	TTL     time.Duration     `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
	Redis   cache.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// UseRedis reports whether the Redis store is configured.
func (c *CacheConfig) UseRedis() bool {
	return c.Enabled && c.Redis.Addr != ""
}

// OptimizerConfig enables the adaptive optimizer on Infer.
type OptimizerConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	optimizer.Config `yaml:",inline" mapstructure:",squash"`
}

// Default returns a Config with every default applied.
func Default() Config {
	cfg := Config{
		BaseURL:     DefaultBaseURL,
		LogDetailed: true,
		Cache:       CacheConfig{Enabled: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields. Boolean switches are left alone.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.AuthURL == "" {
		c.AuthURL = c.BaseURL + authPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = DefaultRetryWaitMin
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = DefaultRetryWaitMax
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	if c.Circuit.FailureThreshold <= 0 {
		c.Circuit.FailureThreshold = DefaultFailureThreshold
	}
	if c.Circuit.RecoveryTimeout <= 0 {
		c.Circuit.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.Token.GracePeriod <= 0 {
		c.Token.GracePeriod = DefaultGracePeriod
	}
	if c.Token.RefreshAttempts <= 0 {
		c.Token.RefreshAttempts = DefaultRefreshAttempts
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = cache.DefaultSize
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = cache.DefaultTTL
	}
	if c.Cache.Redis.Addr != "" {
		c.Cache.Redis.ApplyDefaults()
		if c.Cache.Redis.TTL <= 0 {
			c.Cache.Redis.TTL = c.Cache.TTL
		}
	}
	c.Optimizer.ApplyDefaults()
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Cache.UseRedis() {
		if err := c.Cache.Redis.Validate(); err != nil {
			return fmt.Errorf("config.cache.redis: %w", err)
		}
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("config.optimizer: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
