package auth

import (
	"fmt"
	"time"
)

const (
	defaultGracePeriod     = 300 * time.Second
	defaultRefreshAttempts = 3
	defaultInitialBackoff  = 500 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
)

// Config configures token acquisition.
type Config struct {
	// Endpoint is the authentication URL receiving {"api_key": ...}.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// APIKey is exchanged for an access token.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// GracePeriod is the margin before expiry at which the token is refreshed (default: 300s).
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`

	// RefreshAttempts bounds attempts per refresh on transient failures (default: 3).
	RefreshAttempts int `mapstructure:"refresh_attempts" yaml:"refresh_attempts"`

	// InitialBackoff is the first wait between refresh attempts (default: 500ms).
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff caps the wait between refresh attempts (default: 5s).
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.RefreshAttempts <= 0 {
		c.RefreshAttempts = defaultRefreshAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("auth: endpoint is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("auth: api key is required")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("auth: max_backoff (%s) must be >= initial_backoff (%s)", c.MaxBackoff, c.InitialBackoff)
	}
	return nil
}
