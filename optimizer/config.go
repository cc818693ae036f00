package optimizer

import (
	"fmt"
	"slices"
)

// Priority selects how prompts are rewritten.
type Priority string

const (
	PrioritySpeed    Priority = "speed"
	PriorityAccuracy Priority = "accuracy"
	PriorityBalanced Priority = "balanced"
)

// Model tiers, cheapest first.
const (
	ModelLight    = "deepseek_light"
	ModelStandard = "deepseek_v3"
	ModelPro      = "deepseek_pro"
)

// AccuracySuffix is appended to prompts in accuracy mode.
const AccuracySuffix = " Provide detailed and accurate results."

// Config configures the Optimizer.
type Config struct {
	// Priority is speed, accuracy or balanced (default: balanced).
	Priority Priority `mapstructure:"priority" yaml:"priority"`

	// CacheSize bounds the memoized prompts (default: 256).
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`

	// HistorySize is the number of recent prompts kept (default: 50).
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`

	// LowQuotaThreshold forces the light tier when remaining quota is below it (default: 10).
	LowQuotaThreshold int `mapstructure:"low_quota_threshold" yaml:"low_quota_threshold"`

	// ShortPrompt and LongPrompt are the tier boundaries in characters (defaults: 50, 200).
	ShortPrompt int `mapstructure:"short_prompt" yaml:"short_prompt"`
	LongPrompt  int `mapstructure:"long_prompt" yaml:"long_prompt"`

	// TruncateLength is the prompt limit in speed mode (default: 250).
	TruncateLength int `mapstructure:"truncate_length" yaml:"truncate_length"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Priority == "" {
		c.Priority = PriorityBalanced
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.LowQuotaThreshold <= 0 {
		c.LowQuotaThreshold = 10
	}
	if c.ShortPrompt <= 0 {
		c.ShortPrompt = 50
	}
	if c.LongPrompt <= 0 {
		c.LongPrompt = 200
	}
	if c.TruncateLength <= 0 {
		c.TruncateLength = 250
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !slices.Contains([]Priority{PrioritySpeed, PriorityAccuracy, PriorityBalanced}, c.Priority) {
		return fmt.Errorf("optimizer: unknown priority %q", c.Priority)
	}
	if c.LongPrompt <= c.ShortPrompt {
		return fmt.Errorf("optimizer: long_prompt (%d) must exceed short_prompt (%d)", c.LongPrompt, c.ShortPrompt)
	}
	return nil
}
