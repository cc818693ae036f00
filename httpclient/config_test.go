package httpclient

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxIdleConnsPerHost != defaultMaxIdleConns {
		t.Errorf("expected %d idle conns, got %d", defaultMaxIdleConns, cfg.MaxIdleConnsPerHost)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Timeout: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative timeout")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error after defaults: %v", err)
	}
}
