package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  user_agent: test-agent
  timeout: 30s
  max_retries: 5
  respect_robots: false
ratelimit:
  adaptive: true
  min_rps: 0.5
  max_rps: 8
  speedup_factor: 1.2
  backoff_factor: 0.4
render:
  enabled: true
  max_workers: 3
  nav_timeout: 25s
blob:
  provider: memory
schedules:
  nightly-discover:
    cron: "0 3 * * *"
    stage: discover
    cascade: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.UserAgent != "test-agent" || cfg.Crawler.Timeout != 30*time.Second {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Crawler.RespectRobots {
		t.Fatalf("expected respect_robots override to apply")
	}
	if cfg.RateLimit.MaxRPS != 8 || cfg.RateLimit.BackoffFactor != 0.4 {
		t.Fatalf("expected ratelimit overrides to apply: %+v", cfg.RateLimit)
	}
	if !cfg.Render.Enabled || cfg.Render.MaxWorkers != 3 {
		t.Fatalf("expected render overrides to apply: %+v", cfg.Render)
	}
	sched, ok := cfg.Schedules["nightly-discover"]
	if !ok || sched.Stage != "discover" || !sched.Cascade {
		t.Fatalf("expected schedule to be loaded: %+v", cfg.Schedules)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxRetries != 3 || cfg.Crawler.BackoffBase != 500*time.Millisecond {
		t.Fatalf("expected retry defaults: %+v", cfg.Crawler)
	}
	if !cfg.RateLimit.Adaptive || cfg.RateLimit.MinRPS != 0.1 {
		t.Fatalf("expected adaptive limiter defaults: %+v", cfg.RateLimit)
	}
}

func TestValidateRejectsBadBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"inverted rps bounds", func(c *Config) { c.RateLimit.MinRPS = 5; c.RateLimit.MaxRPS = 1 }},
		{"speedup below one", func(c *Config) { c.RateLimit.SpeedupFactor = 0.9 }},
		{"backoff out of range", func(c *Config) { c.RateLimit.BackoffFactor = 1.5 }},
		{"gcs without bucket", func(c *Config) { c.Blob.Provider = "gcs"; c.Blob.GCSBucket = "" }},
		{"unknown blob provider", func(c *Config) { c.Blob.Provider = "s3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
