package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Runtime.Concurrency < 4 || cfg.Runtime.Concurrency > 8 {
		t.Fatalf("default concurrency = %d, want within provider-friendly 4..8", cfg.Runtime.Concurrency)
	}
	if cfg.Runtime.Retention != 24*time.Hour {
		t.Fatalf("default retention = %s, want 24h", cfg.Runtime.Retention)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Server.Addr = " " },
			wantErr: "--addr",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Runtime.Concurrency = 0 },
			wantErr: "--concurrency",
		},
		{
			name:    "negative phase timeout",
			mutate:  func(c *Config) { c.Runtime.PhaseTimeout = -time.Second },
			wantErr: "--phase-timeout",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Runtime.Retention = 0 },
			wantErr: "--retention",
		},
		{
			name:    "negative max runs",
			mutate:  func(c *Config) { c.Runtime.MaxRuns = -1 },
			wantErr: "--max-runs",
		},
		{
			name:    "unknown console format",
			mutate:  func(c *Config) { c.Output.ConsoleFormat = "yaml" },
			wantErr: "--console-format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizesConsoleFormat(t *testing.T) {
	cfg := New()
	cfg.Output.ConsoleFormat = " NDJSON "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Output.ConsoleFormat != "ndjson" {
		t.Fatalf("console format = %q, want normalized ndjson", cfg.Output.ConsoleFormat)
	}
}
