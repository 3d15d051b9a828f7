package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  Server
	Runtime Runtime
	Output  Output
	Auth    Auth
}

type Server struct {
	// Addr is the listen address for the HTTP API (see --addr).
	Addr string

	// ShutdownTimeout bounds how long graceful shutdown waits for in-flight
	// requests to drain.
	ShutdownTimeout time.Duration
}

type Runtime struct {
	// Concurrency is the maximum number of repositories scanned in parallel
	// per run (see --concurrency). Kept modest so provider rate limits hold.
	Concurrency int

	// PhaseTimeout bounds each pipeline phase (fetch, analyze, enrich)
	// independently (see --phase-timeout). A phase that exceeds it fails that
	// repository, not the run.
	PhaseTimeout time.Duration

	// Retention is how long terminal runs stay queryable before eviction
	// (see --retention).
	Retention time.Duration

	// MaxRuns caps how many terminal runs are kept; oldest are evicted first
	// (see --max-runs). 0 means unlimited.
	MaxRuns int

	// Verbose enables diagnostic logging of provider API calls.
	Verbose bool
}

type Output struct {
	// ConsoleFormat controls the console event stream (see --console-format).
	// Allowed values: text, ndjson.
	ConsoleFormat string

	// Out writes the event stream to a file (see --out); format is inferred
	// from the extension (.json aggregate, .ndjson stream).
	Out string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Auth struct {
	// GitHubToken authenticates the GitHub fetcher (see --github-token).
	// Falls back to GITHUB_TOKEN and then gh CLI auth when empty.
	GitHubToken string
}

func New() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Runtime: Runtime{
			Concurrency:  4,
			PhaseTimeout: 2 * time.Minute,
			Retention:    24 * time.Hour,
			MaxRuns:      1000,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("--addr must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be > 0")
	}

	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.PhaseTimeout <= 0 {
		return errors.New("--phase-timeout must be > 0")
	}
	if c.Runtime.Retention <= 0 {
		return errors.New("--retention must be > 0")
	}
	if c.Runtime.MaxRuns < 0 {
		return errors.New("--max-runs must be >= 0")
	}

	c.Output.ConsoleFormat = strings.ToLower(strings.TrimSpace(c.Output.ConsoleFormat))
	if c.Output.ConsoleFormat == "" {
		c.Output.ConsoleFormat = "text"
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, ndjson)", c.Output.ConsoleFormat)
	}

	return nil
}
