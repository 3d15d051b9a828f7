package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"depscan/internal/config"
	"depscan/internal/enrich"
	"depscan/internal/fetcher"
	gh "depscan/internal/github"
	"depscan/internal/manifest"
	"depscan/internal/output"
	"depscan/internal/scan"
	"depscan/internal/server"
)

var cfg = config.New()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dependency scan HTTP API",
	Long: `Run the dependency scan HTTP API.

Endpoints:
	POST /scans               start a scan run over a set of repositories
	GET  /scans/{runId}       poll a run's point-in-time snapshot
	POST /scans/{runId}/cancel
	GET  /healthz

Authentication:
	The GitHub fetcher uses an access token resolved from --github-token, the
	GITHUB_TOKEN environment variable, or the gh CLI, in that order. Without a
	token only public repositories are reachable and rate limits are lower.

Output:
	Run lifecycle events stream to stderr; --console-format ndjson switches to
	one JSON object per line, --out additionally writes them to a file, and
	--no-console silences the console stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	serveCmd.Flags().IntVar(&cfg.Runtime.Concurrency, "concurrency", cfg.Runtime.Concurrency, "Maximum repositories scanned in parallel per run")
	serveCmd.Flags().DurationVar(&cfg.Runtime.PhaseTimeout, "phase-timeout", cfg.Runtime.PhaseTimeout, "Timeout for each pipeline phase (fetch, analyze, enrich)")
	serveCmd.Flags().DurationVar(&cfg.Runtime.Retention, "retention", cfg.Runtime.Retention, "How long finished runs stay queryable")
	serveCmd.Flags().IntVar(&cfg.Runtime.MaxRuns, "max-runs", cfg.Runtime.MaxRuns, "Maximum finished runs kept in memory (0 = unlimited)")
	serveCmd.Flags().StringVar(&cfg.Auth.GitHubToken, "github-token", "", "GitHub access token (falls back to GITHUB_TOKEN, then gh CLI)")
	serveCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, "console-format", cfg.Output.ConsoleFormat, "Console event format: text or ndjson")
	serveCmd.Flags().StringVar(&cfg.Output.Out, "out", "", "Write the event stream to this file (.json or .ndjson)")
	serveCmd.Flags().BoolVar(&cfg.Output.NoConsole, "no-console", false, "Suppress the console event stream")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := setupOutput(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	registry, err := setupFetchers(ctx, cfg)
	if err != nil {
		return err
	}

	store := scan.NewRunStore(cfg.Runtime.Retention, cfg.Runtime.MaxRuns)
	go store.Janitor(ctx, time.Minute)

	enricher := enrich.NewService(nil, 10*time.Second)
	pipeline, err := scan.NewPipeline(registry, manifest.NewAnalyzer(), enricher, store, events, cfg.Runtime.PhaseTimeout)
	if err != nil {
		return err
	}
	orch, err := scan.NewOrchestrator(store, pipeline, cfg.Runtime.Concurrency, events)
	if err != nil {
		return err
	}
	defer orch.Close()

	api, err := server.New(orch)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "depscan listening on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupOutput(cfg *config.Config) (*output.Manager, error) {
	events := output.NewManager()

	if !cfg.Output.NoConsole {
		if err := events.AddSink(output.NewConsoleSink(os.Stderr, cfg.Output.ConsoleFormat)); err != nil {
			events.Close()
			return nil, err
		}
	}
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, "")
		if err != nil {
			events.Close()
			return nil, err
		}
		if err := events.AddSink(fs); err != nil {
			events.Close()
			return nil, err
		}
	}
	return events, nil
}

func setupFetchers(ctx context.Context, cfg *config.Config) (*fetcher.Registry, error) {
	token, err := gh.ResolveAuthToken(ctx, cfg.Auth.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("resolve github token: %w", err)
	}
	client, err := gh.NewClient(ctx, token, gh.WithVerbose(cfg.Runtime.Verbose, os.Stderr))
	if err != nil {
		return nil, err
	}
	githubFetcher, err := fetcher.NewGitHub(client, fetcher.NewRequestBudget())
	if err != nil {
		return nil, err
	}

	registry := fetcher.NewRegistry()
	if err := registry.Register(scan.ProviderGitHub, githubFetcher); err != nil {
		return nil, err
	}
	if err := registry.Register(scan.ProviderZip, fetcher.NewZip(nil)); err != nil {
		return nil, err
	}
	return registry, nil
}
