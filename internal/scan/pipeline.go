package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"depscan/internal/output"
)

// Pipeline drives one repository through fetch, analyze, enrich and
// finalize, writing progress into the run's store entry as it goes.
//
// Every fault, including a panic inside a collaborator, is converted into a
// failed ScanProgress for that repository. Nothing escapes Run, so one
// misbehaving repository can never take down the orchestrator or its
// siblings.
type Pipeline struct {
	fetchers     FetcherResolver
	analyzer     ManifestAnalyzer
	enricher     EnrichmentService
	store        *RunStore
	events       *output.Manager
	phaseTimeout time.Duration
}

func NewPipeline(fetchers FetcherResolver, analyzer ManifestAnalyzer, enricher EnrichmentService, store *RunStore, events *output.Manager, phaseTimeout time.Duration) (*Pipeline, error) {
	if fetchers == nil {
		return nil, errors.New("pipeline: fetcher resolver is nil")
	}
	if analyzer == nil {
		return nil, errors.New("pipeline: analyzer is nil")
	}
	if enricher == nil {
		return nil, errors.New("pipeline: enricher is nil")
	}
	if store == nil {
		return nil, errors.New("pipeline: store is nil")
	}
	return &Pipeline{
		fetchers:     fetchers,
		analyzer:     analyzer,
		enricher:     enricher,
		store:        store,
		events:       events,
		phaseTimeout: phaseTimeout,
	}, nil
}

// Run executes the full pipeline for one repository of one run. It always
// leaves the repository's ScanProgress in a terminal state before returning.
func (p *Pipeline) Run(ctx context.Context, runID string, repo RepoRef, depth Depth) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(runID, repo, fmt.Sprintf("panic during scan: %v", r))
		}
	}()

	p.events.Write(output.Event{Type: "repo.started", Run: runID, Repo: repo.Name})
	p.update(runID, repo, 0, "fetching repository tree")

	// fetch (0-30)
	fetcher, err := p.fetchers.Resolve(repo.Provider)
	if err != nil {
		p.fail(runID, repo, fmt.Sprintf("fetch failed: %v", err))
		return
	}
	tree, err := p.phaseFetch(ctx, fetcher, repo, depth)
	if err != nil {
		p.fail(runID, repo, p.describe(ctx, "fetch", err))
		return
	}
	if ctx.Err() != nil {
		p.fail(runID, repo, "cancelled")
		return
	}
	p.update(runID, repo, 30, "discovering manifests")

	// analyze (30-60); no manifests found is a valid empty result
	services, err := p.phaseAnalyze(ctx, repo, tree)
	if err != nil {
		p.fail(runID, repo, p.describe(ctx, "analyze", err))
		return
	}
	if ctx.Err() != nil {
		p.fail(runID, repo, "cancelled")
		return
	}
	p.update(runID, repo, 60, "enriching components")

	// enrich (60-90); best-effort, lookups that fail leave fields unset
	p.phaseEnrich(ctx, services)
	if ctx.Err() != nil {
		p.fail(runID, repo, "cancelled")
		return
	}
	p.update(runID, repo, 90, "finalizing")

	// finalize (100)
	_ = p.store.SetResults(runID, repo.ID, services)
	_ = p.store.UpdateProgress(runID, repo.ID, ScanProgress{
		Status:   StatusCompleted,
		Progress: 100,
		Message:  "done",
	})
	p.events.Write(output.Event{Type: "repo.finished", Run: runID, Repo: repo.Name, Status: string(StatusCompleted)})
}

func (p *Pipeline) phaseFetch(ctx context.Context, fetcher RepositoryFetcher, repo RepoRef, depth Depth) (FileTree, error) {
	ctx, cancel := p.phaseContext(ctx)
	defer cancel()
	return fetcher.Fetch(ctx, repo, repo.DefaultBranch, depth)
}

func (p *Pipeline) phaseAnalyze(ctx context.Context, repo RepoRef, tree FileTree) ([]ServiceSummary, error) {
	ctx, cancel := p.phaseContext(ctx)
	defer cancel()
	return p.analyzer.Analyze(ctx, repo, tree)
}

func (p *Pipeline) phaseEnrich(ctx context.Context, services []ServiceSummary) {
	ctx, cancel := p.phaseContext(ctx)
	defer cancel()
	for i := range services {
		if ctx.Err() != nil {
			return
		}
		services[i].Components = p.enricher.Enrich(ctx, services[i].Components)
	}
}

func (p *Pipeline) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.phaseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.phaseTimeout)
}

// describe turns a phase error into the human-readable string stored on
// ScanProgress.Error. Run-level cancellation and per-phase timeouts are
// distinguished from ordinary collaborator failures.
func (p *Pipeline) describe(ctx context.Context, phase string, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out after %s", phase, p.phaseTimeout)
	}
	return fmt.Sprintf("%s failed: %v", phase, err)
}

func (p *Pipeline) update(runID string, repo RepoRef, progress int, message string) {
	_ = p.store.UpdateProgress(runID, repo.ID, ScanProgress{
		Status:   StatusRunning,
		Progress: progress,
		Message:  message,
	})
	p.events.Write(output.Event{Type: "repo.phase", Run: runID, Repo: repo.Name, Message: message, Progress: progress})
}

func (p *Pipeline) fail(runID string, repo RepoRef, reason string) {
	_ = p.store.UpdateProgress(runID, repo.ID, ScanProgress{
		Status:  StatusFailed,
		Message: reason,
		Error:   reason,
	})
	p.events.Write(output.Event{Type: "repo.finished", Run: runID, Repo: repo.Name, Status: string(StatusFailed), Error: reason})
}