package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"depscan/internal/output"
)

// Orchestrator accepts scan requests, fans one pipeline out per repository
// bounded by a concurrency limit, and serves point-in-time run snapshots.
//
// StartScan returns as soon as the run is stored; the scan itself proceeds
// on background goroutines that outlive the request. Callers observe the run
// by polling GetRun until its status is terminal.
type Orchestrator struct {
	store       *RunStore
	pipeline    *Pipeline
	concurrency int
	events      *output.Manager

	// baseCtx bounds all background work; Close cancels it.
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewOrchestrator(store *RunStore, pipeline *Pipeline, concurrency int, events *output.Manager) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator: store is nil")
	}
	if pipeline == nil {
		return nil, errors.New("orchestrator: pipeline is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("orchestrator: concurrency must be >= 1, got %d", concurrency)
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:       store,
		pipeline:    pipeline,
		concurrency: concurrency,
		events:      events,
		baseCtx:     baseCtx,
		stop:        stop,
		cancels:     make(map[string]context.CancelFunc),
	}, nil
}

// StartScan validates the request, creates the run in the pending state and
// schedules the scan. The returned id is immediately pollable via GetRun.
func (o *Orchestrator) StartScan(repos []RepoRef, depth Depth) (string, error) {
	if len(repos) == 0 {
		return "", fmt.Errorf("%w: repos must not be empty", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(repos))
	normalized := make([]RepoRef, len(repos))
	for i, r := range repos {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := seen[r.ID]; dup {
			return "", fmt.Errorf("%w: duplicate repo id %q", ErrInvalidRequest, r.ID)
		}
		seen[r.ID] = struct{}{}
		if _, err := ParseProvider(string(r.Provider)); err != nil {
			return "", fmt.Errorf("%w: repo %q: %v", ErrInvalidRequest, r.Name, err)
		}
		normalized[i] = r
	}
	if depth != DepthFull && depth != DepthIncremental {
		return "", fmt.Errorf("%w: unsupported depth %q", ErrInvalidRequest, depth)
	}

	run := NewScanRun(uuid.NewString(), normalized, depth, o.store.now())
	if err := o.store.Put(run); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(o.baseCtx)
	o.mu.Lock()
	o.cancels[run.ID] = cancel
	o.mu.Unlock()

	o.events.Write(output.Event{Type: "run.started", Run: run.ID, Repos: len(normalized)})

	o.wg.Add(1)
	go o.execute(runCtx, run.ID, normalized, depth)
	return run.ID, nil
}

// GetRun returns a deep snapshot of the run, safe to serialize while
// pipelines keep writing.
func (o *Orchestrator) GetRun(runID string) (*ScanRun, error) {
	return o.store.Get(runID)
}

// CancelRun marks every not-yet-terminal repository failed with reason
// "cancelled" and signals in-flight pipelines to stop at their next
// cancellation check. Results of repositories that already completed are
// kept.
func (o *Orchestrator) CancelRun(runID string) error {
	if err := o.store.Cancel(runID, "cancelled"); err != nil {
		return err
	}
	o.mu.Lock()
	cancel := o.cancels[runID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.finishIfDone(runID)
	return nil
}

// Close cancels all in-flight runs and waits for their goroutines to drain.
func (o *Orchestrator) Close() {
	o.stop()
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, runID string, repos []RepoRef, depth Depth) {
	defer o.wg.Done()
	defer o.release(runID)

	_ = o.store.MarkRunning(runID)

	// Limit active pipelines; repos beyond the limit queue here and start
	// as slots free.
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for _, repo := range repos {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// CancelRun already marked queued repos failed; just stop
			// handing out work.
			wg.Wait()
			o.finishIfDone(runID)
			return
		}

		wg.Add(1)
		go func(repo RepoRef) {
			defer wg.Done()
			defer func() { <-sem }()
			o.pipeline.Run(ctx, runID, repo, depth)
			o.finishIfDone(runID)
		}(repo)
	}

	wg.Wait()
	o.finishIfDone(runID)
}

// finishIfDone runs completion detection. CompleteIfDone flips the run's
// terminal status exactly once, so concurrent callers are safe and only one
// of them emits run.finished.
func (o *Orchestrator) finishIfDone(runID string) {
	done, final, err := o.store.CompleteIfDone(runID)
	if err != nil || !done {
		return
	}
	o.events.Write(output.Event{Type: "run.finished", Run: runID, Status: string(final)})
}

func (o *Orchestrator) release(runID string) {
	o.mu.Lock()
	cancel := o.cancels[runID]
	delete(o.cancels, runID)
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
