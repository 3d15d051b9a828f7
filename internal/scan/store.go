package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RunStore holds all known runs in memory with safe concurrent access.
//
// Locking is two-level: the store mutex guards only map membership, and each
// run carries its own mutex guarding that run's fields. Pipelines updating
// unrelated runs never contend. Nothing here survives a process restart.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*runEntry

	retention time.Duration
	maxRuns   int
	now       func() time.Time
}

type runEntry struct {
	mu  sync.Mutex
	run *ScanRun
}

// NewRunStore creates a store that evicts terminal runs older than retention
// and keeps at most maxRuns terminal runs. A non-terminal run is never
// evicted regardless of age, since its pipelines may still be writing to it.
func NewRunStore(retention time.Duration, maxRuns int) *RunStore {
	return &RunStore{
		runs:      make(map[string]*runEntry),
		retention: retention,
		maxRuns:   maxRuns,
		now:       time.Now,
	}
}

func (s *RunStore) Put(run *ScanRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("store: run must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("store: duplicate run id %s", run.ID)
	}
	s.runs[run.ID] = &runEntry{run: run}
	return nil
}

// Get returns a deep point-in-time snapshot of the run, taken under the
// run's lock so readers never observe a half-updated run.
func (s *RunStore) Get(id string) (*ScanRun, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Clone(), nil
}

// MarkRunning transitions a pending run to running. A run that is already
// past pending is left untouched.
func (s *RunStore) MarkRunning(id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run.Status == StatusPending {
		e.run.Status = StatusRunning
	}
	return nil
}

// UpdateProgress applies one repository's progress update. Terminal progress
// entries are immutable: updates arriving after completed/failed are dropped.
// Progress percentages never regress.
func (s *RunStore) UpdateProgress(runID, repoID string, p ScanProgress) error {
	e, err := s.entry(runID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.run.Progress[repoID]
	if !ok {
		return fmt.Errorf("store: run %s has no repo %s", runID, repoID)
	}
	if cur.Status.Terminal() {
		return nil
	}
	if p.Progress < cur.Progress {
		p.Progress = cur.Progress
	}
	p.RepoID = cur.RepoID
	p.RepoName = cur.RepoName
	*cur = p
	return nil
}

// SetResults attaches a repository's pipeline output to the run. Called once
// by that repository's pipeline just before it reports completion.
func (s *RunStore) SetResults(runID, repoID string, services []ServiceSummary) error {
	e, err := s.entry(runID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.run.Progress[repoID]
	if !ok {
		return fmt.Errorf("store: run %s has no repo %s", runID, repoID)
	}
	// A repo that was cancelled or failed while this pipeline was still in
	// flight keeps no partial output.
	if p.Status.Terminal() {
		return nil
	}
	if e.run.Results == nil {
		e.run.Results = make(map[string][]ServiceSummary)
	}
	e.run.Results[repoID] = services
	return nil
}

// CompleteIfDone recounts terminal repositories and, when every repository
// has reached a terminal status, flips the run to its terminal status exactly
// once. A run completes if at least one repository succeeded; it fails only
// when every repository failed.
func (s *RunStore) CompleteIfDone(runID string) (didComplete bool, final Status, err error) {
	e, err := s.entry(runID)
	if err != nil {
		return false, "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	terminal := 0
	succeeded := 0
	for _, p := range e.run.Progress {
		if p.Status.Terminal() {
			terminal++
		}
		if p.Status == StatusCompleted {
			succeeded++
		}
	}
	e.run.CompletedRepos = terminal

	if terminal < e.run.TotalRepos || e.run.Status.Terminal() {
		return false, e.run.Status, nil
	}

	if succeeded > 0 {
		e.run.Status = StatusCompleted
	} else {
		e.run.Status = StatusFailed
	}
	end := s.now()
	e.run.EndTime = &end
	return true, e.run.Status, nil
}

// Cancel marks every non-terminal repository entry failed with the given
// reason. The run's own terminal status is still decided by CompleteIfDone.
func (s *RunStore) Cancel(runID, reason string) error {
	e, err := s.entry(runID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.Terminal() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotCancellable, runID, e.run.Status)
	}
	for _, p := range e.run.Progress {
		if p.Status.Terminal() {
			continue
		}
		p.Status = StatusFailed
		p.Message = reason
		p.Error = reason
	}
	return nil
}

// Evict drops terminal runs older than the retention window, then drops the
// oldest terminal runs beyond maxRuns. Returns how many runs were removed.
func (s *RunStore) Evict() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	type candidate struct {
		id    string
		ended time.Time
	}
	var terminal []candidate
	for id, e := range s.runs {
		e.mu.Lock()
		if e.run.Status.Terminal() && e.run.EndTime != nil {
			terminal = append(terminal, candidate{id: id, ended: *e.run.EndTime})
		}
		e.mu.Unlock()
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].ended.Before(terminal[j].ended) })

	evicted := 0
	keep := terminal[:0]
	for _, c := range terminal {
		if s.retention > 0 && now.Sub(c.ended) > s.retention {
			delete(s.runs, c.id)
			evicted++
			continue
		}
		keep = append(keep, c)
	}
	if s.maxRuns > 0 {
		for len(keep) > s.maxRuns {
			delete(s.runs, keep[0].id)
			keep = keep[1:]
			evicted++
		}
	}
	return evicted
}

// Janitor runs Evict on a fixed interval until ctx is done.
func (s *RunStore) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}

func (s *RunStore) entry(id string) (*runEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Len reports how many runs the store currently holds.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
