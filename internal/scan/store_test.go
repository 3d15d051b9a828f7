package scan

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testRun(id string, repoIDs ...string) *ScanRun {
	repos := make([]RepoRef, len(repoIDs))
	for i, rid := range repoIDs {
		repos[i] = RepoRef{ID: rid, Name: "svc-" + rid, Provider: ProviderGitHub}
	}
	return NewScanRun(id, repos, DepthFull, time.Now())
}

func TestRunStore_GetUnknownRun(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get unknown run: got %v, want ErrNotFound", err)
	}
}

func TestRunStore_PutDuplicate(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(testRun("run-1", "r1")); err == nil {
		t.Fatal("Put duplicate id: expected error")
	}
}

func TestRunStore_SnapshotIsDeepCopy(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	snap, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap.Progress["r1"].Progress = 55
	snap.Progress["r1"].Status = StatusFailed

	again, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Progress["r1"].Progress != 0 || again.Progress["r1"].Status != StatusPending {
		t.Fatalf("mutating a snapshot leaked into the store: %+v", again.Progress["r1"])
	}
}

func TestRunStore_GetIsIdempotentWithoutUpdates(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1", "r2")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("snapshots differ without intervening updates:\n%s\n%s", a, b)
	}
}

func TestRunStore_ProgressNeverRegresses(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	for _, p := range []int{10, 60, 30} {
		if err := store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusRunning, Progress: p}); err != nil {
			t.Fatalf("UpdateProgress(%d): %v", p, err)
		}
	}

	run, _ := store.Get("run-1")
	if got := run.Progress["r1"].Progress; got != 60 {
		t.Fatalf("progress regressed: got %d, want 60", got)
	}
}

func TestRunStore_TerminalProgressIsImmutable(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusFailed, Error: "fetch failed"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusCompleted, Progress: 100}); err != nil {
		t.Fatalf("UpdateProgress after terminal: %v", err)
	}

	run, _ := store.Get("run-1")
	p := run.Progress["r1"]
	if p.Status != StatusFailed || p.Error != "fetch failed" {
		t.Fatalf("terminal progress changed: %+v", p)
	}
}

func TestRunStore_CompleteIfDone(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]Status
		wantDone bool
		want     Status
	}{
		{
			name:     "all succeed",
			statuses: map[string]Status{"r1": StatusCompleted, "r2": StatusCompleted},
			wantDone: true,
			want:     StatusCompleted,
		},
		{
			name:     "partial success is still completed",
			statuses: map[string]Status{"r1": StatusCompleted, "r2": StatusFailed},
			wantDone: true,
			want:     StatusCompleted,
		},
		{
			name:     "all fail",
			statuses: map[string]Status{"r1": StatusFailed, "r2": StatusFailed},
			wantDone: true,
			want:     StatusFailed,
		},
		{
			name:     "one repo still running",
			statuses: map[string]Status{"r1": StatusCompleted, "r2": StatusRunning},
			wantDone: false,
			want:     StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewRunStore(time.Hour, 0)
			if err := store.Put(testRun("run-1", "r1", "r2")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			for rid, status := range tt.statuses {
				if err := store.UpdateProgress("run-1", rid, ScanProgress{Status: status}); err != nil {
					t.Fatalf("UpdateProgress: %v", err)
				}
			}

			done, final, err := store.CompleteIfDone("run-1")
			if err != nil {
				t.Fatalf("CompleteIfDone: %v", err)
			}
			if done != tt.wantDone {
				t.Fatalf("done = %v, want %v", done, tt.wantDone)
			}
			if done && final != tt.want {
				t.Fatalf("final status = %s, want %s", final, tt.want)
			}

			run, _ := store.Get("run-1")
			if run.CompletedRepos > run.TotalRepos {
				t.Fatalf("completedRepos %d exceeds totalRepos %d", run.CompletedRepos, run.TotalRepos)
			}
			if done && run.EndTime == nil {
				t.Fatal("terminal run has no end time")
			}
		})
	}
}

func TestRunStore_CompleteIfDoneFlipsOnlyOnce(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusCompleted, Progress: 100}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	done, _, err := store.CompleteIfDone("run-1")
	if err != nil || !done {
		t.Fatalf("first CompleteIfDone: done=%v err=%v", done, err)
	}
	done, _, err = store.CompleteIfDone("run-1")
	if err != nil {
		t.Fatalf("second CompleteIfDone: %v", err)
	}
	if done {
		t.Fatal("completion reported twice")
	}
}

func TestRunStore_CancelMarksNonTerminalFailed(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1", "r2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusCompleted, Progress: 100}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	if err := store.Cancel("run-1", "cancelled"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	run, _ := store.Get("run-1")
	if run.Progress["r1"].Status != StatusCompleted {
		t.Fatalf("completed repo was disturbed by cancel: %+v", run.Progress["r1"])
	}
	if run.Progress["r2"].Status != StatusFailed || run.Progress["r2"].Error != "cancelled" {
		t.Fatalf("pending repo not cancelled: %+v", run.Progress["r2"])
	}
}

func TestRunStore_CancelTerminalRun(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	if err := store.Put(testRun("run-1", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = store.UpdateProgress("run-1", "r1", ScanProgress{Status: StatusCompleted, Progress: 100})
	if _, _, err := store.CompleteIfDone("run-1"); err != nil {
		t.Fatalf("CompleteIfDone: %v", err)
	}

	if err := store.Cancel("run-1", "cancelled"); !errors.Is(err, ErrRunNotCancellable) {
		t.Fatalf("Cancel terminal run: got %v, want ErrRunNotCancellable", err)
	}
}

func TestRunStore_EvictionRespectsRetentionAndInFlightRuns(t *testing.T) {
	store := NewRunStore(time.Hour, 0)
	now := time.Now()
	store.now = func() time.Time { return now }

	// Terminal run, old enough to evict.
	if err := store.Put(testRun("old", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = store.UpdateProgress("old", "r1", ScanProgress{Status: StatusCompleted, Progress: 100})
	if _, _, err := store.CompleteIfDone("old"); err != nil {
		t.Fatalf("CompleteIfDone: %v", err)
	}

	// Non-terminal run, same age: must survive eviction.
	if err := store.Put(testRun("inflight", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if evicted := store.Evict(); evicted != 1 {
		t.Fatalf("Evict: got %d, want 1", evicted)
	}

	if _, err := store.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired terminal run still present: %v", err)
	}
	if _, err := store.Get("inflight"); err != nil {
		t.Fatalf("in-flight run was evicted: %v", err)
	}
}

func TestRunStore_EvictionCapsTerminalRunCount(t *testing.T) {
	store := NewRunStore(time.Hour, 2)
	now := time.Now()
	store.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(testRun(id, "r1")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		_ = store.UpdateProgress(id, "r1", ScanProgress{Status: StatusCompleted, Progress: 100})
		if _, _, err := store.CompleteIfDone(id); err != nil {
			t.Fatalf("CompleteIfDone: %v", err)
		}
		now = now.Add(time.Minute)
	}

	if evicted := store.Evict(); evicted != 1 {
		t.Fatalf("Evict: got %d, want 1", evicted)
	}
	// Oldest terminal run goes first.
	if _, err := store.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest run should have been evicted: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("store len = %d, want 2", store.Len())
	}
}
