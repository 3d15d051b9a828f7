package scan

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a run or of a single repository within a
// run. Completed and failed are terminal: once a ScanProgress or ScanRun
// reaches one of them it never transitions again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can occur from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Provider identifies which fetcher implementation serves a repository.
type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderBitbucket Provider = "bitbucket"
	ProviderAzure     Provider = "azure"
	ProviderZip       Provider = "zip"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGitHub, ProviderGitLab, ProviderBitbucket, ProviderAzure, ProviderZip:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider: %q (must be one of: github, gitlab, bitbucket, azure, zip)", s)
	}
}

// Depth controls whether a scan re-fetches everything or only changed paths.
// The orchestrator threads the value through to fetchers untouched.
type Depth string

const (
	DepthFull        Depth = "full"
	DepthIncremental Depth = "incremental"
)

func ParseDepth(s string) (Depth, error) {
	switch d := Depth(strings.ToLower(strings.TrimSpace(s))); d {
	case DepthFull, DepthIncremental:
		return d, nil
	case "":
		return DepthFull, nil
	default:
		return "", fmt.Errorf("unsupported depth: %q (must be one of: full, incremental)", s)
	}
}

// RepoRef identifies one repository to scan. Immutable once part of a run.
type RepoRef struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Provider      Provider `json:"provider"`
	RemoteURL     string   `json:"remoteUrl,omitempty"`
	DefaultBranch string   `json:"defaultBranch,omitempty"`
}

// ScanProgress tracks one repository through its pipeline. It is written
// exclusively by that repository's pipeline goroutine; everyone else only
// reads it through run snapshots.
type ScanProgress struct {
	RepoID   string `json:"repoId"`
	RepoName string `json:"repoName"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Component is one declared dependency of a service, optionally annotated by
// enrichment (latest known version, end-of-life flag, vulnerability count).
type Component struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Ecosystem string `json:"ecosystem,omitempty"`

	LatestVersion   string `json:"latestVersion,omitempty"`
	EndOfLife       bool   `json:"endOfLife,omitempty"`
	Vulnerabilities int    `json:"vulnerabilities,omitempty"`
}

// ServiceSummary is one deployable unit discovered inside a repository:
// a manifest file plus the components it declares.
type ServiceSummary struct {
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	Manifest   string      `json:"manifest"`
	Components []Component `json:"components"`
}

// ScanRun is the aggregate root of one multi-repository scan.
//
// Write ownership is split per field: Status, EndTime and CompletedRepos are
// written only by the store's completion logic; each Progress and Results
// entry is written only by that repository's own pipeline. Readers always go
// through Clone under the run's lock.
type ScanRun struct {
	ID             string                       `json:"id"`
	Repos          []RepoRef                    `json:"repos"`
	Depth          Depth                        `json:"depth"`
	Status         Status                       `json:"status"`
	StartTime      time.Time                    `json:"startTime"`
	EndTime        *time.Time                   `json:"endTime,omitempty"`
	Progress       map[string]*ScanProgress     `json:"progress"`
	Results        map[string][]ServiceSummary  `json:"results,omitempty"`
	TotalRepos     int                          `json:"totalRepos"`
	CompletedRepos int                          `json:"completedRepos"`
}

// NewScanRun builds a run in the pending state with one pending progress
// entry per repository.
func NewScanRun(id string, repos []RepoRef, depth Depth, now time.Time) *ScanRun {
	run := &ScanRun{
		ID:         id,
		Repos:      append([]RepoRef(nil), repos...),
		Depth:      depth,
		Status:     StatusPending,
		StartTime:  now,
		Progress:   make(map[string]*ScanProgress, len(repos)),
		TotalRepos: len(repos),
	}
	for _, r := range repos {
		run.Progress[r.ID] = &ScanProgress{
			RepoID:   r.ID,
			RepoName: r.Name,
			Status:   StatusPending,
		}
	}
	return run
}

// Clone returns a deep copy of the run. Callers must hold the run's lock;
// the copy shares no mutable state with the original.
func (r *ScanRun) Clone() *ScanRun {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Repos = append([]RepoRef(nil), r.Repos...)
	if r.EndTime != nil {
		t := *r.EndTime
		cp.EndTime = &t
	}
	cp.Progress = make(map[string]*ScanProgress, len(r.Progress))
	for id, p := range r.Progress {
		pc := *p
		cp.Progress[id] = &pc
	}
	if r.Results != nil {
		cp.Results = make(map[string][]ServiceSummary, len(r.Results))
		for id, services := range r.Results {
			sc := make([]ServiceSummary, len(services))
			for i, s := range services {
				sc[i] = s
				sc[i].Components = append([]Component(nil), s.Components...)
			}
			cp.Results[id] = sc
		}
	}
	return &cp
}
