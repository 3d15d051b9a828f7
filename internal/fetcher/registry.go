package fetcher

import (
	"fmt"
	"sync"

	"depscan/internal/scan"
)

// Registry maps providers to their fetcher implementations. Provider
// dispatch is a registry lookup keyed by the provider enum, not a type
// switch, so adding a provider means registering one implementation.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[scan.Provider]scan.RepositoryFetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[scan.Provider]scan.RepositoryFetcher)}
}

func (r *Registry) Register(p scan.Provider, f scan.RepositoryFetcher) error {
	if f == nil {
		return fmt.Errorf("registry: fetcher for %s is nil", p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fetchers[p]; exists {
		return fmt.Errorf("registry: provider %s already registered", p)
	}
	r.fetchers[p] = f
	return nil
}

// Resolve implements scan.FetcherResolver. An unregistered provider is a
// per-repo fetch failure, reported on that repo's progress entry.
func (r *Registry) Resolve(p scan.Provider) (scan.RepositoryFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[p]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for provider %s", p)
	}
	return f, nil
}

// Providers lists the registered providers, for diagnostics.
func (r *Registry) Providers() []scan.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]scan.Provider, 0, len(r.fetchers))
	for p := range r.fetchers {
		out = append(out, p)
	}
	return out
}
