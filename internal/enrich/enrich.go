package enrich

import (
	"context"
	"net/http"
	"time"

	"depscan/internal/scan"
)

// Lookup resolves enrichment metadata for one component of one ecosystem.
// It returns the annotated component, or an error to leave the component
// untouched.
type Lookup func(ctx context.Context, c scan.Component) (scan.Component, error)

// Service implements scan.EnrichmentService over a set of per-ecosystem
// lookups. Enrichment is strictly best-effort: a missing lookup, a network
// failure or a timeout leaves that component exactly as declared, and the
// output always mirrors the input in length and order.
type Service struct {
	lookups map[string]Lookup
	timeout time.Duration
}

func NewService(httpClient *http.Client, timeout time.Duration) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Service{
		lookups: make(map[string]Lookup),
		timeout: timeout,
	}
	s.Register("npm", npmLatest(httpClient, npmRegistryURL))
	s.Register("gomod", goProxyLatest(httpClient, goProxyURL))
	return s
}

// Register installs a lookup for an ecosystem, replacing any previous one.
func (s *Service) Register(ecosystem string, l Lookup) {
	if l == nil {
		return
	}
	s.lookups[ecosystem] = l
}

func (s *Service) Enrich(ctx context.Context, components []scan.Component) []scan.Component {
	out := make([]scan.Component, len(components))
	copy(out, components)

	for i, c := range out {
		lookup, ok := s.lookups[c.Ecosystem]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
		enriched, err := lookup(lookupCtx, c)
		cancel()
		if err != nil {
			continue
		}
		out[i] = enriched
	}
	return out
}

// Static is an EnrichmentService backed by fixed tables. Used in tests and
// for offline scans.
type Static struct {
	Latest    map[string]string
	EndOfLife map[string]bool
	Vulns     map[string]int
}

func (s Static) Enrich(_ context.Context, components []scan.Component) []scan.Component {
	out := make([]scan.Component, len(components))
	copy(out, components)
	for i, c := range out {
		if v, ok := s.Latest[c.Name]; ok {
			out[i].LatestVersion = v
		}
		if eol, ok := s.EndOfLife[c.Name]; ok {
			out[i].EndOfLife = eol
		}
		if n, ok := s.Vulns[c.Name]; ok {
			out[i].Vulnerabilities = n
		}
	}
	return out
}
