package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"depscan/internal/scan"
)

const (
	npmRegistryURL = "https://registry.npmjs.org"
	goProxyURL     = "https://proxy.golang.org"
)

// npmLatest resolves a package's latest published version from the npm
// registry. A deprecated package is flagged end-of-life.
func npmLatest(client *http.Client, baseURL string) Lookup {
	return func(ctx context.Context, c scan.Component) (scan.Component, error) {
		var meta struct {
			Version    string `json:"version"`
			Deprecated any    `json:"deprecated"`
		}
		u := fmt.Sprintf("%s/%s/latest", baseURL, url.PathEscape(c.Name))
		if err := getJSON(ctx, client, u, &meta); err != nil {
			return c, err
		}
		c.LatestVersion = meta.Version
		c.EndOfLife = meta.Deprecated != nil && meta.Deprecated != false
		return c, nil
	}
}

// goProxyLatest resolves a module's latest version from the Go module proxy.
func goProxyLatest(client *http.Client, baseURL string) Lookup {
	return func(ctx context.Context, c scan.Component) (scan.Component, error) {
		var meta struct {
			Version string `json:"Version"`
		}
		u := fmt.Sprintf("%s/%s/@latest", baseURL, escapeModulePath(c.Name))
		if err := getJSON(ctx, client, u, &meta); err != nil {
			return c, err
		}
		c.LatestVersion = strings.TrimPrefix(meta.Version, "v")
		return c, nil
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lookup %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// escapeModulePath applies the module proxy's case encoding: every uppercase
// letter becomes '!' followed by its lowercase form.
func escapeModulePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('!')
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
