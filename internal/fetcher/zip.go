package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"depscan/internal/scan"
)

// maxZipFileSize caps how much of any single archived file is read into the
// tree. Manifests are small; anything larger is skipped rather than held in
// memory.
const maxZipFileSize = 4 << 20

// Zip serves provider "zip": the repository "remote" is a zip archive,
// either a local path or an HTTP(S) URL. The whole archive is materialized
// into an in-memory tree, so depth is irrelevant here.
type Zip struct {
	httpClient *http.Client
}

func NewZip(httpClient *http.Client) *Zip {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Zip{httpClient: httpClient}
}

func (z *Zip) Fetch(ctx context.Context, repo scan.RepoRef, _ string, _ scan.Depth) (scan.FileTree, error) {
	if repo.RemoteURL == "" {
		return nil, fmt.Errorf("zip fetcher: repo %q has no remote url", repo.Name)
	}

	raw, err := z.load(ctx, repo.RemoteURL)
	if err != nil {
		return nil, err
	}

	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("read zip archive %q: %w", repo.RemoteURL, err)
	}

	files := make(map[string][]byte)
	for _, f := range r.File {
		if f.FileInfo().IsDir() || f.UncompressedSize64 > maxZipFileSize {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archived file %q: %w", f.Name, err)
		}
		b, err := io.ReadAll(io.LimitReader(rc, maxZipFileSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archived file %q: %w", f.Name, err)
		}
		files[f.Name] = b
	}
	return scan.NewMemTree(stripArchiveRoot(files)), nil
}

func (z *Zip) load(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := z.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download %q: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download %q: unexpected status %d", source, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	b, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read archive %q: %w", source, err)
	}
	return b, nil
}

// stripArchiveRoot removes the wrapping top-level directory that archive
// exports (GitHub zipballs and the like) put their contents in, but only
// when every entry actually shares that directory.
func stripArchiveRoot(files map[string][]byte) map[string][]byte {
	root := ""
	for name := range files {
		first, _, ok := strings.Cut(name, "/")
		if !ok {
			return files
		}
		if root == "" {
			root = first
			continue
		}
		if first != root {
			return files
		}
	}
	if root == "" {
		return files
	}

	stripped := make(map[string][]byte, len(files))
	for name, b := range files {
		stripped[strings.TrimPrefix(name, root+"/")] = b
	}
	return stripped
}
