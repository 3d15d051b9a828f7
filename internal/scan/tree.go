package scan

import (
	"context"
	"fmt"
	"sort"
)

// FileTree is a repository tree plus the ability to read blob contents.
// Provider-backed implementations may read blobs lazily over the network.
type FileTree interface {
	// Paths lists every file path in the tree, using forward slashes,
	// relative to the repository root.
	Paths() []string

	// Read returns the contents of one file in the tree.
	Read(ctx context.Context, path string) ([]byte, error)
}

// MemTree is a FileTree held fully in memory. Used by the zip fetcher and by
// tests.
type MemTree struct {
	files map[string][]byte
}

func NewMemTree(files map[string][]byte) *MemTree {
	m := make(map[string][]byte, len(files))
	for p, b := range files {
		m[p] = b
	}
	return &MemTree{files: m}
}

func (t *MemTree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (t *MemTree) Read(_ context.Context, path string) ([]byte, error) {
	b, ok := t.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file in tree: %s", path)
	}
	return b, nil
}
