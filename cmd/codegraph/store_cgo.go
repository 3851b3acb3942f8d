//go:build cgo

package main

import (
	"os"
	"path/filepath"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// openStore opens the on-disk KuzuDB graph at path, creating parent
// directories on first use. An empty path selects the in-memory store.
func openStore(path string) (graph.Store, error) {
	if path == "" {
		return graph.NewMemStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return graph.NewKuzuFileStore(path)
}
