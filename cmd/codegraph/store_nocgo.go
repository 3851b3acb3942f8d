//go:build !cgo

package main

import (
	"fmt"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// openStore falls back to the in-memory store: the KuzuDB backend needs cgo.
func openStore(path string) (graph.Store, error) {
	if path != "" {
		return nil, fmt.Errorf("on-disk store %s requires a cgo-enabled build", path)
	}
	return graph.NewMemStore(), nil
}
