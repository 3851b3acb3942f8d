package export

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of the resolved
// file-import structure. Files are grouped by directory; each IMPORTS edge
// becomes an arrow.
func GenerateMermaid(ctx context.Context, store graph.Store, repo string) (string, error) {
	imports, err := store.ImportGraph(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("import graph: %w", err)
	}

	// Every file appearing on either side of an edge gets a node.
	fileSet := make(map[string]bool)
	for from, targets := range imports {
		fileSet[from] = true
		for _, to := range targets {
			fileSet[to] = true
		}
	}

	// Node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(p string) string {
		if id, ok := nodeIDs[p]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[p] = id
		return id
	}

	// Group files by directory for subgraph rendering.
	byDir := make(map[string][]string)
	for f := range fileSet {
		dir := path.Dir(f)
		byDir[dir] = append(byDir[dir], f)
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, dir := range sortedKeys(byDir) {
		members := byDir[dir]
		sort.Strings(members)

		label := dir
		if label == "." {
			label = "/"
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(dir+"_dir"), label))
		for _, member := range members {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(member), path.Base(member)))
		}
		sb.WriteString("  end\n")
	}

	for _, from := range sortedKeys(imports) {
		for _, to := range imports[from] {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", getID(from), getID(to)))
		}
	}

	return sb.String(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
