//go:build e2e

package e2e

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/export"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/pipeline"
	"github.com/dusk-indust/codegraph/internal/scan"
)

// fixtureSources is a small polyglot repository exercising every supported
// language plus cross-file references within each.
var fixtureSources = map[string]string{
	"py/lib/util.py":         "def process(x):\n    return x\n\nclass Base:\n    def ping(self):\n        pass\n",
	"py/app/main.py":         "from lib.util import process\n\nclass App(Base):\n    pass\n\ndef run():\n    process(1)\n",
	"go/service.go":          "package svc\n\nfunc helper() int { return 1 }\n\nfunc Run() int {\n\treturn helper()\n}\n",
	"ts/util.ts":             "export function format(s: string): string {\n  return s;\n}\n",
	"ts/index.ts":            "import { format } from \"./util\";\n\nfunction main() {\n  format(\"x\");\n}\n",
	"rs/store.rs":            "pub fn persist() {}\n",
	"rs/main.rs":             "use store::persist;\n\nfn main() {\n    persist();\n}\n",
	"node_modules/x/skip.ts": "export function skipped() {}\n",
}

func writeFixture(t *testing.T, root string) {
	t.Helper()
	for rel, content := range fixtureSources {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newRunner(t *testing.T, root string, store graph.Store) *pipeline.Runner {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	scanner, err := scan.New(scan.Options{Repo: "e2e", Root: root, Log: log})
	require.NoError(t, err)

	engine := graph.NewEngine(store, graph.EngineOptions{}, log)
	parser := ast.NewTreeSitterParser()
	t.Cleanup(func() { _ = parser.Close() })
	coord := graph.NewCoordinator(store, graph.NewExtractor(parser), engine, graph.CoordinatorOptions{Immediate: true}, log)

	return pipeline.NewRunner(scanner, store, engine, coord, pipeline.Options{Workers: 4, Log: log})
}

// TestFullIndexAndIncrementalUpdate drives the whole system: a full index
// of a polyglot repository, an incremental edit cycle, and the exports.
func TestFullIndexAndIncrementalUpdate(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)

	store := graph.NewMemStore()
	runner := newRunner(t, root, store)
	ctx := context.Background()

	// --- Full index ---

	report, err := runner.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Files, "node_modules must be excluded")
	assert.Greater(t, report.Declarations, 5)
	require.NotNil(t, report.Resolution)
	assert.Greater(t, report.Resolution.Resolved, 0)

	stats, err := store.Stats(ctx, "e2e")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Files)

	// Same-language cross-file calls must all resolve.
	unresolved, err := store.UnresolvedPlaceholders(ctx, "e2e", "", 100)
	require.NoError(t, err)
	for _, p := range unresolved {
		assert.NotEqual(t, "process", p.TargetName)
		assert.NotEqual(t, "format", p.TargetName)
		assert.NotEqual(t, "persist", p.TargetName)
	}

	// --- Incremental: add a file that satisfies a dangling reference ---

	appPath := filepath.Join(root, "py/app/main.py")
	edited := strings.Replace(fixtureSources["py/app/main.py"], "process(1)", "process(1)\n    audit()", 1)
	require.NoError(t, os.WriteFile(appPath, []byte(edited), 0o644))

	scanner := mustScanner(t, root)
	modIn, err := scanner.Load("py/app/main.py")
	require.NoError(t, err)
	summary, err := runner.Update(ctx, graph.ChangeSet{Modified: []graph.FileInput{modIn}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesModified)

	auditPath := filepath.Join(root, "py/lib/audit.py")
	require.NoError(t, os.WriteFile(auditPath, []byte("def audit():\n    pass\n"), 0o644))
	addIn, err := scanner.Load("py/lib/audit.py")
	require.NoError(t, err)
	summary, err = runner.Update(ctx, graph.ChangeSet{Added: []graph.FileInput{addIn}})
	require.NoError(t, err)
	require.NotNil(t, summary.Resolution)

	unresolved, err = store.UnresolvedPlaceholders(ctx, "e2e", "", 100)
	require.NoError(t, err)
	for _, p := range unresolved {
		assert.NotEqual(t, "audit", p.TargetName, "new declaration must satisfy the dangling call")
	}

	// --- Incremental: delete invalidates and re-resolution recovers ---

	summary, err = runner.Update(ctx, graph.ChangeSet{
		Deleted: []graph.FileMeta{{Repo: "e2e", Path: "py/lib/util.py"}},
	})
	require.NoError(t, err)
	assert.Greater(t, summary.Invalidated, 0)

	unresolved, err = store.UnresolvedPlaceholders(ctx, "e2e", "", 100)
	require.NoError(t, err)
	found := false
	for _, p := range unresolved {
		if p.TargetName == "process" {
			found = true
		}
	}
	assert.True(t, found, "references into the deleted file must be unresolved again")

	// --- Exports ---

	graphReport, err := export.BuildReport(ctx, store, "e2e", export.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "e2e", graphReport.Repo)
	assert.Greater(t, len(graphReport.Unresolved), 0)

	mermaid, err := export.GenerateMermaid(ctx, store, "e2e")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mermaid, "graph TD\n"))
}

func mustScanner(t *testing.T, root string) *scan.Scanner {
	t.Helper()
	s, err := scan.New(scan.Options{Repo: "e2e", Root: root})
	require.NoError(t, err)
	return s
}
