package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/graph"
)

func seedStore(t *testing.T) graph.Store {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemStore()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	app := graph.FileNode{ID: graph.FileID("demo", "app/main.py"), Repo: "demo", Path: "app/main.py", ModTime: now}
	lib := graph.FileNode{ID: graph.FileID("demo", "lib/util.py"), Repo: "demo", Path: "lib/util.py", ModTime: now}
	require.NoError(t, s.UpsertFiles(ctx, []graph.FileNode{app, lib}))

	helper := graph.Declaration{
		ID: graph.DeclarationID("demo", "lib/util.py", "helper", 1), Repo: "demo",
		Name: "helper", Kind: graph.DeclKindFunction, FileID: lib.ID, FilePath: lib.Path,
		StartLine: 1, EndLine: 2, Module: "lib.util", ModifiedAt: now,
	}
	orphan := graph.Declaration{
		ID: graph.DeclarationID("demo", "lib/util.py", "orphan", 4), Repo: "demo",
		Name: "orphan", Kind: graph.DeclKindFunction, FileID: lib.ID, FilePath: lib.Path,
		StartLine: 4, EndLine: 5, Module: "lib.util", ModifiedAt: now,
	}
	require.NoError(t, s.UpsertDeclarations(ctx, []graph.Declaration{helper, orphan}))

	call := graph.Placeholder{
		ID: graph.PlaceholderID("demo", "app/main.py", 3, 4, "helper"), Repo: "demo",
		Kind: graph.PlaceholderCallSite, FileID: app.ID, FilePath: app.Path,
		Line: 3, Col: 4, TargetName: "helper",
	}
	dangling := graph.Placeholder{
		ID: graph.PlaceholderID("demo", "app/main.py", 5, 4, "missing"), Repo: "demo",
		Kind: graph.PlaceholderCallSite, FileID: app.ID, FilePath: app.Path,
		Line: 5, Col: 4, TargetName: "missing",
	}
	require.NoError(t, s.UpsertPlaceholders(ctx, []graph.Placeholder{call, dangling}))
	require.NoError(t, s.ApplyResolutions(ctx, []graph.Resolution{
		{PlaceholderID: call.ID, DeclarationID: helper.ID, Score: 1.0, At: now},
	}))
	require.NoError(t, s.MergeEdges(ctx, []graph.Edge{
		{SourceID: app.ID, TargetID: lib.ID, Kind: graph.EdgeImports},
	}))
	return s
}

func TestBuildReport(t *testing.T) {
	s := seedStore(t)
	report, err := BuildReport(context.Background(), s, "demo", ReportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "demo", report.Repo)
	assert.Equal(t, 2, report.Stats.Files)
	assert.Equal(t, 1, report.Stats.UnresolvedPlaceholders)

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "missing", report.Unresolved[0].Target)

	deadNames := make(map[string]bool)
	for _, d := range report.DeadFunctions {
		deadNames[d.Name] = true
	}
	assert.True(t, deadNames["orphan"])
	assert.False(t, deadNames["helper"])

	require.Len(t, report.Imports, 1)
	assert.Equal(t, "app/main.py", report.Imports[0].From)
	assert.Equal(t, "lib/util.py", report.Imports[0].To)
}

func TestWriteJSON(t *testing.T) {
	s := seedStore(t)
	report, err := BuildReport(context.Background(), s, "demo", ReportOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))
	assert.Contains(t, buf.String(), `"repo": "demo"`)
	assert.Contains(t, buf.String(), `"unresolvedReferences"`)
}

func TestGenerateMermaid(t *testing.T) {
	s := seedStore(t)
	out, err := GenerateMermaid(context.Background(), s, "demo")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `["app"]`)
	assert.Contains(t, out, `["lib"]`)
	assert.Contains(t, out, `["main.py"]`)
	assert.Contains(t, out, " --> ")
}

func TestGenerateMermaidEmptyGraph(t *testing.T) {
	s := graph.NewMemStore()
	out, err := GenerateMermaid(context.Background(), s, "demo")
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n", out)
}
