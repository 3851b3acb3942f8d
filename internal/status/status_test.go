package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/graph"
)

func seedRepo(t *testing.T) graph.Store {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemStore()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f := graph.FileNode{ID: graph.FileID("demo", "main.py"), Repo: "demo", Path: "main.py", ModTime: now}
	require.NoError(t, s.UpsertFiles(ctx, []graph.FileNode{f}))

	d := graph.Declaration{
		ID: graph.DeclarationID("demo", "main.py", "run", 1), Repo: "demo",
		Name: "run", Kind: graph.DeclKindFunction, FileID: f.ID, FilePath: f.Path,
		StartLine: 1, EndLine: 3, Module: "main", ModifiedAt: now,
	}
	require.NoError(t, s.UpsertDeclarations(ctx, []graph.Declaration{d}))

	resolved := graph.Placeholder{
		ID: graph.PlaceholderID("demo", "main.py", 2, 4, "run"), Repo: "demo",
		Kind: graph.PlaceholderCallSite, FileID: f.ID, FilePath: f.Path,
		Line: 2, Col: 4, TargetName: "run",
	}
	dangling := graph.Placeholder{
		ID: graph.PlaceholderID("demo", "main.py", 3, 4, "missing"), Repo: "demo",
		Kind: graph.PlaceholderCallSite, FileID: f.ID, FilePath: f.Path,
		Line: 3, Col: 4, TargetName: "missing", Qualifier: "ext",
	}
	require.NoError(t, s.UpsertPlaceholders(ctx, []graph.Placeholder{resolved, dangling}))
	require.NoError(t, s.ApplyResolutions(ctx, []graph.Resolution{
		{PlaceholderID: resolved.ID, DeclarationID: d.ID, Score: 1.0, At: now},
	}))
	return s
}

func TestGet(t *testing.T) {
	s := seedRepo(t)
	rs, err := Get(context.Background(), s, "demo", 0)
	require.NoError(t, err)

	assert.Equal(t, "demo", rs.Repo)
	assert.Equal(t, 1, rs.Stats.Files)
	assert.Equal(t, 2, rs.Stats.Placeholders)
	assert.Equal(t, 1, rs.Stats.ResolvedPlaceholders)
	assert.InDelta(t, 0.5, rs.ResolutionRate(), 0.001)

	require.Len(t, rs.Unresolved, 1)
	assert.Equal(t, "missing", rs.Unresolved[0].TargetName)
}

func TestResolutionRateEmptyRepo(t *testing.T) {
	rs := &RepoStatus{}
	assert.Equal(t, 1.0, rs.ResolutionRate())
}

func TestFormat(t *testing.T) {
	s := seedRepo(t)
	rs, err := Get(context.Background(), s, "demo", 5)
	require.NoError(t, err)

	out := Format(rs)
	assert.Contains(t, out, "Repository: demo")
	assert.Contains(t, out, "50.0% resolved")
	assert.Contains(t, out, "main.py:3 ext.missing")
}
