package graph

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/ast"
)

func testCoordinator(t *testing.T, s Store) *Coordinator {
	t.Helper()
	parser := ast.NewTreeSitterParser()
	t.Cleanup(func() { _ = parser.Close() })
	engine := NewEngine(s, EngineOptions{Strategy: StrategyJoin}, slog.Default())
	return NewCoordinator(s, NewExtractor(parser), engine, CoordinatorOptions{Immediate: true}, slog.Default())
}

func pyInput(path, source string) FileInput {
	return FileInput{
		Meta: FileMeta{
			Repo:     "repo",
			Path:     path,
			Language: ast.LangPython,
			ModTime:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Source: []byte(source),
	}
}

func TestCoordinator_AddThenResolve(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	sum, err := c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		pyInput("lib.py", "def compute(x):\n    return x\n"),
		pyInput("app.py", "from lib import compute\n\ndef main():\n    compute(1)\n"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FilesAdded)
	assert.Equal(t, 2, sum.Declarations)
	require.NotNil(t, sum.Resolution)

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Zero(t, stats.UnresolvedPlaceholders)
}

func TestCoordinator_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	cs := ChangeSet{Added: []FileInput{
		pyInput("lib.py", "def compute(x):\n    return x\n"),
	}}
	_, err := c.Apply(ctx, "repo", cs)
	require.NoError(t, err)
	before, err := s.Stats(ctx, "repo")
	require.NoError(t, err)

	// Re-ingesting identical content changes nothing.
	_, err = c.Apply(ctx, "repo", cs)
	require.NoError(t, err)
	after, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCoordinator_OrderIndependence(t *testing.T) {
	ctx := context.Background()
	lib := pyInput("lib.py", "def compute(x):\n    return x\n")
	app := pyInput("app.py", "from lib import compute\n\ndef main():\n    compute(1)\n")

	s1 := NewMemStore()
	c1 := testCoordinator(t, s1)
	_, err := c1.Apply(ctx, "repo", ChangeSet{Added: []FileInput{lib}})
	require.NoError(t, err)
	_, err = c1.Apply(ctx, "repo", ChangeSet{Added: []FileInput{app}})
	require.NoError(t, err)

	s2 := NewMemStore()
	c2 := testCoordinator(t, s2)
	_, err = c2.Apply(ctx, "repo", ChangeSet{Added: []FileInput{app}})
	require.NoError(t, err)
	_, err = c2.Apply(ctx, "repo", ChangeSet{Added: []FileInput{lib}})
	require.NoError(t, err)

	st1, err := s1.Stats(ctx, "repo")
	require.NoError(t, err)
	st2, err := s2.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, st1, st2, "ingestion order must not change the converged graph")
	assert.Zero(t, st1.UnresolvedPlaceholders)
	assert.Zero(t, st2.UnresolvedPlaceholders)
}

func TestCoordinator_ExtractionFailureIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	bad := FileInput{
		Meta:   FileMeta{Repo: "repo", Path: "blob.bin", Language: "binary"},
		Source: []byte{0x00, 0x01},
	}
	sum, err := c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		bad,
		pyInput("lib.py", "def compute(x):\n    return x\n"),
	}})
	require.NoError(t, err, "one bad file must not fail the change set")
	assert.Equal(t, []string{"blob.bin"}, sum.FailedFiles)
	assert.Equal(t, 1, sum.Declarations)

	kept, err := s.SearchDeclarations(ctx, "repo", "compute", 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestCoordinator_DeleteInvalidatesAndReresolution(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	_, err := c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		pyInput("lib.py", "def compute(x):\n    return x\n"),
		pyInput("app.py", "from lib import compute\n\ndef main():\n    compute(1)\n"),
	}})
	require.NoError(t, err)

	sum, err := c.Apply(ctx, "repo", ChangeSet{Deleted: []FileMeta{
		{Repo: "repo", Path: "lib.py"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Invalidated, "import and call both pointed into lib.py")

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UnresolvedPlaceholders)
	assert.Zero(t, stats.ResolvedPlaceholders)
}

func TestCoordinator_ModifyReplacesOldContent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	_, err := c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		pyInput("lib.py", "def old_name(x):\n    return x\n"),
	}})
	require.NoError(t, err)

	_, err = c.Apply(ctx, "repo", ChangeSet{Modified: []FileInput{
		pyInput("lib.py", "def new_name(x):\n    return x\n"),
	}})
	require.NoError(t, err)

	gone, err := s.SearchDeclarations(ctx, "repo", "old_name", 10)
	require.NoError(t, err)
	assert.Empty(t, gone, "declarations dropped from the file leave no residue")

	kept, err := s.SearchDeclarations(ctx, "repo", "new_name", 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestCoordinator_NewDeclarationUnlocksOldReference(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := testCoordinator(t, s)

	// Reference arrives before its target exists.
	sum, err := c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		pyInput("app.py", "def main():\n    compute(1)\n"),
	}})
	require.NoError(t, err)
	require.NotNil(t, sum.Resolution)
	assert.Zero(t, sum.Resolution.Resolved)

	// The target lands later; the dangling reference resolves without a
	// full pass.
	sum, err = c.Apply(ctx, "repo", ChangeSet{Added: []FileInput{
		pyInput("lib.py", "def compute(x):\n    return x\n"),
	}})
	require.NoError(t, err)
	require.NotNil(t, sum.Resolution)
	assert.Equal(t, 1, sum.Resolution.Resolved)

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Zero(t, stats.UnresolvedPlaceholders)
}
