//go:build cgo

package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newTestStore(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx), "InitSchema should not fail")
	return s
}

func TestKuzuStore_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	f := seedFile(t, s, "repo", "pkg/util.py")
	d := seedDecl(t, s, "repo", "pkg/util.py", "helper", 12)

	got, err := s.GetFile(ctx, "repo", "pkg/util.py")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "pkg/util.py", got.Path)

	decls, err := s.DeclarationsByFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, d.ID, decls[0].ID)
	assert.Equal(t, "helper", decls[0].Name)
	assert.Equal(t, "pkg.util", decls[0].Module)

	// A second upsert of the same file is a no-op.
	seedDecl(t, s, "repo", "pkg/util.py", "helper", 12)
	n, err := s.CountDeclarations(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKuzuStore_ApplyResolutions_DeleteThenCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	d1 := seedDecl(t, s, "repo", "a.py", "foo", 10)
	d2 := seedDecl(t, s, "repo", "a.py", "foo", 40)
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	now := time.Now()
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d1.ID, Score: 0.8, At: now},
	}))
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d2.ID, Score: 0.9, At: now},
	}))

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)

	healed, err := s.HealPlaceholders(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, healed, "a correctly resolved placeholder needs no healing")
}

func TestKuzuStore_DeleteFile_Invalidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	d := seedDecl(t, s, "repo", "a.py", "foo", 10)
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d.ID, Score: 1.0, At: time.Now()},
	}))

	del, err := s.DeleteFile(ctx, "repo", "a.py")
	require.NoError(t, err)
	assert.Equal(t, 1, del.DeclarationsRemoved)
	assert.Equal(t, []string{p.ID}, del.Invalidated)

	unresolved, err := s.UnresolvedPlaceholders(ctx, "repo", "", 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, p.ID, unresolved[0].ID)
}

func TestKuzuStore_SearchAndScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedFile(t, s, "repo", "a.py")
	seedDecl(t, s, "repo", "a.py", "parseConfig", 1)
	seedDecl(t, s, "repo", "a.py", "parseArgs", 20)
	seedDecl(t, s, "repo", "a.py", "render", 40)

	found, err := s.SearchDeclarations(ctx, "repo", "PARSE", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	var total int
	require.NoError(t, s.ScanDeclarations(ctx, "repo", 2, func(ds []Declaration) error {
		total += len(ds)
		return nil
	}))
	assert.Equal(t, 3, total)
}

func TestKuzuStore_ImportEdgesAndImpact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := seedFile(t, s, "repo", "a.py")
	b := seedFile(t, s, "repo", "b.py")
	require.NoError(t, s.MergeEdges(ctx, []Edge{
		{SourceID: b.ID, TargetID: a.ID, Kind: EdgeImports},
		{SourceID: b.ID, TargetID: a.ID, Kind: EdgeImports},
	}))

	affected, err := s.FileImpact(ctx, "repo", []string{"a.py"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, affected)

	imports, err := s.ImportGraph(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"b.py": {"a.py"}}, imports)

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Edges, "merge by endpoints must not duplicate")
}

func TestKuzuStore_ShardEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedFile(t, s, "repo", "a.py")
	d := seedDecl(t, s, "repo", "a.py", "foo", 10)
	entry := ShardEntry{Repo: "repo", Shard: ShardOf("foo"), Name: "foo", DeclarationID: d.ID}
	require.NoError(t, s.UpsertShardEntries(ctx, []ShardEntry{entry, entry}))

	got, err := s.DeclarationsByShard(ctx, "repo", "f", "foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d.ID, got[0].ID)
}
