package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFile(t *testing.T, s Store, repo, path string) FileNode {
	t.Helper()
	f := FileNode{
		ID:       FileID(repo, path),
		Repo:     repo,
		Path:     path,
		Language: "python",
	}
	require.NoError(t, s.UpsertFiles(context.Background(), []FileNode{f}))
	return f
}

func seedDecl(t *testing.T, s Store, repo, path, name string, line int) Declaration {
	t.Helper()
	d := Declaration{
		ID:        DeclarationID(repo, path, name, line),
		Repo:      repo,
		Name:      name,
		Kind:      DeclKindFunction,
		FileID:    FileID(repo, path),
		FilePath:  path,
		StartLine: line,
		EndLine:   line + 5,
		Module:    ModuleOfPath(path),
	}
	require.NoError(t, s.UpsertDeclarations(context.Background(), []Declaration{d}))
	return d
}

func seedCall(t *testing.T, s Store, repo, path, target string, line int) Placeholder {
	t.Helper()
	p := Placeholder{
		ID:         PlaceholderID(repo, path, line, 4, target),
		Repo:       repo,
		Kind:       PlaceholderCallSite,
		FileID:     FileID(repo, path),
		FilePath:   path,
		Line:       line,
		Col:        4,
		TargetName: target,
	}
	require.NoError(t, s.UpsertPlaceholders(context.Background(), []Placeholder{p}))
	return p
}

func TestMemStore_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	seedDecl(t, s, "repo", "a.py", "foo", 10)
	seedDecl(t, s, "repo", "a.py", "foo", 10)

	n, err := s.CountDeclarations(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemStore_ApplyResolutions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	d1 := seedDecl(t, s, "repo", "a.py", "foo", 10)
	d2 := seedDecl(t, s, "repo", "a.py", "foo", 40)
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	now := time.Now()
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d1.ID, Score: 0.8, At: now},
	}))

	// Re-resolving replaces the edge rather than adding a second one.
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d2.ID, Score: 0.9, At: now},
	}))

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Edges)
	assert.Equal(t, 1, stats.ResolvedPlaceholders)
}

func TestMemStore_ApplyResolutions_MissingDeclarationSkipped(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "b.py")
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: "missing", Score: 1.0, At: time.Now()},
	}))

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Resolved)
}

func TestMemStore_UpsertPlaceholders_PreservesResolution(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	d := seedDecl(t, s, "repo", "a.py", "foo", 10)
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d.ID, Score: 0.5, At: time.Now()},
	}))

	// Re-ingesting the same file upserts the same placeholder id with a
	// fresh unresolved struct; the stored resolution must survive.
	seedCall(t, s, "repo", "b.py", "foo", 3)

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
}

func TestMemStore_DeleteFile_InvalidatesInboundResolutions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

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

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Resolved)

	stats, err := s.Stats(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 0, stats.Declarations)
	assert.Equal(t, 0, stats.Edges)
}

func TestMemStore_DeleteFile_Absent(t *testing.T) {
	s := NewMemStore()
	del, err := s.DeleteFile(context.Background(), "repo", "nope.py")
	require.NoError(t, err)
	assert.Zero(t, del.DeclarationsRemoved)
	assert.Zero(t, del.PlaceholdersRemoved)
}

func TestMemStore_HealPlaceholders(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "b.py")
	p := seedCall(t, s, "repo", "b.py", "foo", 3)

	// Force an inconsistent state: resolved flag without an edge.
	broken := p
	broken.Resolved = true
	broken.Score = 1.0
	s.phs[broken.ID] = broken

	healed, err := s.HealPlaceholders(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, healed, 1)
	assert.Equal(t, p.ID, healed[0].PlaceholderID)
	assert.Zero(t, healed[0].EdgeCount)

	got, err := s.PlaceholdersByID(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.False(t, got[0].Resolved)

	// A second pass finds nothing to do.
	healed, err = s.HealPlaceholders(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, healed)
}

func TestMemStore_UnresolvedPlaceholders_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "b.py")
	for i := 0; i < 5; i++ {
		seedCall(t, s, "repo", "b.py", "foo", 10+i)
	}

	var seen []string
	after := ""
	for {
		page, err := s.UnresolvedPlaceholders(ctx, "repo", after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			seen = append(seen, p.ID)
		}
		after = page[len(page)-1].ID
	}
	assert.Len(t, seen, 5)
	assert.True(t, sortedStrings(seen))
}

func sortedStrings(ss []string) bool {
	for i := 1; i < len(ss); i++ {
		if ss[i-1] >= ss[i] {
			return false
		}
	}
	return true
}

func TestMemStore_DeclarationsByName(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	seedDecl(t, s, "repo", "a.py", "foo", 10)
	seedDecl(t, s, "repo", "b.py", "foo", 20)
	seedDecl(t, s, "repo", "b.py", "bar", 30)

	byName, err := s.DeclarationsByName(ctx, "repo", []string{"foo", "missing"})
	require.NoError(t, err)
	assert.Len(t, byName["foo"], 2)
	assert.Empty(t, byName["missing"])
}

func TestMemStore_ShardIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	d := seedDecl(t, s, "repo", "a.py", "foo", 10)
	require.NoError(t, s.UpsertShardEntries(ctx, []ShardEntry{
		{Repo: "repo", Shard: ShardOf("foo"), Name: "foo", DeclarationID: d.ID},
	}))

	got, err := s.DeclarationsByShard(ctx, "repo", "f", "foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d.ID, got[0].ID)
}

func TestMemStore_DeadFunctions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	seedFile(t, s, "repo", "b.py")
	called := seedDecl(t, s, "repo", "a.py", "used", 10)
	dead := seedDecl(t, s, "repo", "a.py", "orphan", 40)
	p := seedCall(t, s, "repo", "b.py", "used", 3)

	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: called.ID, Score: 1.0, At: time.Now()},
	}))

	got, err := s.DeadFunctions(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, dead.ID, got[0].ID)
}

func TestMemStore_FileImpact(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	// c imports b, b imports a.
	a := seedFile(t, s, "repo", "a.py")
	b := seedFile(t, s, "repo", "b.py")
	c := seedFile(t, s, "repo", "c.py")
	require.NoError(t, s.MergeEdges(ctx, []Edge{
		{SourceID: b.ID, TargetID: a.ID, Kind: EdgeImports},
		{SourceID: c.ID, TargetID: b.ID, Kind: EdgeImports},
	}))

	affected, err := s.FileImpact(ctx, "repo", []string{"a.py"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py", "c.py"}, affected)

	// Depth 1 stops at the direct importer.
	affected, err = s.FileImpact(ctx, "repo", []string{"a.py"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, affected)
}

func TestMemStore_StatsScopedToRepo(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "one", "a.py")
	seedFile(t, s, "one", "b.py")
	d := seedDecl(t, s, "one", "a.py", "foo", 10)
	p := seedCall(t, s, "one", "b.py", "foo", 3)
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p.ID, DeclarationID: d.ID, Score: 1.0, At: time.Now()},
	}))

	seedFile(t, s, "two", "x.py")
	d2 := seedDecl(t, s, "two", "x.py", "bar", 5)
	p2 := seedCall(t, s, "two", "x.py", "bar", 9)
	require.NoError(t, s.ApplyResolutions(ctx, []Resolution{
		{PlaceholderID: p2.ID, DeclarationID: d2.ID, Score: 1.0, At: time.Now()},
	}))

	one, err := s.Stats(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 2, one.Files)
	assert.Equal(t, 1, one.Edges, "edges from another repo must not leak in")

	two, err := s.Stats(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, 1, two.Files)
	assert.Equal(t, 1, two.Edges)
}

func TestMemStore_ScanDeclarations(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seedFile(t, s, "repo", "a.py")
	for i := 0; i < 7; i++ {
		seedDecl(t, s, "repo", "a.py", "f", 10+i*10)
	}

	var pages, total int
	err := s.ScanDeclarations(ctx, "repo", 3, func(ds []Declaration) error {
		pages++
		total += len(ds)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 7, total)
}
