package graph

import (
	"context"
	"io"
)

// Store is the persistence port the engine requires from a graph backend.
// Implementations: KuzuStore (production), MemStore (testing/fallback).
//
// Contract: all upserts are idempotent by id, edge merges are idempotent by
// (source, target, kind), and ApplyResolutions performs a delete-then-create
// merge so a placeholder never carries two RESOLVES_TO edges even under
// racing batch workers. Writes are batched (one round-trip per slice). The
// engine tolerates eventual consistency within a single resolution pass.
type Store interface {
	io.Closer

	// Schema setup — called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Batched, idempotent write operations.
	UpsertFiles(ctx context.Context, files []FileNode) error
	UpsertDeclarations(ctx context.Context, decls []Declaration) error
	UpsertPlaceholders(ctx context.Context, phs []Placeholder) error
	MergeEdges(ctx context.Context, edges []Edge) error
	UpsertShardEntries(ctx context.Context, entries []ShardEntry) error

	// Indexed lookups.
	GetFile(ctx context.Context, repo, path string) (*FileNode, error)
	DeclarationsByName(ctx context.Context, repo string, names []string) (map[string][]Declaration, error)
	DeclarationsByShard(ctx context.Context, repo, shard, name string) ([]Declaration, error)
	DeclarationsByFile(ctx context.Context, fileID string) ([]Declaration, error)
	PlaceholdersByFile(ctx context.Context, fileID string) ([]Placeholder, error)
	SearchDeclarations(ctx context.Context, repo, query string, limit int) ([]Declaration, error)
	CountDeclarations(ctx context.Context, repo string) (int64, error)

	// ScanDeclarations streams every declaration of a repository in pages of
	// pageSize, invoking fn per page. Used by the in-memory map strategy to
	// build its name index once per pass.
	ScanDeclarations(ctx context.Context, repo string, pageSize int, fn func([]Declaration) error) error

	// Resolution support.
	UnresolvedPlaceholders(ctx context.Context, repo string, afterID string, limit int) ([]Placeholder, error)
	PlaceholdersByID(ctx context.Context, ids []string) ([]Placeholder, error)
	ResolvedImportNames(ctx context.Context, fileID string) (map[string]bool, error)
	ApplyResolutions(ctx context.Context, rs []Resolution) error

	// HealPlaceholders repairs consistency violations for a repository:
	// placeholders with duplicate RESOLVES_TO edges or edges into missing
	// declarations are reset to unresolved. Returns one ConsistencyError
	// per healed placeholder.
	HealPlaceholders(ctx context.Context, repo string) ([]ConsistencyError, error)

	// InvalidateResolutionsTo removes RESOLVES_TO edges pointing at the
	// given declarations and resets the owning placeholders to unresolved.
	// Returns the affected placeholder ids.
	InvalidateResolutionsTo(ctx context.Context, declIDs []string) ([]string, error)

	// DeleteFile detach-deletes a file node and everything it exclusively
	// owns, invalidating resolutions from other files into the removed
	// declarations.
	DeleteFile(ctx context.Context, repo, path string) (*FileDeletion, error)

	// Read-only consumer queries.
	ImportGraph(ctx context.Context, repo string) (map[string][]string, error)
	DeadFunctions(ctx context.Context, repo string) ([]Declaration, error)
	FileImpact(ctx context.Context, repo string, paths []string, maxDepth int) ([]string, error)
	Stats(ctx context.Context, repo string) (*GraphStats, error)
}
