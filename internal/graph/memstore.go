package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
// Node maps are keyed by id; edges are keyed by (source, target, kind) so
// merges are idempotent.
type MemStore struct {
	mu     sync.RWMutex
	files  map[string]FileNode
	decls  map[string]Declaration
	phs    map[string]Placeholder
	edges  map[string]Edge
	shards map[string]ShardEntry
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files:  make(map[string]FileNode),
		decls:  make(map[string]Declaration),
		phs:    make(map[string]Placeholder),
		edges:  make(map[string]Edge),
		shards: make(map[string]ShardEntry),
	}
}

func edgeKey(e Edge) string {
	return e.SourceID + "|" + e.TargetID + "|" + string(e.Kind)
}

func shardKey(s ShardEntry) string {
	return s.Repo + "|" + s.Shard + "|" + s.Name + "|" + s.DeclarationID
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// ---------- Write operations ----------

// UpsertFiles stores file nodes keyed by id.
func (m *MemStore) UpsertFiles(_ context.Context, files []FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		m.files[f.ID] = f
	}
	return nil
}

// UpsertDeclarations stores declarations keyed by id.
func (m *MemStore) UpsertDeclarations(_ context.Context, decls []Declaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range decls {
		m.decls[d.ID] = d
	}
	return nil
}

// UpsertPlaceholders stores placeholders keyed by id. Re-upserting an
// existing placeholder preserves its resolution state: extraction never
// un-resolves a surviving placeholder.
func (m *MemStore) UpsertPlaceholders(_ context.Context, phs []Placeholder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range phs {
		if prev, ok := m.phs[p.ID]; ok && prev.Resolved && !p.Resolved {
			p.Resolved = prev.Resolved
			p.Score = prev.Score
			p.ResolvedAt = prev.ResolvedAt
		}
		m.phs[p.ID] = p
	}
	return nil
}

// MergeEdges stores edges keyed by endpoints and kind.
func (m *MemStore) MergeEdges(_ context.Context, edges []Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range edges {
		m.edges[edgeKey(e)] = e
	}
	return nil
}

// UpsertShardEntries stores shard index rows.
func (m *MemStore) UpsertShardEntries(_ context.Context, entries []ShardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range entries {
		m.shards[shardKey(s)] = s
	}
	return nil
}

// ---------- Indexed lookups ----------

// GetFile returns the file node for (repo, path), or nil if not found.
func (m *MemStore) GetFile(_ context.Context, repo, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[FileID(repo, path)]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// DeclarationsByName returns, for each requested name, the declarations in
// the repository carrying that exact name.
func (m *MemStore) DeclarationsByName(_ context.Context, repo string, names []string) (map[string][]Declaration, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]Declaration)
	for _, d := range m.decls {
		if d.Repo == repo && wanted[d.Name] {
			out[d.Name] = append(out[d.Name], d)
		}
	}
	for n := range out {
		sortDeclarations(out[n])
	}
	return out, nil
}

// DeclarationsByShard returns declarations matching name through the shard
// index rows.
func (m *MemStore) DeclarationsByShard(_ context.Context, repo, shard, name string) ([]Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Declaration
	for _, s := range m.shards {
		if s.Repo != repo || s.Shard != shard || s.Name != name {
			continue
		}
		if d, ok := m.decls[s.DeclarationID]; ok {
			out = append(out, d)
		}
	}
	sortDeclarations(out)
	return out, nil
}

// DeclarationsByFile returns declarations owned by the given file.
func (m *MemStore) DeclarationsByFile(_ context.Context, fileID string) ([]Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Declaration
	for _, d := range m.decls {
		if d.FileID == fileID {
			out = append(out, d)
		}
	}
	sortDeclarations(out)
	return out, nil
}

// PlaceholdersByFile returns placeholders owned by the given file.
func (m *MemStore) PlaceholdersByFile(_ context.Context, fileID string) ([]Placeholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Placeholder
	for _, p := range m.phs {
		if p.FileID == fileID {
			out = append(out, p)
		}
	}
	sortPlaceholders(out)
	return out, nil
}

// SearchDeclarations returns declarations whose name contains query
// (case-insensitive), up to limit results. A limit <= 0 returns all matches.
func (m *MemStore) SearchDeclarations(_ context.Context, repo, query string, limit int) ([]Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerQuery := strings.ToLower(query)
	var out []Declaration
	for _, d := range m.decls {
		if d.Repo == repo && strings.Contains(strings.ToLower(d.Name), lowerQuery) {
			out = append(out, d)
		}
	}
	sortDeclarations(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountDeclarations returns the number of declarations in the repository.
func (m *MemStore) CountDeclarations(_ context.Context, repo string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, d := range m.decls {
		if d.Repo == repo {
			n++
		}
	}
	return n, nil
}

// ScanDeclarations streams all declarations of a repository in id order.
func (m *MemStore) ScanDeclarations(_ context.Context, repo string, pageSize int, fn func([]Declaration) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}

	m.mu.RLock()
	var all []Declaration
	for _, d := range m.decls {
		if d.Repo == repo {
			all = append(all, d)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	for start := 0; start < len(all); start += pageSize {
		end := start + pageSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Resolution support ----------

// UnresolvedPlaceholders returns unresolved placeholders in id order,
// strictly after afterID, up to limit.
func (m *MemStore) UnresolvedPlaceholders(_ context.Context, repo string, afterID string, limit int) ([]Placeholder, error) {
	m.mu.RLock()
	var out []Placeholder
	for _, p := range m.phs {
		if p.Repo == repo && !p.Resolved && p.ID > afterID {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()

	sortPlaceholders(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PlaceholdersByID returns the placeholders matching the given ids. Missing
// ids are skipped.
func (m *MemStore) PlaceholdersByID(_ context.Context, ids []string) ([]Placeholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Placeholder, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.phs[id]; ok {
			out = append(out, p)
		}
	}
	sortPlaceholders(out)
	return out, nil
}

// ResolvedImportNames returns the set of names imported into a file through
// resolved ImportSite placeholders.
func (m *MemStore) ResolvedImportNames(_ context.Context, fileID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool)
	for _, p := range m.phs {
		if p.FileID == fileID && p.Kind == PlaceholderImportSite && p.Resolved {
			out[p.TargetName] = true
		}
	}
	return out, nil
}

// ApplyResolutions performs the delete-then-create merge for each
// resolution: any existing RESOLVES_TO edge from the placeholder is removed
// before the new edge is created, so duplicates cannot appear. Resolutions
// referencing missing nodes are skipped; a later pass retries them.
func (m *MemStore) ApplyResolutions(_ context.Context, rs []Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rs {
		p, ok := m.phs[r.PlaceholderID]
		if !ok {
			continue
		}
		if _, ok := m.decls[r.DeclarationID]; !ok {
			continue
		}

		m.deleteResolutionEdgesLocked(r.PlaceholderID)
		m.edges[edgeKey(Edge{SourceID: r.PlaceholderID, TargetID: r.DeclarationID, Kind: EdgeResolvesTo})] = Edge{
			SourceID: r.PlaceholderID,
			TargetID: r.DeclarationID,
			Kind:     EdgeResolvesTo,
			Score:    r.Score,
			At:       r.At,
		}

		p.Resolved = true
		p.Score = r.Score
		p.ResolvedAt = r.At
		m.phs[p.ID] = p
	}
	return nil
}

// HealPlaceholders restores the resolution invariant for every placeholder
// of a repository: resolved==true iff exactly one RESOLVES_TO edge exists
// and its target declaration is present. Violating placeholders are reset
// to unresolved and reported.
func (m *MemStore) HealPlaceholders(_ context.Context, repo string) ([]ConsistencyError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	outgoing := make(map[string][]Edge)
	for _, e := range m.edges {
		if e.Kind == EdgeResolvesTo {
			outgoing[e.SourceID] = append(outgoing[e.SourceID], e)
		}
	}

	var healed []ConsistencyError
	for id, p := range m.phs {
		if p.Repo != repo {
			continue
		}
		edges := outgoing[id]

		valid := len(edges) == 1
		if valid {
			_, valid = m.decls[edges[0].TargetID]
		}

		switch {
		case valid && p.Resolved:
			// Invariant holds.
		case !valid && !p.Resolved && len(edges) == 0:
			// Plain unresolved placeholder.
		default:
			m.deleteResolutionEdgesLocked(id)
			p.Resolved = false
			p.Score = 0
			p.ResolvedAt = time.Time{}
			m.phs[id] = p
			healed = append(healed, ConsistencyError{PlaceholderID: id, EdgeCount: len(edges)})
		}
	}
	sort.Slice(healed, func(i, j int) bool { return healed[i].PlaceholderID < healed[j].PlaceholderID })
	return healed, nil
}

// InvalidateResolutionsTo removes RESOLVES_TO edges into the given
// declarations and resets the owning placeholders.
func (m *MemStore) InvalidateResolutionsTo(_ context.Context, declIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidateLocked(declIDs), nil
}

func (m *MemStore) invalidateLocked(declIDs []string) []string {
	targets := make(map[string]bool, len(declIDs))
	for _, id := range declIDs {
		targets[id] = true
	}

	var affected []string
	for key, e := range m.edges {
		if e.Kind != EdgeResolvesTo || !targets[e.TargetID] {
			continue
		}
		delete(m.edges, key)
		if p, ok := m.phs[e.SourceID]; ok {
			p.Resolved = false
			p.Score = 0
			p.ResolvedAt = time.Time{}
			m.phs[p.ID] = p
			affected = append(affected, p.ID)
		}
	}
	sort.Strings(affected)
	return affected
}

// DeleteFile removes a file and everything it exclusively owns, then
// invalidates resolutions from surviving placeholders into the removed
// declarations.
func (m *MemStore) DeleteFile(_ context.Context, repo, path string) (*FileDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileID := FileID(repo, path)
	if _, ok := m.files[fileID]; !ok {
		return &FileDeletion{}, nil
	}

	removed := make(map[string]bool)
	var removedDecls []string

	for id, d := range m.decls {
		if d.FileID == fileID {
			delete(m.decls, id)
			removed[id] = true
			removedDecls = append(removedDecls, id)
		}
	}
	phRemoved := 0
	for id, p := range m.phs {
		if p.FileID == fileID {
			delete(m.phs, id)
			removed[id] = true
			phRemoved++
		}
	}
	delete(m.files, fileID)
	removed[fileID] = true

	// Invalidate resolutions from other files into the removed declarations
	// before the edge sweep erases the RESOLVES_TO edges that identify them.
	invalidated := m.invalidateLocked(removedDecls)

	// Drop every remaining edge touching a removed node (detach-delete).
	for key, e := range m.edges {
		if removed[e.SourceID] || removed[e.TargetID] {
			delete(m.edges, key)
		}
	}

	// Drop shard index rows for removed declarations.
	for key, s := range m.shards {
		if removed[s.DeclarationID] {
			delete(m.shards, key)
		}
	}

	return &FileDeletion{
		DeclarationsRemoved: len(removedDecls),
		PlaceholdersRemoved: phRemoved,
		Invalidated:         invalidated,
	}, nil
}

// deleteResolutionEdgesLocked removes all RESOLVES_TO edges from one
// placeholder. Callers hold the write lock.
func (m *MemStore) deleteResolutionEdgesLocked(placeholderID string) {
	for key, e := range m.edges {
		if e.Kind == EdgeResolvesTo && e.SourceID == placeholderID {
			delete(m.edges, key)
		}
	}
}

// ---------- Consumer queries ----------

// ImportGraph returns the repository's resolved file-level imports as
// path -> imported paths.
func (m *MemStore) ImportGraph(_ context.Context, repo string) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make(map[string]string, len(m.files))
	for id, f := range m.files {
		if f.Repo == repo {
			paths[id] = f.Path
		}
	}

	out := make(map[string][]string)
	for _, e := range m.edges {
		if e.Kind != EdgeImports {
			continue
		}
		src, ok := paths[e.SourceID]
		if !ok {
			continue
		}
		dst, ok := paths[e.TargetID]
		if !ok {
			continue
		}
		out[src] = append(out[src], dst)
	}
	for _, targets := range out {
		sort.Strings(targets)
	}
	return out, nil
}

// DeadFunctions returns functions with no incoming resolved CallSite edge.
func (m *MemStore) DeadFunctions(_ context.Context, repo string) ([]Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	called := make(map[string]bool)
	for _, e := range m.edges {
		if e.Kind != EdgeResolvesTo {
			continue
		}
		if p, ok := m.phs[e.SourceID]; ok && p.Kind == PlaceholderCallSite {
			called[e.TargetID] = true
		}
	}

	var out []Declaration
	for _, d := range m.decls {
		if d.Repo == repo && d.Kind == DeclKindFunction && !called[d.ID] {
			out = append(out, d)
		}
	}
	sortDeclarations(out)
	return out, nil
}

// FileImpact walks materialized IMPORTS edges upstream from the changed
// files and returns the paths of transitively affected files.
func (m *MemStore) FileImpact(_ context.Context, repo string, paths []string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// importers[target] = files whose IMPORTS edge points at target.
	importers := make(map[string][]string)
	for _, e := range m.edges {
		if e.Kind == EdgeImports {
			importers[e.TargetID] = append(importers[e.TargetID], e.SourceID)
		}
	}

	changed := make(map[string]bool)
	frontier := make([]string, 0, len(paths))
	for _, p := range paths {
		id := FileID(repo, p)
		changed[id] = true
		frontier = append(frontier, id)
	}

	affected := make(map[string]bool)
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, src := range importers[id] {
				if changed[src] || affected[src] {
					continue
				}
				affected[src] = true
				next = append(next, src)
			}
		}
		frontier = next
	}

	var out []string
	for id := range affected {
		if f, ok := m.files[id]; ok {
			out = append(out, f.Path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns node and edge counts for a repository.
func (m *MemStore) Stats(_ context.Context, repo string) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &GraphStats{}
	for _, f := range m.files {
		if f.Repo == repo {
			stats.Files++
		}
	}
	for _, d := range m.decls {
		if d.Repo == repo {
			stats.Declarations++
		}
	}
	for _, p := range m.phs {
		if p.Repo != repo {
			continue
		}
		stats.Placeholders++
		if p.Resolved {
			stats.ResolvedPlaceholders++
		} else {
			stats.UnresolvedPlaceholders++
		}
	}
	// Edges belong to the repository of their source node.
	for _, e := range m.edges {
		if m.repoOfLocked(e.SourceID) == repo {
			stats.Edges++
		}
	}
	return stats, nil
}

// repoOfLocked resolves a node id to its repository. Callers hold a lock.
func (m *MemStore) repoOfLocked(id string) string {
	if f, ok := m.files[id]; ok {
		return f.Repo
	}
	if d, ok := m.decls[id]; ok {
		return d.Repo
	}
	if p, ok := m.phs[id]; ok {
		return p.Repo
	}
	return ""
}

// ---------- Sorting helpers ----------
// Map iteration order is random; every read sorts so results are
// deterministic for callers and tests.

func sortDeclarations(ds []Declaration) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}

func sortPlaceholders(ps []Placeholder) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
