//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// KuzuStore implements the Store interface on KuzuDB. It requires CGO
// because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory for new databases,
// so the graph index survives across sessions.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables. Timestamps are stored as
// epoch milliseconds so value coercion stays uniform across the driver.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		id STRING,
		repository STRING,
		path STRING,
		language STRING,
		commit_id STRING,
		branch STRING,
		mod_time INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Declaration(
		id STRING,
		repository STRING,
		name STRING,
		kind STRING,
		file_id STRING,
		file_path STRING,
		container_id STRING,
		start_line INT64,
		end_line INT64,
		parameters STRING,
		parents STRING,
		symbol_fqn STRING,
		module STRING,
		modified_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Placeholder(
		id STRING,
		repository STRING,
		kind STRING,
		file_id STRING,
		file_path STRING,
		line INT64,
		col INT64,
		target_name STRING,
		qualifier STRING,
		alias STRING,
		container_id STRING,
		resolved BOOLEAN,
		score DOUBLE,
		resolved_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS ShardEntry(
		id STRING,
		repository STRING,
		shard STRING,
		name STRING,
		declaration_id STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS CONTAINS(
		FROM File TO Declaration,
		FROM File TO Placeholder,
		FROM Declaration TO Declaration
	)`,
	`CREATE REL TABLE IF NOT EXISTS INHERITS_FROM(FROM Declaration TO Declaration)`,
	`CREATE REL TABLE IF NOT EXISTS RESOLVES_TO(FROM Placeholder TO Declaration, score DOUBLE, at INT64)`,
	`CREATE REL TABLE IF NOT EXISTS CALLS(FROM Declaration TO Declaration)`,
	`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM File TO File)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// UpsertFiles merges File nodes by id.
func (s *KuzuStore) UpsertFiles(_ context.Context, files []FileNode) error {
	const cypher = `MERGE (f:File {id: $id})
		ON CREATE SET f.repository = $repo, f.path = $path, f.language = $lang,
			f.commit_id = $commit, f.branch = $branch, f.mod_time = $mtime
		ON MATCH SET f.repository = $repo, f.path = $path, f.language = $lang,
			f.commit_id = $commit, f.branch = $branch, f.mod_time = $mtime`
	return s.execBatch(cypher, len(files), func(i int) map[string]any {
		f := files[i]
		return map[string]any{
			"id":     f.ID,
			"repo":   f.Repo,
			"path":   f.Path,
			"lang":   string(f.Language),
			"commit": f.Commit,
			"branch": f.Branch,
			"mtime":  epochMillis(f.ModTime),
		}
	})
}

// UpsertDeclarations merges Declaration nodes by id.
func (s *KuzuStore) UpsertDeclarations(_ context.Context, decls []Declaration) error {
	const set = `d.repository = $repo, d.name = $name, d.kind = $kind,
		d.file_id = $fid, d.file_path = $fp, d.container_id = $cid,
		d.start_line = $sl, d.end_line = $el, d.parameters = $params,
		d.parents = $parents, d.symbol_fqn = $fqn, d.module = $module,
		d.modified_at = $mtime`
	cypher := "MERGE (d:Declaration {id: $id}) ON CREATE SET " + set + " ON MATCH SET " + set
	return s.execBatch(cypher, len(decls), func(i int) map[string]any {
		d := decls[i]
		return map[string]any{
			"id":      d.ID,
			"repo":    d.Repo,
			"name":    d.Name,
			"kind":    string(d.Kind),
			"fid":     d.FileID,
			"fp":      d.FilePath,
			"cid":     d.ContainerID,
			"sl":      int64(d.StartLine),
			"el":      int64(d.EndLine),
			"params":  joinList(d.Parameters),
			"parents": joinList(d.Parents),
			"fqn":     d.SymbolFQN,
			"module":  d.Module,
			"mtime":   epochMillis(d.ModifiedAt),
		}
	})
}

// UpsertPlaceholders merges Placeholder nodes by id. Resolution state is set
// only on creation so re-ingesting a file never un-resolves a surviving
// placeholder.
func (s *KuzuStore) UpsertPlaceholders(_ context.Context, phs []Placeholder) error {
	const set = `p.repository = $repo, p.kind = $kind, p.file_id = $fid,
		p.file_path = $fp, p.line = $line, p.col = $col,
		p.target_name = $target, p.qualifier = $qual, p.alias = $alias,
		p.container_id = $cid`
	cypher := `MERGE (p:Placeholder {id: $id})
		ON CREATE SET ` + set + `, p.resolved = $resolved, p.score = $score, p.resolved_at = $rat
		ON MATCH SET ` + set
	return s.execBatch(cypher, len(phs), func(i int) map[string]any {
		p := phs[i]
		return map[string]any{
			"id":       p.ID,
			"repo":     p.Repo,
			"kind":     string(p.Kind),
			"fid":      p.FileID,
			"fp":       p.FilePath,
			"line":     int64(p.Line),
			"col":      int64(p.Col),
			"target":   p.TargetName,
			"qual":     p.Qualifier,
			"alias":    p.Alias,
			"cid":      p.ContainerID,
			"resolved": p.Resolved,
			"score":    p.Score,
			"rat":      epochMillis(p.ResolvedAt),
		}
	})
}

// UpsertShardEntries merges shard index rows keyed by their composite id.
func (s *KuzuStore) UpsertShardEntries(_ context.Context, entries []ShardEntry) error {
	const cypher = `MERGE (se:ShardEntry {id: $id})
		ON CREATE SET se.repository = $repo, se.shard = $shard, se.name = $name, se.declaration_id = $did
		ON MATCH SET se.repository = $repo, se.shard = $shard, se.name = $name, se.declaration_id = $did`
	return s.execBatch(cypher, len(entries), func(i int) map[string]any {
		e := entries[i]
		return map[string]any{
			"id":    e.Repo + "|" + e.Shard + "|" + e.Name + "|" + e.DeclarationID,
			"repo":  e.Repo,
			"shard": e.Shard,
			"name":  e.Name,
			"did":   e.DeclarationID,
		}
	})
}

// MergeEdges merges edges by endpoints so repeated extraction never
// duplicates a relationship. CONTAINS spans several endpoint label pairs;
// every candidate statement runs and the non-binding ones are no-ops.
func (s *KuzuStore) MergeEdges(_ context.Context, edges []Edge) error {
	for _, e := range edges {
		stmts, err := mergeEdgeCypher(e.Kind)
		if err != nil {
			return err
		}
		params := map[string]any{"src": e.SourceID, "dst": e.TargetID}
		if e.Kind == EdgeResolvesTo {
			params["score"] = e.Score
			params["at"] = epochMillis(e.At)
		}
		for _, cypher := range stmts {
			if err := s.exec(cypher, params); err != nil {
				return err
			}
		}
	}
	return nil
}

func mergeEdgeCypher(kind EdgeKind) ([]string, error) {
	switch kind {
	case EdgeContains:
		return []string{
			`MATCH (a:File {id: $src}), (b:Declaration {id: $dst}) MERGE (a)-[:CONTAINS]->(b)`,
			`MATCH (a:File {id: $src}), (b:Placeholder {id: $dst}) MERGE (a)-[:CONTAINS]->(b)`,
			`MATCH (a:Declaration {id: $src}), (b:Declaration {id: $dst}) MERGE (a)-[:CONTAINS]->(b)`,
		}, nil
	case EdgeInheritsFrom:
		return []string{`MATCH (a:Declaration {id: $src}), (b:Declaration {id: $dst})
			MERGE (a)-[:INHERITS_FROM]->(b)`}, nil
	case EdgeResolvesTo:
		return []string{`MATCH (a:Placeholder {id: $src}), (b:Declaration {id: $dst})
			MERGE (a)-[r:RESOLVES_TO]->(b) SET r.score = $score, r.at = $at`}, nil
	case EdgeCalls:
		return []string{`MATCH (a:Declaration {id: $src}), (b:Declaration {id: $dst})
			MERGE (a)-[:CALLS]->(b)`}, nil
	case EdgeImports:
		return []string{`MATCH (a:File {id: $src}), (b:File {id: $dst})
			MERGE (a)-[:IMPORTS]->(b)`}, nil
	default:
		return nil, fmt.Errorf("kuzu: unsupported edge kind: %s", kind)
	}
}

// ---------- Indexed lookups ----------

const fileCols = "f.id, f.repository, f.path, f.language, f.commit_id, f.branch, f.mod_time"

const declCols = `d.id, d.repository, d.name, d.kind, d.file_id, d.file_path,
	d.container_id, d.start_line, d.end_line, d.parameters, d.parents,
	d.symbol_fqn, d.module, d.modified_at`

const phCols = `p.id, p.repository, p.kind, p.file_id, p.file_path, p.line,
	p.col, p.target_name, p.qualifier, p.alias, p.container_id, p.resolved,
	p.score, p.resolved_at`

// GetFile retrieves a single File node by repository and path, or nil.
func (s *KuzuStore) GetFile(_ context.Context, repo, path string) (*FileNode, error) {
	rows, err := s.query(
		"MATCH (f:File {id: $id}) RETURN "+fileCols,
		map[string]any{"id": FileID(repo, path)},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	f := rowToFile(rows[0])
	return &f, nil
}

// DeclarationsByName returns, per requested name, every declaration in the
// repository carrying that exact name. This is the index lookup behind the
// join strategy.
func (s *KuzuStore) DeclarationsByName(_ context.Context, repo string, names []string) (map[string][]Declaration, error) {
	out := make(map[string][]Declaration, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		rows, err := s.query(
			`MATCH (d:Declaration) WHERE d.repository = $repo AND d.name = $name
			 RETURN `+declCols+` ORDER BY d.id`,
			map[string]any{"repo": repo, "name": name},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[name] = append(out[name], rowToDeclaration(r))
		}
	}
	return out, nil
}

// DeclarationsByShard resolves declarations through the shard index rows.
func (s *KuzuStore) DeclarationsByShard(_ context.Context, repo, shard, name string) ([]Declaration, error) {
	rows, err := s.query(
		`MATCH (se:ShardEntry), (d:Declaration)
		 WHERE se.repository = $repo AND se.shard = $shard AND se.name = $name
		   AND d.id = se.declaration_id
		 RETURN `+declCols+` ORDER BY d.id`,
		map[string]any{"repo": repo, "shard": shard, "name": name},
	)
	if err != nil {
		return nil, err
	}
	return rowsToDeclarations(rows), nil
}

// DeclarationsByFile returns declarations owned by the given file.
func (s *KuzuStore) DeclarationsByFile(_ context.Context, fileID string) ([]Declaration, error) {
	rows, err := s.query(
		`MATCH (d:Declaration) WHERE d.file_id = $fid RETURN `+declCols+` ORDER BY d.id`,
		map[string]any{"fid": fileID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToDeclarations(rows), nil
}

// PlaceholdersByFile returns placeholders owned by the given file.
func (s *KuzuStore) PlaceholdersByFile(_ context.Context, fileID string) ([]Placeholder, error) {
	rows, err := s.query(
		`MATCH (p:Placeholder) WHERE p.file_id = $fid RETURN `+phCols+` ORDER BY p.id`,
		map[string]any{"fid": fileID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToPlaceholders(rows), nil
}

// SearchDeclarations returns declarations whose name contains query,
// case-insensitively, up to limit results.
func (s *KuzuStore) SearchDeclarations(_ context.Context, repo, query string, limit int) ([]Declaration, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(
		`MATCH (d:Declaration)
		 WHERE d.repository = $repo AND lower(d.name) CONTAINS lower($q)
		 RETURN `+declCols+` ORDER BY d.id LIMIT $lim`,
		map[string]any{"repo": repo, "q": query, "lim": int64(limit)},
	)
	if err != nil {
		return nil, err
	}
	return rowsToDeclarations(rows), nil
}

// CountDeclarations returns the number of declarations in the repository.
// The resolution engine uses this to pick a strategy.
func (s *KuzuStore) CountDeclarations(_ context.Context, repo string) (int64, error) {
	rows, err := s.query(
		"MATCH (d:Declaration) WHERE d.repository = $repo RETURN count(d)",
		map[string]any{"repo": repo},
	)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return int64(toInt(rows[0][0])), nil
}

// ScanDeclarations streams all declarations of a repository in id order,
// one page at a time, without materializing the full set.
func (s *KuzuStore) ScanDeclarations(ctx context.Context, repo string, pageSize int, fn func([]Declaration) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := s.query(
			`MATCH (d:Declaration)
			 WHERE d.repository = $repo AND d.id > $after
			 RETURN `+declCols+` ORDER BY d.id LIMIT $lim`,
			map[string]any{"repo": repo, "after": after, "lim": int64(pageSize)},
		)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		page := rowsToDeclarations(rows)
		if err := fn(page); err != nil {
			return err
		}
		after = page[len(page)-1].ID
	}
}

// ---------- Resolution support ----------

// UnresolvedPlaceholders returns unresolved placeholders in id order,
// strictly after afterID, up to limit.
func (s *KuzuStore) UnresolvedPlaceholders(_ context.Context, repo, afterID string, limit int) ([]Placeholder, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.query(
		`MATCH (p:Placeholder)
		 WHERE p.repository = $repo AND p.resolved = false AND p.id > $after
		 RETURN `+phCols+` ORDER BY p.id LIMIT $lim`,
		map[string]any{"repo": repo, "after": afterID, "lim": int64(limit)},
	)
	if err != nil {
		return nil, err
	}
	return rowsToPlaceholders(rows), nil
}

// PlaceholdersByID returns the placeholders matching the given ids. Missing
// ids are skipped.
func (s *KuzuStore) PlaceholdersByID(_ context.Context, ids []string) ([]Placeholder, error) {
	out := make([]Placeholder, 0, len(ids))
	for _, id := range ids {
		rows, err := s.query(
			"MATCH (p:Placeholder {id: $id}) RETURN "+phCols,
			map[string]any{"id": id},
		)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out = append(out, rowToPlaceholder(rows[0]))
		}
	}
	return out, nil
}

// ResolvedImportNames returns the set of names imported into a file through
// resolved ImportSite placeholders.
func (s *KuzuStore) ResolvedImportNames(_ context.Context, fileID string) (map[string]bool, error) {
	rows, err := s.query(
		`MATCH (p:Placeholder)
		 WHERE p.file_id = $fid AND p.kind = $kind AND p.resolved = true
		 RETURN p.target_name`,
		map[string]any{"fid": fileID, "kind": string(PlaceholderImportSite)},
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[toString(r[0])] = true
	}
	return out, nil
}

// ApplyResolutions performs the delete-then-create merge per resolution.
// Removing any existing RESOLVES_TO edge before creating the new one keeps
// the at-most-one-edge invariant under concurrent passes. Resolutions whose
// endpoints are gone bind nothing and fall through silently.
func (s *KuzuStore) ApplyResolutions(_ context.Context, rs []Resolution) error {
	for _, r := range rs {
		err := s.exec(
			`MATCH (p:Placeholder {id: $pid})-[rel:RESOLVES_TO]->(:Declaration) DELETE rel`,
			map[string]any{"pid": r.PlaceholderID},
		)
		if err != nil {
			return err
		}
		err = s.exec(
			`MATCH (p:Placeholder {id: $pid}), (d:Declaration {id: $did})
			 CREATE (p)-[:RESOLVES_TO {score: $score, at: $at}]->(d)
			 SET p.resolved = true, p.score = $score, p.resolved_at = $at`,
			map[string]any{
				"pid":   r.PlaceholderID,
				"did":   r.DeclarationID,
				"score": r.Score,
				"at":    epochMillis(r.At),
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// HealPlaceholders restores the resolution invariant for every placeholder
// of a repository: resolved iff exactly one RESOLVES_TO edge exists.
// Violators are reset to unresolved and reported so the next pass retries
// them.
func (s *KuzuStore) HealPlaceholders(ctx context.Context, repo string) ([]ConsistencyError, error) {
	rows, err := s.query(
		`MATCH (p:Placeholder)
		 WHERE p.repository = $repo
		 OPTIONAL MATCH (p)-[r:RESOLVES_TO]->(:Declaration)
		 RETURN p.id, p.resolved, count(r) ORDER BY p.id`,
		map[string]any{"repo": repo},
	)
	if err != nil {
		return nil, err
	}

	var healed []ConsistencyError
	for _, r := range rows {
		id := toString(r[0])
		resolved := toBool(r[1])
		edges := toInt(r[2])
		if (resolved && edges == 1) || (!resolved && edges == 0) {
			continue
		}
		if err := s.resetPlaceholder(id); err != nil {
			return healed, err
		}
		healed = append(healed, ConsistencyError{PlaceholderID: id, EdgeCount: edges})
	}
	return healed, nil
}

// InvalidateResolutionsTo removes RESOLVES_TO edges into the given
// declarations and resets the owning placeholders to unresolved.
func (s *KuzuStore) InvalidateResolutionsTo(_ context.Context, declIDs []string) ([]string, error) {
	var affected []string
	for _, did := range declIDs {
		rows, err := s.query(
			`MATCH (p:Placeholder)-[:RESOLVES_TO]->(d:Declaration {id: $did})
			 RETURN p.id ORDER BY p.id`,
			map[string]any{"did": did},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			pid := toString(r[0])
			if err := s.resetPlaceholder(pid); err != nil {
				return nil, err
			}
			affected = append(affected, pid)
		}
	}
	return affected, nil
}

// resetPlaceholder drops every RESOLVES_TO edge from a placeholder and
// clears its resolution fields.
func (s *KuzuStore) resetPlaceholder(id string) error {
	err := s.exec(
		`MATCH (p:Placeholder {id: $id})-[r:RESOLVES_TO]->(:Declaration) DELETE r`,
		map[string]any{"id": id},
	)
	if err != nil {
		return err
	}
	return s.exec(
		`MATCH (p:Placeholder {id: $id})
		 SET p.resolved = false, p.score = 0.0, p.resolved_at = 0`,
		map[string]any{"id": id},
	)
}

// DeleteFile removes a file and everything it exclusively owns, then resets
// surviving placeholders whose resolution pointed into the removed
// declarations.
func (s *KuzuStore) DeleteFile(ctx context.Context, repo, path string) (*FileDeletion, error) {
	fileID := FileID(repo, path)

	file, err := s.GetFile(ctx, repo, path)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return &FileDeletion{}, nil
	}

	decls, err := s.DeclarationsByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	phs, err := s.PlaceholdersByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	ownPh := make(map[string]bool, len(phs))
	for _, p := range phs {
		ownPh[p.ID] = true
	}

	// Collect external placeholders resolving into this file before the
	// declarations disappear.
	var invalidated []string
	for _, d := range decls {
		rows, err := s.query(
			`MATCH (p:Placeholder)-[:RESOLVES_TO]->(d:Declaration {id: $did})
			 RETURN p.id ORDER BY p.id`,
			map[string]any{"did": d.ID},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			pid := toString(r[0])
			if !ownPh[pid] {
				invalidated = append(invalidated, pid)
			}
		}
	}

	// Detach-delete owned nodes, then the file itself.
	if err := s.exec(
		"MATCH (p:Placeholder) WHERE p.file_id = $fid DETACH DELETE p",
		map[string]any{"fid": fileID},
	); err != nil {
		return nil, err
	}
	if err := s.exec(
		"MATCH (d:Declaration) WHERE d.file_id = $fid DETACH DELETE d",
		map[string]any{"fid": fileID},
	); err != nil {
		return nil, err
	}
	if err := s.exec(
		"MATCH (f:File {id: $fid}) DETACH DELETE f",
		map[string]any{"fid": fileID},
	); err != nil {
		return nil, err
	}

	// Shard index rows of the removed declarations.
	for _, d := range decls {
		if err := s.exec(
			"MATCH (se:ShardEntry) WHERE se.declaration_id = $did DELETE se",
			map[string]any{"did": d.ID},
		); err != nil {
			return nil, err
		}
	}

	for _, pid := range invalidated {
		if err := s.resetPlaceholder(pid); err != nil {
			return nil, err
		}
	}

	return &FileDeletion{
		DeclarationsRemoved: len(decls),
		PlaceholdersRemoved: len(phs),
		Invalidated:         invalidated,
	}, nil
}

// ---------- Consumer queries ----------

// ImportGraph returns the repository's resolved file-level imports as
// path -> imported paths.
func (s *KuzuStore) ImportGraph(_ context.Context, repo string) (map[string][]string, error) {
	rows, err := s.query(
		`MATCH (a:File)-[:IMPORTS]->(b:File)
		 WHERE a.repository = $repo
		 RETURN a.path, b.path ORDER BY a.path, b.path`,
		map[string]any{"repo": repo},
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, r := range rows {
		src := toString(r[0])
		out[src] = append(out[src], toString(r[1]))
	}
	return out, nil
}

// DeadFunctions returns functions with no incoming resolved CallSite edge.
func (s *KuzuStore) DeadFunctions(_ context.Context, repo string) ([]Declaration, error) {
	calledRows, err := s.query(
		`MATCH (p:Placeholder)-[:RESOLVES_TO]->(d:Declaration)
		 WHERE d.repository = $repo AND p.kind = $kind
		 RETURN DISTINCT d.id`,
		map[string]any{"repo": repo, "kind": string(PlaceholderCallSite)},
	)
	if err != nil {
		return nil, err
	}
	called := make(map[string]bool, len(calledRows))
	for _, r := range calledRows {
		called[toString(r[0])] = true
	}

	rows, err := s.query(
		`MATCH (d:Declaration)
		 WHERE d.repository = $repo AND d.kind = $kind
		 RETURN `+declCols+` ORDER BY d.id`,
		map[string]any{"repo": repo, "kind": string(DeclKindFunction)},
	)
	if err != nil {
		return nil, err
	}

	var out []Declaration
	for _, r := range rows {
		d := rowToDeclaration(r)
		if !called[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// FileImpact walks materialized IMPORTS edges upstream from the changed
// files, BFS with a depth cap, and returns affected file paths.
func (s *KuzuStore) FileImpact(_ context.Context, repo string, paths []string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	changed := make(map[string]bool, len(paths))
	frontier := make([]string, 0, len(paths))
	for _, p := range paths {
		id := FileID(repo, p)
		changed[id] = true
		frontier = append(frontier, id)
	}

	affected := make(map[string]string)
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rows, err := s.query(
				"MATCH (a:File)-[:IMPORTS]->(b:File {id: $id}) RETURN a.id, a.path",
				map[string]any{"id": id},
			)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				srcID, srcPath := toString(r[0]), toString(r[1])
				if changed[srcID] {
					continue
				}
				if _, ok := affected[srcID]; ok {
					continue
				}
				affected[srcID] = srcPath
				next = append(next, srcID)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(affected))
	for _, p := range affected {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns node and edge counts for a repository.
func (s *KuzuStore) Stats(_ context.Context, repo string) (*GraphStats, error) {
	stats := &GraphStats{}

	counts := []struct {
		cypher string
		dst    *int
	}{
		{"MATCH (f:File) WHERE f.repository = $repo RETURN count(f)", &stats.Files},
		{"MATCH (d:Declaration) WHERE d.repository = $repo RETURN count(d)", &stats.Declarations},
		{"MATCH (p:Placeholder) WHERE p.repository = $repo RETURN count(p)", &stats.Placeholders},
		{"MATCH (p:Placeholder) WHERE p.repository = $repo AND p.resolved = true RETURN count(p)", &stats.ResolvedPlaceholders},
		{"MATCH (p:Placeholder) WHERE p.repository = $repo AND p.resolved = false RETURN count(p)", &stats.UnresolvedPlaceholders},
	}
	for _, c := range counts {
		rows, err := s.query(c.cypher, map[string]any{"repo": repo})
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			*c.dst = toInt(rows[0][0])
		}
	}

	// Edge totals per relationship table, scoped to the repository of the
	// source node; a missing table counts as zero.
	for _, t := range []string{"CONTAINS", "INHERITS_FROM", "RESOLVES_TO", "CALLS", "IMPORTS"} {
		cypher := fmt.Sprintf("MATCH (a)-[r:%s]->() WHERE a.repository = $repo RETURN count(r)", t)
		rows, err := s.query(cypher, map[string]any{"repo": repo})
		if err != nil {
			continue
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			stats.Edges += toInt(rows[0][0])
		}
	}
	return stats, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// execBatch prepares one Cypher statement and executes it once per row.
func (s *KuzuStore) execBatch(cypher string, n int, paramsAt func(int) map[string]any) error {
	if n == 0 {
		return nil
	}
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		res, err := s.conn.Execute(stmt, paramsAt(i))
		if err != nil {
			return fmt.Errorf("kuzu: execute: %w", err)
		}
		res.Close()
	}
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// ---------- Row conversion ----------

func rowToFile(r []any) FileNode {
	return FileNode{
		ID:       toString(r[0]),
		Repo:     toString(r[1]),
		Path:     toString(r[2]),
		Language: ast.Language(toString(r[3])),
		Commit:   toString(r[4]),
		Branch:   toString(r[5]),
		ModTime:  fromEpochMillis(int64(toInt(r[6]))),
	}
}

func rowToDeclaration(r []any) Declaration {
	return Declaration{
		ID:          toString(r[0]),
		Repo:        toString(r[1]),
		Name:        toString(r[2]),
		Kind:        DeclarationKind(toString(r[3])),
		FileID:      toString(r[4]),
		FilePath:    toString(r[5]),
		ContainerID: toString(r[6]),
		StartLine:   toInt(r[7]),
		EndLine:     toInt(r[8]),
		Parameters:  splitList(toString(r[9])),
		Parents:     splitList(toString(r[10])),
		SymbolFQN:   toString(r[11]),
		Module:      toString(r[12]),
		ModifiedAt:  fromEpochMillis(int64(toInt(r[13]))),
	}
}

func rowsToDeclarations(rows [][]any) []Declaration {
	out := make([]Declaration, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToDeclaration(r))
	}
	return out
}

func rowToPlaceholder(r []any) Placeholder {
	return Placeholder{
		ID:          toString(r[0]),
		Repo:        toString(r[1]),
		Kind:        PlaceholderKind(toString(r[2])),
		FileID:      toString(r[3]),
		FilePath:    toString(r[4]),
		Line:        toInt(r[5]),
		Col:         toInt(r[6]),
		TargetName:  toString(r[7]),
		Qualifier:   toString(r[8]),
		Alias:       toString(r[9]),
		ContainerID: toString(r[10]),
		Resolved:    toBool(r[11]),
		Score:       toFloat64(r[12]),
		ResolvedAt:  fromEpochMillis(int64(toInt(r[13]))),
	}
}

func rowsToPlaceholders(rows [][]any) []Placeholder {
	out := make([]Placeholder, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToPlaceholder(r))
	}
	return out
}

// ---------- Value coercion ----------
// KuzuDB returns typed Go values (int64, float64, bool, string). These
// helpers coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// listSep separates slice elements stored in a single STRING column.
const listSep = "\x1f"

func joinList(ss []string) string {
	return strings.Join(ss, listSep)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromEpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
