package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// --- Enums ---

// DeclarationKind classifies declarations in the code graph.
type DeclarationKind string

const (
	DeclKindFunction DeclarationKind = "function"
	DeclKindClass    DeclarationKind = "class"
)

// PlaceholderKind classifies unresolved reference nodes.
type PlaceholderKind string

const (
	PlaceholderCallSite   PlaceholderKind = "call_site"
	PlaceholderImportSite PlaceholderKind = "import_site"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	// EdgeContains is structural ownership: File→Declaration,
	// File→placeholder, Declaration→placeholder. Owned nodes are removed
	// with their owner, never independently.
	EdgeContains EdgeKind = "CONTAINS"

	// EdgeInheritsFrom links a class to a parent class.
	EdgeInheritsFrom EdgeKind = "INHERITS_FROM"

	// EdgeResolvesTo links a placeholder to its target Declaration. At most
	// one outgoing edge per placeholder; carries score and timestamp.
	EdgeResolvesTo EdgeKind = "RESOLVES_TO"

	// EdgeCalls is the materialized Declaration→Declaration convenience
	// edge created when a CallSite with an enclosing declaration resolves.
	EdgeCalls EdgeKind = "CALLS"

	// EdgeImports is the materialized File→File convenience edge created
	// when an ImportSite resolves.
	EdgeImports EdgeKind = "IMPORTS"
)

// --- Models ---

// FileMeta is the caller-supplied metadata for one source file. Commit and
// branch come from the change-detection collaborator; ModTime feeds the
// recency tie-break during resolution.
type FileMeta struct {
	Repo     string       `json:"repo"`
	Path     string       `json:"path"`
	Language ast.Language `json:"language"`
	Commit   string       `json:"commit,omitempty"`
	Branch   string       `json:"branch,omitempty"`
	ModTime  time.Time    `json:"modTime"`
}

// FileNode represents a source file in the graph.
type FileNode struct {
	ID       string       `json:"id"`
	Repo     string       `json:"repo"`
	Path     string       `json:"path"`
	Language ast.Language `json:"language"`
	Commit   string       `json:"commit,omitempty"`
	Branch   string       `json:"branch,omitempty"`
	ModTime  time.Time    `json:"modTime"`
}

// Declaration represents a named class or function definition. Owned
// exclusively by its File.
type Declaration struct {
	ID          string          `json:"id"`
	Repo        string          `json:"repo"`
	Name        string          `json:"name"`
	Kind        DeclarationKind `json:"kind"`
	FileID      string          `json:"fileId"`
	FilePath    string          `json:"filePath"`
	ContainerID string          `json:"containerId,omitempty"` // enclosing declaration (methods)
	StartLine   int             `json:"startLine"`
	EndLine     int             `json:"endLine"`
	Parameters  []string        `json:"parameters,omitempty"`
	Parents     []string        `json:"parents,omitempty"` // parent class names
	SymbolFQN   string          `json:"symbolFqn,omitempty"`
	Module      string          `json:"module"`     // dotted module name derived from FilePath
	ModifiedAt  time.Time       `json:"modifiedAt"` // owning file's mtime
}

// Placeholder represents a usage site (call or import) whose target may not
// yet be known. Durable: persists whether or not resolution succeeds.
type Placeholder struct {
	ID          string          `json:"id"`
	Repo        string          `json:"repo"`
	Kind        PlaceholderKind `json:"kind"`
	FileID      string          `json:"fileId"`
	FilePath    string          `json:"filePath"`
	Line        int             `json:"line"`
	Col         int             `json:"col"`
	TargetName  string          `json:"targetName"`
	Qualifier   string          `json:"qualifier,omitempty"` // module/attribute qualifier
	Alias       string          `json:"alias,omitempty"`     // import alias
	ContainerID string          `json:"containerId,omitempty"`

	// Resolved is monotonic false→true; it reverts only on invalidation.
	Resolved   bool      `json:"resolved"`
	Score      float64   `json:"score,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt,omitempty"`
}

// Edge represents a relationship between two nodes. Score and At are only
// meaningful for RESOLVES_TO edges.
type Edge struct {
	SourceID string    `json:"sourceId"`
	TargetID string    `json:"targetId"`
	Kind     EdgeKind  `json:"kind"`
	Score    float64   `json:"score,omitempty"`
	At       time.Time `json:"at,omitempty"`
}

// Resolution is one accepted placeholder→declaration match produced by a
// resolution strategy.
type Resolution struct {
	PlaceholderID string    `json:"placeholderId"`
	DeclarationID string    `json:"declarationId"`
	Score         float64   `json:"score"`
	At            time.Time `json:"at"`
}

// ShardEntry is a lightweight index row for the sharded resolution strategy,
// created incrementally during extraction.
type ShardEntry struct {
	Repo          string `json:"repo"`
	Shard         string `json:"shard"`
	Name          string `json:"name"`
	DeclarationID string `json:"declarationId"`
}

// FileDeletion summarizes the effect of removing a file from the graph.
type FileDeletion struct {
	DeclarationsRemoved int `json:"declarationsRemoved"`
	PlaceholdersRemoved int `json:"placeholdersRemoved"`

	// Invalidated lists placeholders in OTHER files whose RESOLVES_TO edge
	// pointed into a removed declaration and was reset to unresolved.
	Invalidated []string `json:"invalidated,omitempty"`
}

// GraphStats summarizes a repository's graph.
type GraphStats struct {
	Files                  int `json:"files"`
	Declarations           int `json:"declarations"`
	Placeholders           int `json:"placeholders"`
	ResolvedPlaceholders   int `json:"resolvedPlaceholders"`
	UnresolvedPlaceholders int `json:"unresolvedPlaceholders"`
	Edges                  int `json:"edges"`
}

// --- Deterministic identifiers ---
// Ids are pure functions of their identifying fields so re-ingestion of an
// unchanged file reproduces identical ids and upserts become no-ops.

// FileID derives the stable id of a file node.
func FileID(repo, path string) string {
	return hashID("file", repo, path)
}

// DeclarationID derives the stable id of a declaration.
func DeclarationID(repo, path, name string, startLine int) string {
	return hashID("decl", repo, path, name, fmt.Sprintf("%d", startLine))
}

// PlaceholderID derives the stable id of a call or import site.
func PlaceholderID(repo, path string, line, col int, targetName string) string {
	return hashID("ph", repo, path, fmt.Sprintf("%d:%d", line, col), targetName)
}

func hashID(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:16])
}

// ModuleOfPath converts a repo-relative file path into a dotted module name:
// "pkg/utils.py" → "pkg.utils". Used for qualifier matching during
// resolution.
func ModuleOfPath(path string) string {
	p := strings.TrimSuffix(path, filepath.Ext(path))
	p = strings.TrimSuffix(p, "/__init__")
	p = strings.TrimSuffix(p, "/index")
	p = strings.TrimSuffix(p, "/mod")
	return strings.ReplaceAll(p, "/", ".")
}

// ShardOf maps a name to its shard key: the lowercased first rune for
// ASCII letters, "#" otherwise. Bounds per-lookup search space for the
// sharded strategy independent of repository size.
func ShardOf(name string) string {
	if name == "" {
		return "#"
	}
	c := name[0]
	switch {
	case c >= 'a' && c <= 'z':
		return string(c)
	case c >= 'A' && c <= 'Z':
		return string(c + ('a' - 'A'))
	default:
		return "#"
	}
}
