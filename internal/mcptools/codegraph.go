package mcptools

import (
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/pipeline"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IndexRepositoryInput is the input for the index_repository MCP tool.
type IndexRepositoryInput struct {
	RepoPath    string   `json:"repoPath" jsonschema:"the absolute path to the repository to index"`
	Repo        string   `json:"repo,omitempty" jsonschema:"repository name recorded on graph nodes (default: base name of repoPath)"`
	Languages   []string `json:"languages,omitempty" jsonschema:"languages to index (default: all supported). Values: go, typescript, python, rust"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directories to exclude from indexing (e.g. vendor, node_modules)"`
}

// IndexRepositoryOutput is the result of the index_repository MCP tool.
type IndexRepositoryOutput struct {
	Report pipeline.IndexReport `json:"report"`
}

// UpdateFilesInput is the input for the update_files MCP tool.
type UpdateFilesInput struct {
	RepoPath string   `json:"repoPath" jsonschema:"the absolute path to the indexed repository"`
	Repo     string   `json:"repo,omitempty" jsonschema:"repository name (default: base name of repoPath)"`
	Added    []string `json:"added,omitempty" jsonschema:"repo-relative paths of files created since the last index"`
	Modified []string `json:"modified,omitempty" jsonschema:"repo-relative paths of files whose content changed"`
	Deleted  []string `json:"deleted,omitempty" jsonschema:"repo-relative paths of files removed from the repository"`
}

// UpdateFilesOutput is the result of the update_files MCP tool.
type UpdateFilesOutput struct {
	Summary graph.UpdateSummary `json:"summary"`
}

// SearchDeclarationsInput is the input for the search_declarations MCP tool.
type SearchDeclarationsInput struct {
	Query string `json:"query" jsonschema:"search query for declaration names (substring match)"`
	Repo  string `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
	Kind  string `json:"kind,omitempty" jsonschema:"filter by declaration kind: function, class"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// SearchDeclarationsOutput is the result of the search_declarations MCP tool.
type SearchDeclarationsOutput struct {
	Declarations []graph.Declaration `json:"declarations"`
	Total        int                 `json:"total"`
}

// ResolveReferencesInput is the input for the resolve_references MCP tool.
type ResolveReferencesInput struct {
	Repo     string `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
	Strategy string `json:"strategy,omitempty" jsonschema:"resolution strategy: auto, join, hashmap, sharded (default: auto)"`
}

// ResolveReferencesOutput is the result of the resolve_references MCP tool.
type ResolveReferencesOutput struct {
	Summary graph.ResolveSummary `json:"summary"`
}

// DeadCodeInput is the input for the dead_code MCP tool.
type DeadCodeInput struct {
	Repo string `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
}

// DeadCodeOutput is the result of the dead_code MCP tool.
type DeadCodeOutput struct {
	Functions []graph.Declaration `json:"functions"`
	Total     int                 `json:"total"`
}

// UnresolvedReferencesInput is the input for the unresolved_references MCP tool.
type UnresolvedReferencesInput struct {
	Repo  string `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 50)"`
}

// UnresolvedReferencesOutput is the result of the unresolved_references MCP tool.
type UnresolvedReferencesOutput struct {
	Placeholders []graph.Placeholder `json:"placeholders"`
	Total        int                 `json:"total"`
}

// FileImpactInput is the input for the file_impact MCP tool.
type FileImpactInput struct {
	Paths    []string `json:"paths" jsonschema:"repo-relative paths of the files that will be modified"`
	Repo     string   `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
	MaxDepth int      `json:"maxDepth,omitempty" jsonschema:"maximum transitive import depth (default: 5)"`
}

// FileImpactOutput is the result of the file_impact MCP tool.
type FileImpactOutput struct {
	AffectedFiles []string `json:"affectedFiles"`
	Total         int      `json:"total"`
}

// GraphStatsInput is the input for the graph_stats MCP tool.
type GraphStatsInput struct {
	Repo string `json:"repo,omitempty" jsonschema:"repository name (default: the service default)"`
}

// GraphStatsOutput is the result of the graph_stats MCP tool.
type GraphStatsOutput struct {
	Stats graph.GraphStats `json:"stats"`
}
