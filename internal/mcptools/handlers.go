package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/pipeline"
	"github.com/dusk-indust/codegraph/internal/scan"
)

// CodeGraphService holds the graph store and config shared by MCP tool
// handlers. The last indexed repository becomes the default for query tools
// that omit the repo field.
type CodeGraphService struct {
	store graph.Store
	cfg   *config.ProjectConfig
	log   *slog.Logger

	mu          sync.Mutex
	defaultRepo string
}

// NewCodeGraphService creates a CodeGraphService over an open store.
func NewCodeGraphService(store graph.Store, cfg *config.ProjectConfig, log *slog.Logger) *CodeGraphService {
	if log == nil {
		log = slog.Default()
	}
	return &CodeGraphService{store: store, cfg: cfg, log: log, defaultRepo: cfg.Repository}
}

func (s *CodeGraphService) repoOrDefault(repo string) (string, error) {
	if repo != "" {
		return repo, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaultRepo == "" {
		return "", fmt.Errorf("repo is required: no repository has been indexed yet")
	}
	return s.defaultRepo, nil
}

func (s *CodeGraphService) setDefaultRepo(repo string) {
	s.mu.Lock()
	s.defaultRepo = repo
	s.mu.Unlock()
}

func (s *CodeGraphService) newEngine() *graph.Engine {
	return graph.NewEngine(s.store, graph.EngineOptions{
		Strategy:  s.cfg.Resolution.Strategy,
		BatchSize: s.cfg.Resolution.BatchSize,
		Threshold: s.cfg.Resolution.ConfidenceThreshold,
	}, s.log)
}

func (s *CodeGraphService) newScanner(repoPath, repo string, languages, excludeDirs []string) (*scan.Scanner, error) {
	langs := make([]ast.Language, 0, len(languages))
	for _, l := range languages {
		langs = append(langs, ast.Language(strings.ToLower(l)))
	}
	if len(langs) == 0 {
		for _, l := range s.cfg.Languages {
			langs = append(langs, ast.Language(l))
		}
	}
	if len(excludeDirs) == 0 {
		excludeDirs = s.cfg.ExcludeDirs
	}
	return scan.New(scan.Options{
		Repo:        repo,
		Root:        repoPath,
		Languages:   langs,
		ExcludeDirs: excludeDirs,
		Log:         s.log,
	})
}

func repoName(input, repoPath string) string {
	if input != "" {
		return input
	}
	return filepath.Base(repoPath)
}

// IndexRepository scans and indexes a repository from scratch, then runs the
// full cross-file resolution pass.
func (s *CodeGraphService) IndexRepository(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexRepositoryInput,
) (*mcp.CallToolResult, IndexRepositoryOutput, error) {
	if input.RepoPath == "" {
		return nil, IndexRepositoryOutput{}, fmt.Errorf("repoPath is required")
	}
	repo := repoName(input.Repo, input.RepoPath)

	scanner, err := s.newScanner(input.RepoPath, repo, input.Languages, input.ExcludeDirs)
	if err != nil {
		return nil, IndexRepositoryOutput{}, err
	}

	if err := s.store.InitSchema(ctx); err != nil {
		return nil, IndexRepositoryOutput{}, fmt.Errorf("init schema: %w", err)
	}

	engine := s.newEngine()
	parser := ast.NewTreeSitterParser()
	defer parser.Close()
	coord := graph.NewCoordinator(s.store, graph.NewExtractor(parser), engine, graph.CoordinatorOptions{
		BatchSize: s.cfg.Resolution.BatchSize,
		Immediate: s.cfg.ResolveImmediately(),
	}, s.log)

	runner := pipeline.NewRunner(scanner, s.store, engine, coord, pipeline.Options{
		Workers: s.cfg.Workers,
		Log:     s.log,
	})
	report, err := runner.Index(ctx)
	if err != nil {
		return nil, IndexRepositoryOutput{}, fmt.Errorf("index %s: %w", repo, err)
	}

	s.setDefaultRepo(repo)
	return nil, IndexRepositoryOutput{Report: *report}, nil
}

// UpdateFiles applies an incremental change set: added and modified files
// are re-read from disk, deleted files are removed from the graph.
func (s *CodeGraphService) UpdateFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateFilesInput,
) (*mcp.CallToolResult, UpdateFilesOutput, error) {
	if input.RepoPath == "" {
		return nil, UpdateFilesOutput{}, fmt.Errorf("repoPath is required")
	}
	if len(input.Added)+len(input.Modified)+len(input.Deleted) == 0 {
		return nil, UpdateFilesOutput{}, fmt.Errorf("at least one of added, modified or deleted is required")
	}
	repo := repoName(input.Repo, input.RepoPath)

	scanner, err := s.newScanner(input.RepoPath, repo, nil, nil)
	if err != nil {
		return nil, UpdateFilesOutput{}, err
	}

	var cs graph.ChangeSet
	for _, path := range input.Added {
		in, err := scanner.Load(path)
		if err != nil {
			return nil, UpdateFilesOutput{}, fmt.Errorf("load %s: %w", path, err)
		}
		cs.Added = append(cs.Added, in)
	}
	for _, path := range input.Modified {
		in, err := scanner.Load(path)
		if err != nil {
			return nil, UpdateFilesOutput{}, fmt.Errorf("load %s: %w", path, err)
		}
		cs.Modified = append(cs.Modified, in)
	}
	for _, path := range input.Deleted {
		cs.Deleted = append(cs.Deleted, graph.FileMeta{Repo: repo, Path: filepath.ToSlash(path)})
	}

	engine := s.newEngine()
	parser := ast.NewTreeSitterParser()
	defer parser.Close()
	coord := graph.NewCoordinator(s.store, graph.NewExtractor(parser), engine, graph.CoordinatorOptions{
		BatchSize: s.cfg.Resolution.BatchSize,
		Immediate: s.cfg.ResolveImmediately(),
	}, s.log)

	summary, err := coord.Apply(ctx, repo, cs)
	if err != nil {
		return nil, UpdateFilesOutput{}, fmt.Errorf("update %s: %w", repo, err)
	}

	s.setDefaultRepo(repo)
	return nil, UpdateFilesOutput{Summary: *summary}, nil
}

// SearchDeclarations searches declarations by name substring match.
func (s *CodeGraphService) SearchDeclarations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchDeclarationsInput,
) (*mcp.CallToolResult, SearchDeclarationsOutput, error) {
	if input.Query == "" {
		return nil, SearchDeclarationsOutput{}, fmt.Errorf("query is required")
	}
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, SearchDeclarationsOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	decls, err := s.store.SearchDeclarations(ctx, repo, input.Query, limit)
	if err != nil {
		return nil, SearchDeclarationsOutput{}, fmt.Errorf("search declarations: %w", err)
	}

	if input.Kind != "" {
		kind := graph.DeclarationKind(strings.ToLower(input.Kind))
		filtered := decls[:0]
		for _, d := range decls {
			if d.Kind == kind {
				filtered = append(filtered, d)
			}
		}
		decls = filtered
	}

	return nil, SearchDeclarationsOutput{Declarations: decls, Total: len(decls)}, nil
}

// ResolveReferences runs a full resolution pass over a repository.
func (s *CodeGraphService) ResolveReferences(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveReferencesInput,
) (*mcp.CallToolResult, ResolveReferencesOutput, error) {
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, ResolveReferencesOutput{}, err
	}

	opts := graph.EngineOptions{
		Strategy:  s.cfg.Resolution.Strategy,
		BatchSize: s.cfg.Resolution.BatchSize,
		Threshold: s.cfg.Resolution.ConfidenceThreshold,
	}
	if input.Strategy != "" {
		opts.Strategy = strings.ToLower(input.Strategy)
	}

	summary, err := graph.NewEngine(s.store, opts, s.log).ResolveAll(ctx, repo)
	if err != nil {
		return nil, ResolveReferencesOutput{}, fmt.Errorf("resolve %s: %w", repo, err)
	}
	return nil, ResolveReferencesOutput{Summary: *summary}, nil
}

// DeadCode returns functions no resolved call site targets.
func (s *CodeGraphService) DeadCode(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeadCodeInput,
) (*mcp.CallToolResult, DeadCodeOutput, error) {
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, DeadCodeOutput{}, err
	}

	fns, err := s.store.DeadFunctions(ctx, repo)
	if err != nil {
		return nil, DeadCodeOutput{}, fmt.Errorf("dead functions: %w", err)
	}
	return nil, DeadCodeOutput{Functions: fns, Total: len(fns)}, nil
}

// UnresolvedReferences lists placeholders that resolution could not match.
func (s *CodeGraphService) UnresolvedReferences(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UnresolvedReferencesInput,
) (*mcp.CallToolResult, UnresolvedReferencesOutput, error) {
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, UnresolvedReferencesOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	phs, err := s.store.UnresolvedPlaceholders(ctx, repo, "", limit)
	if err != nil {
		return nil, UnresolvedReferencesOutput{}, fmt.Errorf("unresolved placeholders: %w", err)
	}
	return nil, UnresolvedReferencesOutput{Placeholders: phs, Total: len(phs)}, nil
}

// FileImpact computes the transitive set of files importing the given ones.
func (s *CodeGraphService) FileImpact(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FileImpactInput,
) (*mcp.CallToolResult, FileImpactOutput, error) {
	if len(input.Paths) == 0 {
		return nil, FileImpactOutput{}, fmt.Errorf("paths is required")
	}
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, FileImpactOutput{}, err
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	affected, err := s.store.FileImpact(ctx, repo, input.Paths, maxDepth)
	if err != nil {
		return nil, FileImpactOutput{}, fmt.Errorf("file impact: %w", err)
	}
	return nil, FileImpactOutput{AffectedFiles: affected, Total: len(affected)}, nil
}

// GraphStats returns node and edge counts for a repository.
func (s *CodeGraphService) GraphStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GraphStatsInput,
) (*mcp.CallToolResult, GraphStatsOutput, error) {
	repo, err := s.repoOrDefault(input.Repo)
	if err != nil {
		return nil, GraphStatsOutput{}, err
	}

	stats, err := s.store.Stats(ctx, repo)
	if err != nil {
		return nil, GraphStatsOutput{}, fmt.Errorf("stats: %w", err)
	}
	return nil, GraphStatsOutput{Stats: *stats}, nil
}
