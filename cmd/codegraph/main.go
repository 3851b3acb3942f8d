package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/graph"
)

// version is set by goreleaser at build time.
var version = "dev"

const usage = `codegraph indexes source repositories into a knowledge graph of
files, declarations and cross-file references.

Usage: codegraph <command> [flags]

Commands:
  index      index a repository from scratch
  update     apply an incremental change set
  watch      watch a repository and apply changes as they happen
  status     print index health for a repository
  export     write a JSON report of the graph
  diagram    print a Mermaid diagram of resolved file imports
  serve-mcp  run the MCP tool server
  version    print version and exit

Run 'codegraph <command> -h' for command flags.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "index":
		return runIndex(rest)
	case "update":
		return runUpdate(rest)
	case "watch":
		return runWatch(rest)
	case "status":
		return runStatus(rest)
	case "export":
		return runExport(rest)
	case "diagram":
		return runDiagram(rest)
	case "serve-mcp":
		return runServeMCP(rest)
	case "version":
		fmt.Println(version)
		return nil
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags are shared by every subcommand that touches a repository.
type commonFlags struct {
	Root      string
	Repo      string
	StorePath string
	Languages string
	Exclude   string
	Verbose   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.Root, "root", ".", "path to the repository to index")
	fs.StringVar(&c.Repo, "repo", "", "repository name recorded on graph nodes (default: base name of root)")
	fs.StringVar(&c.StorePath, "store", "", "KuzuDB directory (default: <root>/.codegraph/graph, or config)")
	fs.StringVar(&c.Languages, "languages", "", "comma-separated languages to index (default: all supported)")
	fs.StringVar(&c.Exclude, "exclude", "", "comma-separated directory names to skip")
	fs.BoolVar(&c.Verbose, "verbose", false, "enable debug logging")
}

// setup loads codegraph.yml from the root and applies flag overrides.
func (c *commonFlags) setup() (*config.ProjectConfig, *slog.Logger, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, nil, err
	}
	c.Root = root

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}
	if c.Repo != "" {
		cfg.Repository = c.Repo
	}
	if cfg.Repository == "" {
		cfg.Repository = filepath.Base(root)
	}
	if c.StorePath != "" {
		cfg.Store.Path = c.StorePath
	}
	if c.Languages != "" {
		cfg.Languages = splitList(c.Languages)
	}
	if c.Exclude != "" {
		cfg.ExcludeDirs = append(cfg.ExcludeDirs, splitList(c.Exclude)...)
	}
	if c.Verbose {
		cfg.Verbose = true
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, log, nil
}

// storePath returns the configured graph directory, defaulting to a
// .codegraph directory under the repository root.
func (c *commonFlags) storePath(cfg *config.ProjectConfig) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return filepath.Join(c.Root, ".codegraph", "graph")
}

func configLanguages(cfg *config.ProjectConfig) []ast.Language {
	langs := make([]ast.Language, 0, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs = append(langs, ast.Language(strings.ToLower(l)))
	}
	return langs
}

func engineOptions(cfg *config.ProjectConfig) graph.EngineOptions {
	return graph.EngineOptions{
		Strategy:  cfg.Resolution.Strategy,
		BatchSize: cfg.Resolution.BatchSize,
		Threshold: cfg.Resolution.ConfidenceThreshold,
	}
}

func coordinatorOptions(cfg *config.ProjectConfig) graph.CoordinatorOptions {
	return graph.CoordinatorOptions{
		BatchSize: cfg.Resolution.BatchSize,
		Immediate: cfg.ResolveImmediately(),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
