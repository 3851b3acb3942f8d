package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/scan"
)

func runUpdate(args []string) error {
	var c commonFlags
	var added, modified, deleted string
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&added, "add", "", "comma-separated repo-relative paths of new files")
	fs.StringVar(&modified, "modify", "", "comma-separated repo-relative paths of changed files")
	fs.StringVar(&deleted, "delete", "", "comma-separated repo-relative paths of removed files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := c.setup()
	if err != nil {
		return err
	}

	var cs graph.ChangeSet
	if added == "" && modified == "" && deleted == "" {
		return fmt.Errorf("update: at least one of -add, -modify or -delete is required")
	}

	store, err := openStore(c.storePath(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	scanner, err := scan.New(scan.Options{
		Repo:        cfg.Repository,
		Root:        c.Root,
		Languages:   configLanguages(cfg),
		ExcludeDirs: cfg.ExcludeDirs,
		Log:         log,
	})
	if err != nil {
		return err
	}

	for _, path := range splitList(added) {
		in, err := scanner.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		cs.Added = append(cs.Added, in)
	}
	for _, path := range splitList(modified) {
		in, err := scanner.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		cs.Modified = append(cs.Modified, in)
	}
	for _, path := range splitList(deleted) {
		cs.Deleted = append(cs.Deleted, graph.FileMeta{Repo: cfg.Repository, Path: filepath.ToSlash(path)})
	}

	engine := graph.NewEngine(store, engineOptions(cfg), log)
	parser := ast.NewTreeSitterParser()
	defer parser.Close()
	coord := graph.NewCoordinator(store, graph.NewExtractor(parser), engine, coordinatorOptions(cfg), log)

	summary, err := coord.Apply(context.Background(), cfg.Repository, cs)
	if err != nil {
		return err
	}

	fmt.Printf("Applied change set: +%d / ~%d / -%d files, %d resolutions invalidated\n",
		summary.FilesAdded, summary.FilesModified, summary.FilesDeleted, summary.Invalidated)
	if summary.Resolution != nil {
		fmt.Printf("Resolved %d references, %d unresolved\n",
			summary.Resolution.Resolved, summary.Resolution.Remaining)
	}
	return nil
}
