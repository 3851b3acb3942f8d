package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/pipeline"
	"github.com/dusk-indust/codegraph/internal/scan"
)

func runWatch(args []string) error {
	var c commonFlags
	var debounce time.Duration
	var skipIndex bool
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	c.register(fs)
	fs.DurationVar(&debounce, "debounce", scan.DefaultDebounce, "quiet period before applying a burst of events")
	fs.BoolVar(&skipIndex, "skip-index", false, "skip the initial full index and watch only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := c.setup()
	if err != nil {
		return err
	}

	store, err := openStore(c.storePath(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

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

	engine := graph.NewEngine(store, engineOptions(cfg), log)
	parser := ast.NewTreeSitterParser()
	defer parser.Close()
	coord := graph.NewCoordinator(store, graph.NewExtractor(parser), engine, coordinatorOptions(cfg), log)
	runner := pipeline.NewRunner(scanner, store, engine, coord, pipeline.Options{
		Workers: cfg.Workers,
		Log:     log,
	})

	if !skipIndex {
		report, err := runner.Index(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %s: %d files, %d declarations\n", cfg.Repository, report.Files, report.Declarations)
	}

	fmt.Printf("Watching %s (debounce %s), Ctrl-C to stop\n", c.Root, debounce)
	if err := runner.Watch(ctx, debounce); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
