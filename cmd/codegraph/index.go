package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/pipeline"
	"github.com/dusk-indust/codegraph/internal/scan"
)

func runIndex(args []string) error {
	var c commonFlags
	var progress bool
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	c.register(fs)
	fs.BoolVar(&progress, "progress", false, "print per-file progress lines")
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

	ctx := context.Background()
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

	var reporter *pipeline.Reporter
	done := make(chan struct{})
	if progress {
		reporter = pipeline.NewReporter()
		go func() {
			defer close(done)
			for event := range reporter.Subscribe() {
				fmt.Println(pipeline.FormatEvent(event))
			}
		}()
	}

	runner := pipeline.NewRunner(scanner, store, engine, coord, pipeline.Options{
		Workers:  cfg.Workers,
		Reporter: reporter,
		Log:      log,
	})
	report, err := runner.Index(ctx)
	if reporter != nil {
		reporter.Close()
		<-done
	}
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %s: %d files, %d declarations, %d references in %s\n",
		cfg.Repository, report.Files, report.Declarations, report.Placeholders, report.Elapsed.Round(time.Millisecond))
	if report.Resolution != nil {
		fmt.Printf("Resolved %d references (%s strategy, %d rounds), %d unresolved\n",
			report.Resolution.Resolved, report.Resolution.Strategy, report.Resolution.Rounds, report.Resolution.Remaining)
	}
	if len(report.Skips) > 0 {
		fmt.Printf("Skipped %d unrecognized constructs\n", len(report.Skips))
	}
	if len(report.FailedFiles) > 0 {
		fmt.Printf("Failed to extract %d files (see log)\n", len(report.FailedFiles))
	}
	return nil
}
