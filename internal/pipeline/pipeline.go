// Package pipeline drives a full repository index: scan the tree, extract
// every source file in parallel, persist the extractions, then run the
// cross-file resolution pass.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/scan"
)

// Options configures a Runner.
type Options struct {
	// Workers is the extraction parallelism. Values below 1 run serially.
	Workers int

	// Reporter receives progress events; nil disables reporting.
	Reporter *Reporter

	Log *slog.Logger
}

// Runner wires the scanner, store, resolution engine and incremental
// coordinator into one indexing pipeline.
type Runner struct {
	scanner  *scan.Scanner
	store    graph.Store
	engine   *graph.Engine
	coord    *graph.Coordinator
	workers  int
	reporter *Reporter
	log      *slog.Logger
}

// NewRunner creates a Runner over an existing scanner, store, engine and
// coordinator.
func NewRunner(scanner *scan.Scanner, store graph.Store, engine *graph.Engine, coord *graph.Coordinator, opts Options) *Runner {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		scanner:  scanner,
		store:    store,
		engine:   engine,
		coord:    coord,
		workers:  workers,
		reporter: opts.Reporter,
		log:      log,
	}
}

// IndexReport summarizes one full indexing run.
type IndexReport struct {
	Files        int                   `json:"files"`
	Declarations int                   `json:"declarations"`
	Placeholders int                   `json:"placeholders"`
	FailedFiles  []string              `json:"failedFiles,omitempty"`
	Skips        []graph.Skip          `json:"skips,omitempty"`
	Resolution   *graph.ResolveSummary `json:"resolution,omitempty"`
	Elapsed      time.Duration         `json:"elapsed"`
}

// Index scans the repository root, extracts every accepted file, persists
// the results and resolves all placeholders. Files are extracted in
// parallel; persistence is sequential so node upserts always precede the
// edges that reference them.
func (r *Runner) Index(ctx context.Context) (*IndexReport, error) {
	start := time.Now()

	r.emit(Event{Phase: PhaseScan, Status: StatusWorking})
	inputs, err := r.scanner.Scan(ctx)
	if err != nil {
		r.emit(Event{Phase: PhaseScan, Status: StatusFailed, Message: err.Error()})
		return nil, err
	}
	r.emit(Event{Phase: PhaseScan, Status: StatusComplete, Message: fmt.Sprintf("%d files", len(inputs))})

	extractions, failed, err := r.extract(ctx, inputs)
	if err != nil {
		return nil, err
	}

	report := &IndexReport{Files: len(extractions), FailedFiles: failed}
	r.emit(Event{Phase: PhasePersist, Status: StatusWorking})
	for _, ex := range extractions {
		if err := r.coord.Persist(ctx, ex); err != nil {
			r.emit(Event{Phase: PhasePersist, Unit: ex.File.Path, Status: StatusFailed, Message: err.Error()})
			return nil, fmt.Errorf("pipeline: persist %s: %w", ex.File.Path, err)
		}
		report.Declarations += len(ex.Declarations)
		report.Placeholders += len(ex.Placeholders)
		report.Skips = append(report.Skips, ex.Skips...)
	}
	r.emit(Event{Phase: PhasePersist, Status: StatusComplete,
		Message: fmt.Sprintf("%d declarations, %d placeholders", report.Declarations, report.Placeholders)})

	r.emit(Event{Phase: PhaseResolve, Status: StatusWorking})
	res, err := r.engine.ResolveAll(ctx, r.scanner.Repo())
	if err != nil {
		r.emit(Event{Phase: PhaseResolve, Status: StatusFailed, Message: err.Error()})
		return nil, err
	}
	report.Resolution = res
	report.Elapsed = time.Since(start)
	r.emit(Event{Phase: PhaseResolve, Status: StatusComplete,
		Message: fmt.Sprintf("%d resolved, %d remaining", res.Resolved, res.Remaining)})

	r.log.Info("index complete",
		"repo", r.scanner.Repo(),
		"files", report.Files,
		"declarations", report.Declarations,
		"placeholders", report.Placeholders,
		"resolved", res.Resolved,
		"remaining", res.Remaining,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// extract parses inputs across r.workers goroutines. Each worker owns its
// own parser; results land in a slice indexed by input position so output
// order matches scan order. A file whose extraction fails is reported and
// skipped; the other workers keep going. Only context cancellation stops
// the pool.
func (r *Runner) extract(ctx context.Context, inputs []graph.FileInput) ([]*graph.Extraction, []string, error) {
	extractions := make([]*graph.Extraction, len(inputs))
	jobs := make(chan int)

	workers := r.workers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			parser := ast.NewTreeSitterParser()
			defer parser.Close()
			ex := graph.NewExtractor(parser)

			for i := range jobs {
				in := inputs[i]
				r.emit(Event{Phase: PhaseExtract, Unit: in.Meta.Path, Status: StatusWorking})
				out, err := ex.ExtractFile(gctx, in.Meta, in.Source)
				if err != nil {
					r.emit(Event{Phase: PhaseExtract, Unit: in.Meta.Path, Status: StatusFailed, Message: err.Error()})
					r.log.Warn("extraction failed", "path", in.Meta.Path, "error", err)
					continue
				}
				extractions[i] = out
				r.emit(Event{Phase: PhaseExtract, Unit: in.Meta.Path, Status: StatusComplete})
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range inputs {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := make([]*graph.Extraction, 0, len(extractions))
	var failed []string
	for i, ex := range extractions {
		if ex == nil {
			failed = append(failed, inputs[i].Meta.Path)
			continue
		}
		kept = append(kept, ex)
	}
	return kept, failed, nil
}

// Update applies one change set through the incremental coordinator.
func (r *Runner) Update(ctx context.Context, cs graph.ChangeSet) (*graph.UpdateSummary, error) {
	return r.coord.Apply(ctx, r.scanner.Repo(), cs)
}

// Watch blocks watching the repository root, applying each debounced change
// set as it arrives. Returns when ctx is canceled.
func (r *Runner) Watch(ctx context.Context, debounce time.Duration) error {
	w := scan.NewWatcher(r.scanner, debounce, r.log)
	return w.Run(ctx, func(ctx context.Context, cs graph.ChangeSet) error {
		summary, err := r.Update(ctx, cs)
		if err != nil {
			return err
		}
		r.log.Info("watch update applied",
			"added", summary.FilesAdded,
			"modified", summary.FilesModified,
			"deleted", summary.FilesDeleted,
		)
		return nil
	})
}

func (r *Runner) emit(event Event) {
	if r.reporter != nil {
		r.reporter.Emit(event)
	}
}
