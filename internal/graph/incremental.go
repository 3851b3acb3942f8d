package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// FileInput is one caller-supplied file: its metadata plus raw source bytes.
type FileInput struct {
	Meta   FileMeta
	Source []byte
}

// ChangeSet describes one batch of repository changes. Modified files are
// processed as delete-then-re-extract, so declarations and placeholders that
// disappeared from the new content leave no residue.
type ChangeSet struct {
	Added    []FileInput
	Modified []FileInput
	Deleted  []FileMeta
}

// Empty reports whether the change set carries no work.
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Modified) == 0 && len(cs.Deleted) == 0
}

// UpdateSummary reports the effect of applying one change set.
type UpdateSummary struct {
	FilesAdded    int `json:"filesAdded"`
	FilesModified int `json:"filesModified"`
	FilesDeleted  int `json:"filesDeleted"`

	Declarations int `json:"declarations"` // extracted from added+modified files
	Placeholders int `json:"placeholders"`
	Invalidated  int `json:"invalidated"` // resolutions reset by deletions

	// FailedFiles lists files whose extraction failed. The rest of the
	// change set still applies.
	FailedFiles []string `json:"failedFiles,omitempty"`

	Skips      []Skip          `json:"skips,omitempty"`
	Resolution *ResolveSummary `json:"resolution,omitempty"`
}

// CoordinatorOptions configures incremental update handling.
type CoordinatorOptions struct {
	// BatchSize bounds node and edge upsert batches.
	BatchSize int

	// Immediate re-resolves touched placeholders as part of Apply. When
	// false, placeholders stay unresolved until the next resolution pass.
	Immediate bool
}

// Coordinator applies change sets to the graph and re-resolves exactly the
// placeholders a change touched: new sites from re-extracted files,
// resolutions invalidated by deletions, and unresolved references whose
// target name a new declaration now provides. Work stays proportional to
// the change, not the repository.
type Coordinator struct {
	store     Store
	extractor *Extractor
	engine    *Engine
	opts      CoordinatorOptions
	log       *slog.Logger
}

// NewCoordinator returns a Coordinator over the given collaborators.
func NewCoordinator(store Store, extractor *Extractor, engine *Engine, opts CoordinatorOptions, log *slog.Logger) *Coordinator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, extractor: extractor, engine: engine, opts: opts, log: log}
}

// Apply ingests one change set. Deletions run first so a moved file never
// collides with its old identity; extraction and persistence follow; the
// scoped resolution pass runs last.
func (c *Coordinator) Apply(ctx context.Context, repo string, cs ChangeSet) (*UpdateSummary, error) {
	summary := &UpdateSummary{
		FilesAdded:    len(cs.Added),
		FilesModified: len(cs.Modified),
		FilesDeleted:  len(cs.Deleted),
	}
	touched := make(map[string]bool)
	newNames := make(map[string]bool)

	for _, meta := range cs.Deleted {
		del, err := c.store.DeleteFile(ctx, repo, meta.Path)
		if err != nil {
			return summary, fmt.Errorf("update: delete %s: %w", meta.Path, err)
		}
		summary.Invalidated += len(del.Invalidated)
		for _, id := range del.Invalidated {
			touched[id] = true
		}
	}

	// A modified file is its old self deleted plus its new self extracted.
	for _, in := range cs.Modified {
		del, err := c.store.DeleteFile(ctx, repo, in.Meta.Path)
		if err != nil {
			return summary, fmt.Errorf("update: delete %s: %w", in.Meta.Path, err)
		}
		summary.Invalidated += len(del.Invalidated)
		for _, id := range del.Invalidated {
			touched[id] = true
		}
	}

	inputs := make([]FileInput, 0, len(cs.Added)+len(cs.Modified))
	inputs = append(inputs, cs.Added...)
	inputs = append(inputs, cs.Modified...)
	for _, in := range inputs {
		ex, err := c.extractor.ExtractFile(ctx, in.Meta, in.Source)
		if err != nil {
			// One bad file never blocks the rest of the change set.
			summary.FailedFiles = append(summary.FailedFiles, in.Meta.Path)
			c.log.Error("extraction failed", "path", in.Meta.Path, "error", err)
			continue
		}
		if err := c.Persist(ctx, ex); err != nil {
			return summary, fmt.Errorf("update: persist %s: %w", in.Meta.Path, err)
		}
		summary.Declarations += len(ex.Declarations)
		summary.Placeholders += len(ex.Placeholders)
		summary.Skips = append(summary.Skips, ex.Skips...)
		for _, p := range ex.Placeholders {
			touched[p.ID] = true
		}
		for _, d := range ex.Declarations {
			newNames[d.Name] = true
		}
	}

	// New declarations may satisfy references that failed before; pull those
	// placeholders into scope too.
	if len(newNames) > 0 {
		if err := c.collectByTargetName(ctx, repo, newNames, touched); err != nil {
			return summary, err
		}
	}

	if c.opts.Immediate && len(touched) > 0 {
		ids := make([]string, 0, len(touched))
		for id := range touched {
			ids = append(ids, id)
		}
		res, err := c.engine.ResolveScoped(ctx, repo, ids)
		if err != nil {
			return summary, fmt.Errorf("update: resolve: %w", err)
		}
		summary.Resolution = res
	}

	c.log.Info("change set applied",
		"repo", repo,
		"added", summary.FilesAdded,
		"modified", summary.FilesModified,
		"deleted", summary.FilesDeleted,
		"touched", len(touched),
	)
	return summary, nil
}

// Persist writes one extraction with batched upserts: nodes before edges so
// endpoint matches always bind.
func (c *Coordinator) Persist(ctx context.Context, ex *Extraction) error {
	err := withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
		return c.store.UpsertFiles(ctx, []FileNode{ex.File})
	})
	if err != nil {
		return err
	}
	if err := batched(ex.Declarations, c.opts.BatchSize, func(b []Declaration) error {
		return withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
			return c.store.UpsertDeclarations(ctx, b)
		})
	}); err != nil {
		return err
	}
	if err := batched(ex.Placeholders, c.opts.BatchSize, func(b []Placeholder) error {
		return withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
			return c.store.UpsertPlaceholders(ctx, b)
		})
	}); err != nil {
		return err
	}
	if err := batched(ex.ShardEntries, c.opts.BatchSize, func(b []ShardEntry) error {
		return withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
			return c.store.UpsertShardEntries(ctx, b)
		})
	}); err != nil {
		return err
	}
	return batched(ex.Edges, c.opts.BatchSize, func(b []Edge) error {
		return withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
			return c.store.MergeEdges(ctx, b)
		})
	})
}

// collectByTargetName adds every unresolved placeholder whose target is one
// of the given names to the touched set.
func (c *Coordinator) collectByTargetName(ctx context.Context, repo string, names map[string]bool, touched map[string]bool) error {
	after := ""
	for {
		page, err := c.store.UnresolvedPlaceholders(ctx, repo, after, c.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("update: list unresolved: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, p := range page {
			if names[p.TargetName] {
				touched[p.ID] = true
			}
		}
		after = page[len(page)-1].ID
	}
}

// batched invokes fn over fixed-size slices of items.
func batched[T any](items []T, size int, fn func([]T) error) error {
	for lo := 0; lo < len(items); lo += size {
		hi := lo + size
		if hi > len(items) {
			hi = len(items)
		}
		if err := fn(items[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}
