package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Strategy names accepted by the resolution engine.
const (
	StrategyAuto    = "auto"
	StrategyJoin    = "join"
	StrategyHashmap = "hashmap"
	StrategySharded = "sharded"
)

// Declaration-count boundaries for automatic strategy selection. Below the
// join boundary every lookup goes through the store's name index; between
// the boundaries one in-memory name table pays off; above, only the shard
// index keeps memory flat.
const (
	joinMaxDeclarations    = 2_000_000
	hashmapMaxDeclarations = 5_000_000
)

// shardCacheSize bounds the sharded strategy's lookup cache.
const shardCacheSize = 65536

// Match is one accepted placeholder→declaration pairing with its score.
type Match struct {
	Placeholder Placeholder
	Declaration Declaration
	Score       float64
}

// Strategy produces matches for one batch of unresolved placeholders.
// All strategies share the same scoring policy; they differ only in how
// candidate declarations are looked up.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, batch []Placeholder) ([]Match, error)
}

// EngineOptions configures a resolution engine.
type EngineOptions struct {
	Strategy  string  // auto|join|hashmap|sharded
	BatchSize int     // placeholders per batch
	Threshold float64 // minimum accepted confidence
}

// ResolveSummary reports the outcome of one resolution pass.
type ResolveSummary struct {
	Strategy  string        `json:"strategy"`
	Healed    int           `json:"healed"`
	Rounds    int           `json:"rounds"`
	Resolved  int           `json:"resolved"`
	Remaining int           `json:"remaining"`
	Failed    int           `json:"failedBatches"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Engine drives resolution passes over a repository's unresolved
// placeholders.
type Engine struct {
	store Store
	opts  EngineOptions
	log   *slog.Logger
}

// NewEngine returns an Engine over the given store. Zero option fields fall
// back to defaults.
func NewEngine(store Store, opts EngineOptions, log *slog.Logger) *Engine {
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, opts: opts, log: log}
}

// ResolveAll runs resolution rounds over every unresolved placeholder of a
// repository until a round accepts no new match. The pass starts by healing
// placeholders whose resolved flag disagrees with their edges.
func (e *Engine) ResolveAll(ctx context.Context, repo string) (*ResolveSummary, error) {
	start := time.Now()

	violations, err := e.store.HealPlaceholders(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("resolve: heal %s: %w", repo, err)
	}
	if len(violations) > 0 {
		for i := range violations {
			e.log.Debug("healed placeholder", "repo", repo, "violation", violations[i].Error())
		}
		e.log.Warn("healed inconsistent placeholders", "repo", repo, "count", len(violations))
	}

	strat, sc, err := e.selectStrategy(ctx, repo)
	if err != nil {
		return nil, err
	}

	summary := &ResolveSummary{Strategy: strat.Name(), Healed: len(violations)}
	for {
		resolved, failed, err := e.resolveRound(ctx, repo, strat, sc)
		if err != nil {
			return summary, err
		}
		summary.Rounds++
		summary.Resolved += resolved
		summary.Failed += failed
		if resolved == 0 {
			break
		}
	}

	remaining, err := e.countRemaining(ctx, repo)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	summary.Elapsed = time.Since(start)

	e.log.Info("resolution pass complete",
		"repo", repo,
		"strategy", summary.Strategy,
		"rounds", summary.Rounds,
		"resolved", summary.Resolved,
		"remaining", summary.Remaining,
	)
	return summary, nil
}

// ResolveScoped resolves only the given placeholders. Incremental updates
// use it to re-resolve exactly the references a change touched.
func (e *Engine) ResolveScoped(ctx context.Context, repo string, placeholderIDs []string) (*ResolveSummary, error) {
	began := time.Now()

	strat, sc, err := e.selectStrategy(ctx, repo)
	if err != nil {
		return nil, err
	}
	summary := &ResolveSummary{Strategy: strat.Name(), Rounds: 1}

	phs, err := e.store.PlaceholdersByID(ctx, placeholderIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve: load placeholders: %w", err)
	}

	// Import sites go first: call-site scoring consults the file's resolved
	// imports, and the import satisfying a call may be in this same scope.
	var imports, calls []Placeholder
	for _, p := range phs {
		if p.Resolved {
			continue
		}
		if p.Kind == PlaceholderImportSite {
			imports = append(imports, p)
		} else {
			calls = append(calls, p)
		}
	}

	for _, pending := range [][]Placeholder{imports, calls} {
		sc.invalidate()
		for lo := 0; lo < len(pending); lo += e.opts.BatchSize {
			hi := lo + e.opts.BatchSize
			if hi > len(pending) {
				hi = len(pending)
			}
			n, err := e.resolveBatch(ctx, strat, pending[lo:hi])
			if err != nil {
				summary.Failed++
				e.log.Error("batch failed", "error", err)
				continue
			}
			summary.Resolved += n
		}
	}
	summary.Elapsed = time.Since(began)
	return summary, nil
}

// resolveRound walks all unresolved placeholders once, import sites before
// call sites: call-site scoring consults a file's resolved imports, so an
// import and the call it satisfies may arrive in the same pass. The scorer's
// import cache resets between phases to pick up what the current round
// committed.
func (e *Engine) resolveRound(ctx context.Context, repo string, strat Strategy, sc *scorer) (resolved, failed int, err error) {
	for _, kind := range []PlaceholderKind{PlaceholderImportSite, PlaceholderCallSite} {
		sc.invalidate()
		n, f, err := e.resolveKind(ctx, repo, strat, kind)
		resolved += n
		failed += f
		if err != nil {
			return resolved, failed, err
		}
	}
	return resolved, failed, nil
}

// resolveKind walks placeholders of one kind, in id order, batch by batch.
// A failed batch is logged and skipped so one bad batch cannot sink the
// round.
func (e *Engine) resolveKind(ctx context.Context, repo string, strat Strategy, kind PlaceholderKind) (resolved, failed int, err error) {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return resolved, failed, err
		}
		page, err := e.store.UnresolvedPlaceholders(ctx, repo, after, e.opts.BatchSize)
		if err != nil {
			return resolved, failed, fmt.Errorf("resolve: list unresolved: %w", err)
		}
		if len(page) == 0 {
			return resolved, failed, nil
		}
		after = page[len(page)-1].ID

		batch := make([]Placeholder, 0, len(page))
		for _, p := range page {
			if p.Kind == kind {
				batch = append(batch, p)
			}
		}
		if len(batch) == 0 {
			continue
		}

		n, err := e.resolveBatch(ctx, strat, batch)
		if err != nil {
			failed++
			e.log.Error("batch failed", "repo", repo, "error", err)
			continue
		}
		resolved += n
	}
}

// resolveBatch runs one batch through the strategy and commits the accepted
// matches: RESOLVES_TO via delete-then-create, then the materialized CALLS
// and IMPORTS convenience edges. Transient store errors retry with backoff.
func (e *Engine) resolveBatch(ctx context.Context, strat Strategy, batch []Placeholder) (int, error) {
	var matches []Match
	err := withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
		var err error
		matches, err = strat.Resolve(ctx, batch)
		return err
	})
	if err != nil {
		return 0, &BatchError{Batch: len(batch), Err: err}
	}
	if len(matches) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	resolutions := make([]Resolution, 0, len(matches))
	var edges []Edge
	for _, m := range matches {
		resolutions = append(resolutions, Resolution{
			PlaceholderID: m.Placeholder.ID,
			DeclarationID: m.Declaration.ID,
			Score:         m.Score,
			At:            now,
		})
		switch m.Placeholder.Kind {
		case PlaceholderCallSite:
			if m.Placeholder.ContainerID != "" {
				edges = append(edges, Edge{
					SourceID: m.Placeholder.ContainerID,
					TargetID: m.Declaration.ID,
					Kind:     EdgeCalls,
				})
			}
		case PlaceholderImportSite:
			if m.Placeholder.FileID != m.Declaration.FileID {
				edges = append(edges, Edge{
					SourceID: m.Placeholder.FileID,
					TargetID: m.Declaration.FileID,
					Kind:     EdgeImports,
				})
			}
		}
	}

	err = withRetry(ctx, defaultRetryAttempts, defaultRetryBase, func() error {
		return e.store.ApplyResolutions(ctx, resolutions)
	})
	if err != nil {
		return 0, &BatchError{Batch: len(batch), Err: err}
	}
	if len(edges) > 0 {
		if err := e.store.MergeEdges(ctx, edges); err != nil {
			return 0, &BatchError{Batch: len(batch), Err: err}
		}
	}
	return len(resolutions), nil
}

// selectStrategy picks the configured strategy, or sizes the repository to
// choose one automatically. The returned scorer is shared with the strategy;
// the engine resets its import cache between resolution phases.
func (e *Engine) selectStrategy(ctx context.Context, repo string) (Strategy, *scorer, error) {
	sc := &scorer{
		store:       e.store,
		threshold:   e.opts.Threshold,
		importNames: make(map[string]map[string]bool),
	}

	name := e.opts.Strategy
	if name == StrategyAuto {
		count, err := e.store.CountDeclarations(ctx, repo)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve: count declarations: %w", err)
		}
		switch {
		case count <= joinMaxDeclarations:
			name = StrategyJoin
		case count <= hashmapMaxDeclarations:
			name = StrategyHashmap
		default:
			name = StrategySharded
		}
		e.log.Debug("selected strategy", "repo", repo, "declarations", count, "strategy", name)
	}

	switch name {
	case StrategyJoin:
		return &joinStrategy{store: e.store, repo: repo, scorer: sc}, sc, nil
	case StrategyHashmap:
		strat, err := newHashmapStrategy(ctx, e.store, repo, sc)
		if err != nil {
			return nil, nil, err
		}
		return strat, sc, nil
	case StrategySharded:
		strat, err := newShardedStrategy(e.store, repo, sc)
		if err != nil {
			return nil, nil, err
		}
		return strat, sc, nil
	default:
		return nil, nil, fmt.Errorf("resolve: unknown strategy %q", name)
	}
}

func (e *Engine) countRemaining(ctx context.Context, repo string) (int, error) {
	stats, err := e.store.Stats(ctx, repo)
	if err != nil {
		return 0, err
	}
	return stats.UnresolvedPlaceholders, nil
}

// ---------- Scoring ----------

// Confidence levels assigned by the shared scoring policy.
const (
	scoreSameFile       = 1.0
	scoreModuleMatch    = 0.9
	scoreImportedName   = 0.8
	scoreRecencyDefault = 0.5
)

// scorer applies the confidence policy to a candidate set. It is shared by
// every strategy so score semantics cannot drift between them.
type scorer struct {
	store     Store
	threshold float64

	// importNames caches ResolvedImportNames per file. The engine drops it
	// between resolution phases via invalidate.
	importNames map[string]map[string]bool
}

// invalidate discards the cached import sets so subsequent scoring sees
// imports resolved earlier in the same pass.
func (sc *scorer) invalidate() {
	sc.importNames = make(map[string]map[string]bool)
}

// score picks the best candidate for a placeholder. A sole candidate is an
// unambiguous match and scores 1.0; ranking only arbitrates between
// competing candidates. Matches below the threshold are rejected.
func (sc *scorer) score(ctx context.Context, p Placeholder, candidates []Declaration) (Match, bool, error) {
	if len(candidates) == 0 {
		return Match{}, false, nil
	}
	if len(candidates) == 1 {
		return sc.accept(p, candidates[0], scoreSameFile)
	}

	// Same file wins outright.
	for _, c := range candidates {
		if c.FileID == p.FileID {
			return sc.accept(p, c, scoreSameFile)
		}
	}

	// Module qualifier match.
	if p.Qualifier != "" {
		qual := normalizeQualifier(p.Qualifier)
		for _, c := range candidates {
			if c.Module == qual || strings.HasSuffix(c.Module, "."+qual) {
				return sc.accept(p, c, scoreModuleMatch)
			}
		}
	}

	// A resolved import of this exact name in the placeholder's file.
	imported, err := sc.importedNames(ctx, p.FileID)
	if err != nil {
		return Match{}, false, err
	}
	if imported[p.TargetName] {
		if c, ok := sc.importedCandidate(ctx, p, candidates); ok {
			return sc.accept(p, c, scoreImportedName)
		}
	}

	return sc.accept(p, mostRecent(candidates), scoreRecencyDefault)
}

func (sc *scorer) accept(p Placeholder, d Declaration, score float64) (Match, bool, error) {
	if score < sc.threshold {
		return Match{}, false, nil
	}
	return Match{Placeholder: p, Declaration: d, Score: score}, true, nil
}

func (sc *scorer) importedNames(ctx context.Context, fileID string) (map[string]bool, error) {
	if names, ok := sc.importNames[fileID]; ok {
		return names, nil
	}
	names, err := sc.store.ResolvedImportNames(ctx, fileID)
	if err != nil {
		return nil, err
	}
	sc.importNames[fileID] = names
	return names, nil
}

// importedCandidate matches candidates against the module named by the
// file's resolved import of the same symbol.
func (sc *scorer) importedCandidate(ctx context.Context, p Placeholder, candidates []Declaration) (Declaration, bool) {
	phs, err := sc.store.PlaceholdersByFile(ctx, p.FileID)
	if err != nil {
		return Declaration{}, false
	}
	for _, imp := range phs {
		if imp.Kind != PlaceholderImportSite || !imp.Resolved || imp.TargetName != p.TargetName {
			continue
		}
		qual := normalizeQualifier(imp.Qualifier)
		for _, c := range candidates {
			if c.Module == qual || strings.HasSuffix(c.Module, "."+qual) {
				return c, true
			}
		}
	}
	return Declaration{}, false
}

// mostRecent returns the candidate from the most recently modified file,
// breaking ties by id for determinism.
func mostRecent(candidates []Declaration) Declaration {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.ModifiedAt.After(best.ModifiedAt):
			best = c
		case c.ModifiedAt.Equal(best.ModifiedAt) && c.ID < best.ID:
			best = c
		}
	}
	return best
}

// normalizeQualifier rewrites language-specific separators to the dotted
// module form used by ModuleOfPath.
func normalizeQualifier(q string) string {
	q = strings.ReplaceAll(q, "::", ".")
	q = strings.ReplaceAll(q, "/", ".")
	return q
}

// ---------- Join strategy ----------

// joinStrategy delegates candidate lookup to the store's name index, one
// batched query per batch. Best while the index fits hot in the store.
type joinStrategy struct {
	store  Store
	repo   string
	scorer *scorer
}

func (s *joinStrategy) Name() string { return StrategyJoin }

func (s *joinStrategy) Resolve(ctx context.Context, batch []Placeholder) ([]Match, error) {
	names := make([]string, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, p := range batch {
		if !seen[p.TargetName] {
			seen[p.TargetName] = true
			names = append(names, p.TargetName)
		}
	}

	byName, err := s.store.DeclarationsByName(ctx, s.repo, names)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, p := range batch {
		m, ok, err := s.scorer.score(ctx, p, byName[p.TargetName])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ---------- Hashmap strategy ----------

// hashmapStrategy loads every declaration name into one in-memory table up
// front, trading a bounded memory spike for O(1) lookups.
type hashmapStrategy struct {
	repo   string
	byName map[string][]Declaration
	scorer *scorer
}

func newHashmapStrategy(ctx context.Context, store Store, repo string, sc *scorer) (*hashmapStrategy, error) {
	s := &hashmapStrategy{repo: repo, byName: make(map[string][]Declaration), scorer: sc}
	err := store.ScanDeclarations(ctx, repo, 10000, func(page []Declaration) error {
		for _, d := range page {
			s.byName[d.Name] = append(s.byName[d.Name], d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: build name table: %w", err)
	}
	for name := range s.byName {
		ds := s.byName[name]
		sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
	}
	return s, nil
}

func (s *hashmapStrategy) Name() string { return StrategyHashmap }

func (s *hashmapStrategy) Resolve(ctx context.Context, batch []Placeholder) ([]Match, error) {
	var out []Match
	for _, p := range batch {
		m, ok, err := s.scorer.score(ctx, p, s.byName[p.TargetName])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ---------- Sharded strategy ----------

// shardedStrategy looks candidates up through the persistent shard index,
// one lookup per distinct name, with an LRU over recent lookups. Memory
// stays flat regardless of repository size.
type shardedStrategy struct {
	store  Store
	repo   string
	scorer *scorer
	cache  *lru.Cache[string, []Declaration]
}

func newShardedStrategy(store Store, repo string, sc *scorer) (*shardedStrategy, error) {
	cache, err := lru.New[string, []Declaration](shardCacheSize)
	if err != nil {
		return nil, err
	}
	return &shardedStrategy{store: store, repo: repo, scorer: sc, cache: cache}, nil
}

func (s *shardedStrategy) Name() string { return StrategySharded }

func (s *shardedStrategy) Resolve(ctx context.Context, batch []Placeholder) ([]Match, error) {
	var out []Match
	for _, p := range batch {
		candidates, err := s.lookup(ctx, p.TargetName)
		if err != nil {
			return nil, err
		}
		m, ok, err := s.scorer.score(ctx, p, candidates)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *shardedStrategy) lookup(ctx context.Context, name string) ([]Declaration, error) {
	shard := ShardOf(name)
	key := shard + "|" + name
	if ds, ok := s.cache.Get(key); ok {
		return ds, nil
	}
	ds, err := s.store.DeclarationsByShard(ctx, s.repo, shard, name)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, ds)
	return ds, nil
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
