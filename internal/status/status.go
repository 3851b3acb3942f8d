// Package status summarizes the health of an indexed repository for the CLI.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// RepoStatus holds the index health of one repository.
type RepoStatus struct {
	Repo  string
	Stats graph.GraphStats

	// DeadFunctions is the number of functions no resolved call targets.
	DeadFunctions int

	// Unresolved samples the placeholders resolution could not match.
	Unresolved []graph.Placeholder
}

// ResolutionRate returns the fraction of placeholders resolved, in [0, 1].
// A repository with no placeholders counts as fully resolved.
func (rs *RepoStatus) ResolutionRate() float64 {
	if rs.Stats.Placeholders == 0 {
		return 1.0
	}
	return float64(rs.Stats.ResolvedPlaceholders) / float64(rs.Stats.Placeholders)
}

// Get collects the status of one repository. sampleLimit bounds the
// unresolved placeholder sample; zero means 10.
func Get(ctx context.Context, store graph.Store, repo string, sampleLimit int) (*RepoStatus, error) {
	stats, err := store.Stats(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	dead, err := store.DeadFunctions(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("dead functions: %w", err)
	}

	if sampleLimit <= 0 {
		sampleLimit = 10
	}
	unresolved, err := store.UnresolvedPlaceholders(ctx, repo, "", sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("unresolved placeholders: %w", err)
	}

	return &RepoStatus{
		Repo:          repo,
		Stats:         *stats,
		DeadFunctions: len(dead),
		Unresolved:    unresolved,
	}, nil
}

// Format renders a RepoStatus as a terminal-friendly block.
func Format(rs *RepoStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\n", rs.Repo)
	fmt.Fprintf(&sb, "  Files:          %d\n", rs.Stats.Files)
	fmt.Fprintf(&sb, "  Declarations:   %d\n", rs.Stats.Declarations)
	fmt.Fprintf(&sb, "  References:     %d (%.1f%% resolved)\n", rs.Stats.Placeholders, rs.ResolutionRate()*100)
	fmt.Fprintf(&sb, "  Edges:          %d\n", rs.Stats.Edges)
	fmt.Fprintf(&sb, "  Dead functions: %d\n", rs.DeadFunctions)

	if len(rs.Unresolved) > 0 {
		fmt.Fprintf(&sb, "  Unresolved (%d shown):\n", len(rs.Unresolved))
		for _, p := range rs.Unresolved {
			target := p.TargetName
			if p.Qualifier != "" {
				target = p.Qualifier + "." + target
			}
			fmt.Fprintf(&sb, "    %s:%d %s (%s)\n", p.FilePath, p.Line, target, p.Kind)
		}
	}
	return sb.String()
}
