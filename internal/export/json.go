// Package export renders an indexed repository as machine-readable reports:
// a JSON summary of graph contents and a Mermaid diagram of the resolved
// file-import structure.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// GraphReport is the top-level JSON export structure.
type GraphReport struct {
	Repo       string           `json:"repo"`
	ExportedAt string           `json:"exportedAt"`
	Stats      graph.GraphStats `json:"stats"`

	DeadFunctions []DeclarationExport `json:"deadFunctions,omitempty"`
	Unresolved    []ReferenceExport   `json:"unresolvedReferences,omitempty"`
	Imports       []ImportExport      `json:"imports,omitempty"`
}

// DeclarationExport describes one declaration in the report.
type DeclarationExport struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Module    string `json:"module,omitempty"`
}

// ReferenceExport describes one unresolved call or import site.
type ReferenceExport struct {
	Target    string `json:"target"`
	Qualifier string `json:"qualifier,omitempty"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Col       int    `json:"col"`
}

// ImportExport is one resolved file-level import edge.
type ImportExport struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReportOptions bounds the report's list sections.
type ReportOptions struct {
	// UnresolvedLimit caps the unresolved reference list. Zero means 1000.
	UnresolvedLimit int
}

// BuildReport assembles a GraphReport for one repository.
func BuildReport(ctx context.Context, store graph.Store, repo string, opts ReportOptions) (*GraphReport, error) {
	stats, err := store.Stats(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	report := &GraphReport{
		Repo:       repo,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      *stats,
	}

	dead, err := store.DeadFunctions(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("dead functions: %w", err)
	}
	for _, d := range dead {
		report.DeadFunctions = append(report.DeadFunctions, DeclarationExport{
			Name:      d.Name,
			Kind:      string(d.Kind),
			File:      d.FilePath,
			StartLine: d.StartLine,
			EndLine:   d.EndLine,
			Module:    d.Module,
		})
	}

	limit := opts.UnresolvedLimit
	if limit <= 0 {
		limit = 1000
	}
	unresolved, err := store.UnresolvedPlaceholders(ctx, repo, "", limit)
	if err != nil {
		return nil, fmt.Errorf("unresolved placeholders: %w", err)
	}
	for _, p := range unresolved {
		report.Unresolved = append(report.Unresolved, ReferenceExport{
			Target:    p.TargetName,
			Qualifier: p.Qualifier,
			Kind:      string(p.Kind),
			File:      p.FilePath,
			Line:      p.Line,
			Col:       p.Col,
		})
	}

	imports, err := store.ImportGraph(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	for _, from := range sortedKeys(imports) {
		for _, to := range imports[from] {
			report.Imports = append(report.Imports, ImportExport{From: from, To: to})
		}
	}

	return report, nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *GraphReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
