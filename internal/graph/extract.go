package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// Extraction is the complete graph contribution of one source file.
type Extraction struct {
	File         FileNode
	Declarations []Declaration
	Placeholders []Placeholder
	Edges        []Edge
	ShardEntries []ShardEntry

	// Skips records malformed or unnamed nodes the extractor passed over.
	// A skip never fails the file.
	Skips []Skip
}

// declInfo is a language extractor's reading of a declaration node.
type declInfo struct {
	Name    string
	Kind    DeclarationKind
	Params  []string
	Parents []string

	// SkipReason marks a declaration-shaped node that cannot be indexed
	// (usually a missing name).
	SkipReason string
}

// callInfo is a language extractor's reading of a call node.
type callInfo struct {
	Target    string
	Qualifier string

	SkipReason string
}

// importInfo is one imported name read from an import statement.
type importInfo struct {
	Target    string // imported symbol or trailing module segment
	Qualifier string // full module path as written
	Alias     string
}

// langExtractor maps one grammar's node types onto graph entities. Each
// method reports ok=false when the node is not of that category.
type langExtractor interface {
	declaration(n *ast.Node) (declInfo, bool)
	call(n *ast.Node) (callInfo, bool)
	imports(n *ast.Node) ([]importInfo, bool)
}

func extractorFor(lang ast.Language) langExtractor {
	switch lang {
	case ast.LangPython:
		return pyRules{}
	case ast.LangGo:
		return goRules{}
	case ast.LangRust:
		return rsRules{}
	case ast.LangTypeScript:
		return tsRules{}
	default:
		return nil
	}
}

// Extractor turns parsed source files into graph entities.
type Extractor struct {
	parser ast.Parser
}

// NewExtractor returns an Extractor reading trees from the given parser.
func NewExtractor(p ast.Parser) *Extractor {
	return &Extractor{parser: p}
}

// ExtractFile parses one file and walks its tree, producing the file node,
// its declarations and placeholders, structural edges, and shard index rows.
// Identifiers are deterministic, so re-extracting an unchanged file yields a
// byte-identical Extraction.
func (e *Extractor) ExtractFile(ctx context.Context, meta FileMeta, source []byte) (*Extraction, error) {
	rules := extractorFor(meta.Language)
	if rules == nil {
		return nil, fmt.Errorf("extract: unsupported language %q", meta.Language)
	}

	root, err := e.parser.Parse(ctx, source, meta.Language)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", meta.Path, err)
	}

	fileID := FileID(meta.Repo, meta.Path)
	w := &fileWalker{
		rules:  rules,
		meta:   meta,
		fileID: fileID,
		module: ModuleOfPath(meta.Path),
		out: &Extraction{
			File: FileNode{
				ID:       fileID,
				Repo:     meta.Repo,
				Path:     meta.Path,
				Language: meta.Language,
				Commit:   meta.Commit,
				Branch:   meta.Branch,
				ModTime:  meta.ModTime,
			},
		},
		localByName: make(map[string]string),
	}
	w.walk(root, nil)
	w.linkLocalInheritance()
	return w.out, nil
}

// scope is one enclosing declaration on the container stack.
type scope struct {
	id   string
	name string
}

type fileWalker struct {
	rules  langExtractor
	meta   FileMeta
	fileID string
	module string
	out    *Extraction

	// localByName maps declaration names seen in this file to their ids,
	// for same-file inheritance edges. First writer wins.
	localByName map[string]string
	classes     []Declaration
}

func (w *fileWalker) walk(n *ast.Node, stack []scope) {
	if n == nil {
		return
	}

	if di, ok := w.rules.declaration(n); ok {
		if di.SkipReason != "" {
			w.skip(n, di.SkipReason)
			w.walkChildren(n, stack)
			return
		}
		d := w.addDeclaration(n, di, stack)
		w.walkChildren(n, append(stack, scope{id: d.ID, name: d.Name}))
		return
	}

	if ci, ok := w.rules.call(n); ok {
		if ci.SkipReason != "" {
			w.skip(n, ci.SkipReason)
		} else {
			w.addPlaceholder(n, PlaceholderCallSite, ci.Target, ci.Qualifier, "", stack)
		}
		// Arguments may contain nested calls.
		w.walkChildren(n, stack)
		return
	}

	if imps, ok := w.rules.imports(n); ok {
		for _, imp := range imps {
			w.addPlaceholder(n, PlaceholderImportSite, imp.Target, imp.Qualifier, imp.Alias, stack)
		}
		return
	}

	w.walkChildren(n, stack)
}

func (w *fileWalker) walkChildren(n *ast.Node, stack []scope) {
	for _, c := range n.Children {
		w.walk(c, stack)
	}
}

func (w *fileWalker) addDeclaration(n *ast.Node, di declInfo, stack []scope) Declaration {
	d := Declaration{
		ID:         DeclarationID(w.meta.Repo, w.meta.Path, di.Name, n.StartLine()),
		Repo:       w.meta.Repo,
		Name:       di.Name,
		Kind:       di.Kind,
		FileID:     w.fileID,
		FilePath:   w.meta.Path,
		StartLine:  n.StartLine(),
		EndLine:    n.EndLine(),
		Parameters: di.Params,
		Parents:    di.Parents,
		SymbolFQN:  w.fqn(di.Name, stack),
		Module:     w.module,
		ModifiedAt: w.meta.ModTime,
	}

	containsSrc := w.fileID
	if len(stack) > 0 {
		d.ContainerID = stack[len(stack)-1].id
		containsSrc = d.ContainerID
	}

	w.out.Declarations = append(w.out.Declarations, d)
	w.out.Edges = append(w.out.Edges, Edge{SourceID: containsSrc, TargetID: d.ID, Kind: EdgeContains})
	w.out.ShardEntries = append(w.out.ShardEntries, ShardEntry{
		Repo:          w.meta.Repo,
		Shard:         ShardOf(d.Name),
		Name:          d.Name,
		DeclarationID: d.ID,
	})

	if _, seen := w.localByName[d.Name]; !seen {
		w.localByName[d.Name] = d.ID
	}
	if d.Kind == DeclKindClass && len(d.Parents) > 0 {
		w.classes = append(w.classes, d)
	}
	return d
}

func (w *fileWalker) addPlaceholder(n *ast.Node, kind PlaceholderKind, target, qualifier, alias string, stack []scope) {
	if target == "" {
		w.skip(n, "empty target name")
		return
	}
	p := Placeholder{
		ID:         PlaceholderID(w.meta.Repo, w.meta.Path, n.StartLine(), n.Start.Col, target),
		Repo:       w.meta.Repo,
		Kind:       kind,
		FileID:     w.fileID,
		FilePath:   w.meta.Path,
		Line:       n.StartLine(),
		Col:        n.Start.Col,
		TargetName: target,
		Qualifier:  qualifier,
		Alias:      alias,
	}
	if len(stack) > 0 {
		p.ContainerID = stack[len(stack)-1].id
	}
	w.out.Placeholders = append(w.out.Placeholders, p)
	w.out.Edges = append(w.out.Edges, Edge{SourceID: w.fileID, TargetID: p.ID, Kind: EdgeContains})
}

// linkLocalInheritance adds INHERITS_FROM edges between classes declared in
// the same file. Cross-file parents stay on the Parents field and resolve
// like any other reference.
func (w *fileWalker) linkLocalInheritance() {
	for _, c := range w.classes {
		for _, parent := range c.Parents {
			if pid, ok := w.localByName[parent]; ok && pid != c.ID {
				w.out.Edges = append(w.out.Edges, Edge{SourceID: c.ID, TargetID: pid, Kind: EdgeInheritsFrom})
			}
		}
	}
}

func (w *fileWalker) fqn(name string, stack []scope) string {
	parts := make([]string, 0, len(stack)+2)
	if w.module != "" {
		parts = append(parts, w.module)
	}
	for _, s := range stack {
		parts = append(parts, s.name)
	}
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

func (w *fileWalker) skip(n *ast.Node, reason string) {
	w.out.Skips = append(w.out.Skips, Skip{
		NodeType: n.Type,
		Line:     n.StartLine(),
		Reason:   reason,
	})
}

// splitQualified splits a dotted or path-qualified reference into its
// qualifier and trailing name: "a.b.c" -> ("a.b", "c"), "a::b" -> ("a", "b").
func splitQualified(text, sep string) (qualifier, name string) {
	idx := strings.LastIndex(text, sep)
	if idx < 0 {
		return "", text
	}
	return text[:idx], text[idx+len(sep):]
}
