package graph

import (
	"strings"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// tsRules maps the TypeScript grammar onto graph entities.
type tsRules struct{}

func (tsRules) declaration(n *ast.Node) (declInfo, bool) {
	var kind DeclarationKind
	switch n.Type {
	case "function_declaration", "generator_function_declaration", "method_definition":
		kind = DeclKindFunction
	case "class_declaration", "interface_declaration":
		kind = DeclKindClass
	default:
		return declInfo{}, false
	}

	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return declInfo{SkipReason: "unnamed " + n.Type}, true
	}

	di := declInfo{Name: nameNode.Text, Kind: kind}
	switch kind {
	case DeclKindFunction:
		di.Params = tsParams(n.ChildByField("parameters"))
	case DeclKindClass:
		di.Parents = tsHeritage(n)
	}
	return di, true
}

func tsParams(params *ast.Node) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, c := range params.Children {
		switch c.Type {
		case "required_parameter", "optional_parameter":
			if pat := c.ChildByField("pattern"); pat != nil && pat.Type == "identifier" {
				out = append(out, pat.Text)
			}
		case "identifier":
			out = append(out, c.Text)
		}
	}
	return out
}

// tsHeritage collects parent names from extends clauses on classes and
// interfaces.
func tsHeritage(n *ast.Node) []string {
	var out []string
	collect := func(clause *ast.Node) {
		for _, c := range clause.Children {
			switch c.Type {
			case "identifier", "type_identifier":
				out = append(out, c.Text)
			case "member_expression", "nested_type_identifier":
				_, name := splitQualified(c.Text, ".")
				out = append(out, name)
			}
		}
	}
	if heritage := n.FirstOfType("class_heritage"); heritage != nil {
		for _, c := range heritage.Children {
			if c.Type == "extends_clause" {
				collect(c)
			}
		}
	}
	if ext := n.FirstOfType("extends_type_clause"); ext != nil {
		collect(ext)
	}
	return out
}

func (tsRules) call(n *ast.Node) (callInfo, bool) {
	if n.Type != "call_expression" {
		return callInfo{}, false
	}
	fn := n.ChildByField("function")
	if fn == nil {
		return callInfo{SkipReason: "call without function"}, true
	}
	switch fn.Type {
	case "identifier":
		return callInfo{Target: fn.Text}, true
	case "member_expression":
		qual, name := splitQualified(fn.Text, ".")
		return callInfo{Target: name, Qualifier: qual}, true
	default:
		return callInfo{SkipReason: "unsupported callee " + fn.Type}, true
	}
}

func (tsRules) imports(n *ast.Node) ([]importInfo, bool) {
	if n.Type != "import_statement" {
		return nil, false
	}
	source := ""
	if src := n.ChildByField("source"); src != nil {
		source = strings.Trim(src.Text, `"'`)
	}

	clause := n.FirstOfType("import_clause")
	if clause == nil {
		// Side-effect import: index under the module's trailing segment.
		if source == "" {
			return nil, true
		}
		_, name := splitQualified(source, "/")
		return []importInfo{{Target: name, Qualifier: source}}, true
	}

	var out []importInfo
	for _, c := range clause.Children {
		switch c.Type {
		case "identifier":
			// Default import.
			out = append(out, importInfo{Target: c.Text, Qualifier: source})
		case "namespace_import":
			if id := c.FirstOfType("identifier"); id != nil {
				_, name := splitQualified(source, "/")
				out = append(out, importInfo{Target: name, Qualifier: source, Alias: id.Text})
			}
		case "named_imports":
			for _, spec := range c.ChildrenOfType("import_specifier") {
				name := spec.ChildByField("name")
				if name == nil {
					continue
				}
				imp := importInfo{Target: name.Text, Qualifier: source}
				if alias := spec.ChildByField("alias"); alias != nil {
					imp.Alias = alias.Text
				}
				out = append(out, imp)
			}
		}
	}
	return out, true
}
