package graph

import (
	"github.com/dusk-indust/codegraph/internal/ast"
)

// rsRules maps the Rust grammar onto graph entities.
type rsRules struct{}

func (rsRules) declaration(n *ast.Node) (declInfo, bool) {
	var kind DeclarationKind
	switch n.Type {
	case "function_item":
		kind = DeclKindFunction
	case "struct_item", "enum_item", "trait_item":
		kind = DeclKindClass
	default:
		return declInfo{}, false
	}

	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return declInfo{SkipReason: "unnamed " + n.Type}, true
	}

	di := declInfo{Name: nameNode.Text, Kind: kind}
	if kind == DeclKindFunction {
		di.Params = rsParams(n.ChildByField("parameters"))
	}
	return di, true
}

func rsParams(params *ast.Node) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, c := range params.ChildrenOfType("parameter") {
		if pat := c.ChildByField("pattern"); pat != nil && pat.Type == "identifier" {
			out = append(out, pat.Text)
		}
	}
	return out
}

func (rsRules) call(n *ast.Node) (callInfo, bool) {
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
	case "scoped_identifier":
		qual, name := splitQualified(fn.Text, "::")
		return callInfo{Target: name, Qualifier: qual}, true
	case "field_expression":
		qual, name := splitQualified(fn.Text, ".")
		return callInfo{Target: name, Qualifier: qual}, true
	default:
		return callInfo{SkipReason: "unsupported callee " + fn.Type}, true
	}
}

func (rsRules) imports(n *ast.Node) ([]importInfo, bool) {
	if n.Type != "use_declaration" {
		return nil, false
	}
	arg := n.ChildByField("argument")
	if arg == nil {
		return nil, true
	}
	return rsUse(arg, ""), true
}

// rsUse flattens a use tree into imported names. Grouped imports like
// use a::{b, c as d} produce one entry per leaf.
func rsUse(n *ast.Node, prefix string) []importInfo {
	switch n.Type {
	case "identifier", "type_identifier":
		return []importInfo{{Target: n.Text, Qualifier: prefix}}

	case "scoped_identifier":
		qual, name := splitQualified(n.Text, "::")
		if prefix != "" {
			qual = prefix + "::" + qual
		}
		return []importInfo{{Target: name, Qualifier: qual}}

	case "use_as_clause":
		path := n.ChildByField("path")
		alias := n.ChildByField("alias")
		if path == nil || alias == nil {
			return nil
		}
		out := rsUse(path, prefix)
		for i := range out {
			out[i].Alias = alias.Text
		}
		return out

	case "scoped_use_list":
		path := n.ChildByField("path")
		list := n.ChildByField("list")
		if list == nil {
			return nil
		}
		inner := prefix
		if path != nil {
			if inner != "" {
				inner += "::"
			}
			inner += path.Text
		}
		var out []importInfo
		for _, c := range list.Children {
			out = append(out, rsUse(c, inner)...)
		}
		return out

	case "use_list":
		var out []importInfo
		for _, c := range n.Children {
			out = append(out, rsUse(c, prefix)...)
		}
		return out

	case "use_wildcard":
		return []importInfo{{Target: "*", Qualifier: prefix}}
	}
	return nil
}
