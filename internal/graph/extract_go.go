package graph

import (
	"strings"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// goRules maps the Go grammar onto graph entities.
type goRules struct{}

func (goRules) declaration(n *ast.Node) (declInfo, bool) {
	switch n.Type {
	case "function_declaration", "method_declaration":
		nameNode := n.ChildByField("name")
		if nameNode == nil {
			return declInfo{SkipReason: "unnamed " + n.Type}, true
		}
		return declInfo{
			Name:   nameNode.Text,
			Kind:   DeclKindFunction,
			Params: goParams(n.ChildByField("parameters")),
		}, true

	case "type_spec":
		// Struct and interface types act as class-level declarations.
		typeNode := n.ChildByField("type")
		if typeNode == nil || (typeNode.Type != "struct_type" && typeNode.Type != "interface_type") {
			return declInfo{}, false
		}
		nameNode := n.ChildByField("name")
		if nameNode == nil {
			return declInfo{SkipReason: "unnamed type_spec"}, true
		}
		return declInfo{Name: nameNode.Text, Kind: DeclKindClass}, true
	}
	return declInfo{}, false
}

func goParams(params *ast.Node) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, c := range params.ChildrenOfType("parameter_declaration") {
		if name := c.ChildByField("name"); name != nil {
			out = append(out, name.Text)
		}
	}
	return out
}

func (goRules) call(n *ast.Node) (callInfo, bool) {
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
	case "selector_expression":
		qual, name := splitQualified(fn.Text, ".")
		return callInfo{Target: name, Qualifier: qual}, true
	default:
		return callInfo{SkipReason: "unsupported callee " + fn.Type}, true
	}
}

func (goRules) imports(n *ast.Node) ([]importInfo, bool) {
	if n.Type != "import_declaration" {
		return nil, false
	}
	var out []importInfo
	n.Walk(func(c *ast.Node) bool {
		if c.Type != "import_spec" {
			return true
		}
		pathNode := c.ChildByField("path")
		if pathNode == nil {
			return false
		}
		path := strings.Trim(pathNode.Text, `"`)
		if path == "" {
			return false
		}
		alias := ""
		if name := c.ChildByField("name"); name != nil {
			alias = name.Text
		}
		_, pkg := splitQualified(path, "/")
		out = append(out, importInfo{Target: pkg, Qualifier: path, Alias: alias})
		return false
	})
	return out, true
}
