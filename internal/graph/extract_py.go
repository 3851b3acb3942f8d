package graph

import (
	"strings"

	"github.com/dusk-indust/codegraph/internal/ast"
)

// pyRules maps the Python grammar onto graph entities.
type pyRules struct{}

func (pyRules) declaration(n *ast.Node) (declInfo, bool) {
	var kind DeclarationKind
	switch n.Type {
	case "function_definition":
		kind = DeclKindFunction
	case "class_definition":
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
		di.Params = pyParams(n.ChildByField("parameters"))
	} else if sup := n.ChildByField("superclasses"); sup != nil {
		for _, c := range sup.Children {
			switch c.Type {
			case "identifier":
				di.Parents = append(di.Parents, c.Text)
			case "attribute":
				// Qualified base like module.Base keeps only the class name.
				_, name := splitQualified(c.Text, ".")
				di.Parents = append(di.Parents, name)
			}
		}
	}
	return di, true
}

func pyParams(params *ast.Node) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, c := range params.Children {
		switch c.Type {
		case "identifier":
			out = append(out, c.Text)
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := c.FirstOfType("identifier"); id != nil {
				out = append(out, id.Text)
			}
		case "default_parameter", "typed_default_parameter":
			if name := c.ChildByField("name"); name != nil {
				out = append(out, name.Text)
			}
		}
	}
	return out
}

func (pyRules) call(n *ast.Node) (callInfo, bool) {
	if n.Type != "call" {
		return callInfo{}, false
	}
	fn := n.ChildByField("function")
	if fn == nil {
		return callInfo{SkipReason: "call without function"}, true
	}
	switch fn.Type {
	case "identifier":
		return callInfo{Target: fn.Text}, true
	case "attribute":
		qual, name := splitQualified(fn.Text, ".")
		return callInfo{Target: name, Qualifier: qual}, true
	default:
		// Calls on subscripts, lambdas, or other expressions have no
		// resolvable name.
		return callInfo{SkipReason: "unsupported callee " + fn.Type}, true
	}
}

func (pyRules) imports(n *ast.Node) ([]importInfo, bool) {
	switch n.Type {
	case "import_statement":
		// import a.b, c as d
		var out []importInfo
		for _, c := range n.Children {
			switch c.Type {
			case "dotted_name":
				out = append(out, pyModuleImport(c.Text, ""))
			case "aliased_import":
				name := c.ChildByField("name")
				alias := c.ChildByField("alias")
				if name != nil && alias != nil {
					out = append(out, pyModuleImport(name.Text, alias.Text))
				}
			}
		}
		return out, true

	case "import_from_statement":
		// from a.b import c, d as e
		module := ""
		if m := n.ChildByField("module_name"); m != nil {
			module = m.Text
		}
		var out []importInfo
		sawFrom := false
		for _, c := range n.Children {
			// The module_name child also matches dotted_name; skip
			// everything before the "import" keyword.
			if c.Type == "import" {
				sawFrom = true
				continue
			}
			if !sawFrom {
				continue
			}
			switch c.Type {
			case "dotted_name", "identifier":
				out = append(out, importInfo{Target: c.Text, Qualifier: module})
			case "aliased_import":
				name := c.ChildByField("name")
				alias := c.ChildByField("alias")
				if name != nil && alias != nil {
					out = append(out, importInfo{Target: name.Text, Qualifier: module, Alias: alias.Text})
				}
			case "wildcard_import":
				out = append(out, importInfo{Target: "*", Qualifier: module})
			}
		}
		return out, true
	}
	return nil, false
}

// pyModuleImport indexes a whole-module import under the module's trailing
// segment, keeping the full dotted path as qualifier.
func pyModuleImport(dotted, alias string) importInfo {
	name := dotted
	if idx := strings.LastIndex(dotted, "."); idx >= 0 {
		name = dotted[idx+1:]
	}
	return importInfo{Target: name, Qualifier: dotted, Alias: alias}
}
