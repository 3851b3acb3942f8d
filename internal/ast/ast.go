// Package ast defines the language-agnostic syntax tree consumed by the
// graph extractor, plus the tree-sitter frontend that produces it.
//
// The tree is the full input contract: every node carries a grammar type,
// the field name it occupies in its parent, start/end positions, source
// text, and children. Nothing downstream of this package touches a parser.
package ast

// Position is a zero-based row/column location in a source file.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Node is one node of a standardized syntax tree.
type Node struct {
	// Type is the grammar node type (e.g. "function_definition", "call").
	Type string `json:"type"`

	// Field is the field name this node occupies in its parent, or "".
	Field string `json:"field,omitempty"`

	Start Position `json:"start_position"`
	End   Position `json:"end_position"`

	// Text is the source text covered by this node.
	Text string `json:"text,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// ChildByField returns the first child occupying the given field, or nil.
func (n *Node) ChildByField(field string) *Node {
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenOfType returns all direct children with the given node type.
func (n *Node) ChildrenOfType(nodeType string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == nodeType {
			out = append(out, c)
		}
	}
	return out
}

// FirstOfType returns the first direct child with the given node type, or nil.
func (n *Node) FirstOfType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in depth-first order. The visitor
// returns false to skip a node's subtree.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// StartLine returns the one-based line number of the node's start position.
func (n *Node) StartLine() int {
	return n.Start.Row + 1
}

// EndLine returns the one-based line number of the node's end position.
func (n *Node) EndLine() int {
	return n.End.Row + 1
}
