// SPDX-License-Identifier: MPL-2.0

// Package ast defines the syntax tree shape consumed by the graph builder,
// the scope tracker and the bundler.
//
// The tree follows ESTree naming for the handful of node types the bundler
// understands (imports, exports, declarations, blocks, functions and
// identifiers). Every other syntactic construct keeps the type name the
// parser produced and is only reachable through Children. Consumers must not
// depend on anything beyond node types and the Start/End byte offsets into the
// module source: names and literal values are always re-read from the source
// through those ranges.
package ast

// Node types understood by the bundler core.
const (
	Program                  = "Program"
	ImportDeclaration        = "ImportDeclaration"
	ImportSpecifier          = "ImportSpecifier"
	ImportDefaultSpecifier   = "ImportDefaultSpecifier"
	ImportNamespaceSpecifier = "ImportNamespaceSpecifier"
	ImportExpression         = "ImportExpression"
	ExportNamedDeclaration   = "ExportNamedDeclaration"
	ExportDefaultDeclaration = "ExportDefaultDeclaration"
	ExportAllDeclaration     = "ExportAllDeclaration"
	ExportSpecifier          = "ExportSpecifier"
	VariableDeclaration      = "VariableDeclaration"
	VariableDeclarator       = "VariableDeclarator"
	FunctionDeclaration      = "FunctionDeclaration"
	FunctionExpression       = "FunctionExpression"
	ArrowFunctionExpression  = "ArrowFunctionExpression"
	MethodDefinition         = "MethodDefinition"
	ClassDeclaration         = "ClassDeclaration"
	ClassExpression          = "ClassExpression"
	BlockStatement           = "BlockStatement"
	ForStatement             = "ForStatement"
	ForInStatement           = "ForInStatement"
	CatchClause              = "CatchClause"
	Identifier               = "Identifier"
	Literal                  = "Literal"
	AssignmentPattern        = "AssignmentPattern"
	PatternProperty          = "PatternProperty"
)

// ShorthandProperty is the Kind of an Identifier that is both key and value
// of an object literal property, as in `{ name }`.
const ShorthandProperty = "shorthand"

type (
	// Range is a half-open byte range [Start, End) into the module source.
	Range struct {
		Start int
		End   int
	}

	// Node is a syntax tree node.
	//
	// Only the fields relevant to a node's Type are populated. Children always
	// lists every named child in source order, including the nodes that are
	// also referenced through the typed fields, so a generic walk never misses
	// a subtree.
	Node struct {
		Type  string
		Start int
		End   int

		// Name is the identifier text, when the parser provides it.
		Name string
		// Value is the cooked value of a string Literal, when the parser
		// provides it.
		Value string
		// Kind is "var", "let" or "const" for a VariableDeclaration and
		// ShorthandProperty for a shorthand property Identifier.
		Kind string

		// ID is the bound name of a declarator, function or class.
		ID *Node
		// Init is the initializer of a VariableDeclarator.
		Init *Node
		// Params are the formal parameters of a function or the parameter of
		// a CatchClause.
		Params []*Node
		// Body holds the statements of a Program or BlockStatement. For
		// functions it holds the single body node (a BlockStatement or, for
		// arrow functions, an expression).
		Body []*Node
		// Declarations lists the declarators of a VariableDeclaration.
		Declarations []*Node
		// Declaration is the declaration or expression carried by an export.
		Declaration *Node
		// Specifiers of an import or export.
		Specifiers []*Node
		// Source is the module specifier literal of an import or export, or
		// the argument of an ImportExpression.
		Source *Node
		// Local, Imported and Exported are the names of a specifier.
		Local    *Node
		Imported *Node
		Exported *Node
		// Left and Right are the target and default of an AssignmentPattern,
		// or the key and value of a PatternProperty.
		Left  *Node
		Right *Node

		Children []*Node
	}
)

// Range returns the byte range covered by the node.
func (n *Node) Range() Range {
	return Range{Start: n.Start, End: n.End}
}

// Len returns the length of the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Inspect traverses the tree in depth-first order, calling fn for every node.
// When fn returns false the children of that node are skipped.
func Inspect(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Inspect(c, fn)
	}
}

// BoundNames returns the identifiers a binding pattern introduces, in source
// order. Default values and computed keys are not part of the result.
func BoundNames(pattern *Node) []*Node {
	var out []*Node
	collectBound(pattern, &out)
	return out
}

func collectBound(n *Node, out *[]*Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case Identifier:
		*out = append(*out, n)
	case AssignmentPattern:
		collectBound(n.Left, out)
	case PatternProperty:
		collectBound(n.Right, out)
	default:
		for _, c := range n.Children {
			collectBound(c, out)
		}
	}
}

// IsFunction reports whether the node introduces a function scope.
func IsFunction(n *Node) bool {
	switch n.Type {
	case FunctionDeclaration, FunctionExpression, ArrowFunctionExpression, MethodDefinition:
		return true
	}
	return false
}
