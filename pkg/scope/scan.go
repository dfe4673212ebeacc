// SPDX-License-Identifier: MPL-2.0

package scope

import (
	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/editbuf"
)

type scanner struct {
	buf *editbuf.Buffer
}

// Scan walks a program and populates s with its declarations and references.
// Identifier names are read from buf through node ranges.
//
// Top-level declarations of every kind bind into s itself. Inside a block,
// var, let and const bind into a fresh child scope while function and class
// declarations bind into the enclosing scope; all other statements of the
// block are visited after the block's declarations are registered. The
// declaration in a for or for-in/of head binds into a scope of the loop.
func (s *Scope) Scan(buf *editbuf.Buffer, program *ast.Node) *Scope {
	w := &scanner{buf: buf}
	body := program.Body
	if body == nil {
		body = program.Children
	}
	for _, n := range body {
		w.declareTopLevel(s, n)
	}
	for _, n := range body {
		w.statement(s, n)
	}
	return s
}

func (w *scanner) name(n *ast.Node) string {
	return w.buf.Original(n.Start, n.End)
}

func (w *scanner) declareTopLevel(s *Scope, n *ast.Node) {
	switch n.Type {
	case ast.ExportNamedDeclaration, ast.ExportDefaultDeclaration:
		if n.Declaration != nil {
			w.declareTopLevel(s, n.Declaration)
		}
	case ast.VariableDeclaration:
		w.declareVariables(s, n)
	case ast.FunctionDeclaration, ast.ClassDeclaration:
		w.declareNamed(s, n)
	}
}

func (w *scanner) declareVariables(s *Scope, n *ast.Node) {
	for _, d := range n.Declarations {
		for _, id := range ast.BoundNames(d.ID) {
			s.Define(w.name(id), id.Range())
		}
	}
}

func (w *scanner) declareNamed(s *Scope, n *ast.Node) {
	if n.ID != nil {
		s.Define(w.name(n.ID), n.ID.Range())
	}
}

// block handles the statements of a BlockStatement or function body.
func (w *scanner) block(parent *Scope, stmts []*ast.Node) {
	child := parent.CreateChild()
	var deferred []*ast.Node
	for _, n := range stmts {
		switch n.Type {
		case ast.VariableDeclaration:
			w.declareVariables(child, n)
		case ast.FunctionDeclaration, ast.ClassDeclaration:
			w.declareNamed(parent, n)
		default:
			deferred = append(deferred, n)
			continue
		}
		w.statement(child, n)
	}
	for _, n := range deferred {
		w.statement(child, n)
	}
}

// statement visits a statement whose own declarations are already bound.
func (w *scanner) statement(s *Scope, n *ast.Node) {
	switch n.Type {
	case ast.ImportDeclaration, ast.ExportAllDeclaration:
		return
	case ast.ExportNamedDeclaration:
		if n.Declaration != nil {
			w.statement(s, n.Declaration)
			return
		}
		if n.Source != nil {
			return
		}
		for _, spec := range n.Specifiers {
			if spec.Local != nil && spec.Local.Type == ast.Identifier {
				s.Reference(w.name(spec.Local), Ref{Range: spec.Local.Range()})
			}
		}
	case ast.ExportDefaultDeclaration:
		if n.Declaration != nil {
			w.statement(s, n.Declaration)
		}
	case ast.VariableDeclaration:
		for _, d := range n.Declarations {
			w.pattern(s, d.ID)
			w.visit(s, d.Init)
		}
	case ast.FunctionDeclaration:
		w.function(s, n)
	case ast.ClassDeclaration:
		w.class(s, n)
	default:
		w.visit(s, n)
	}
}

// visit walks an arbitrary subtree in scope s.
func (w *scanner) visit(s *Scope, n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case ast.Identifier:
		s.Reference(w.name(n), Ref{Range: n.Range(), Shorthand: n.Kind == ast.ShorthandProperty})
	case ast.BlockStatement:
		w.block(s, n.Body)
	case ast.ForStatement, ast.ForInStatement:
		// the head's bindings are visible in the loop only
		loop := s.CreateChild()
		for _, c := range n.Children {
			w.visit(loop, c)
		}
	case ast.VariableDeclaration:
		w.declareVariables(s, n)
		w.statement(s, n)
	case ast.FunctionDeclaration, ast.ClassDeclaration:
		w.declareNamed(s, n)
		w.statement(s, n)
	case ast.FunctionExpression, ast.ArrowFunctionExpression, ast.MethodDefinition:
		w.function(s, n)
	case ast.ClassExpression:
		w.class(s, n)
	case ast.CatchClause:
		catch := s.CreateChild()
		for _, p := range n.Params {
			for _, id := range ast.BoundNames(p) {
				catch.Define(w.name(id), id.Range())
			}
			w.pattern(catch, p)
		}
		for _, b := range n.Body {
			w.visit(catch, b)
		}
	case ast.ImportExpression:
		for _, c := range n.Children {
			w.visit(s, c)
		}
	case ast.ImportDeclaration, ast.ExportNamedDeclaration, ast.ExportDefaultDeclaration, ast.ExportAllDeclaration:
		w.statement(s, n)
	default:
		for _, c := range n.Children {
			w.visit(s, c)
		}
	}
}

// function binds parameters in a fresh scope and walks the body there.
// Named function expressions see their own name.
func (w *scanner) function(s *Scope, n *ast.Node) {
	fn := s.CreateChild()
	if n.Type == ast.FunctionExpression && n.ID != nil {
		fn.Define(w.name(n.ID), n.ID.Range())
	}
	for _, p := range n.Params {
		for _, id := range ast.BoundNames(p) {
			fn.Define(w.name(id), id.Range())
		}
	}

	skip := make(map[*ast.Node]bool, len(n.Params)+len(n.Body)+1)
	skip[n.ID] = true
	for _, p := range n.Params {
		skip[p] = true
		w.pattern(fn, p)
	}
	for _, b := range n.Body {
		skip[b] = true
		if b.Type == ast.BlockStatement {
			w.block(fn, b.Body)
		} else {
			w.visit(fn, b)
		}
	}
	// decorators, computed keys and the parameter list wrapper
	for _, c := range n.Children {
		if !skip[c] && !containsAny(c, n.Params) {
			w.visit(s, c)
		}
	}
}

func containsAny(wrapper *ast.Node, params []*ast.Node) bool {
	for _, c := range wrapper.Children {
		for _, p := range params {
			if c == p {
				return true
			}
		}
	}
	return false
}

func (w *scanner) class(s *Scope, n *ast.Node) {
	for _, c := range n.Children {
		if c != n.ID {
			w.visit(s, c)
		}
	}
}

// pattern walks the expression parts of a binding pattern: default values
// and computed keys. Bound identifiers themselves are not references.
func (w *scanner) pattern(s *Scope, n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case ast.Identifier:
	case ast.AssignmentPattern:
		w.pattern(s, n.Left)
		w.visit(s, n.Right)
	case ast.PatternProperty:
		if n.Left != nil && n.Left.Type != ast.Identifier && n.Left.Type != ast.Literal {
			w.visit(s, n.Left)
		}
		w.pattern(s, n.Right)
	default:
		for _, c := range n.Children {
			w.pattern(s, c)
		}
	}
}
