// SPDX-License-Identifier: MPL-2.0

// Package scope tracks lexical bindings and their references inside a module.
//
// A module owns a root Scope. Import bindings are defined into the root
// before Scan walks the program, so references to imported names resolve to
// their specifier. The tree models block scoping for let and const while
// function and class declarations inside a block belong to the enclosing
// scope. Reference counts feed dead-import detection and renaming.
package scope

import (
	"slices"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/editbuf"
)

type (
	// Scope is a node in the lexical scope tree.
	Scope struct {
		Parent   *Scope
		Children []*Scope

		bindings map[string]*Binding
		order    []string
	}

	// Binding is a declared name and every reference to it.
	Binding struct {
		Name  string
		Decl  ast.Range
		Refs  []Ref
		Scope *Scope
	}

	// Ref is one reference occurrence. Shorthand marks an object literal
	// property written as `{ name }`, whose rewrite must keep the key.
	Ref struct {
		ast.Range
		Shorthand bool
	}
)

// New returns an empty root scope.
func New() *Scope {
	return &Scope{bindings: make(map[string]*Binding)}
}

// CreateChild appends and returns a new child scope.
func (s *Scope) CreateChild() *Scope {
	child := New()
	child.Parent = s
	s.Children = append(s.Children, child)
	return child
}

// Define binds name in s. Defining a name that already exists in s returns
// the existing binding unchanged.
func (s *Scope) Define(name string, decl ast.Range) *Binding {
	if b, ok := s.bindings[name]; ok {
		return b
	}
	b := &Binding{Name: name, Decl: decl, Scope: s}
	s.bindings[name] = b
	s.order = append(s.order, name)
	return b
}

// Lookup resolves name starting at s and walking outward.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.bindings[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// Own returns the binding defined directly in s.
func (s *Scope) Own(name string) (*Binding, bool) {
	b, ok := s.bindings[name]
	return b, ok
}

// Bindings returns the bindings defined directly in s in definition order.
func (s *Scope) Bindings() []*Binding {
	out := make([]*Binding, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.bindings[name])
	}
	return out
}

// Names returns the names defined directly in s, sorted.
func (s *Scope) Names() []string {
	names := slices.Clone(s.order)
	slices.Sort(names)
	return names
}

// Reference records a use of name. It returns false when name does not
// resolve to any binding.
func (s *Scope) Reference(name string, ref Ref) bool {
	b, ok := s.Lookup(name)
	if !ok {
		return false
	}
	b.Refs = append(b.Refs, ref)
	return true
}

// Count returns the number of recorded references.
func (b *Binding) Count() int {
	return len(b.Refs)
}

// Unused reports whether the binding is never referenced.
func (b *Binding) Unused() bool {
	return len(b.Refs) == 0
}

// Rename rewrites the declaration site and every reference of b to name.
// The declaration range must cover exactly the bound identifier.
func (b *Binding) Rename(buf *editbuf.Buffer, name string) *editbuf.Buffer {
	buf = buf.Overwrite(b.Decl.Start, b.Decl.End, name)
	for _, r := range b.Refs {
		buf = buf.Overwrite(r.Start, r.End, r.Replacement(b.Name, name))
	}
	return buf
}

// Replacement returns the text that substitutes expr for the reference
// while keeping the property key of a shorthand.
func (r Ref) Replacement(name, expr string) string {
	if r.Shorthand {
		return name + ": " + expr
	}
	return expr
}
