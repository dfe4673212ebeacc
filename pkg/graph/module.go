// SPDX-License-Identifier: MPL-2.0

// Package graph builds the module graph of a JavaScript program.
//
// Each Module records what it imports and exports, its ordered set of static
// dependencies and the edges discovered while resolving them. Every resolved
// edge is classified exactly once: as a child when it was first reached
// through this module, or as circular when its target was already being
// resolved. Circular edges are recorded on both endpoints.
package graph

import (
	"slices"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/editbuf"
	"pickup-cli/pkg/plugin"
	"pickup-cli/pkg/scope"
)

// ImportKind distinguishes static declarations from dynamic import().
type ImportKind int

const (
	// StaticImport is an import declaration.
	StaticImport ImportKind = iota + 1
	// DynamicImport is an import() expression.
	DynamicImport
)

// ExportKind distinguishes exports of local code from re-exports.
type ExportKind int

const (
	// LocalExport exports a binding or value defined in the module.
	LocalExport ExportKind = iota + 1
	// ReferenceExport re-exports from another module.
	ReferenceExport
)

// SpecifierKind is the shape of an export specifier.
type SpecifierKind int

const (
	// NamedDeclSpecifier is `export const x = ...`, `export function f() {}`.
	NamedDeclSpecifier SpecifierKind = iota + 1
	// NamedSpecifier is `export { a as b }` with or without a source.
	NamedSpecifier
	// DefaultSpecifier is `export default ...`.
	DefaultSpecifier
	// AllSpecifier is `export * from` or `export * as ns from`.
	AllSpecifier
)

type (
	// ImportSpecifier is one imported name. Imported is "default" for a
	// default import and empty for a namespace import.
	ImportSpecifier struct {
		Imported string
		Local    string
		Node     *ast.Node
	}

	// Import is an import record.
	Import struct {
		Kind ImportKind
		// Source is the resolved path of a static import. Dynamic imports
		// leave it empty: their target is only known at runtime.
		Source     string
		Specifier  string
		Specifiers []ImportSpecifier
		Node       *ast.Node
	}

	// ExportSpecifier is one exported name.
	ExportSpecifier struct {
		Kind SpecifierKind
		// Names lists the bound names of a NamedDeclSpecifier.
		Names []string
		// Local and Exported are set for NamedSpecifier. For AllSpecifier,
		// Exported is the namespace name or empty.
		Local    string
		Exported string
		// Decl is the declaration of a NamedDeclSpecifier or the expression
		// or declaration of a DefaultSpecifier.
		Decl *ast.Node
		Node *ast.Node
	}

	// Export is an export record.
	Export struct {
		Kind       ExportKind
		Source     string
		Specifier  string
		Specifiers []ExportSpecifier
		Node       *ast.Node
	}

	// Module is a node of the module graph.
	Module struct {
		Path   string
		Source *plugin.Source
		AST    *ast.Node
		// Code starts as the module source with every export statement
		// removed. The bundler replaces it with the rewritten body.
		Code *editbuf.Buffer

		Imports []Import
		Exports []Export

		// StaticDeps lists the resolved paths of static imports and
		// re-exports, deduplicated, in source order.
		StaticDeps []string
		Children   map[string]*Module
		Circular   map[string]*Module

		Scope *scope.Scope
		// ImportBindings maps each imported local name to its binding.
		ImportBindings map[string]*scope.Binding
	}
)

func newModule(path string, src *plugin.Source, root *ast.Node) *Module {
	return &Module{
		Path:           path,
		Source:         src,
		AST:            root,
		Code:           editbuf.New(src.Code),
		Children:       make(map[string]*Module),
		Circular:       make(map[string]*Module),
		Scope:          scope.New(),
		ImportBindings: make(map[string]*scope.Binding),
	}
}

// Dependency returns the resolved module for path from either edge set.
func (m *Module) Dependency(path string) (*Module, bool) {
	if dep, ok := m.Children[path]; ok {
		return dep, true
	}
	dep, ok := m.Circular[path]
	return dep, ok
}

// Resolved reports whether dependency resolution has run for the module.
func (m *Module) Resolved() bool {
	for _, p := range m.StaticDeps {
		if _, ok := m.Dependency(p); !ok {
			return false
		}
	}
	return true
}

// UnusedImports returns the imported names that are never referenced.
func (m *Module) UnusedImports() []string {
	var out []string
	for name, b := range m.ImportBindings {
		if b.Unused() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// ExportedNames returns the names the module exports, following star
// re-exports through the graph. The default export is reported as
// "default". The result is sorted and free of duplicates.
func (m *Module) ExportedNames() []string {
	seen := make(map[string]bool)
	m.collectExportedNames(seen, make(map[*Module]bool), true)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (m *Module) collectExportedNames(names map[string]bool, visited map[*Module]bool, withDefault bool) {
	if visited[m] {
		return
	}
	visited[m] = true
	for _, ex := range m.Exports {
		for _, spec := range ex.Specifiers {
			switch spec.Kind {
			case NamedDeclSpecifier:
				for _, n := range spec.Names {
					names[n] = true
				}
			case NamedSpecifier:
				if spec.Exported != "default" || withDefault {
					names[spec.Exported] = true
				}
			case DefaultSpecifier:
				if withDefault {
					names["default"] = true
				}
			case AllSpecifier:
				if spec.Exported != "" {
					names[spec.Exported] = true
					continue
				}
				if dep, ok := m.Dependency(ex.Source); ok {
					dep.collectExportedNames(names, visited, false)
				}
			}
		}
	}
}

// Walk visits every module reachable from m once, dependencies before
// dependents, following StaticDeps order. It stops at the first error fn
// returns.
func Walk(m *Module, fn func(*Module) error) error {
	for _, mod := range Modules(m) {
		if err := fn(mod); err != nil {
			return err
		}
	}
	return nil
}

// Modules returns every module reachable from m in Walk order.
func Modules(m *Module) []*Module {
	var out []*Module
	collect(m, make(map[*Module]bool), &out)
	return out
}

func collect(m *Module, seen map[*Module]bool, out *[]*Module) {
	if seen[m] {
		return
	}
	seen[m] = true
	for _, p := range m.StaticDeps {
		if dep, ok := m.Dependency(p); ok {
			collect(dep, seen, out)
		}
	}
	*out = append(*out, m)
}
