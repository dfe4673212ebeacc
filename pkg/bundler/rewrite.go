// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"fmt"
	"strings"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/editbuf"
	"pickup-cli/pkg/graph"
)

// moduleRewriter rewrites one module's body for the module table.
type moduleRewriter struct {
	m      *graph.Module
	format Format
	code   *editbuf.Buffer
	// hoisted are export assignments for function declarations, emitted
	// before the body so that importers in a cycle can call them early.
	hoisted []string
}

// rewrite returns the rewritten body of m and the export assignments that
// must run before it.
func rewrite(m *graph.Module, format Format) (*editbuf.Buffer, string, error) {
	r := &moduleRewriter{
		m:      m,
		format: format,
		code:   m.Code,
	}
	r.rewriteImports()
	if err := r.rewriteExports(); err != nil {
		return nil, "", err
	}
	var hoisted string
	if len(r.hoisted) > 0 {
		hoisted = strings.Join(r.hoisted, "\n") + "\n"
	}
	return r.code, hoisted, nil
}

func (r *moduleRewriter) await() string {
	if r.format.IsAsync() {
		return "await "
	}
	return ""
}

// load returns the expression evaluating to the export object of path.
func (r *moduleRewriter) load(path string) string {
	return fmt.Sprintf("%s%s(%s)", r.await(), RequireParam, jsString(path))
}

func exportTarget(name string) string {
	return fmt.Sprintf("%s[%s]", ModuleParam, jsString(name))
}

// rewriteImports replaces import declarations by binding statements that
// destructure the loaded export object, so imported names stay ordinary
// local bindings. Dynamic imports become loader calls wrapped in a promise.
func (r *moduleRewriter) rewriteImports() {
	for _, im := range r.m.Imports {
		switch {
		case im.Kind == graph.StaticImport:
			r.code = r.code.Overwrite(im.Node.Start, im.Node.End, r.importBinding(im))
		case im.Node.Source != nil:
			arg := r.code.Snip(im.Node.Source.Start, im.Node.Source.End).String()
			r.code = r.code.Overwrite(im.Node.Start, im.Node.End,
				fmt.Sprintf("Promise.resolve(%s(%s))", RequireParam, arg))
		}
	}
}

// importBinding returns the statement replacing a static import:
//
//	import d, { a, b as c } from './x.js'  ->  const { default: d, a, b: c } = require("/x.js");
//	import * as ns from './x.js'           ->  const ns = require("/x.js");
//	import './x.js'                        ->  require("/x.js");
func (r *moduleRewriter) importBinding(im graph.Import) string {
	load := r.load(im.Source)
	if len(im.Specifiers) == 0 {
		return load + ";"
	}

	var (
		namespace string
		props     []string
	)
	for _, spec := range im.Specifiers {
		if spec.Imported == "" {
			namespace = spec.Local
			continue
		}
		props = append(props, destructuredProperty(spec.Imported, spec.Local))
	}

	var stmts []string
	if namespace != "" {
		stmts = append(stmts, fmt.Sprintf("const %s = %s;", namespace, load))
		load = namespace
	}
	if len(props) > 0 {
		stmts = append(stmts, fmt.Sprintf("const { %s } = %s;", strings.Join(props, ", "), load))
	}
	return strings.Join(stmts, " ")
}

// destructuredProperty renders one "imported: local" pattern property.
func destructuredProperty(imported, local string) string {
	switch {
	case imported == local:
		return local
	case isPropertyName(imported):
		return imported + ": " + local
	default:
		return jsString(imported) + ": " + local
	}
}

// rewriteExports replaces each export statement, whose range was removed
// from the code when the module was built, with assignments onto the
// module's export object.
func (r *moduleRewriter) rewriteExports() error {
	for _, ex := range r.m.Exports {
		var out []string
		for _, spec := range ex.Specifiers {
			stmt, err := r.exportSpecifier(ex, spec)
			if err != nil {
				return err
			}
			out = append(out, stmt)
		}
		r.code = r.code.Overwrite(ex.Node.Start, ex.Node.End, strings.Join(out, "\n"))
	}
	return nil
}

func (r *moduleRewriter) exportSpecifier(ex graph.Export, spec graph.ExportSpecifier) (string, error) {
	if ex.Kind == graph.ReferenceExport {
		switch spec.Kind {
		case graph.NamedSpecifier:
			return fmt.Sprintf("%s = (%s)[%s];", exportTarget(spec.Exported), r.load(ex.Source), jsString(spec.Local)), nil
		case graph.AllSpecifier:
			if spec.Exported != "" {
				return fmt.Sprintf("%s = %s;", exportTarget(spec.Exported), r.load(ex.Source)), nil
			}
			return fmt.Sprintf(";((m) => { for (const k of Object.keys(m)) { if (k !== \"default\") %s[k] = m[k]; } })(%s);",
				ModuleParam, r.load(ex.Source)), nil
		}
		return "", &graph.UnsupportedExportError{Path: r.m.Path, Node: spec.Node}
	}

	switch spec.Kind {
	case graph.NamedDeclSpecifier:
		var sb strings.Builder
		sb.WriteString(r.snip(spec.Decl))
		for _, name := range spec.Names {
			assign := fmt.Sprintf("%s = %s;", exportTarget(name), name)
			if spec.Decl.Type == ast.FunctionDeclaration {
				r.hoisted = append(r.hoisted, assign)
			}
			sb.WriteString("\n")
			sb.WriteString(assign)
		}
		return sb.String(), nil

	case graph.NamedSpecifier:
		return fmt.Sprintf("%s = %s;", exportTarget(spec.Exported), spec.Local), nil

	case graph.DefaultSpecifier:
		decl := spec.Decl
		if decl == nil {
			return "", &graph.UnsupportedExportError{Path: r.m.Path, Node: spec.Node}
		}
		if (decl.Type == ast.FunctionDeclaration || decl.Type == ast.ClassDeclaration) && decl.ID != nil {
			name := r.code.Original(decl.ID.Start, decl.ID.End)
			assign := fmt.Sprintf("%s = %s;", exportTarget("default"), name)
			if decl.Type == ast.FunctionDeclaration {
				r.hoisted = append(r.hoisted, assign)
			}
			return r.snip(decl) + "\n" + assign, nil
		}
		return fmt.Sprintf("%s = (%s);", exportTarget("default"), r.snip(decl)), nil
	}
	return "", &graph.UnsupportedExportError{Path: r.m.Path, Node: spec.Node}
}

// snip returns the current text of n, including rewrites applied inside it.
func (r *moduleRewriter) snip(n *ast.Node) string {
	return r.code.Snip(n.Start, n.End).String()
}
