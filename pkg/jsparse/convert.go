// SPDX-License-Identifier: MPL-2.0

package jsparse

import (
	"pickup-cli/pkg/ast"

	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar node types that get an ast type of their own.
const (
	tsProgram             = "program"
	tsStatementBlock      = "statement_block"
	tsImportStatement     = "import_statement"
	tsImportClause        = "import_clause"
	tsImportSpecifier     = "import_specifier"
	tsNamespaceImport     = "namespace_import"
	tsNamedImports        = "named_imports"
	tsExportStatement     = "export_statement"
	tsExportClause        = "export_clause"
	tsExportSpecifier     = "export_specifier"
	tsNamespaceExport     = "namespace_export"
	tsLexicalDeclaration  = "lexical_declaration"
	tsVariableDeclaration = "variable_declaration"
	tsVariableDeclarator  = "variable_declarator"
	tsFunctionDecl        = "function_declaration"
	tsGeneratorDecl       = "generator_function_declaration"
	tsFunction            = "function"
	tsFunctionExpression  = "function_expression"
	tsGenerator           = "generator_function"
	tsArrowFunction       = "arrow_function"
	tsMethodDefinition    = "method_definition"
	tsClassDeclaration    = "class_declaration"
	tsClass               = "class"
	tsCatchClause         = "catch_clause"
	tsIdentifier          = "identifier"
	tsShorthandProperty   = "shorthand_property_identifier"
	tsShorthandPattern    = "shorthand_property_identifier_pattern"
	tsString              = "string"
	tsAssignmentPattern   = "assignment_pattern"
	tsObjectAssignPattern = "object_assignment_pattern"
	tsPairPattern         = "pair_pattern"
	tsCallExpression      = "call_expression"
	tsForIn               = "for_in_statement"
	tsFor                 = "for_statement"
	tsComment             = "comment"
	tsHashBang            = "hash_bang_line"
)

type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

// field returns the converted child stored under the grammar field name. Named
// children are matched by range among the already converted children; an
// anonymous field token is converted on its own.
func (c *converter) field(n *sitter.Node, out *ast.Node, name string) *ast.Node {
	f := n.ChildByFieldName(name)
	if f == nil {
		return nil
	}
	start, end := int(f.StartByte()), int(f.EndByte())
	for _, ch := range out.Children {
		if ch.Start == start && ch.End == end {
			return ch
		}
	}
	return c.convert(f)
}

func (c *converter) hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if !ch.IsNamed() && ch.Type() == token {
			return true
		}
	}
	return false
}

func childrenOfType(out *ast.Node, typ string) []*ast.Node {
	var res []*ast.Node
	for _, ch := range out.Children {
		if ch.Type == typ {
			res = append(res, ch)
		}
	}
	return res
}

func (c *converter) convert(n *sitter.Node) *ast.Node {
	out := &ast.Node{
		Type:  n.Type(),
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if t := ch.Type(); t == tsComment || t == tsHashBang {
			continue
		}
		out.Children = append(out.Children, c.convert(ch))
	}

	switch n.Type() {
	case tsProgram:
		out.Type = ast.Program
		out.Body = out.Children
	case tsStatementBlock:
		out.Type = ast.BlockStatement
		out.Body = out.Children

	case tsIdentifier, tsShorthandPattern:
		out.Type = ast.Identifier
		out.Name = c.text(n)
	case tsShorthandProperty:
		out.Type = ast.Identifier
		out.Name = c.text(n)
		out.Kind = ast.ShorthandProperty
	case tsString:
		out.Type = ast.Literal
		if v, err := Unquote(c.text(n)); err == nil {
			out.Value = v
		}

	case tsImportStatement:
		c.importStatement(n, out)
	case tsImportClause:
		for i, ch := range out.Children {
			if ch.Type == ast.Identifier {
				out.Children[i] = &ast.Node{
					Type: ast.ImportDefaultSpecifier, Start: ch.Start, End: ch.End,
					Local: ch, Children: []*ast.Node{ch},
				}
			}
		}
	case tsNamespaceImport:
		out.Type = ast.ImportNamespaceSpecifier
		if len(out.Children) > 0 {
			out.Local = out.Children[len(out.Children)-1]
		}
	case tsImportSpecifier:
		out.Type = ast.ImportSpecifier
		out.Imported = c.field(n, out, "name")
		out.Local = c.field(n, out, "alias")
		if out.Local == nil {
			out.Local = out.Imported
		}

	case tsExportStatement:
		c.exportStatement(n, out)
	case tsExportSpecifier:
		out.Type = ast.ExportSpecifier
		out.Local = c.field(n, out, "name")
		out.Exported = c.field(n, out, "alias")
		if out.Exported == nil {
			out.Exported = out.Local
		}

	case tsLexicalDeclaration, tsVariableDeclaration:
		out.Type = ast.VariableDeclaration
		out.Kind = "var"
		if kind := n.ChildByFieldName("kind"); kind != nil {
			out.Kind = c.text(kind)
		}
		out.Declarations = childrenOfType(out, ast.VariableDeclarator)
	case tsVariableDeclarator:
		out.Type = ast.VariableDeclarator
		out.ID = c.field(n, out, "name")
		out.Init = c.field(n, out, "value")

	case tsFunctionDecl, tsGeneratorDecl:
		out.Type = ast.FunctionDeclaration
		c.function(n, out)
	case tsFunction, tsFunctionExpression, tsGenerator:
		out.Type = ast.FunctionExpression
		c.function(n, out)
	case tsArrowFunction:
		out.Type = ast.ArrowFunctionExpression
		c.function(n, out)
		if p := c.field(n, out, "parameter"); p != nil {
			out.Params = []*ast.Node{p}
		}
	case tsMethodDefinition:
		out.Type = ast.MethodDefinition
		params := c.field(n, out, "parameters")
		if params != nil {
			out.Params = params.Children
		}
		if body := c.field(n, out, "body"); body != nil {
			out.Body = []*ast.Node{body}
		}

	case tsClassDeclaration:
		out.Type = ast.ClassDeclaration
		out.ID = c.field(n, out, "name")
	case tsClass:
		out.Type = ast.ClassExpression
		out.ID = c.field(n, out, "name")

	case tsCatchClause:
		out.Type = ast.CatchClause
		if p := c.field(n, out, "parameter"); p != nil {
			out.Params = []*ast.Node{p}
		}
		if body := c.field(n, out, "body"); body != nil {
			out.Body = []*ast.Node{body}
		}

	case tsAssignmentPattern, tsObjectAssignPattern:
		out.Type = ast.AssignmentPattern
		out.Left = c.field(n, out, "left")
		out.Right = c.field(n, out, "right")
	case tsPairPattern:
		out.Type = ast.PatternProperty
		out.Left = c.field(n, out, "key")
		out.Right = c.field(n, out, "value")

	case tsCallExpression:
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "import" {
			out.Type = ast.ImportExpression
			if args := c.field(n, out, "arguments"); args != nil && len(args.Children) > 0 {
				out.Source = args.Children[0]
			}
		}

	case tsFor:
		out.Type = ast.ForStatement
	case tsForIn:
		out.Type = ast.ForInStatement
		c.forIn(n, out)
	}
	return out
}

func (c *converter) function(n *sitter.Node, out *ast.Node) {
	out.ID = c.field(n, out, "name")
	if params := c.field(n, out, "parameters"); params != nil {
		out.Params = params.Children
	}
	if body := c.field(n, out, "body"); body != nil {
		out.Body = []*ast.Node{body}
	}
}

func (c *converter) importStatement(n *sitter.Node, out *ast.Node) {
	out.Type = ast.ImportDeclaration
	out.Source = c.field(n, out, "source")
	for _, clause := range childrenOfType(out, tsImportClause) {
		for _, ch := range clause.Children {
			switch ch.Type {
			case ast.ImportDefaultSpecifier, ast.ImportNamespaceSpecifier:
				out.Specifiers = append(out.Specifiers, ch)
			case tsNamedImports:
				out.Specifiers = append(out.Specifiers, childrenOfType(ch, ast.ImportSpecifier)...)
			}
		}
	}
}

func (c *converter) exportStatement(n *sitter.Node, out *ast.Node) {
	out.Source = c.field(n, out, "source")
	decl := c.field(n, out, "declaration")

	if c.hasToken(n, "default") {
		out.Type = ast.ExportDefaultDeclaration
		out.Declaration = decl
		if out.Declaration == nil {
			out.Declaration = c.field(n, out, "value")
		}
		return
	}
	if decl != nil {
		out.Type = ast.ExportNamedDeclaration
		out.Declaration = decl
		return
	}
	if ns := childrenOfType(out, tsNamespaceExport); len(ns) > 0 {
		out.Type = ast.ExportAllDeclaration
		if len(ns[0].Children) > 0 {
			out.Exported = ns[0].Children[0]
		}
		return
	}
	if clauses := childrenOfType(out, tsExportClause); len(clauses) > 0 {
		out.Type = ast.ExportNamedDeclaration
		for _, clause := range clauses {
			out.Specifiers = append(out.Specifiers, clause.Children...)
		}
		return
	}
	// export * from "x"
	out.Type = ast.ExportAllDeclaration
}

// forIn rewrites `for (const x of y)` and `for (const x in y)` so that the
// loop binding appears as a VariableDeclaration, like it does in ESTree.
func (c *converter) forIn(n *sitter.Node, out *ast.Node) {
	kind := n.ChildByFieldName("kind")
	left := c.field(n, out, "left")
	if kind == nil || left == nil {
		return
	}
	declarator := &ast.Node{
		Type: ast.VariableDeclarator, Start: left.Start, End: left.End,
		ID: left, Children: []*ast.Node{left},
	}
	decl := &ast.Node{
		Type: ast.VariableDeclaration, Kind: c.text(kind),
		Start: int(kind.StartByte()), End: left.End,
		Declarations: []*ast.Node{declarator}, Children: []*ast.Node{declarator},
	}
	for i, ch := range out.Children {
		if ch == left {
			out.Children[i] = decl
		}
	}
}
