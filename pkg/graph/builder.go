// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/jsparse"
	"pickup-cli/pkg/plugin"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type (
	// LoadError reports a module that could not be loaded, transformed or
	// parsed.
	LoadError struct {
		Path     string
		Importer string
		Err      error
	}

	// UnsupportedExportError reports an export statement whose shape the
	// bundler cannot represent.
	UnsupportedExportError struct {
		Path string
		Node *ast.Node
	}

	// Builder builds modules and module graphs through a plugin Driver.
	Builder struct {
		driver *plugin.Driver
		logger *log.Logger
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	// ResolveState is shared by every ResolveDeps call of one graph build.
	// Paths enter visiting before their module is loaded and never leave it,
	// so each path is resolved at most once.
	ResolveState struct {
		mu       sync.Mutex
		visiting map[string]bool
		resolved map[string]*Module
	}

	// pending is a resolution scheduled during the record walk.
	pending struct {
		specifier string
		apply     func(string)
	}
)

func (e *LoadError) Error() string {
	if e.Importer != "" {
		return fmt.Sprintf("load %s (imported by %s): %v", e.Path, e.Importer, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedExportError) Error() string {
	return fmt.Sprintf("%s: unsupported export at offset %d (%s)", e.Path, e.Node.Start, e.Node.Type)
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder.
func NewBuilder(driver *plugin.Driver, opts ...BuilderOption) *Builder {
	b := &Builder{
		driver: driver,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewResolveState returns an empty ResolveState.
func NewResolveState() *ResolveState {
	return &ResolveState{
		visiting: make(map[string]bool),
		resolved: make(map[string]*Module),
	}
}

// visit marks path as visiting and reports whether it already was.
func (s *ResolveState) visit(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visiting[path] {
		return true
	}
	s.visiting[path] = true
	return false
}

func (s *ResolveState) store(m *Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visiting[m.Path] = true
	s.resolved[m.Path] = m
}

// Lookup returns the module resolved for path.
func (s *ResolveState) Lookup(path string) (*Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.resolved[path]
	return m, ok
}

// Len returns the number of resolved modules.
func (s *ResolveState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved)
}

// CreateMainGraph resolves input as the entry module and, when resolveDeps
// is set, the full graph below it.
func (b *Builder) CreateMainGraph(ctx context.Context, input string, resolveDeps bool) (*Module, error) {
	path, err := b.driver.Resolve(ctx, input, "", plugin.ResolveOptions{Entry: true})
	if err != nil {
		return nil, fmt.Errorf("resolve entry %s: %w", input, err)
	}
	entry, err := b.ResolveScript(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resolveDeps {
		return entry, nil
	}
	return b.ResolveDeps(ctx, entry, NewResolveState())
}

// ResolveScript loads, transforms and parses one module and collects its
// import and export records. Specifier resolution runs concurrently; the
// records keep source order regardless of completion order.
func (b *Builder) ResolveScript(ctx context.Context, path string) (*Module, error) {
	b.logger.Debug("resolving module", "path", path)

	src, err := b.driver.Load(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	src, err = b.driver.Transform(ctx, src, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	root := src.AST
	if root == nil {
		root, err = b.driver.Parse(ctx, src.Code, plugin.ParseOptions{SourceType: "module", SourceFile: path})
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}

	m := newModule(path, src, root)
	tasks, err := b.collect(m)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			resolved, err := b.driver.Resolve(gctx, task.specifier, path, plugin.ResolveOptions{})
			if err != nil {
				return fmt.Errorf("%s: resolve %q: %w", path, task.specifier, err)
			}
			task.apply(resolved)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.StaticDeps = staticDeps(m)
	for _, ex := range m.Exports {
		m.Code = m.Code.Remove(ex.Node.Start, ex.Node.End)
	}
	for _, im := range m.Imports {
		for _, spec := range im.Specifiers {
			local := spec.Node.Local
			if local == nil {
				local = spec.Node
			}
			m.ImportBindings[spec.Local] = m.Scope.Define(spec.Local, local.Range())
		}
	}
	m.Scope.Scan(m.Code, root)

	b.logger.Debug("module resolved", "path", path,
		"imports", len(m.Imports), "exports", len(m.Exports), "deps", len(m.StaticDeps))
	if unused := m.UnusedImports(); len(unused) > 0 {
		b.logger.Debug("unused imports", "path", path, "names", unused)
	}
	return m, nil
}

// collect walks the tree and fills the module's records. Resolutions are
// returned as tasks writing into their own record slots.
func (b *Builder) collect(m *Module) ([]pending, error) {
	var (
		tasks    []pending
		walkErr  error
		text     = func(n *ast.Node) string { return m.Code.Original(n.Start, n.End) }
		literal  = func(n *ast.Node) string { return literalValue(n, text) }
		importAt = func(i int) func(string) { return func(p string) { m.Imports[i].Source = p } }
		exportAt = func(i int) func(string) { return func(p string) { m.Exports[i].Source = p } }
	)

	ast.Inspect(m.AST, func(n *ast.Node) bool {
		if walkErr != nil {
			return false
		}
		switch n.Type {
		case ast.ImportDeclaration:
			im := Import{Kind: StaticImport, Specifier: literal(n.Source), Node: n}
			for _, s := range n.Specifiers {
				im.Specifiers = append(im.Specifiers, importSpecifier(s, text, literal))
			}
			m.Imports = append(m.Imports, im)
			tasks = append(tasks, pending{specifier: im.Specifier, apply: importAt(len(m.Imports) - 1)})
			return false

		case ast.ImportExpression:
			im := Import{Kind: DynamicImport, Node: n}
			if n.Source != nil && n.Source.Type == ast.Literal {
				im.Specifier = literal(n.Source)
			}
			m.Imports = append(m.Imports, im)

		case ast.ExportAllDeclaration:
			spec := ExportSpecifier{Kind: AllSpecifier, Node: n}
			if n.Exported != nil {
				spec.Exported = literal(n.Exported)
			}
			ex := Export{Kind: ReferenceExport, Specifier: literal(n.Source), Specifiers: []ExportSpecifier{spec}, Node: n}
			m.Exports = append(m.Exports, ex)
			tasks = append(tasks, pending{specifier: ex.Specifier, apply: exportAt(len(m.Exports) - 1)})
			return false

		case ast.ExportDefaultDeclaration:
			m.Exports = append(m.Exports, Export{
				Kind:       LocalExport,
				Specifiers: []ExportSpecifier{{Kind: DefaultSpecifier, Decl: n.Declaration, Node: n}},
				Node:       n,
			})

		case ast.ExportNamedDeclaration:
			ex, err := namedExport(m.Path, n, text, literal)
			if err != nil {
				walkErr = err
				return false
			}
			m.Exports = append(m.Exports, ex)
			if ex.Kind == ReferenceExport {
				tasks = append(tasks, pending{specifier: ex.Specifier, apply: exportAt(len(m.Exports) - 1)})
				return false
			}
		}
		return true
	})
	return tasks, walkErr
}

func importSpecifier(s *ast.Node, text, literal func(*ast.Node) string) ImportSpecifier {
	spec := ImportSpecifier{Node: s}
	if s.Local != nil {
		spec.Local = text(s.Local)
	}
	switch s.Type {
	case ast.ImportDefaultSpecifier:
		spec.Imported = "default"
	case ast.ImportSpecifier:
		spec.Imported = literal(s.Imported)
	}
	return spec
}

func namedExport(path string, n *ast.Node, text, literal func(*ast.Node) string) (Export, error) {
	if n.Declaration != nil {
		spec := ExportSpecifier{Kind: NamedDeclSpecifier, Decl: n.Declaration, Node: n}
		switch n.Declaration.Type {
		case ast.VariableDeclaration:
			for _, d := range n.Declaration.Declarations {
				for _, id := range ast.BoundNames(d.ID) {
					spec.Names = append(spec.Names, text(id))
				}
			}
		case ast.FunctionDeclaration, ast.ClassDeclaration:
			if n.Declaration.ID == nil {
				return Export{}, &UnsupportedExportError{Path: path, Node: n}
			}
			spec.Names = []string{text(n.Declaration.ID)}
		default:
			return Export{}, &UnsupportedExportError{Path: path, Node: n}
		}
		return Export{Kind: LocalExport, Specifiers: []ExportSpecifier{spec}, Node: n}, nil
	}

	ex := Export{Kind: LocalExport, Node: n}
	if n.Source != nil {
		ex.Kind = ReferenceExport
		ex.Specifier = literal(n.Source)
	}
	for _, s := range n.Specifiers {
		if s.Type != ast.ExportSpecifier || s.Local == nil {
			return Export{}, &UnsupportedExportError{Path: path, Node: n}
		}
		ex.Specifiers = append(ex.Specifiers, ExportSpecifier{
			Kind:     NamedSpecifier,
			Local:    literal(s.Local),
			Exported: literal(s.Exported),
			Node:     s,
		})
	}
	return ex, nil
}

// literalValue returns the value of a string literal, or the source text of
// any other node.
func literalValue(n *ast.Node, text func(*ast.Node) string) string {
	if n == nil {
		return ""
	}
	if n.Type != ast.Literal {
		return text(n)
	}
	if n.Value != "" {
		return n.Value
	}
	v, err := jsparse.Unquote(text(n))
	if err != nil {
		return text(n)
	}
	return v
}

// staticDeps returns the resolved paths of static imports and re-exports in
// source order without duplicates.
func staticDeps(m *Module) []string {
	type dep struct {
		at   int
		path string
	}
	var deps []dep
	for _, im := range m.Imports {
		if im.Kind == StaticImport {
			deps = append(deps, dep{im.Node.Start, im.Source})
		}
	}
	for _, ex := range m.Exports {
		if ex.Kind == ReferenceExport {
			deps = append(deps, dep{ex.Node.Start, ex.Source})
		}
	}
	slices.SortStableFunc(deps, func(a, b dep) int { return a.at - b.at })

	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if !seen[d.path] {
			seen[d.path] = true
			out = append(out, d.path)
		}
	}
	return out
}

// ResolveDeps resolves the dependencies of m depth-first. A dependency that
// is already being visited is recorded as a circular edge on both modules;
// any other dependency is resolved, recursed into and recorded as a child.
func (b *Builder) ResolveDeps(ctx context.Context, m *Module, state *ResolveState) (*Module, error) {
	state.store(m)
	for _, p := range m.StaticDeps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if state.visit(p) {
			other, ok := state.Lookup(p)
			if !ok {
				return nil, fmt.Errorf("%s: dependency %s is visiting but was never resolved", m.Path, p)
			}
			b.logger.Debug("circular edge", "from", m.Path, "to", p)
			m.Circular[p] = other
			other.Circular[m.Path] = m
			continue
		}

		dep, err := b.ResolveScript(ctx, p)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) && le.Importer == "" {
				le.Importer = m.Path
			}
			return nil, err
		}
		if _, err := b.ResolveDeps(ctx, dep, state); err != nil {
			return nil, err
		}
		m.Children[p] = dep
	}
	return m, nil
}
