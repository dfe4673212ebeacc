// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/plugin"
	"pickup-cli/pkg/plugins/virtual"
)

func newTestBuilder(files map[string]string, extra ...plugin.Plugin) *Builder {
	plugins := append([]plugin.Plugin{virtual.New(files)}, extra...)
	return NewBuilder(plugin.NewDriver(plugin.WithPlugins(plugins...)))
}

func mustGraph(t *testing.T, files map[string]string, entry string) *Module {
	t.Helper()
	m, err := newTestBuilder(files).CreateMainGraph(context.Background(), entry, true)
	if err != nil {
		t.Fatalf("CreateMainGraph() error = %v", err)
	}
	return m
}

// checkPartition verifies that every static dependency of every module is
// recorded in exactly one of Children and Circular, and that circular edges
// are symmetric.
func checkPartition(t *testing.T, entry *Module) {
	t.Helper()
	for _, m := range Modules(entry) {
		for _, p := range m.StaticDeps {
			_, child := m.Children[p]
			other, circular := m.Circular[p]
			if child == circular {
				t.Errorf("%s -> %s: child=%v circular=%v, want exactly one", m.Path, p, child, circular)
			}
			if circular {
				if back, ok := other.Circular[m.Path]; !ok || back != m {
					t.Errorf("circular edge %s -> %s is not mirrored", m.Path, p)
				}
			}
		}
	}
}

func TestResolveScript_Records(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/main.js": `import def, { a as b } from './a.js';
import * as ns from './b.js';
export const x = 1, y = 2;
export function f() { return b; }
export default def;
export { b as c };
export { z } from './c.js';
export * from './a.js';
export * as all from './d.js';
const lazy = () => import('./lazy.js');
`,
		"/a.js": "", "/b.js": "", "/c.js": "", "/d.js": "", "/lazy.js": "",
	}

	m, err := newTestBuilder(files).ResolveScript(context.Background(), "/main.js")
	if err != nil {
		t.Fatalf("ResolveScript() error = %v", err)
	}

	if len(m.Imports) != 3 {
		t.Fatalf("len(Imports) = %d, want 3", len(m.Imports))
	}
	first := m.Imports[0]
	if first.Kind != StaticImport || first.Source != "/a.js" {
		t.Errorf("Imports[0] = kind %d source %q", first.Kind, first.Source)
	}
	wantSpecs := []ImportSpecifier{{Imported: "default", Local: "def"}, {Imported: "a", Local: "b"}}
	for i, want := range wantSpecs {
		got := first.Specifiers[i]
		if got.Imported != want.Imported || got.Local != want.Local {
			t.Errorf("Imports[0].Specifiers[%d] = %s as %s, want %s as %s", i, got.Imported, got.Local, want.Imported, want.Local)
		}
	}
	if ns := m.Imports[1].Specifiers[0]; ns.Imported != "" || ns.Local != "ns" {
		t.Errorf("namespace specifier = %+v", ns)
	}
	if dyn := m.Imports[2]; dyn.Kind != DynamicImport || dyn.Source != "" || dyn.Specifier != "./lazy.js" {
		t.Errorf("dynamic import = kind %d source %q specifier %q", dyn.Kind, dyn.Source, dyn.Specifier)
	}

	var kinds []SpecifierKind
	for _, ex := range m.Exports {
		for _, s := range ex.Specifiers {
			kinds = append(kinds, s.Kind)
		}
	}
	wantKinds := []SpecifierKind{
		NamedDeclSpecifier, NamedDeclSpecifier, DefaultSpecifier,
		NamedSpecifier, NamedSpecifier, AllSpecifier, AllSpecifier,
	}
	if !slices.Equal(kinds, wantKinds) {
		t.Errorf("export specifier kinds = %v, want %v", kinds, wantKinds)
	}
	if names := m.Exports[0].Specifiers[0].Names; !slices.Equal(names, []string{"x", "y"}) {
		t.Errorf("declared names = %v, want [x y]", names)
	}
	if ref := m.Exports[4]; ref.Kind != ReferenceExport || ref.Source != "/c.js" {
		t.Errorf("re-export = kind %d source %q", ref.Kind, ref.Source)
	}
	if ns := m.Exports[6].Specifiers[0]; ns.Exported != "all" {
		t.Errorf("export * as name = %q, want %q", ns.Exported, "all")
	}

	wantDeps := []string{"/a.js", "/b.js", "/c.js", "/d.js"}
	if !slices.Equal(m.StaticDeps, wantDeps) {
		t.Errorf("StaticDeps = %v, want %v", m.StaticDeps, wantDeps)
	}
}

func TestResolveScript_ExportsExcised(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/main.js": "const keep = 1;\nexport const x = keep;\nexport { keep };\nexport default keep;\nconsole.log(keep);\n",
	}
	m, err := newTestBuilder(files).ResolveScript(context.Background(), "/main.js")
	if err != nil {
		t.Fatalf("ResolveScript() error = %v", err)
	}

	code := m.Code.String()
	if strings.Contains(code, "export") {
		t.Errorf("Code still contains export statements:\n%s", code)
	}
	if !strings.Contains(code, "const keep = 1;") || !strings.Contains(code, "console.log(keep);") {
		t.Errorf("Code lost non-export statements:\n%s", code)
	}
	if m.Source.Code != files["/main.js"] {
		t.Error("original source was modified")
	}
}

func TestResolveScript_ImportBindings(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/main.js": "import { used, unused } from './a.js';\nused();\n",
		"/a.js":    "",
	}
	m, err := newTestBuilder(files).ResolveScript(context.Background(), "/main.js")
	if err != nil {
		t.Fatalf("ResolveScript() error = %v", err)
	}

	if got := m.ImportBindings["used"].Count(); got != 1 {
		t.Errorf("used.Count() = %d, want 1", got)
	}
	if got := m.UnusedImports(); !slices.Equal(got, []string{"unused"}) {
		t.Errorf("UnusedImports() = %v, want [unused]", got)
	}
}

func TestResolveScript_DeterministicOrder(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	files := map[string]string{}
	var want []string
	for i := range 20 {
		name := "/dep" + string(rune('a'+i)) + ".js"
		files[name] = ""
		want = append(want, name)
		sb.WriteString("import '." + name + "';\n")
	}
	files["/main.js"] = sb.String()

	for range 5 {
		m, err := newTestBuilder(files).ResolveScript(context.Background(), "/main.js")
		if err != nil {
			t.Fatalf("ResolveScript() error = %v", err)
		}
		if !slices.Equal(m.StaticDeps, want) {
			t.Fatalf("StaticDeps = %v, want %v", m.StaticDeps, want)
		}
	}
}

func TestResolveDeps_Cycle(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/a.js": "import { b } from './b.js';\nexport const a = 1;\n",
		"/b.js": "import { a } from './a.js';\nexport const b = 2;\n",
	}
	a := mustGraph(t, files, "a.js")
	checkPartition(t, a)

	b, ok := a.Children["/b.js"]
	if !ok {
		t.Fatal("b.js is not a child of a.js")
	}
	if b.Circular["/a.js"] != a {
		t.Error("b.js does not record a.js as circular")
	}
	if a.Circular["/b.js"] != b {
		t.Error("a.js does not mirror the circular edge to b.js")
	}
}

func TestResolveDeps_SelfImport(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/self.js": "import './self.js';\n"}
	m := mustGraph(t, files, "self.js")
	if m.Circular["/self.js"] != m {
		t.Error("self import not recorded as circular")
	}
	checkPartition(t, m)
}

func TestResolveDeps_DiamondResolvesOnce(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/a.js": "import './b.js';\nimport './c.js';\n",
		"/b.js": "import './d.js';\n",
		"/c.js": "import './d.js';\n",
		"/d.js": "export const d = 1;\n",
	}
	a := mustGraph(t, files, "a.js")
	checkPartition(t, a)

	b := a.Children["/b.js"]
	c := a.Children["/c.js"]
	if b == nil || c == nil {
		t.Fatal("b.js or c.js missing from children")
	}
	fromB, _ := b.Dependency("/d.js")
	fromC, _ := c.Dependency("/d.js")
	if fromB == nil || fromB != fromC {
		t.Error("d.js was resolved into more than one Module")
	}
	if got := len(Modules(a)); got != 4 {
		t.Errorf("len(Modules()) = %d, want 4", got)
	}
}

func TestWalk_OrderAndEarlyStop(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/a.js": "import './b.js';\nimport './c.js';\n",
		"/b.js": "import './c.js';\n",
		"/c.js": "import './a.js';\n",
	}
	a := mustGraph(t, files, "a.js")

	var order []string
	if err := Walk(a, func(m *Module) error {
		order = append(order, m.Path)
		return nil
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if want := []string{"/c.js", "/b.js", "/a.js"}; !slices.Equal(order, want) {
		t.Errorf("Walk() order = %v, want %v", order, want)
	}

	errStop := errors.New("stop")
	visited := 0
	err := Walk(a, func(*Module) error {
		visited++
		return errStop
	})
	if !errors.Is(err, errStop) || visited != 1 {
		t.Errorf("Walk() = %v after %d visits, want errStop after 1", err, visited)
	}
}

func TestResolveDeps_SharedStateIsIdempotent(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/a.js": "import './b.js';\n",
		"/b.js": "",
	}
	b := newTestBuilder(files)
	ctx := context.Background()
	state := NewResolveState()

	a, err := b.ResolveScript(ctx, "/a.js")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ResolveDeps(ctx, a, state); err != nil {
		t.Fatal(err)
	}
	first, _ := state.Lookup("/b.js")

	again, err := b.ResolveDeps(ctx, a, state)
	if err != nil {
		t.Fatal(err)
	}
	dep, _ := again.Dependency("/b.js")
	if dep != first {
		t.Error("resolving the same path twice produced a second Module")
	}
	if state.Len() != 2 {
		t.Errorf("state.Len() = %d, want 2", state.Len())
	}
}

func TestCreateMainGraph_Shallow(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/a.js": "import './b.js';\n", "/b.js": ""}
	m, err := newTestBuilder(files).CreateMainGraph(context.Background(), "a.js", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Children) != 0 || m.Resolved() {
		t.Error("shallow graph resolved dependencies")
	}
}

func TestResolveDeps_MissingModule(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/a.js": "import './gone.js';\n"}
	_, err := newTestBuilder(files).CreateMainGraph(context.Background(), "a.js", true)

	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("CreateMainGraph() error = %v, want *LoadError", err)
	}
	if le.Importer != "/a.js" {
		t.Errorf("LoadError.Importer = %q, want /a.js", le.Importer)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error does not wrap os.ErrNotExist: %v", err)
	}
}

type exprExportParser struct{}

func (exprExportParser) Name() string { return "expr-export" }

func (exprExportParser) Parse(_ context.Context, code string, _ plugin.ParseOptions) (*ast.Node, error) {
	expr := &ast.Node{Type: "expression_statement", Start: 7, End: len(code)}
	export := &ast.Node{Type: ast.ExportNamedDeclaration, Start: 0, End: len(code), Declaration: expr, Children: []*ast.Node{expr}}
	return &ast.Node{Type: ast.Program, End: len(code), Body: []*ast.Node{export}, Children: []*ast.Node{export}}, nil
}

func TestResolveScript_UnsupportedExport(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/a.js": "export foo();"}
	_, err := newTestBuilder(files, exprExportParser{}).ResolveScript(context.Background(), "/a.js")

	var unsupported *UnsupportedExportError
	if !errors.As(err, &unsupported) {
		t.Fatalf("ResolveScript() error = %v, want *UnsupportedExportError", err)
	}
}

func TestModule_ExportedNames(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/main.js": "export const a = 1;\nexport default a;\nexport * from './star.js';\nexport * as ns from './ns.js';\n",
		"/star.js": "export const s = 1;\nexport default 2;\nexport * from './main.js';\n",
		"/ns.js":   "",
	}
	m := mustGraph(t, files, "main.js")

	want := []string{"a", "default", "ns", "s"}
	if got := m.ExportedNames(); !slices.Equal(got, want) {
		t.Errorf("ExportedNames() = %v, want %v", got, want)
	}
}
