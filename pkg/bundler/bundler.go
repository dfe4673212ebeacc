// SPDX-License-Identifier: MPL-2.0

// Package bundler turns a resolved module graph into a single program.
//
// Every module becomes a factory function in a module table keyed by its
// resolved path. Import declarations become statements destructuring the
// export object returned by the runtime loader, and export statements become
// assignments onto the module's own export object. A small loader preamble
// caches export objects before running a factory, so a circular import sees
// the partially populated object instead of recursing. The epilogue exposes
// the entry module's exports in the chosen format.
package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"pickup-cli/pkg/graph"

	"github.com/charmbracelet/log"
)

// Identifiers visible inside every module factory.
const (
	RequireParam = "__pickup_require__"
	ModuleParam  = "__pickup_module__"
)

type (
	// PostProcessor rewrites the assembled program, for example to minify
	// it.
	PostProcessor interface {
		PostProcess(ctx context.Context, code string) (string, error)
	}

	// Option configures a Bundle call.
	Option func(*options)

	options struct {
		logger *log.Logger
		post   []PostProcessor
	}

	// UnresolvedDependencyError reports a static dependency with no
	// resolved module, which happens when bundling a graph built without
	// dependency resolution.
	UnresolvedDependencyError struct {
		Importer string
		Path     string
	}

	emitter struct {
		format  Format
		logger  *log.Logger
		added   map[string]bool
		modules strings.Builder
	}
)

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("%s: dependency %s was not resolved", e.Importer, e.Path)
}

// WithLogger sets the logger used for bundling diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPostProcessor appends a post-processing step.
func WithPostProcessor(p PostProcessor) Option {
	return func(o *options) {
		o.post = append(o.post, p)
	}
}

// Bundle emits the program for the graph rooted at entry.
//
// Each module's Code is replaced with its rewritten body. Bundling the same
// graph again with another format is supported: the rewrites of the earlier
// run are overwritten.
func Bundle(ctx context.Context, entry *graph.Module, format Format, opts ...Option) (string, error) {
	if err := format.Validate(); err != nil {
		return "", err
	}
	o := options{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}

	e := &emitter{format: format, logger: o.logger, added: make(map[string]bool)}
	if err := e.emit(entry); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(preamble(format))
	fmt.Fprintf(&sb, "const _entryModules = %s;\n", jsString(entry.Path))
	sb.WriteString("const _modules = {\n")
	sb.WriteString(e.modules.String())
	sb.WriteString("};\n")
	sb.WriteString("const _require = createRequire(_modules);\n")
	sb.WriteString(epilogue(entry, format))

	code := sb.String()
	for _, p := range o.post {
		var err error
		if code, err = p.PostProcess(ctx, code); err != nil {
			return "", fmt.Errorf("post-process bundle: %w", err)
		}
	}
	return code, nil
}

// emit appends m and everything it statically depends on to the module
// table, dependencies first. A module is marked before its dependencies are
// visited, so cycles terminate and every path is emitted once.
func (e *emitter) emit(m *graph.Module) error {
	if e.added[m.Path] {
		return nil
	}
	e.added[m.Path] = true

	for _, p := range m.StaticDeps {
		dep, ok := m.Dependency(p)
		if !ok {
			return &UnresolvedDependencyError{Importer: m.Path, Path: p}
		}
		if err := e.emit(dep); err != nil {
			return err
		}
	}

	body, hoisted, err := rewrite(m, e.format)
	if err != nil {
		return err
	}
	m.Code = body
	e.logger.Debug("bundled module", "path", m.Path, "bytes", body.Len())

	async := ""
	if e.format.IsAsync() {
		async = "async "
	}
	fmt.Fprintf(&e.modules, "%s: %s(%s, %s) => {\n", jsString(m.Path), async, RequireParam, ModuleParam)
	text := body.String()
	e.modules.WriteString(hoisted)
	e.modules.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		e.modules.WriteString("\n")
	}
	e.modules.WriteString("},\n")
	return nil
}

// preamble returns the runtime loader.
func preamble(format Format) string {
	run := "    modules[id](require, module);\n    return module;\n"
	if format.IsAsync() {
		run = "    return Promise.resolve(modules[id](require, module)).then(() => module);\n"
	}
	return `const createRequire = (modules) => {
  const caches = new Map();
  const require = (id) => {
    if (caches.has(id)) {
      return caches.get(id);
    }
    if (!Object.prototype.hasOwnProperty.call(modules, id)) {
      throw new Error('Not Found Module');
    }
    const module = {};
    caches.set(id, module);
` + run + `  };
  return require;
};
`
}

// epilogue loads the entry module and exposes its exports.
func epilogue(entry *graph.Module, format Format) string {
	var sb strings.Builder
	if format == FormatCJS {
		sb.WriteString("const _entry = _require(_entryModules);\n")
		sb.WriteString("module.exports = _entry;\n")
		sb.WriteString("module.exports.__esModule = true;\n")
		return sb.String()
	}

	sb.WriteString("const _entry = await _require(_entryModules);\n")
	var aliased []string
	for i, name := range entry.ExportedNames() {
		if name == "default" {
			continue
		}
		if isIdentifier(name) {
			fmt.Fprintf(&sb, "export const %s = _entry[%s];\n", name, jsString(name))
			continue
		}
		local := fmt.Sprintf("_export%d", i)
		fmt.Fprintf(&sb, "const %s = _entry[%s];\n", local, jsString(name))
		aliased = append(aliased, fmt.Sprintf("%s as %s", local, jsString(name)))
	}
	if len(aliased) > 0 {
		fmt.Fprintf(&sb, "export { %s };\n", strings.Join(aliased, ", "))
	}
	sb.WriteString("export default _entry[\"default\"];\n")
	return sb.String()
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return string(b)
}

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true, "else": true,
	"enum": true, "export": true, "extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true, "in": true, "instanceof": true,
	"interface": true, "let": true, "new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true, "super": true, "switch": true,
	"this": true, "throw": true, "true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true,
}

// isIdentifier reports whether name can be declared as a top-level const.
func isIdentifier(name string) bool {
	return isPropertyName(name) && !reservedWords[name]
}

// isPropertyName reports whether name is an IdentifierName, which may be
// used unquoted as a property key even when it is a reserved word.
func isPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r) || unicode.Is(unicode.Nl, r):
		case i > 0 && (unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc, unicode.Pc) || r == '\u200c' || r == '\u200d'):
		default:
			return false
		}
	}
	return true
}
