// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pickup-cli/pkg/ast"
	"pickup-cli/pkg/jsparse"
)

type (
	// Driver runs the hook chain over an ordered plugin list.
	Driver struct {
		plugins  []Plugin
		readFile func(string) ([]byte, error)
		getwd    func() (string, error)
	}

	// Option configures a Driver.
	Option func(*Driver)

	// HookError attributes a hook failure to the plugin that produced it.
	HookError struct {
		Hook   string
		Plugin string
		ID     string
		Err    error
	}
)

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %s: %s %s: %v", e.Plugin, e.Hook, e.ID, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// WithPlugins appends plugins to the chain.
func WithPlugins(plugins ...Plugin) Option {
	return func(d *Driver) {
		d.plugins = append(d.plugins, plugins...)
	}
}

// WithReadFile replaces the function used by the default loader.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(d *Driver) {
		d.readFile = fn
	}
}

// WithWorkingDir fixes the directory entry specifiers resolve against.
func WithWorkingDir(dir string) Option {
	return func(d *Driver) {
		d.getwd = func() (string, error) { return dir, nil }
	}
}

// NewDriver creates a Driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		readFile: os.ReadFile,
		getwd:    os.Getwd,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Plugins returns the registered plugins in order.
func (d *Driver) Plugins() []Plugin {
	return append([]Plugin(nil), d.plugins...)
}

// Resolve maps id, imported from importer, to a module path. The default
// joins id onto the importer's directory, or onto the working directory when
// there is no importer.
func (d *Driver) Resolve(ctx context.Context, id, importer string, opts ResolveOptions) (string, error) {
	for _, p := range d.plugins {
		r, ok := p.(Resolver)
		if !ok {
			continue
		}
		resolved, err := r.Resolve(ctx, id, importer, opts)
		if err != nil {
			return "", &HookError{Hook: "resolve", Plugin: p.Name(), ID: id, Err: err}
		}
		if resolved != "" {
			return resolved, nil
		}
	}

	if filepath.IsAbs(id) {
		return filepath.Clean(id), nil
	}
	base := ""
	if importer != "" {
		base = filepath.Dir(importer)
	} else {
		wd, err := d.getwd()
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", id, err)
		}
		base = wd
	}
	return filepath.Join(base, id), nil
}

// Load returns the source of a resolved module. The default reads the file
// as UTF-8 text.
func (d *Driver) Load(ctx context.Context, id string) (*Source, error) {
	read := func() ([]byte, error) { return d.readFile(id) }
	for _, p := range d.plugins {
		l, ok := p.(Loader)
		if !ok {
			continue
		}
		src, err := l.Load(ctx, id, read)
		if err != nil {
			return nil, &HookError{Hook: "load", Plugin: p.Name(), ID: id, Err: err}
		}
		if src != nil {
			return src, nil
		}
	}

	data, err := read()
	if err != nil {
		return nil, err
	}
	return &Source{Code: string(data)}, nil
}

// Transform runs every Transformer over src in order.
func (d *Driver) Transform(ctx context.Context, src *Source, id string) (*Source, error) {
	cur := *src
	for _, p := range d.plugins {
		t, ok := p.(Transformer)
		if !ok {
			continue
		}
		out, err := t.Transform(ctx, &cur, id)
		if err != nil {
			return nil, &HookError{Hook: "transform", Plugin: p.Name(), ID: id, Err: err}
		}
		cur = layer(cur, out)
	}
	return &cur, nil
}

// layer merges a transform result over the current source. New code
// invalidates a syntax tree and map that the result does not replace.
func layer(cur Source, out *Source) Source {
	if out == nil {
		return cur
	}
	if out.Code != "" && out.Code != cur.Code {
		cur.Code = out.Code
		cur.AST = nil
		cur.Map = nil
	}
	if out.AST != nil {
		cur.AST = out.AST
	}
	if out.Map != nil {
		cur.Map = out.Map
	}
	return cur
}

// Parse produces a syntax tree for code. The default is the tree-sitter
// based parser.
func (d *Driver) Parse(ctx context.Context, code string, opts ParseOptions) (*ast.Node, error) {
	if opts.SourceType == "" {
		opts.SourceType = "module"
	}
	for _, p := range d.plugins {
		ps, ok := p.(Parser)
		if !ok {
			continue
		}
		root, err := ps.Parse(ctx, code, opts)
		if err != nil {
			return nil, &HookError{Hook: "parse", Plugin: p.Name(), ID: opts.SourceFile, Err: err}
		}
		if root != nil {
			return root, nil
		}
	}
	return jsparse.Parse(ctx, code, jsparse.Options{Filename: opts.SourceFile})
}
