// SPDX-License-Identifier: MPL-2.0

// Package esbuild compiles TypeScript and JSX modules down to plain
// JavaScript with esbuild's transform API, and minifies finished bundles.
package esbuild

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"pickup-cli/pkg/plugin"

	"github.com/evanw/esbuild/pkg/api"
)

var loaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".jsx": api.LoaderJSX,
}

type (
	// Plugin is a plugin.Transformer for TypeScript and JSX sources.
	Plugin struct {
		tsconfigRaw string
		define      map[string]string
	}

	// Option configures a Plugin.
	Option func(*Plugin)

	// TransformError carries esbuild's formatted diagnostics.
	TransformError struct {
		ID       string
		Messages []string
	}
)

func (e *TransformError) Error() string {
	return fmt.Sprintf("esbuild failed on %s:\n%s", e.ID, strings.TrimRight(strings.Join(e.Messages, ""), "\n"))
}

// WithTsconfigRaw passes the contents of a tsconfig.json to esbuild.
func WithTsconfigRaw(raw string) Option {
	return func(p *Plugin) {
		p.tsconfigRaw = raw
	}
}

// WithDefine replaces global identifiers with constant expressions. With a
// non-empty define set plain JavaScript modules are transformed as well.
func WithDefine(define map[string]string) Option {
	return func(p *Plugin) {
		p.define = define
	}
}

// New creates a Plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return "esbuild"
}

// Transform implements plugin.Transformer.
func (p *Plugin) Transform(ctx context.Context, src *plugin.Source, id string) (*plugin.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loader, ok := loaders[strings.ToLower(filepath.Ext(id))]
	if !ok {
		if len(p.define) == 0 {
			return nil, nil
		}
		loader = api.LoaderJS
	}

	res := api.Transform(src.Code, api.TransformOptions{
		Loader:      loader,
		Target:      api.ESNext,
		Sourcefile:  id,
		Sourcemap:   api.SourceMapExternal,
		TsconfigRaw: p.tsconfigRaw,
		Define:      p.define,
	})
	if len(res.Errors) > 0 {
		return nil, &TransformError{ID: id, Messages: api.FormatMessages(res.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})}
	}
	return &plugin.Source{Code: string(res.Code), Map: res.Map}, nil
}

// Minifier is a bundler.PostProcessor that minifies an emitted program.
type Minifier struct {
	// ESM must be set for module output so that top-level await and
	// export statements are accepted.
	ESM bool
}

// PostProcess minifies code.
func (m Minifier) PostProcess(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ESNext,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
	}
	if m.ESM {
		opts.Format = api.FormatESModule
	}
	res := api.Transform(code, opts)
	if len(res.Errors) > 0 {
		return "", &TransformError{ID: "bundle", Messages: api.FormatMessages(res.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})}
	}
	return string(res.Code), nil
}
