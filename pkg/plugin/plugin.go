// SPDX-License-Identifier: MPL-2.0

// Package plugin defines the hook chain that resolves, loads, transforms and
// parses modules.
//
// A plugin implements any subset of Resolver, Loader, Transformer and Parser.
// For every hook the Driver consults plugins in registration order and the
// first non-empty result wins; when no plugin answers, the built-in default
// applies. Transform is the exception: every Transformer runs in order and
// each result is layered over the previous source.
package plugin

import (
	"context"

	"pickup-cli/pkg/ast"
)

type (
	// Source is the loaded or transformed content of a module.
	Source struct {
		Code string
		// AST may be supplied by a loader or transformer to skip parsing.
		AST *ast.Node
		// Map is an optional source map produced alongside Code.
		Map []byte
	}

	// ResolveOptions carries context for a resolution request.
	ResolveOptions struct {
		// Entry is true when resolving the entry module.
		Entry bool
	}

	// ParseOptions configures a parse request.
	ParseOptions struct {
		// SourceType is always "module".
		SourceType string
		// SourceFile is the resolved path of the module being parsed.
		SourceFile string
	}

	// ReadFunc reads the raw bytes of the module being loaded.
	ReadFunc func() ([]byte, error)

	// Plugin is the base interface every plugin implements.
	Plugin interface {
		Name() string
	}

	// Resolver maps a specifier to a module path. An empty result defers to
	// the next plugin.
	Resolver interface {
		Plugin
		Resolve(ctx context.Context, id, importer string, opts ResolveOptions) (string, error)
	}

	// Loader produces the source for a resolved path. A nil result defers to
	// the next plugin.
	Loader interface {
		Plugin
		Load(ctx context.Context, id string, read ReadFunc) (*Source, error)
	}

	// Transformer rewrites a loaded source. A nil result keeps the source.
	Transformer interface {
		Plugin
		Transform(ctx context.Context, src *Source, id string) (*Source, error)
	}

	// Parser produces a syntax tree for code. A nil result defers to the next
	// plugin.
	Parser interface {
		Plugin
		Parse(ctx context.Context, code string, opts ParseOptions) (*ast.Node, error)
	}
)
