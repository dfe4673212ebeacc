// SPDX-License-Identifier: MPL-2.0

// Package virtual serves modules from memory. Paths are slash separated and
// absolute; relative specifiers resolve against the importer's directory.
package virtual

import (
	"context"
	"path"
	"strings"

	"pickup-cli/pkg/plugin"
)

// Plugin resolves and loads modules from an in-memory file set.
type Plugin struct {
	files map[string]string
}

// New returns a Plugin serving files, keyed by absolute slash path.
func New(files map[string]string) *Plugin {
	cleaned := make(map[string]string, len(files))
	for p, code := range files {
		cleaned[path.Clean("/"+p)] = code
	}
	return &Plugin{files: cleaned}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return "virtual"
}

// Resolve implements plugin.Resolver.
func (p *Plugin) Resolve(_ context.Context, id, importer string, _ plugin.ResolveOptions) (string, error) {
	var candidate string
	switch {
	case strings.HasPrefix(id, "/"):
		candidate = path.Clean(id)
	case importer != "":
		candidate = path.Join(path.Dir(importer), id)
	default:
		candidate = path.Clean("/" + id)
	}
	if _, ok := p.files[candidate]; ok {
		return candidate, nil
	}
	return "", nil
}

// Load implements plugin.Loader.
func (p *Plugin) Load(_ context.Context, id string, _ plugin.ReadFunc) (*plugin.Source, error) {
	code, ok := p.files[id]
	if !ok {
		return nil, nil
	}
	return &plugin.Source{Code: code}, nil
}
