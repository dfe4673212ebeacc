// SPDX-License-Identifier: MPL-2.0

// Package noderesolve resolves module specifiers the way Node.js does:
// core modules map to node: ids, relative specifiers are tried with the
// usual extensions and index files, and bare specifiers are looked up in
// node_modules directories walking up from the importer.
package noderesolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pickup-cli/pkg/plugin"
)

// Scheme prefixes the resolved ids of core modules.
const Scheme = "node:"

// Extensions are tried, in order, for specifiers without a loadable file.
var Extensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx"}

type (
	// Plugin is a plugin.Resolver and plugin.Loader for Node.js style
	// module resolution.
	Plugin struct {
		getwd func() (string, error)
	}

	// Option configures a Plugin.
	Option func(*Plugin)

	packageJSON struct {
		Module string `json:"module"`
		Main   string `json:"main"`
	}
)

// WithWorkingDir fixes the directory bare specifiers fall back to.
func WithWorkingDir(dir string) Option {
	return func(p *Plugin) {
		p.getwd = func() (string, error) { return dir, nil }
	}
}

// New creates a Plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{getwd: os.Getwd}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return "node-resolve"
}

// Resolve implements plugin.Resolver. The entry module is left to the
// default resolution, and specifiers that cannot be found resolve to ""
// so that later plugins or the default get their turn.
func (p *Plugin) Resolve(ctx context.Context, id, importer string, opts plugin.ResolveOptions) (string, error) {
	if opts.Entry {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if IsBuiltin(id) {
		return Scheme + strings.TrimPrefix(id, Scheme), nil
	}

	wd, err := p.getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	base := wd
	if importer != "" && !strings.HasPrefix(importer, Scheme) {
		base = filepath.Dir(importer)
	}

	if isPathSpecifier(id) {
		target := id
		if !filepath.IsAbs(target) {
			target = filepath.Join(base, id)
		}
		resolved, err := resolvePath(target)
		if err != nil {
			return "", err
		}
		return resolved, nil
	}

	for _, dir := range nodeModulesDirs(base, wd) {
		resolved, err := resolvePath(filepath.Join(dir, filepath.FromSlash(id)))
		if err != nil {
			return "", err
		}
		if resolved != "" {
			return resolved, nil
		}
	}
	return "", nil
}

// Load implements plugin.Loader for core modules, which are taken from the
// host's require at run time.
func (p *Plugin) Load(_ context.Context, id string, _ plugin.ReadFunc) (*plugin.Source, error) {
	name, ok := strings.CutPrefix(id, Scheme)
	if !ok {
		return nil, nil
	}
	return &plugin.Source{Code: fmt.Sprintf("export default globalThis.require('%s');\n", name)}, nil
}

func isPathSpecifier(id string) bool {
	return strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../") ||
		id == "." || id == ".." || filepath.IsAbs(id)
}

// nodeModulesDirs lists node_modules directories from base up to the root,
// followed by the working directory's when it is not already included.
func nodeModulesDirs(base, wd string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		nm := filepath.Join(dir, "node_modules")
		if !seen[nm] {
			seen[nm] = true
			dirs = append(dirs, nm)
		}
	}
	for dir := filepath.Clean(base); ; dir = filepath.Dir(dir) {
		if filepath.Base(dir) != "node_modules" {
			add(dir)
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}
	add(wd)
	return dirs
}

// resolvePath resolves target as a file, then with each extension, then
// as a package or index directory. It returns "" when nothing matches.
func resolvePath(target string) (string, error) {
	if isFile(target) {
		return target, nil
	}
	for _, ext := range Extensions {
		if isFile(target + ext) {
			return target + ext, nil
		}
	}
	if !isDir(target) {
		return "", nil
	}

	pkg, err := readPackageJSON(filepath.Join(target, "package.json"))
	if err != nil {
		return "", err
	}
	for _, main := range []string{pkg.Module, pkg.Main} {
		if main == "" {
			continue
		}
		if resolved := tryFile(filepath.Join(target, filepath.FromSlash(main))); resolved != "" {
			return resolved, nil
		}
	}
	return tryFile(filepath.Join(target, "index")), nil
}

func tryFile(target string) string {
	if isFile(target) {
		return target
	}
	for _, ext := range Extensions {
		if isFile(target + ext) {
			return target + ext
		}
	}
	if isDir(target) {
		return tryFile(filepath.Join(target, "index"))
	}
	return ""
}

func readPackageJSON(path string) (packageJSON, error) {
	var pkg packageJSON
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return pkg, nil
	}
	if err != nil {
		return pkg, err
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return pkg, fmt.Errorf("parse %s: %w", path, err)
	}
	return pkg, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
