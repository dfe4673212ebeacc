// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pickup-cli/internal/config"
	"pickup-cli/pkg/bundler"
	"pickup-cli/pkg/graph"
	"pickup-cli/pkg/plugin"
	"pickup-cli/pkg/plugins/esbuild"
	"pickup-cli/pkg/plugins/noderesolve"

	"github.com/charmbracelet/log"
)

type (
	// pipeline turns an entry module into a bundle using the plugins the
	// configuration enables.
	pipeline struct {
		cfg    *config.Config
		logger *log.Logger
	}

	// buildResult is the outcome of one successful bundle.
	buildResult struct {
		Code     string
		Entry    *graph.Module
		Modules  []*graph.Module
		Format   bundler.Format
		Duration time.Duration
	}
)

func newPipeline(cfg *config.Config, logger *log.Logger) *pipeline {
	return &pipeline{cfg: cfg, logger: logger}
}

// plugins returns the enabled plugins in chain order. Node resolution runs
// first so that bare specifiers never reach the default resolver.
func (p *pipeline) plugins() ([]plugin.Plugin, error) {
	var plugins []plugin.Plugin

	if p.cfg.Plugins.NodeResolve {
		plugins = append(plugins, noderesolve.New())
	}

	if p.cfg.Plugins.Esbuild {
		var opts []esbuild.Option
		if p.cfg.Tsconfig != "" {
			raw, err := os.ReadFile(p.cfg.Tsconfig)
			if err != nil {
				return nil, fmt.Errorf("read tsconfig: %w", err)
			}
			opts = append(opts, esbuild.WithTsconfigRaw(string(raw)))
		}
		if len(p.cfg.Define) > 0 {
			opts = append(opts, esbuild.WithDefine(p.cfg.Define))
		}
		plugins = append(plugins, esbuild.New(opts...))
	}

	return plugins, nil
}

// graph builds the module graph for input.
func (p *pipeline) graph(ctx context.Context, input string, resolveDeps bool) (*graph.Module, error) {
	plugins, err := p.plugins()
	if err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(
		plugin.NewDriver(plugin.WithPlugins(plugins...)),
		graph.WithLogger(p.logger),
	)
	return builder.CreateMainGraph(ctx, input, resolveDeps)
}

// bundle builds the full graph for input and emits it in format.
func (p *pipeline) bundle(ctx context.Context, input string, format bundler.Format, minify bool) (*buildResult, error) {
	start := time.Now()

	entry, err := p.graph(ctx, input, true)
	if err != nil {
		return nil, err
	}

	opts := []bundler.Option{bundler.WithLogger(p.logger)}
	if minify {
		opts = append(opts, bundler.WithPostProcessor(esbuild.Minifier{ESM: format.IsAsync()}))
	}

	code, err := bundler.Bundle(ctx, entry, format, opts...)
	if err != nil {
		return nil, err
	}

	return &buildResult{
		Code:     code,
		Entry:    entry,
		Modules:  graph.Modules(entry),
		Format:   format,
		Duration: time.Since(start),
	}, nil
}

// writeOutput writes code to path, creating parent directories.
func writeOutput(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

// displayPath renders path relative to the working directory when it lies
// below it.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
