// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"pickup-cli/internal/config"
	"pickup-cli/internal/hook"
	"pickup-cli/internal/issue"
	"pickup-cli/internal/watch"
	"pickup-cli/pkg/bundler"
	"pickup-cli/pkg/graph"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// buildFlagValues holds the flags of `pickup build`.
type buildFlagValues struct {
	input     string
	output    string
	format    string
	minify    bool
	watch     bool
	onSuccess string
}

// buildRequest is the effective build input after merging flags over the
// configuration.
type buildRequest struct {
	Input     string
	Output    string
	Format    bundler.Format
	Minify    bool
	OnSuccess string
}

func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}

	cmd := &cobra.Command{
		Use:   "build [entry]",
		Short: "Bundle an entry module and its dependencies",
		Long: `Bundle an entry module and every module it imports into one program.

Without --output the bundle is printed to stdout. Flags override the values
of the configuration file.

` + SubtitleStyle.Render("Examples:") + `
  pickup build src/index.js
  pickup build -i src/index.ts -f esm -o dist/index.mjs --minify
  pickup build --watch --on-success 'node "$PICKUP_OUTPUT"'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "entry module")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the bundle to this file instead of stdout")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "output format: cjs or esm (default cjs)")
	cmd.Flags().BoolVar(&flags.minify, "minify", false, "minify the bundle with esbuild")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild when a module changes")
	cmd.Flags().StringVar(&flags.onSuccess, "on-success", "", "shell snippet to run after every successful build")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *buildFlagValues, args []string) error {
	ctx := cmd.Context()

	cfg, cfgPath, err := app.loadConfig(ctx, rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}
	verbose := resolveVerbose(rootFlags, cfg)
	logger := newLogger(app.stderr, verbose)
	if cfgPath != "" {
		logger.Debug("loaded configuration", "path", cfgPath)
	}

	req, err := newBuildRequest(cmd, cfg, flags, args)
	if err != nil {
		return app.fail(cmd, err, verbose)
	}

	p := newPipeline(cfg, logger)

	if flags.watch {
		if req.Output == "" {
			return app.fail(cmd, errors.New("--watch requires --output or an output field in the configuration"), verbose)
		}
		wd, err := os.Getwd()
		if err != nil {
			return app.fail(cmd, err, verbose)
		}
		if err := runWatchMode(ctx, app, p, cfg, req, wd, logger); err != nil {
			return app.fail(cmd, newServiceError(err, issue.WatchFailedId), verbose)
		}
		return nil
	}

	if _, err := buildOnce(ctx, app, p, req, logger); err != nil {
		return app.fail(cmd, err, verbose)
	}
	return nil
}

// newBuildRequest merges explicitly set flags over the configuration.
func newBuildRequest(cmd *cobra.Command, cfg *config.Config, flags *buildFlagValues, args []string) (buildRequest, error) {
	req := buildRequest{
		Input:     cfg.Input,
		Output:    cfg.Output,
		Minify:    cfg.Minify,
		OnSuccess: cfg.OnSuccess,
	}

	if len(args) > 0 {
		req.Input = args[0]
	}
	if cmd.Flags().Changed("input") {
		req.Input = flags.input
	}
	if cmd.Flags().Changed("output") {
		req.Output = flags.output
	}
	if cmd.Flags().Changed("minify") {
		req.Minify = flags.minify
	}
	if cmd.Flags().Changed("on-success") {
		req.OnSuccess = flags.onSuccess
	}

	formatValue := cfg.Format
	if cmd.Flags().Changed("format") {
		formatValue = flags.format
	}
	if formatValue == "" {
		formatValue = string(bundler.FormatCJS)
	}
	format, err := bundler.ParseFormat(formatValue)
	if err != nil {
		return buildRequest{}, classifyBuildError(err, "")
	}
	req.Format = format

	if req.Input == "" {
		return buildRequest{}, issue.NewErrorContext().
			WithOperation("build bundle").
			WithSuggestions(
				"Pass the entry module: pickup build -i src/index.js",
				"Or set input in pickup.cue",
			).
			Wrap(errors.New("no entry module given")).
			BuildError()
	}

	if req.OnSuccess != "" {
		if err := hook.Validate(req.OnSuccess); err != nil {
			return buildRequest{}, newServiceError(err, issue.HookFailedId)
		}
	}

	return req, nil
}

// buildOnce runs one build, writes its output and runs the success hook.
func buildOnce(ctx context.Context, app *App, p *pipeline, req buildRequest, logger *log.Logger) (*buildResult, error) {
	res, err := p.bundle(ctx, req.Input, req.Format, req.Minify)
	if err != nil {
		return nil, classifyBuildError(err, req.Input)
	}

	if req.Output == "" {
		fmt.Fprint(app.stdout, res.Code)
	} else {
		if err := writeOutput(req.Output, res.Code); err != nil {
			return nil, err
		}
		fmt.Fprintf(app.stderr, "%s Built %s (%d modules, %s) in %s\n",
			SuccessStyle.Render("✓"), CmdStyle.Render(req.Output), len(res.Modules), res.Format,
			res.Duration.Round(time.Millisecond))
	}
	logger.Debug("bundle emitted", "modules", len(res.Modules), "bytes", len(res.Code))

	if req.OnSuccess != "" {
		err := hook.Run(ctx, req.OnSuccess, hook.Build{Output: req.Output, Format: string(req.Format)}, hook.Options{
			Stdin:  app.stdin,
			Stdout: app.stdout,
			Stderr: app.stderr,
		})
		if err != nil {
			return res, classifyBuildError(err, req.Input)
		}
	}

	return res, nil
}

// runWatchMode builds once, then rebuilds whenever a module of the last
// successful graph, or a file below baseDir matching watch.patterns,
// changes. It blocks until ctx is cancelled (Ctrl+C).
func runWatchMode(ctx context.Context, app *App, p *pipeline, cfg *config.Config, req buildRequest, baseDir string, logger *log.Logger) error {
	var (
		w   *watch.Watcher
		err error
	)
	rebuild := func(ctx context.Context) {
		res, err := buildOnce(ctx, app, p, req, logger)
		if err != nil {
			fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, logger.GetLevel() == log.DebugLevel))
		}
		if res != nil {
			w.Track(modulePaths(res.Entry))
		}
	}

	w, err = watch.New(watch.Config{
		Patterns: cfg.Watch.Patterns,
		Ignore:   cfg.Watch.Ignore,
		Debounce: cfg.Watch.Debounce(),
		BaseDir:  baseDir,
		Logger:   logger,
		Stdout:   app.stdout,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stderr, "%s Detected %d change(s), rebuilding...\n",
				VerboseHighlightStyle.Render("→"), len(changed))
			rebuild(ctx)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	rebuild(ctx)
	fmt.Fprintf(app.stderr, "%s Watching for changes (Ctrl+C to stop)...\n", VerboseHighlightStyle.Render("→"))

	return w.Run(ctx)
}

// modulePaths lists the files of a graph, skipping virtual ids such as
// node: builtins.
func modulePaths(entry *graph.Module) []string {
	var paths []string
	for _, m := range graph.Modules(entry) {
		if _, err := os.Stat(m.Path); err == nil {
			paths = append(paths, m.Path)
		}
	}
	return paths
}
