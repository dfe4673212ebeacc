// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"

	"pickup-cli/internal/jsrun"
	"pickup-cli/pkg/bundler"

	"github.com/spf13/cobra"
)

// runFlagValues holds the flags of `pickup run`.
type runFlagValues struct {
	input   string
	format  string
	exports bool
}

func newRunCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &runFlagValues{}

	cmd := &cobra.Command{
		Use:   "run [entry]",
		Short: "Bundle an entry module and execute it",
		Long: `Bundle an entry module and execute the bundle in the embedded JavaScript
engine. Only the ECMAScript built-ins and console are available; Node.js
builtin modules cannot be used.

` + SubtitleStyle.Render("Examples:") + `
  pickup run src/index.js
  pickup run -i src/index.js -f esm --exports`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "entry module")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(bundler.FormatCJS), "bundle format to execute: cjs or esm")
	cmd.Flags().BoolVar(&flags.exports, "exports", false, "print the entry module's exports after the run")

	return cmd
}

func runRun(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *runFlagValues, args []string) error {
	ctx := cmd.Context()

	cfg, _, err := app.loadConfig(ctx, rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}
	verbose := resolveVerbose(rootFlags, cfg)

	input := cfg.Input
	if len(args) > 0 {
		input = args[0]
	}
	if cmd.Flags().Changed("input") {
		input = flags.input
	}
	if input == "" {
		return app.fail(cmd, errors.New("no entry module given; pass --input or set input in pickup.cue"), verbose)
	}

	format, err := bundler.ParseFormat(flags.format)
	if err != nil {
		return app.fail(cmd, classifyBuildError(err, input), verbose)
	}

	p := newPipeline(cfg, newLogger(app.stderr, verbose))
	res, err := p.bundle(ctx, input, format, false)
	if err != nil {
		return app.fail(cmd, classifyBuildError(err, input), verbose)
	}

	opts := jsrun.Options{Filename: displayPath(res.Entry.Path), Stdout: app.stdout, Stderr: app.stderr}
	var exports jsrun.Exports
	if format.IsAsync() {
		exports, err = jsrun.RunESM(ctx, res.Code, opts)
	} else {
		exports, err = jsrun.RunCommonJS(ctx, res.Code, opts)
	}
	if err != nil {
		var runtimeErr *jsrun.RuntimeError
		if verbose && errors.As(err, &runtimeErr) && runtimeErr.Stack != "" {
			fmt.Fprintln(app.stderr, VerboseStyle.Render(runtimeErr.Stack))
		}
		return app.fail(cmd, classifyBuildError(err, input), verbose)
	}

	if flags.exports {
		printExports(app.stdout, exports)
	}
	return nil
}

// printExports writes one `name = value` line per export, sorted by name.
// Functions print as [Function]; other values as JSON when possible. The
// interop marker of cjs bundles is skipped.
func printExports(w io.Writer, exports jsrun.Exports) {
	for _, name := range slices.Sorted(maps.Keys(exports)) {
		if name == "__esModule" {
			continue
		}
		fmt.Fprintf(w, "%s = %s\n", name, describeValue(exports[name]))
	}
}

func describeValue(v any) string {
	if v == nil {
		return "undefined"
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return "[Function]"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
