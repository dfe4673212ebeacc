// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"pickup-cli/internal/config"
	"pickup-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "pickup",
		Short: "A small JavaScript module bundler",
		Long: TitleStyle.Render("pickup") + SubtitleStyle.Render(" - A small JavaScript module bundler") + `

pickup follows the static and dynamic imports of an entry module, rewrites
every module's import and export statements into calls against a tiny
runtime loader and emits one self-contained program, either as CommonJS
(cjs) or as an ES module with top-level await (esm).

` + SubtitleStyle.Render("Quick Start:") + `
  1. Run pickup config init to create pickup.cue
  2. Set input to your entry module
  3. Run pickup build -o dist/bundle.js

` + SubtitleStyle.Render("Examples:") + `
  pickup build -i src/index.js              Print a cjs bundle to stdout
  pickup build -i src/index.ts -f esm -o out.mjs
  pickup build --watch                      Rebuild on every change
  pickup graph -i src/index.js --order      Show the module graph
  pickup run -i src/index.js                Bundle and execute`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./pickup.cue, ./pickup.toml or the user config)")

	rootCmd.AddCommand(
		newBuildCommand(app, flags),
		newGraphCommand(app, flags),
		newRunCommand(app, flags),
		newConfigCommand(app, flags),
		newCompletionCommand(),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with its status.
// This is called by main.main().
func Execute() {
	os.Exit(Run())
}

// Run runs the CLI with os.Args and returns the exit status.
func Run() int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}

	rootCmd := NewRootCommand(app)
	err = fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// resolveVerbose applies ui.verbose from the configuration unless the flag
// was set.
func resolveVerbose(flags *rootFlagValues, cfg *config.Config) bool {
	if flags.verbose {
		return true
	}
	return cfg != nil && cfg.UI.Verbose
}

// newLogger builds the logger shared by the build pipeline.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "pickup"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// fail prints err to the app's stderr, with issue guidance in verbose mode,
// and returns an ExitError so fang does not print it again.
func (a *App) fail(cmd *cobra.Command, err error, verboseMode bool) error {
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verboseMode))

	var svcErr *ServiceError
	if verboseMode && errors.As(err, &svcErr) {
		renderServiceError(a.stderr, svcErr)
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1}
}
