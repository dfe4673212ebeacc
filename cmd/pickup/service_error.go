// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"pickup-cli/internal/config"
	"pickup-cli/internal/dag"
	"pickup-cli/internal/hook"
	"pickup-cli/internal/issue"
	"pickup-cli/internal/jsrun"
	"pickup-cli/pkg/bundler"
	"pickup-cli/pkg/graph"
	"pickup-cli/pkg/jsparse"
	"pickup-cli/pkg/plugins/esbuild"
)

// ServiceError is an error tagged with an issue catalog ID. The CLI layer
// renders the catalog entry below the error message in verbose mode.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the issue catalog ID for rendering help text.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the issue help section for svcErr.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil || svcErr.IssueID == 0 {
		return
	}

	catalogEntry := issue.Get(svcErr.IssueID)
	if catalogEntry == nil {
		return
	}
	rendered, err := catalogEntry.Render("dark")
	if err != nil {
		fmt.Fprintln(stderr, string(catalogEntry.MarkdownMsg()))
		return
	}
	fmt.Fprint(stderr, rendered)
}

// classifyBuildError turns a build pipeline failure into an actionable
// error tagged with the matching issue. entry is the requested input path.
func classifyBuildError(err error, entry string) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}

	var (
		syntaxErr      *jsparse.SyntaxError
		transformErr   *esbuild.TransformError
		unsupportedErr *graph.UnsupportedExportError
		unresolvedErr  *bundler.UnresolvedDependencyError
		loadErr        *graph.LoadError
		runtimeErr     *jsrun.RuntimeError
		hookExitErr    *hook.ExitError
		cycleErr       *dag.CycleError
	)

	ctx := issue.NewErrorContext().Wrap(err)
	var id issue.Id

	switch {
	case errors.As(err, &syntaxErr):
		id = issue.ParseErrorId
		ctx.WithOperation("parse module").WithResource(syntaxErr.Filename).
			WithSuggestion("Fix the syntax error at the reported line and column")
	case errors.As(err, &transformErr):
		id = issue.TransformFailedId
		ctx.WithOperation("transform module").WithResource(transformErr.ID).
			WithSuggestion("Check the TypeScript or JSX source and the tsconfig option")
	case errors.As(err, &unsupportedErr):
		id = issue.UnsupportedExportId
		ctx.WithOperation("rewrite exports").WithResource(unsupportedErr.Path).
			WithSuggestion("Declare the value first and export it by name")
	case errors.As(err, &unresolvedErr):
		id = issue.UnresolvedDependencyId
		ctx.WithOperation("bundle").WithResource(unresolvedErr.Importer).
			WithSuggestion("Bundle a graph built with dependency resolution (drop --shallow)")
	case errors.Is(err, bundler.ErrInvalidFormat):
		id = issue.InvalidFormatId
		ctx.WithOperation("select output format").
			WithSuggestion("Use --format cjs or --format esm")
	case errors.As(err, &loadErr) && errors.Is(err, os.ErrPermission):
		id = issue.PermissionDeniedId
		ctx.WithOperation("read module").WithResource(loadErr.Path).
			WithSuggestion("Check the file permissions")
	case errors.As(err, &loadErr) && errors.Is(err, os.ErrNotExist):
		if loadErr.Importer == "" || loadErr.Path == entry {
			id = issue.EntryNotFoundId
			ctx.WithOperation("load entry module").WithResource(loadErr.Path).
				WithSuggestion("Check the --input path or the input field of pickup.cue")
		} else {
			id = issue.ModuleNotFoundId
			ctx.WithOperation("load module").WithResource(loadErr.Path).
				WithSuggestions(
					"Check the import specifier in "+loadErr.Importer,
					"Enable plugins.node_resolve for extension and node_modules lookup",
				)
		}
	case errors.As(err, &runtimeErr):
		id = issue.RuntimeErrorId
		ctx.WithOperation("run bundle").
			WithSuggestion("Run with --verbose to see the JavaScript stack")
	case errors.As(err, &hookExitErr):
		id = issue.HookFailedId
		ctx.WithOperation("run on_success hook").
			WithSuggestion("Run the snippet by hand with PICKUP_OUTPUT set")
	case errors.As(err, &cycleErr):
		id = issue.DependencyCycleId
		ctx.WithOperation("order modules")
	case errors.Is(err, config.ErrInvalidConfig):
		id = issue.ConfigLoadFailedId
		ctx.WithOperation("load configuration")
	default:
		return err
	}

	return newServiceError(ctx.BuildError(), id)
}
