// SPDX-License-Identifier: MPL-2.0

// Package hook runs the post-build shell snippet configured as on_success.
//
// Snippets are interpreted by mvdan.cc/sh, so they behave the same on every
// platform that has the invoked programs. The bundle location and format are
// exported to the snippet as PICKUP_OUTPUT and PICKUP_FORMAT.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// EnvOutput names the variable holding the written bundle path.
	EnvOutput = "PICKUP_OUTPUT"
	// EnvFormat names the variable holding the output format.
	EnvFormat = "PICKUP_FORMAT"
)

// ErrEmptyScript is returned when Run is given a blank snippet.
var ErrEmptyScript = errors.New("hook: empty script")

type (
	// Build describes the build that triggers a hook.
	Build struct {
		Output string
		Format string
	}

	// Options configures a hook run.
	Options struct {
		// Dir is the working directory; defaults to the process working
		// directory.
		Dir string
		// Env is the base environment as KEY=VALUE pairs; defaults to
		// os.Environ.
		Env    []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ExitError reports a snippet that finished with a non-zero status.
	ExitError struct {
		Code int
	}
)

func (e *ExitError) Error() string {
	return fmt.Sprintf("hook exited with status %d", e.Code)
}

// Validate parses script without running it.
func Validate(script string) error {
	if strings.TrimSpace(script) == "" {
		return ErrEmptyScript
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "on_success"); err != nil {
		return fmt.Errorf("hook: parse script: %w", err)
	}
	return nil
}

// Run interprets script after build. A non-zero exit status is returned as
// *ExitError; parse and interpreter failures are wrapped.
func Run(ctx context.Context, script string, build Build, opts Options) error {
	if strings.TrimSpace(script) == "" {
		return ErrEmptyScript
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "on_success")
	if err != nil {
		return fmt.Errorf("hook: parse script: %w", err)
	}

	dir := opts.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("hook: determine working directory: %w", err)
		}
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(env, EnvOutput+"="+build.Output, EnvFormat+"="+build.Format)

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(opts.Stdin, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("hook: create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Code: int(status)}
		}
		return fmt.Errorf("hook: run script: %w", err)
	}
	return nil
}
