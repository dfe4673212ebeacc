// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "load module"},
			want: "failed to load module",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "load module", Resource: "./src/main.js"},
			want: "failed to load module: ./src/main.js",
		},
		{
			name: "with cause",
			err:  &ActionableError{Operation: "parse module", Cause: errors.New("unexpected token")},
			want: "failed to parse module: unexpected token",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load module",
				Resource:  "./src/main.js",
				Cause:     errors.New("file not found"),
			},
			want: "failed to load module: ./src/main.js: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := NewErrorContext().WithOperation("bundle").Wrap(cause).BuildError()
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false, want true", err)
	}
	if (&ActionableError{Operation: "bundle"}).Unwrap() != nil {
		t.Error("Unwrap() without cause should return nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("no such file")
	err := &ActionableError{
		Operation:   "load module",
		Resource:    "./src/math.js",
		Suggestions: []string{"Check the import path", "Check file permissions"},
		Cause:       fmt.Errorf("read: %w", inner),
	}

	tests := []struct {
		name     string
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name:     "non-verbose",
			contains: []string{"failed to load module: ./src/math.js", "  • Check the import path", "  • Check file permissions"},
			excludes: []string{"Error chain:"},
		},
		{
			name:     "verbose",
			verbose:  true,
			contains: []string{"Error chain:", "  1. read: no such file", "  2. no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format(%v) missing %q in:\n%s", tt.verbose, want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format(%v) should not contain %q", tt.verbose, unwanted)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x.js").Build(); got != nil {
		t.Errorf("Build() without operation = %v, want nil", got)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	ctx := NewErrorContext().
		WithOperation("rewrite exports").
		WithResource("./a.js").
		WithSuggestion("one").
		WithSuggestions("two", "three")
	first := ctx.Build()
	ctx.WithSuggestion("four")

	if first.Operation != "rewrite exports" || first.Resource != "./a.js" {
		t.Errorf("Build() = %+v, want operation and resource set", first)
	}
	if len(first.Suggestions) != 3 {
		t.Errorf("len(Suggestions) = %d, want 3 (later additions must not leak)", len(first.Suggestions))
	}
}
