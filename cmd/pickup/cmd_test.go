// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pickup-cli/internal/config"
	"pickup-cli/internal/dag"
	"pickup-cli/internal/hook"
	"pickup-cli/internal/issue"
	"pickup-cli/internal/jsrun"
	"pickup-cli/internal/testutil"
	"pickup-cli/pkg/bundler"
	"pickup-cli/pkg/graph"
	"pickup-cli/pkg/jsparse"
)

// staticConfig is a config.Provider returning a fixed configuration.
type staticConfig struct {
	cfg  *config.Config
	path string
	err  error
}

func (s staticConfig) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	cfg, _, err := s.LoadWithPath(ctx, opts)
	return cfg, err
}

func (s staticConfig) LoadWithPath(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	cfg := config.DefaultConfig()
	if s.cfg != nil {
		c := *s.cfg
		cfg = &c
	}
	return cfg, s.path, nil
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the command tree with cfg and args.
func execute(t *testing.T, cfg *config.Config, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err = root.ExecuteContext(context.Background())

	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func projectTree(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, t.TempDir(), map[string]string{
		"src/index.js": "import { add } from './math.js';\n" +
			"import message from './msg.js';\n" +
			"console.log(message);\n" +
			"export const total = add(1, add(2, 3));\n",
		"src/math.js":   "export const add = (a, b) => a + b;\n",
		"src/msg.js":    "export default 'hello from pickup';\n",
		"src/a.js":      "import { b } from './b.js';\nexport const a = () => 'a' + b();\n",
		"src/b.js":      "import { a } from './a.js';\nexport const b = () => 'b';\nexport const viaA = () => a();\n",
		"src/broken.js": "export const = ;\n",
		"src/lost.js":   "import x from './nowhere.js';\nexport default x;\n",
	})
}

func TestBuildCommand_Stdout(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	res := execute(t, nil, "build", filepath.Join(dir, "src", "index.js"))
	if res.err != nil {
		t.Fatalf("build error: %v\nstderr: %s", res.err, res.stderr)
	}

	for _, want := range []string{
		"const createRequire = (modules) => {",
		"module.exports = _entry;",
		"module.exports.__esModule = true;",
		bundler.RequireParam,
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestBuildCommand_OutputAndHook(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	out := filepath.Join(dir, "dist", "bundle.mjs")
	res := execute(t, nil, "build",
		"-i", filepath.Join(dir, "src", "index.js"),
		"-o", out,
		"-f", "esm",
		"--on-success", `echo "hook $PICKUP_FORMAT"`,
	)
	if res.err != nil {
		t.Fatalf("build error: %v\nstderr: %s", res.err, res.stderr)
	}

	code := testutil.MustReadFile(t, out)
	if !strings.Contains(code, `export default _entry["default"];`) {
		t.Errorf("bundle is not esm:\n%s", code)
	}
	if !strings.Contains(res.stdout, "hook esm") {
		t.Errorf("stdout = %q, want hook output", res.stdout)
	}
	if !strings.Contains(res.stderr, "(3 modules, esm)") {
		t.Errorf("stderr = %q, want build summary", res.stderr)
	}
}

func TestBuildCommand_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	cfg := config.DefaultConfig()
	cfg.Input = filepath.Join(dir, "src", "index.js")
	cfg.Format = "esm"

	res := execute(t, cfg, "build")
	if res.err != nil {
		t.Fatalf("build error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "export const total = _entry[\"total\"];") {
		t.Errorf("config format esm not applied:\n%s", res.stdout)
	}

	res = execute(t, cfg, "build", "-f", "cjs")
	if res.err != nil {
		t.Fatalf("build error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "module.exports = _entry;") {
		t.Errorf("--format cjs did not override config:\n%s", res.stdout)
	}
}

func TestBuildCommand_Errors(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	src := func(name string) string { return filepath.Join(dir, "src", name) }

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"missing entry", []string{"build", src("missing.js")}, "failed to load entry module"},
		{"missing dependency", []string{"build", src("lost.js")}, "failed to load module"},
		{"syntax error", []string{"build", src("broken.js")}, "failed to parse module"},
		{"invalid format", []string{"build", src("index.js"), "-f", "amd"}, "failed to select output format"},
		{"no entry", []string{"build"}, "no entry module given"},
		{"invalid hook", []string{"build", src("index.js"), "--on-success", "if then"}, "parse script"},
		{"failing hook", []string{"build", src("index.js"), "-o", filepath.Join(dir, "out.js"), "--on-success", "exit 4"}, "failed to run on_success hook"},
		{"watch without output", []string{"build", src("index.js"), "--watch"}, "--watch requires --output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := execute(t, nil, tt.args...)
			var exitErr *ExitError
			if !errors.As(res.err, &exitErr) || exitErr.Code != 1 {
				t.Fatalf("error = %v, want ExitError with code 1", res.err)
			}
			if !strings.Contains(res.stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", res.stderr, tt.wantStderr)
			}
		})
	}
}

func TestBuildCommand_ConfigLoadFailure(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: staticConfig{err: errors.New("bad pickup.cue")},
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	root := NewRootCommand(app)
	root.SetArgs([]string{"build", "-v", "x.js"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("build succeeded with a broken config")
	}
	if !strings.Contains(stderr.String(), "bad pickup.cue") {
		t.Errorf("stderr = %q, want config error", stderr.String())
	}
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	for _, format := range []string{"cjs", "esm"} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			res := execute(t, nil, "run", filepath.Join(dir, "src", "index.js"), "-f", format, "--exports")
			if res.err != nil {
				t.Fatalf("run error: %v\nstderr: %s", res.err, res.stderr)
			}
			if !strings.Contains(res.stdout, "hello from pickup\n") {
				t.Errorf("stdout = %q, want console output", res.stdout)
			}
			if !strings.Contains(res.stdout, "total = 6\n") {
				t.Errorf("stdout = %q, want total = 6", res.stdout)
			}
			if strings.Contains(res.stdout, "__esModule") {
				t.Errorf("stdout = %q, interop marker must be hidden", res.stdout)
			}
		})
	}
}

func TestRunCommand_CircularImport(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)
	res := execute(t, nil, "run", filepath.Join(dir, "src", "a.js"), "--exports")
	if res.err != nil {
		t.Fatalf("run error: %v\nstderr: %s", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, "a = [Function]") {
		t.Errorf("stdout = %q, want a = [Function]", res.stdout)
	}
}

func TestRunCommand_RuntimeError(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteTree(t, t.TempDir(), map[string]string{
		"boom.js": "throw new Error('boom');\n",
	})
	res := execute(t, nil, "run", filepath.Join(dir, "boom.js"))
	if res.err == nil {
		t.Fatal("run succeeded, want failure")
	}
	if !strings.Contains(res.stderr, "failed to run bundle") || !strings.Contains(res.stderr, "boom") {
		t.Errorf("stderr = %q, want runtime error", res.stderr)
	}
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	dir := projectTree(t)

	t.Run("order", func(t *testing.T) {
		t.Parallel()

		res := execute(t, nil, "graph", filepath.Join(dir, "src", "index.js"), "--order")
		if res.err != nil {
			t.Fatalf("graph error: %v", res.err)
		}
		mathAt := strings.Index(res.stdout, "1. ")
		if mathAt < 0 || !strings.Contains(res.stdout[mathAt:], "math.js") {
			t.Errorf("stdout = %q, want math.js first in evaluation order", res.stdout)
		}
		if !strings.Contains(res.stdout, "3. ") || !strings.Contains(res.stdout, "index.js") {
			t.Errorf("stdout = %q, want index.js last", res.stdout)
		}
	})

	t.Run("cycles", func(t *testing.T) {
		t.Parallel()

		res := execute(t, nil, "graph", filepath.Join(dir, "src", "a.js"), "--order")
		if res.err != nil {
			t.Fatalf("graph error: %v", res.err)
		}
		if !strings.Contains(res.stdout, "↺ circular") {
			t.Errorf("stdout = %q, want circular marker", res.stdout)
		}
		if !strings.Contains(res.stdout, "Import cycles (1):") {
			t.Errorf("stdout = %q, want cycle report", res.stdout)
		}
	})

	t.Run("strict", func(t *testing.T) {
		t.Parallel()

		res := execute(t, nil, "graph", filepath.Join(dir, "src", "a.js"), "--order", "--strict")
		if res.err == nil {
			t.Fatal("graph --strict succeeded on a cyclic graph")
		}
		if !strings.Contains(res.stderr, "import cycle detected") {
			t.Errorf("stderr = %q, want cycle error", res.stderr)
		}
	})

	t.Run("shallow", func(t *testing.T) {
		t.Parallel()

		res := execute(t, nil, "graph", filepath.Join(dir, "src", "index.js"), "--shallow")
		if res.err != nil {
			t.Fatalf("graph error: %v", res.err)
		}
		if !strings.Contains(res.stdout, "(not resolved)") {
			t.Errorf("stdout = %q, want unresolved dependencies", res.stdout)
		}
	})
}

func TestClassifyBuildError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"entry", &graph.LoadError{Path: "/p/in.js", Err: os.ErrNotExist}, issue.EntryNotFoundId},
		{"dependency", &graph.LoadError{Path: "/p/dep.js", Importer: "/p/in.js", Err: os.ErrNotExist}, issue.ModuleNotFoundId},
		{"permission", &graph.LoadError{Path: "/p/in.js", Err: os.ErrPermission}, issue.PermissionDeniedId},
		{"syntax", &graph.LoadError{Path: "/p/in.js", Err: &jsparse.SyntaxError{Filename: "/p/in.js", Line: 1, Column: 2}}, issue.ParseErrorId},
		{"unresolved", &bundler.UnresolvedDependencyError{Importer: "/p/in.js", Path: "/p/dep.js"}, issue.UnresolvedDependencyId},
		{"format", &bundler.InvalidFormatError{Value: "amd"}, issue.InvalidFormatId},
		{"runtime", &jsrun.RuntimeError{Message: "Error: boom"}, issue.RuntimeErrorId},
		{"hook", &hook.ExitError{Code: 2}, issue.HookFailedId},
		{"cycle", &dag.CycleError{Cycles: [][]string{{"/a.js", "/b.js"}}}, issue.DependencyCycleId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classifyBuildError(tt.err, "in.js")
			var svcErr *ServiceError
			if !errors.As(got, &svcErr) {
				t.Fatalf("classifyBuildError() = %T, want *ServiceError", got)
			}
			if svcErr.IssueID != tt.want {
				t.Errorf("IssueID = %d, want %d", svcErr.IssueID, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}

	plain := errors.New("plain")
	if got := classifyBuildError(plain, ""); got != plain {
		t.Errorf("classifyBuildError(plain) = %v, want it unchanged", got)
	}
	if got := classifyBuildError(nil, ""); got != nil {
		t.Errorf("classifyBuildError(nil) = %v, want nil", got)
	}
}

func TestDescribeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "undefined"},
		{"number", int64(6), "6"},
		{"string", "hi", `"hi"`},
		{"object", map[string]any{"a": true}, `{"a":true}`},
		{"function", func() {}, "[Function]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := describeValue(tt.in); got != tt.want {
				t.Errorf("describeValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestServiceErrorRequiresErr(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("newServiceError(nil) did not panic")
		}
	}()
	_ = newServiceError(nil, issue.ParseErrorId)
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2026-01-15T10:00:00Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2026-01-15T10:00:00Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got, want := getVersionString(), "dev (built from source)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}
