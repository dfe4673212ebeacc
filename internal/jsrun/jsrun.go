// SPDX-License-Identifier: MPL-2.0

// Package jsrun executes bundled programs in an embedded JavaScript engine.
//
// CommonJS bundles run as scripts with `module` and `exports` globals.
// ES module bundles produced by this project's bundler run inside an async
// function: their top-level export statements become assignments onto a
// result object. Only console.log, console.error and the ECMAScript built-ins
// are available.
package jsrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dop251/goja"
)

const exportsVar = "__pickup_exports__"

type (
	// Options configures a run.
	Options struct {
		// Filename is reported in stack traces.
		Filename string
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// Exports is the export object of a program, converted to Go values.
	Exports map[string]any

	// RuntimeError is an exception thrown by the program.
	RuntimeError struct {
		Message string
		Stack   string
	}
)

func (e *RuntimeError) Error() string {
	return e.Message
}

func (o *Options) defaults() {
	if o.Filename == "" {
		o.Filename = "bundle.js"
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

func newRuntime(ctx context.Context, opts Options) (*goja.Runtime, func()) {
	vm := goja.New()

	console := vm.NewObject()
	_ = console.Set("log", printer(opts.Stdout))
	_ = console.Set("info", printer(opts.Stdout))
	_ = console.Set("error", printer(opts.Stderr))
	_ = console.Set("warn", printer(opts.Stderr))
	_ = vm.Set("console", console)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return vm, func() { close(done) }
}

func printer(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// RunCommonJS runs a CommonJS program and returns module.exports.
func RunCommonJS(ctx context.Context, code string, opts Options) (Exports, error) {
	opts.defaults()
	vm, stop := newRuntime(ctx, opts)
	defer stop()

	module := vm.NewObject()
	exports := vm.NewObject()
	_ = module.Set("exports", exports)
	_ = vm.Set("module", module)
	_ = vm.Set("exports", exports)

	if _, err := vm.RunScript(opts.Filename, code); err != nil {
		return nil, convertError(err)
	}
	return toExports(vm, module.Get("exports"))
}

// RunESM runs an ES module bundle and returns its exports.
func RunESM(ctx context.Context, code string, opts Options) (Exports, error) {
	opts.defaults()
	vm, stop := newRuntime(ctx, opts)
	defer stop()

	script := "(async () => {\nconst " + exportsVar + " = {};\n" + rewriteModuleExports(code) +
		"\nreturn " + exportsVar + ";\n})()"
	v, err := vm.RunScript(opts.Filename, script)
	if err != nil {
		return nil, convertError(err)
	}

	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return nil, errors.New("module did not evaluate to a promise")
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return toExports(vm, p.Result())
	case goja.PromiseStateRejected:
		return nil, rejection(p.Result())
	default:
		return nil, errors.New("module evaluation did not settle")
	}
}

// rewriteModuleExports turns the top-level export statements of a bundle
// into assignments onto the result object.
func rewriteModuleExports(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "export const "):
			lines[i] = exportsVar + "." + strings.TrimPrefix(line, "export const ")
		case strings.HasPrefix(line, "export default "):
			lines[i] = exportsVar + "[\"default\"] = " + strings.TrimPrefix(line, "export default ")
		case strings.HasPrefix(line, "export { "):
			lines[i] = rewriteExportList(strings.TrimSuffix(strings.TrimPrefix(line, "export { "), " };"))
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteExportList(list string) string {
	var sb strings.Builder
	for _, item := range strings.Split(list, ", ") {
		local, name, found := strings.Cut(item, " as ")
		if !found {
			name = local
		}
		if !strings.HasPrefix(name, "\"") {
			name = "\"" + name + "\""
		}
		fmt.Fprintf(&sb, "%s[%s] = %s;", exportsVar, name, local)
	}
	return sb.String()
}

func toExports(vm *goja.Runtime, v goja.Value) (Exports, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Exports{}, nil
	}
	obj := v.ToObject(vm)
	out := make(Exports, len(obj.Keys()))
	for _, k := range obj.Keys() {
		out[k] = obj.Get(k).Export()
	}
	return out, nil
}

func convertError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &RuntimeError{Message: exc.Value().String(), Stack: exc.String()}
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("execution interrupted: %w", err)
	}
	return err
}

func rejection(v goja.Value) error {
	if v == nil {
		return &RuntimeError{Message: "promise rejected"}
	}
	return &RuntimeError{Message: v.String()}
}
