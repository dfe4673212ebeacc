// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Config: close({
	format?: "cjs" | "esm"
	minify?: bool
	watch?: close({
		patterns?: [...string]
	})
})
`

func TestDecode(t *testing.T) {
	t.Parallel()

	var got map[string]any
	err := Decode(testSchema, "#Config", []byte(`format: "esm"
watch: patterns: ["src/**/*.js"]
`), &got, WithFilename("pickup.cue"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got["format"] != "esm" {
		t.Errorf("format = %v, want esm", got["format"])
	}
	if _, ok := got["minify"]; ok {
		t.Error("unset optional field was decoded")
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		opts []Option
		want string
	}{
		{"invalid value", `format: "umd"`, nil, "pickup.cue: format"},
		{"unknown field", `output: "x.js"`, nil, "pickup.cue"},
		{"wrong type", `minify: "yes"`, nil, "minify"},
		{"syntax error", `format: `, nil, "pickup.cue"},
		{"too large", `format: "cjs"`, []Option{WithMaxFileSize(4)}, "exceeds maximum 4 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]any
			opts := append([]Option{WithFilename("pickup.cue")}, tt.opts...)
			err := Decode(testSchema, "#Config", []byte(tt.data), &got, opts...)
			if err == nil {
				t.Fatal("Decode() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Decode() error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestUnify_Concrete(t *testing.T) {
	t.Parallel()

	schema := "#Config: { input: string }\n"
	if _, err := Unify(schema, "#Config", []byte("{}")); err != nil {
		t.Errorf("Unify() non-concrete error = %v", err)
	}
	if _, err := Unify(schema, "#Config", []byte("{}"), WithConcrete(true)); err == nil {
		t.Error("Unify() concrete error = nil, want incomplete value error")
	}
}
