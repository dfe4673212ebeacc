// SPDX-License-Identifier: MPL-2.0

package noderesolve

import "strings"

// builtinModules lists the top-level Node.js core modules, as reported by
// require('module').builtinModules without private or subpath entries.
var builtinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// IsBuiltin reports whether id names a Node.js core module, with or without
// the node: scheme. Subpaths such as fs/promises count as their top-level
// module.
func IsBuiltin(id string) bool {
	id = strings.TrimPrefix(id, Scheme)
	top, _, _ := strings.Cut(id, "/")
	return builtinModules[top]
}
