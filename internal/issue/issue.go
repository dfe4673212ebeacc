// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	EntryNotFoundId Id = iota + 1
	ModuleNotFoundId
	ParseErrorId
	UnsupportedExportId
	UnresolvedDependencyId
	InvalidFormatId
	TransformFailedId
	ConfigLoadFailedId
	RuntimeErrorId
	HookFailedId
	DependencyCycleId
	PermissionDeniedId
	WatchFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	entryNotFoundIssue = &Issue{
		id: EntryNotFoundId,
		mdMsg: `
# Entry module not found!

The file given with --input (or ` + "`input`" + ` in pickup.cue) does not exist.

## Things you can try:
- Check the path, it is resolved against the current directory:
~~~
$ pickup build -i ./src/index.js
~~~

- Set the entry once in your project config:
~~~cue
input: "src/index.js"
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# A dependency could not be loaded!

An import statement points at a file that does not exist.

## Things you can try:
- Check the import specifier for typos and a missing extension
- Enable Node.js style resolution so that extensions, index files and
  node_modules are searched:
~~~cue
plugins: node_resolve: true
~~~`,
	}

	parseErrorIssue = &Issue{
		id: ParseErrorId,
		mdMsg: `
# Failed to parse a module!

The module contains a syntax error at the reported line and column.

## Common issues:
- TypeScript or JSX in a file the esbuild plugin does not handle
- A missing closing brace or parenthesis
- Import or export statements inside a block

## Things you can try:
- Rename TypeScript files to .ts or .tsx and keep the esbuild plugin enabled
- Run the file through node --check to confirm the error`,
	}

	unsupportedExportIssue = &Issue{
		id: UnsupportedExportId,
		mdMsg: `
# Unsupported export!

An export statement has a shape the bundler cannot rewrite.

## Things you can try:
- Declare the value first and export it by name:
~~~js
const value = compute();
export { value };
~~~`,
	}

	unresolvedDependencyIssue = &Issue{
		id: UnresolvedDependencyId,
		mdMsg: `
# Dependency was not resolved!

The module graph was built without resolving dependencies, so it cannot be
bundled. ` + "`pickup graph --shallow`" + ` only inspects the entry module.

## Things you can try:
- Build without --shallow`,
	}

	invalidFormatIssue = &Issue{
		id: InvalidFormatId,
		mdMsg: `
# Invalid output format!

Supported formats:
- ` + "`cjs`" + `: CommonJS, assigns module.exports
- ` + "`esm`" + `: ES module with top-level await

~~~
$ pickup build -i src/index.js -f esm
~~~`,
	}

	transformFailedIssue = &Issue{
		id: TransformFailedId,
		mdMsg: `
# A transform plugin failed!

esbuild could not compile a TypeScript or JSX module.

## Things you can try:
- Read the diagnostics above, they point at the offending line
- Check the tsconfig given with ` + "`tsconfig`" + ` in your config file`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your configuration file has syntax errors or invalid values.

## Config file locations (in order of precedence):
1. The file given with --config
2. ./pickup.cue, then ./pickup.toml
3. config.cue in the user config directory (see ` + "`pickup config path`" + `)

## Things you can try:
- Print the effective configuration:
~~~
$ pickup config show
~~~

- Write a fresh default file:
~~~
$ pickup config init
~~~`,
	}

	runtimeErrorIssue = &Issue{
		id: RuntimeErrorId,
		mdMsg: `
# The bundle threw an error!

` + "`pickup run`" + ` executes bundles in an embedded JavaScript engine that only
provides the ECMAScript built-ins and console.

## Common causes:
- Imports of Node.js core modules, which need a real Node.js
- A dynamic import whose argument is not a path inside the bundle
  ("Not Found Module")

## Things you can try:
- Build the bundle and run it with node instead:
~~~
$ pickup build -i src/index.js -o out.js && node out.js
~~~`,
	}

	hookFailedIssue = &Issue{
		id: HookFailedId,
		mdMsg: `
# The on-success hook failed!

The bundle was written, but the shell snippet given with --on-success exited
with an error. The hook runs in an embedded POSIX shell with PICKUP_OUTPUT and
PICKUP_FORMAT set.

## Things you can try:
- Run the snippet by hand to see its output`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Modules import each other!

A topological order does not exist because of the listed import cycle.
Bundling still works: circular imports see each other's exports as soon as
they are assigned.

## Things you can try:
- Move shared code into a module both sides import`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The output file or one of the sources could not be accessed.

## Things you can try:
- Check file/directory permissions
- Write the bundle somewhere you own with -o`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# File watching failed!

The watcher could not observe the project files.

## Things you can try:
- On Linux, raise the inotify watch limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~

- Narrow ` + "`watch.patterns`" + ` and add ` + "`watch.ignore`" + ` globs`,
	}

	issues = map[Id]*Issue{
		entryNotFoundIssue.Id():        entryNotFoundIssue,
		moduleNotFoundIssue.Id():       moduleNotFoundIssue,
		parseErrorIssue.Id():           parseErrorIssue,
		unsupportedExportIssue.Id():    unsupportedExportIssue,
		unresolvedDependencyIssue.Id(): unresolvedDependencyIssue,
		invalidFormatIssue.Id():        invalidFormatIssue,
		transformFailedIssue.Id():      transformFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		runtimeErrorIssue.Id():         runtimeErrorIssue,
		hookFailedIssue.Id():           hookFailedIssue,
		dependencyCycleIssue.Id():      dependencyCycleIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
		watchFailedIssue.Id():          watchFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
