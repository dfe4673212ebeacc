// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"pickup-cli/internal/dag"
	"pickup-cli/internal/issue"
	"pickup-cli/pkg/graph"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"
)

// graphFlagValues holds the flags of `pickup graph`.
type graphFlagValues struct {
	input   string
	order   bool
	shallow bool
	strict  bool
	unused  bool
}

func newGraphCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &graphFlagValues{}

	cmd := &cobra.Command{
		Use:   "graph [entry]",
		Short: "Print the module graph of an entry module",
		Long: `Print the module graph of an entry module as a tree.

Edges that close a cycle, or reach a module already placed in the tree, are
marked as circular; the bundle resolves them through the runtime cache.
With --order the modules are also listed in dependency order, or the import
cycles that prevent such an order are reported.

` + SubtitleStyle.Render("Examples:") + `
  pickup graph src/index.js
  pickup graph -i src/index.js --order --unused
  pickup graph -i src/index.js --order --strict   Fail on import cycles`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "entry module")
	cmd.Flags().BoolVar(&flags.order, "order", false, "list modules in dependency order")
	cmd.Flags().BoolVar(&flags.shallow, "shallow", false, "only parse the entry module")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "with --order, fail when the graph has import cycles")
	cmd.Flags().BoolVar(&flags.unused, "unused", false, "annotate modules with imports that are never referenced")

	return cmd
}

func runGraph(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *graphFlagValues, args []string) error {
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

	p := newPipeline(cfg, newLogger(app.stderr, verbose))
	entry, err := p.graph(ctx, input, !flags.shallow)
	if err != nil {
		return app.fail(cmd, classifyBuildError(err, input), verbose)
	}

	fmt.Fprintln(app.stdout, renderModuleTree(entry, flags.unused))

	if !flags.order {
		return nil
	}

	order, err := moduleOrder(entry).TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if !errors.As(err, &cycleErr) {
			return app.fail(cmd, err, verbose)
		}
		printCycles(app.stdout, cycleErr)
		if flags.strict {
			return app.fail(cmd, newServiceError(cycleErr, issue.DependencyCycleId), verbose)
		}
		return nil
	}

	fmt.Fprintln(app.stdout)
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("Evaluation order:"))
	for i, path := range order {
		fmt.Fprintf(app.stdout, "  %d. %s\n", i+1, displayPath(path))
	}
	return nil
}

// renderModuleTree draws entry and its dependencies with lipgloss/tree.
func renderModuleTree(entry *graph.Module, unused bool) string {
	t := tree.Root(TitleStyle.Render(moduleLabel(entry, unused))).
		Enumerator(tree.RoundedEnumerator)
	addDependencies(t, entry, unused)
	return t.String()
}

func addDependencies(t *tree.Tree, m *graph.Module, unused bool) {
	for _, path := range m.StaticDeps {
		if child, ok := m.Children[path]; ok {
			label := CmdStyle.Render(moduleLabel(child, unused))
			if len(child.StaticDeps) == 0 && !hasDynamicImports(child) {
				t.Child(label)
				continue
			}
			sub := tree.Root(label).Enumerator(tree.RoundedEnumerator)
			addDependencies(sub, child, unused)
			t.Child(sub)
			continue
		}
		if _, ok := m.Circular[path]; ok {
			t.Child(WarningStyle.Render(displayPath(path) + " ↺ circular"))
			continue
		}
		t.Child(VerboseStyle.Render(displayPath(path) + " (not resolved)"))
	}

	for _, im := range m.Imports {
		if im.Kind == graph.DynamicImport {
			t.Child(VerboseStyle.Render("import(" + im.Specifier + ") dynamic"))
		}
	}
}

func hasDynamicImports(m *graph.Module) bool {
	for _, im := range m.Imports {
		if im.Kind == graph.DynamicImport {
			return true
		}
	}
	return false
}

func moduleLabel(m *graph.Module, unused bool) string {
	label := displayPath(m.Path)
	if !unused {
		return label
	}
	if names := m.UnusedImports(); len(names) > 0 {
		label += VerboseStyle.Render(" [unused: " + strings.Join(names, ", ") + "]")
	}
	return label
}

// moduleOrder builds the dependency graph of every module reachable from
// entry. An edge runs from a dependency to its importer.
func moduleOrder(entry *graph.Module) *dag.Graph {
	g := dag.New()
	for _, m := range graph.Modules(entry) {
		g.AddNode(m.Path)
	}
	for _, m := range graph.Modules(entry) {
		for _, path := range m.StaticDeps {
			if _, ok := m.Dependency(path); ok {
				g.AddEdge(path, m.Path)
			}
		}
	}
	return g
}

func printCycles(w io.Writer, cycleErr *dag.CycleError) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("Import cycles (%d):", len(cycleErr.Cycles))))
	for _, cycle := range cycleErr.Cycles {
		parts := make([]string, 0, len(cycle)+1)
		for _, path := range cycle {
			parts = append(parts, displayPath(path))
		}
		parts = append(parts, displayPath(cycle[0]))
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " → "))
	}
}
