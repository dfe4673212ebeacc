// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"pickup-cli/internal/config"

	"github.com/spf13/cobra"
)

// configKeys lists the keys accepted by `pickup config set`.
var configKeys = []string{
	"input", "output", "format", "minify", "tsconfig", "on_success",
	"plugins.esbuild", "plugins.node_resolve", "watch.debounce_ms", "ui.verbose",
}

// newConfigCommand creates the `pickup config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pickup configuration",
		Long: `Manage pickup configuration.

The first file found is used:
  1. the file given with --config
  2. ./pickup.cue
  3. ./pickup.toml
  4. config.cue in the user configuration directory
     (Linux: ~/.config/pickup, macOS: ~/Library/Application Support/pickup,
      Windows: %APPDATA%\pickup)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			showConfig(app.stdout, cfg, path)
			return nil
		},
	})

	var userInit bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default pickup.cue",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectFileName + "." + config.ConfigFileExt
			if userInit {
				dir, err := config.ConfigDir()
				if err != nil {
					return app.fail(cmd, err, rootFlags.verbose)
				}
				path = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			}
			created, err := config.CreateDefaultConfig(path)
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s already exists\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&userInit, "user", false, "write the user configuration instead of ./pickup.cue")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "User config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))

			active, err := config.FindConfigFile(config.LoadOptions{ConfigFilePath: rootFlags.configPath})
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			if active == "" {
				active = "(using defaults)"
			}
			fmt.Fprintf(app.stdout, "Active config file: %s\n", active)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set a value in the project configuration",
		Long:      "Set a value in the active CUE configuration file, or in ./pickup.cue when\nno CUE file is in use.\n\nValid keys: " + strings.Join(configKeys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: configKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setConfigValue(cmd, app, rootFlags, args[0], args[1]); err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	none := SubtitleStyle.Render("(not set)")

	str := func(s string) string {
		if s == "" {
			return none
		}
		return valueStyle.Render(s)
	}
	boolean := func(b bool) string { return valueStyle.Render(strconv.FormatBool(b)) }

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("input"), str(cfg.Input))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("output"), str(cfg.Output))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("format"), str(cfg.Format))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("minify"), boolean(cfg.Minify))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("tsconfig"), str(cfg.Tsconfig))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("on_success"), str(cfg.OnSuccess))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("define"))
	if len(cfg.Define) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, k := range slices.Sorted(maps.Keys(cfg.Define)) {
		fmt.Fprintf(w, "  %s = %s\n", k, valueStyle.Render(cfg.Define[k]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("plugins"))
	fmt.Fprintf(w, "  esbuild: %s\n", boolean(cfg.Plugins.Esbuild))
	fmt.Fprintf(w, "  node_resolve: %s\n", boolean(cfg.Plugins.NodeResolve))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("watch"))
	fmt.Fprintf(w, "  patterns: %s\n", valueStyle.Render(fmt.Sprint(cfg.Watch.Patterns)))
	fmt.Fprintf(w, "  ignore: %s\n", valueStyle.Render(fmt.Sprint(cfg.Watch.Ignore)))
	fmt.Fprintf(w, "  debounce_ms: %s\n", valueStyle.Render(strconv.Itoa(cfg.Watch.DebounceMs)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", boolean(cfg.UI.Verbose))
}

func setConfigValue(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, key, value string) error {
	cfg, path, err := app.loadConfig(cmd.Context(), rootFlags)
	if err != nil {
		return err
	}
	if path == "" || filepath.Ext(path) != "."+config.ConfigFileExt {
		path = config.ProjectFileName + "." + config.ConfigFileExt
	}

	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects true or false, got %q", key, value)
		}
		return b, nil
	}

	switch key {
	case "input":
		cfg.Input = value
	case "output":
		cfg.Output = value
	case "format":
		cfg.Format = strings.ToLower(strings.TrimSpace(value))
	case "tsconfig":
		cfg.Tsconfig = value
	case "on_success":
		cfg.OnSuccess = value
	case "minify":
		cfg.Minify, err = parseBool()
	case "plugins.esbuild":
		cfg.Plugins.Esbuild, err = parseBool()
	case "plugins.node_resolve":
		cfg.Plugins.NodeResolve, err = parseBool()
	case "ui.verbose":
		cfg.UI.Verbose, err = parseBool()
	case "watch.debounce_ms":
		cfg.Watch.DebounceMs, err = strconv.Atoi(value)
		if err != nil {
			err = fmt.Errorf("watch.debounce_ms expects an integer, got %q", value)
		}
	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(configKeys, ", "))
	}
	if err != nil {
		return err
	}

	if ok, errs := cfg.IsValid(); !ok {
		return errs[0]
	}

	if err := os.WriteFile(path, []byte(config.GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s in %s\n", SuccessStyle.Render("✓"), key, value, path)
	return nil
}
