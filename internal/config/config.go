// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"pickup-cli/internal/issue"
	"pickup-cli/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "pickup"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ProjectFileName is the name of a project config file (without extension).
	ProjectFileName = "pickup"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// TOMLFileExt is the extension of TOML config files.
	TOMLFileExt = "toml"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the pickup configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FindConfigFile returns the file loadWithOptions would read, or "" when
// only defaults apply. Lookup order: the explicit path, ./pickup.cue,
// ./pickup.toml, then config.cue in the user config directory.
func FindConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'pickup config init' to create a configuration file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	for _, ext := range []string{ConfigFileExt, TOMLFileExt} {
		local := filepath.Join(workDir, ProjectFileName+"."+ext)
		if fileExists(local) {
			return local, nil
		}
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	userPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(userPath) {
		return userPath, nil
	}
	// If no config file found, use defaults (no error)
	return "", nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("input", defaults.Input)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("minify", defaults.Minify)
	v.SetDefault("tsconfig", defaults.Tsconfig)
	v.SetDefault("on_success", defaults.OnSuccess)
	v.SetDefault("plugins.esbuild", defaults.Plugins.Esbuild)
	v.SetDefault("plugins.node_resolve", defaults.Plugins.NodeResolve)
	v.SetDefault("watch.patterns", defaults.Watch.Patterns)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	resolvedPath, err := FindConfigFile(opts)
	if err != nil {
		return nil, "", err
	}

	define := defaults.Define
	if resolvedPath != "" {
		load := loadCUEIntoViper
		syntax := "CUE"
		if strings.EqualFold(filepath.Ext(resolvedPath), "."+TOMLFileExt) {
			load = loadTOMLIntoViper
			syntax = "TOML"
		}
		if define, err = load(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion(fmt.Sprintf("Check that the file contains valid %s syntax", syntax)).
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'pickup config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Define = define

	// TOML files bypass the CUE schema, and globs are never checked by it.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Use 'cjs' or 'esm' for format").
			WithSuggestion("Check the glob syntax of watch.patterns and watch.ignore").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against the #Config schema and
// merges its contents into Viper. Decoding goes to a map so that unset
// fields keep their Viper defaults.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configMap map[string]any
	if err := cueutil.Decode(configSchema, "#Config", data, &configMap, cueutil.WithFilename(path)); err != nil {
		return nil, err
	}
	return mergeConfigMap(v, configMap)
}

// loadTOMLIntoViper decodes a TOML file and merges it into Viper.
func loadTOMLIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	var configMap map[string]any
	if err := toml.Unmarshal(data, &configMap); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %s", path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mergeConfigMap(v, configMap)
}

// mergeConfigMap merges a decoded file into Viper and returns its define
// table. Define keys are dotted expressions, so they are kept out of Viper,
// which would split them into nested keys and lower-case them.
func mergeConfigMap(v *viper.Viper, configMap map[string]any) (map[string]string, error) {
	define := map[string]string{}
	if raw, ok := configMap["define"]; ok {
		table, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("define: expected a table, got %T", raw)
		}
		for k, val := range table {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("define.%s: expected a string, got %T", k, val)
			}
			define[k] = s
		}
		delete(configMap, "define")
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	return define, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless the
// file already exists. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pickup configuration file\n\n")

	if cfg.Input != "" {
		sb.WriteString(fmt.Sprintf("input: %q\n", cfg.Input))
	}
	if cfg.Output != "" {
		sb.WriteString(fmt.Sprintf("output: %q\n", cfg.Output))
	}
	sb.WriteString(fmt.Sprintf("format: %q\n", cfg.Format))
	sb.WriteString(fmt.Sprintf("minify: %v\n", cfg.Minify))
	if cfg.Tsconfig != "" {
		sb.WriteString(fmt.Sprintf("tsconfig: %q\n", cfg.Tsconfig))
	}
	if cfg.OnSuccess != "" {
		sb.WriteString(fmt.Sprintf("on_success: %q\n", cfg.OnSuccess))
	}

	if len(cfg.Define) > 0 {
		sb.WriteString("\ndefine: {\n")
		keys := make([]string, 0, len(cfg.Define))
		for k := range cfg.Define {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("\t%q: %q\n", k, cfg.Define[k]))
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nplugins: {\n")
	sb.WriteString(fmt.Sprintf("\tesbuild:      %v\n", cfg.Plugins.Esbuild))
	sb.WriteString(fmt.Sprintf("\tnode_resolve: %v\n", cfg.Plugins.NodeResolve))
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	sb.WriteString(fmt.Sprintf("\tpatterns:    %s\n", cueList(cfg.Watch.Patterns)))
	sb.WriteString(fmt.Sprintf("\tignore:      %s\n", cueList(cfg.Watch.Ignore)))
	sb.WriteString(fmt.Sprintf("\tdebounce_ms: %d\n", cfg.Watch.DebounceMs))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
