// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pickup-cli/pkg/bundler"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
)

type (
	// Config holds the application configuration.
	Config struct {
		// Input is the entry module.
		Input string `json:"input" mapstructure:"input" toml:"input"`
		// Output is the bundle path; empty writes to stdout.
		Output string `json:"output" mapstructure:"output" toml:"output"`
		// Format is "cjs" or "esm".
		Format string `json:"format" mapstructure:"format" toml:"format"`
		// Minify runs the esbuild minifier over the bundle.
		Minify bool `json:"minify" mapstructure:"minify" toml:"minify"`
		// Tsconfig is the path of a tsconfig.json handed to esbuild.
		Tsconfig string `json:"tsconfig" mapstructure:"tsconfig" toml:"tsconfig"`
		// Define replaces global expressions at build time.
		Define map[string]string `json:"define" mapstructure:"define" toml:"define"`
		// OnSuccess is a shell snippet run after every successful build.
		OnSuccess string `json:"on_success" mapstructure:"on_success" toml:"on_success"`
		// Plugins toggles the built-in plugins
		Plugins PluginsConfig `json:"plugins" mapstructure:"plugins" toml:"plugins"`
		// Watch configures build --watch
		Watch WatchConfig `json:"watch" mapstructure:"watch" toml:"watch"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui" toml:"ui"`
	}

	// PluginsConfig toggles the built-in plugins.
	PluginsConfig struct {
		Esbuild     bool `json:"esbuild" mapstructure:"esbuild" toml:"esbuild"`
		NodeResolve bool `json:"node_resolve" mapstructure:"node_resolve" toml:"node_resolve"`
	}

	// WatchConfig configures rebuilds on file changes.
	WatchConfig struct {
		// Patterns are extra doublestar globs to watch besides the modules
		// of the graph.
		Patterns []string `json:"patterns" mapstructure:"patterns" toml:"patterns"`
		// Ignore are doublestar globs excluded from watching.
		Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore"`
		// DebounceMs is the quiet period before a rebuild.
		DebounceMs int `json:"debounce_ms" mapstructure:"debounce_ms" toml:"debounce_ms"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and error chains
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidWatchConfigError is returned when a WatchConfig has invalid fields.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Format: string(bundler.FormatCJS),
		Define: map[string]string{},
		Plugins: PluginsConfig{
			Esbuild:     true,
			NodeResolve: true,
		},
		Watch: WatchConfig{
			Patterns:   []string{},
			Ignore:     []string{},
			DebounceMs: 100,
		},
	}
}

// Debounce returns DebounceMs as a duration.
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// IsValid returns whether the WatchConfig has valid fields: a non-negative
// debounce and well-formed globs.
func (c WatchConfig) IsValid() (bool, []error) {
	var errs []error
	if c.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("debounce_ms must not be negative, got %d", c.DebounceMs))
	}
	for _, p := range append(append([]string{}, c.Patterns...), c.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("invalid glob pattern %q", p))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidWatchConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if c.Format != "" {
		if _, err := bundler.ParseFormat(c.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if strings.TrimSpace(c.Input) == "" && c.Input != "" {
		errs = append(errs, errors.New("input must not be whitespace"))
	}
	if valid, fieldErrs := c.Watch.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Error implements the error interface for InvalidWatchConfigError.
func (e *InvalidWatchConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid watch config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }
