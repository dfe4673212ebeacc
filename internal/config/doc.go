// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE or
// TOML as the file format.
//
// A project file (pickup.cue or pickup.toml in the working directory) takes
// precedence over the user file, config.cue in the platform config directory
// (~/.config/pickup on Linux, ~/Library/Application Support/pickup on macOS,
// %APPDATA%\pickup on Windows). CUE files are validated against an embedded
// schema (config_schema.cue); both formats are checked by Config.IsValid.
package config
