// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for pickup.
//
// This package implements the Cobra command hierarchy for the pickup CLI:
// building bundles (optionally in watch mode), inspecting module graphs,
// running bundles in the embedded JavaScript engine and managing the
// configuration file.
package cmd
