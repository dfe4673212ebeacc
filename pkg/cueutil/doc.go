// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema.
//
// Loading follows three steps:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate, then decode into a Go value
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schema string
//
//	var m map[string]any
//	err := cueutil.Decode(schema, "#Config", data, &m,
//	    cueutil.WithFilename("pickup.cue"),
//	)
//
// Errors carry the CUE path of the offending field.
package cueutil
