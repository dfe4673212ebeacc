// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by pickup's tests: module tree
// fixtures (WriteTree, MustWriteFile, MustReadFile), environment overrides
// (MustSetenv, SetHomeDir) and a semaphore bounding container tests.
package testutil
