// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteTree(t *testing.T) {
	t.Parallel()

	root := WriteTree(t, t.TempDir(), map[string]string{
		"src/main.js":       "import './lib/a.js';",
		"src/lib/a.js":      "export const a = 1;",
		"node_modules/x.js": "",
	})

	if got := MustReadFile(t, filepath.Join(root, "src", "lib", "a.js")); got != "export const a = 1;" {
		t.Errorf("MustReadFile() = %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "node_modules", "x.js")); err != nil {
		t.Errorf("empty file was not written: %v", err)
	}
}

func TestMustSetenv_Restores(t *testing.T) {
	const key = "PICKUP_TESTUTIL_ENV"
	restore := MustSetenv(t, key, "one")
	if os.Getenv(key) != "one" {
		t.Fatalf("%s = %q, want one", key, os.Getenv(key))
	}
	restore()
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s still set after restore", key)
	}
}

func TestSetHomeDir(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(SetHomeDir(t, dir))

	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	if got := os.Getenv(key); got != dir {
		t.Errorf("%s = %q, want %q", key, got, dir)
	}
}

func TestContainerParallelism(t *testing.T) {
	t.Cleanup(MustSetenv(t, "PICKUP_TEST_CONTAINER_PARALLEL", "3"))
	if got := containerParallelism(); got != 3 {
		t.Errorf("containerParallelism() = %d, want 3", got)
	}
}
