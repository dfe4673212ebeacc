// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// startWatcher runs w in the background and returns a stop function that
// cancels it and checks the Run result.
func startWatcher(t *testing.T, w *Watcher) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Let the event loop start before files are written.
	time.Sleep(50 * time.Millisecond)

	return func() {
		t.Helper()
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancellation")
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{})

	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 100 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)

	for _, name := range []string{"a.js", "b.js", "c.js"} {
		writeFile(t, dir, name, "export const x = 1;")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)
	stop()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	for _, want := range []string{"a.js", "b.js", "c.js"} {
		if !slices.Contains(collected, want) {
			t.Errorf("changed = %v, want it to contain %q", collected, want)
		}
	}
}

func TestWatcherIgnorePatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fired := make(chan []string, 10)

	w, err := New(Config{
		BaseDir:  dir,
		Ignore:   []string{"**/*.log"},
		Debounce: 50 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)
	defer stop()

	writeFile(t, dir, "debug.log", "log")
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "main.js", "export default 1;")

	select {
	case changed := <-fired:
		if slices.Contains(changed, "debug.log") {
			t.Errorf("changed = %v, ignored debug.log must not appear", changed)
		}
		if !slices.Contains(changed, "main.js") {
			t.Errorf("changed = %v, want main.js", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestWatcherTrackedModules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/index.js", "import './dep.js';")
	writeFile(t, dir, "src/dep.js", "")
	writeFile(t, dir, "notes.txt", "")
	fired := make(chan []string, 10)

	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 50 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	w.Track([]string{filepath.Join(dir, "src", "index.js"), filepath.Join("src", "dep.js")})

	tracked := w.Tracked()
	want := []string{filepath.Join(dir, "src", "dep.js"), filepath.Join(dir, "src", "index.js")}
	if !slices.Equal(tracked, want) {
		t.Errorf("Tracked() = %v, want %v", tracked, want)
	}

	stop := startWatcher(t, w)
	defer stop()

	writeFile(t, dir, "notes.txt", "untracked")
	select {
	case changed := <-fired:
		t.Fatalf("untracked change fired callback with %v", changed)
	case <-time.After(200 * time.Millisecond):
	}

	writeFile(t, dir, "src/dep.js", "export const y = 2;")
	select {
	case changed := <-fired:
		if !slices.Equal(changed, []string{filepath.Join("src", "dep.js")}) {
			t.Errorf("changed = %v, want [src/dep.js]", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tracked change")
	}
}

func TestWatcherContextCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{
		BaseDir:  t.TempDir(),
		Debounce: 50 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)
	stop()
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		ignored bool
	}{
		{".git/config", true},
		{".git/objects/ab/cd1234", true},
		{"node_modules/react/index.js", true},
		{"src/node_modules/x/y.js", true},
		{"main.js.swp", true},
		{"main.js.swo", true},
		{"backup~", true},
		{".DS_Store", true},
		{"sub/.DS_Store", true},
		{"main.js", false},
		{"src/app.ts", false},
		{"pickup.cue", false},
		{".gitignore", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchAny(DefaultIgnores(), tt.path); got != tt.ignored {
				t.Errorf("matchAny(DefaultIgnores(), %q) = %v, want %v", tt.path, got, tt.ignored)
			}
		})
	}
}

func TestWatcherSkipIfBusy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var (
		mu      sync.Mutex
		calls   int
		changes [][]string
	)
	first := make(chan struct{})

	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 50 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			calls++
			n := calls
			changes = append(changes, changed)
			mu.Unlock()
			if n == 1 {
				close(first)
				time.Sleep(300 * time.Millisecond)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)

	writeFile(t, dir, "one.js", "1")
	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first callback")
	}
	writeFile(t, dir, "two.js", "2")

	time.Sleep(800 * time.Millisecond)
	stop()

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (deferred change must still be delivered)", calls)
	}
	if !slices.Contains(changes[1], "two.js") {
		t.Errorf("second callback changed = %v, want two.js", changes[1])
	}
}

func TestWatcherClearScreen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var stdout bytes.Buffer
	var mu sync.Mutex
	done := make(chan struct{})

	w, err := New(Config{
		BaseDir:     dir,
		Debounce:    50 * time.Millisecond,
		ClearScreen: true,
		Stdout:      &lockedWriter{mu: &mu, w: &stdout},
		Logger:      quietLogger(),
		OnChange: func(context.Context, []string) error {
			select {
			case <-done:
			default:
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)
	defer stop()

	writeFile(t, dir, "a.js", "")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(stdout.String(), "\033[2J\033[H") {
		t.Errorf("stdout = %q, want ANSI clear sequence", stdout.String())
	}
}

func TestWatcherInvalidPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"watch", Config{Patterns: []string{"src/[.js"}}},
		{"ignore", Config{Ignore: []string{"{a,b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.BaseDir = t.TempDir()
			cfg.Logger = quietLogger()
			_, err := New(cfg)
			if !errors.Is(err, doublestar.ErrBadPattern) {
				t.Errorf("New() error = %v, want ErrBadPattern", err)
			}
		})
	}
}

func TestWatcherDoubleRunError(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)
	defer stop()

	if err := w.Run(context.Background()); !errors.Is(err, ErrRunTwice) {
		t.Errorf("second Run() error = %v, want ErrRunTwice", err)
	}
}

func TestWatcherPatternFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fired := make(chan []string, 10)

	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.json"},
		Debounce: 50 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stop := startWatcher(t, w)
	defer stop()

	writeFile(t, dir, "readme.md", "x")
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "data.json", "{}")

	select {
	case changed := <-fired:
		if !slices.Equal(changed, []string{"data.json"}) {
			t.Errorf("changed = %v, want [data.json]", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pattern match")
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
