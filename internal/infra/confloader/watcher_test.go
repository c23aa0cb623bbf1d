package confloader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// startWatcher watches path with the given settle period and returns a
// channel of reported paths.
func startWatcher(t *testing.T, path string, settle time.Duration) (*Watcher, <-chan string) {
	t.Helper()
	w, err := NewWatcher(
		WithWatcherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWatcherSettle(settle),
	)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	changed := make(chan string, 16)
	w.OnChange(func(p string) { changed <- p })
	w.StartAsync()
	t.Cleanup(func() { _ = w.Stop() })
	time.Sleep(50 * time.Millisecond)
	return w, changed
}

func expectChange(t *testing.T, changed <-chan string, want string) {
	t.Helper()
	select {
	case got := <-changed:
		if got != want {
			t.Errorf("changed path = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change was not reported")
	}
}

func expectQuiet(t *testing.T, changed <-chan string, d time.Duration) {
	t.Helper()
	select {
	case got := <-changed:
		t.Errorf("unexpected change reported for %q", got)
	case <-time.After(d):
	}
}

func TestWatcher_Write(t *testing.T) {
	path := writeFile(t, "sesspool.yaml", "log:\n  level: info\n")
	_, changed := startWatcher(t, path, 30*time.Millisecond)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changed, path)
}

func TestWatcher_BurstIsCoalesced(t *testing.T) {
	path := writeFile(t, "sesspool.yaml", "a: 0\n")
	// The settle period is far longer than the back-to-back writes take.
	_, changed := startWatcher(t, path, 300*time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("a: 1\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	expectChange(t, changed, path)
	expectQuiet(t, changed, 600*time.Millisecond)
}

func TestWatcher_AtomicReplace(t *testing.T) {
	path := writeFile(t, "sesspool.yaml", "log:\n  level: info\n")
	_, changed := startWatcher(t, path, 30*time.Millisecond)

	// Editors write a sibling and rename it over the original.
	tmp := filepath.Join(filepath.Dir(path), ".sesspool.yaml.swp")
	if err := os.WriteFile(tmp, []byte("log:\n  level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changed, path)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	path := writeFile(t, "sesspool.yaml", "a: 1\n")
	_, changed := startWatcher(t, path, 30*time.Millisecond)

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "proxy-settings.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 200*time.Millisecond)
}

func TestWatcher_StopDropsPending(t *testing.T) {
	path := writeFile(t, "sesspool.yaml", "a: 1\n")
	w, err := NewWatcher(WithWatcherSettle(100 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	w.OnChange(func(string) { calls.Add(1) })

	w.schedule(filepath.Clean(path))
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("callback ran %d times after Stop", calls.Load())
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Watch("/nonexistent/dir/sesspool.yaml"); err == nil {
		t.Error("Watch() expected error for a missing directory")
	}
}
