package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcherLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	w.Start()

	// A write must not wedge the watcher goroutine.
	if err := os.WriteFile(path, []byte("debug: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
}

func TestConfigWatcherRequiresPath(t *testing.T) {
	if _, err := NewConfigWatcher(""); err == nil {
		t.Fatal("empty path accepted")
	}
}
