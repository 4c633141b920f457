package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heels.yaml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	var changed []string
	w := NewFileWatcher([]string{path}, time.Second, func(p string) { changed = append(changed, p) })
	w.scanAll(true)
	w.scanAll(false)
	if len(changed) != 0 {
		t.Fatalf("no change expected, got %v", changed)
	}

	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	w.scanAll(false)
	if len(changed) != 1 || changed[0] != path {
		t.Fatalf("expected one change for %s, got %v", path, changed)
	}
}

func TestFileWatcherSeesCreatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heels.yaml")
	var n int
	w := NewFileWatcher([]string{path}, time.Second, func(string) { n++ })
	w.scanAll(true)
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.scanAll(false)
	if n != 1 {
		t.Fatalf("file created after start should be reported once, got %d", n)
	}
}
