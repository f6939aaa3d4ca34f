package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireSharesHandleAndTracksRefCount(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(nil)

	h1, err := l.Acquire("repo1", "main", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := l.Acquire("repo1", "main", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected the same handle instance to be shared")
	}
	if h1.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", h1.RefCount())
	}

	l.Release(h1)
	if h1.RefCount() != 1 {
		t.Fatalf("expected refcount 1 after one release, got %d", h1.RefCount())
	}

	l.Release(h2)
	if h1.RefCount() != 0 {
		t.Fatalf("expected refcount 0 after both released, got %d", h1.RefCount())
	}

	h3, err := l.Acquire("repo1", "main", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h3 == h1 {
		t.Fatalf("expected a disposed handle to be rebuilt fresh, not reused")
	}
}

func TestAcquireFailsWhenRootMissing(t *testing.T) {
	l := NewLoader(nil)
	if _, err := l.Acquire("repo1", "main", "/no/such/dir"); err == nil {
		t.Fatalf("expected error for missing workspace root")
	}
}

func TestDiscoverSkipsExcludedDirsAndListsFiles(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	must(os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	must(os.WriteFile(filepath.Join(dir, "node_modules", "lib.js"), []byte("x"), 0o644))
	must(os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	must(os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	must(os.WriteFile(filepath.Join(dir, "src", "util.go"), []byte("package src"), 0o644))

	l := NewLoader(nil)
	h, err := l.Acquire("repo1", "main", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths, err := Discover(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := map[string]bool{}
	for _, p := range paths {
		found[p] = true
	}
	if found["node_modules/lib.js"] {
		t.Fatalf("expected node_modules to be excluded, got %v", paths)
	}
	if !found["main.go"] || !found[filepath.Join("src", "util.go")] {
		t.Fatalf("expected main.go and src/util.go to be discovered, got %v", paths)
	}
}
