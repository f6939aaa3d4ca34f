// Package workspace implements the workspace loader (spec.md §4.H): a
// reference-counted handle onto a checked-out (repo, branch) working tree,
// so concurrent query and indexing operations can share one checkout
// instead of racing on disk state, and so the tree is discarded once
// nothing references it.
//
// Grounded on the teacher's internal/util/safe_map.go (the concurrent
// registry shape) and internal/util/walk.go's WalkDirTree, which Discover
// calls directly for the directory scan.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/util"
)

// excludedDirs mirrors the teacher's config.ExcludePatterns intent for a
// fixed, always-on set of non-source directories, grounded on
// internal/config/config.go's ExcludePatterns field.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".venv":        true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
}

// Handle is a reference-counted checkout of one (repo, branch). Callers
// must call Release exactly once per Acquire.
type Handle struct {
	RepoPath   string
	BranchName string
	RootDir    string

	mu       sync.Mutex
	refCount int
	logger   *zap.Logger
}

func (h *Handle) addRef() {
	h.mu.Lock()
	h.refCount++
	h.mu.Unlock()
}

// Loader is the (repo_path, branch) keyed handle cache. One Loader is
// shared across the indexing orchestrator and the query orchestrator.
type Loader struct {
	mu      sync.Mutex
	keyLock map[string]*sync.Mutex
	handles map[string]*Handle
	logger  *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		keyLock: make(map[string]*sync.Mutex),
		handles: make(map[string]*Handle),
		logger:  logger,
	}
}

func key(repoPath, branchName string) string {
	return repoPath + "@" + branchName
}

// lockFor returns the per-key mutex, creating it if absent. Holding this
// lock serializes Acquire/Release for exactly one (repo_path, branch),
// while distinct keys proceed concurrently.
func (l *Loader) lockFor(k string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.keyLock[k]
	if !ok {
		m = &sync.Mutex{}
		l.keyLock[k] = m
	}
	return m
}

// Acquire returns the shared Handle for (repoPath, branchName), creating
// it via rootDir (the already-checked-out working tree root, produced by
// the git tracker) if this is the first caller to reference it.
func (l *Loader) Acquire(repoPath, branchName, rootDir string) (*Handle, error) {
	k := key(repoPath, branchName)
	keyMu := l.lockFor(k)
	keyMu.Lock()
	defer keyMu.Unlock()

	l.mu.Lock()
	h, ok := l.handles[k]
	l.mu.Unlock()

	if ok {
		h.addRef()
		return h, nil
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q not available: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", rootDir)
	}

	h = &Handle{RepoPath: repoPath, BranchName: branchName, RootDir: rootDir, refCount: 1, logger: l.logger}
	l.mu.Lock()
	l.handles[k] = h
	l.mu.Unlock()
	return h, nil
}

// Release decrements the handle's reference count and disposes of it
// once it reaches zero, removing it from the cache so a later Acquire
// rebuilds it fresh.
func (l *Loader) Release(h *Handle) {
	h.mu.Lock()
	h.refCount--
	dispose := h.refCount <= 0
	h.mu.Unlock()

	if !dispose {
		return
	}

	k := key(h.RepoPath, h.BranchName)
	l.mu.Lock()
	if cur, ok := l.handles[k]; ok && cur == h {
		delete(l.handles, k)
	}
	l.mu.Unlock()
}

// RefCount reports the handle's current reference count, for tests and
// diagnostics.
func (h *Handle) RefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refCount
}

// Discover walks the handle's root directory and returns every regular
// file path (relative to RootDir), skipping excludedDirs. Delegates to
// util.WalkDirTree for the actual traversal, so discovery on a large
// checkout is split across a small worker pool instead of walking
// single-threaded.
func Discover(h *Handle) ([]string, error) {
	var mu sync.Mutex
	var paths []string

	logger := h.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	skip := func(path string, isDir bool) bool {
		if !isDir {
			return false
		}
		rel, err := filepath.Rel(h.RootDir, path)
		if err != nil || rel == "." {
			return false
		}
		return excludedDirs[filepath.Base(rel)]
	}

	walkFn := func(path string, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(h.RootDir, path)
		if relErr != nil {
			return nil
		}
		mu.Lock()
		paths = append(paths, rel)
		mu.Unlock()
		return nil
	}

	if err := util.WalkDirTree(h.RootDir, walkFn, skip, logger, 0, 2); err != nil {
		return nil, fmt.Errorf("discovery walk failed: %w", err)
	}
	return paths, nil
}
