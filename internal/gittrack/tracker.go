// Package gittrack implements the Git tracker (spec.md §4.G): clone/open,
// fetch, branch state, diff-against-last-indexed-sha, and blob reads
// through the object database.
//
// The teacher's own internal/util/git.go shells out to the git binary
// (exec.Command), which cannot satisfy spec.md §6's "lookup tree/blob,
// diff two trees, traverse a tree, read blob text through the object
// database (never the working tree)" contract cleanly. This package is
// grounded instead on other_examples' go-git sandbox
// (c7365236_.../backend-git_engine.go.go), which demonstrates exactly
// those operations: ResolveRevision, CommitObject, tree1.Patch(tree2) for
// the two-tree diff, and commit.File(path).Contents() for object-database
// blob reads. See DESIGN.md for the substitution rationale.
package gittrack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/util"
)

// CredentialsProvider is the pluggable credentials callback spec.md §4.G
// and §6 require; authentication to remotes is delegated to the caller.
type CredentialsProvider func(remoteURL string) transport.AuthMethod

// BranchState is the tracker's in-memory record of a branch, mirrored into
// the store's Branch rows by the caller.
type BranchState struct {
	HeadCommitSHA    string
	IndexedCommitSHA string
	IndexState       model.IndexState
	LastIndexedAt    *time.Time
	LastAccessedAt   time.Time
}

// repoState is per-repository tracker state: the open working tree plus
// its tracked branches.
type repoState struct {
	mu       sync.Mutex
	repo     *git.Repository
	path     string
	remote   string
	branches map[string]*BranchState
}

// Tracker manages clone/fetch/diff for a fixed set of repositories. Clone
// and fetch are serialized per-repository via repoState.mu; reads (diff,
// blob fetch) are lock-free once the repository handle exists.
type Tracker struct {
	workDir string
	creds   CredentialsProvider

	mu    sync.RWMutex
	repos util.SafeMap[*repoState]
}

func NewTracker(workDir string, creds CredentialsProvider) *Tracker {
	return &Tracker{
		workDir: workDir,
		creds:   creds,
		repos:   *util.NewSafeMap[*repoState](),
	}
}

// EnsureClone opens the repository's working tree if present on disk,
// cloning it otherwise.
func (t *Tracker) EnsureClone(ctx context.Context, repoName, remoteURL string) error {
	if _, ok := t.repos.Get(repoName); ok {
		return nil
	}

	path := filepath.Join(t.workDir, sanitize(repoName))

	rs := &repoState{path: path, remote: remoteURL, branches: make(map[string]*BranchState)}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if repo, err := git.PlainOpen(path); err == nil {
		rs.repo = repo
		t.repos.Set(repoName, rs)
		return nil
	}

	opts := &git.CloneOptions{URL: remoteURL}
	if t.creds != nil {
		opts.Auth = t.creds(remoteURL)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, path, false, opts)
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", remoteURL, err)
	}

	rs.repo = repo
	t.repos.Set(repoName, rs)
	return nil
}

// EnsureBranch fetches origin, looks up origin/<branch>, and updates the
// in-memory branch state, flipping IndexState to Stale on a HEAD change or
// creating it Pending otherwise.
func (t *Tracker) EnsureBranch(ctx context.Context, repoName, branchName string) (*BranchState, error) {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return nil, fmt.Errorf("repository %q not cloned", repoName)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	fetchOpts := &git.FetchOptions{RemoteName: "origin"}
	if t.creds != nil {
		fetchOpts.Auth = t.creds(rs.remote)
	}
	if err := rs.repo.FetchContext(ctx, fetchOpts); err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	ref, err := rs.repo.Reference(plumbing.NewRemoteReferenceName("origin", branchName), true)
	if err != nil {
		return nil, fmt.Errorf("branch %q not found on origin: %w", branchName, err)
	}
	headSHA := ref.Hash().String()

	state, exists := rs.branches[branchName]
	now := time.Now()
	if !exists {
		state = &BranchState{
			HeadCommitSHA:  headSHA,
			IndexState:     model.IndexStatePending,
			LastAccessedAt: now,
		}
		rs.branches[branchName] = state
	} else {
		state.LastAccessedAt = now
		if state.HeadCommitSHA != headSHA {
			state.HeadCommitSHA = headSHA
			state.IndexState = model.IndexStateStale
		}
	}

	return state, nil
}

// MarkIndexed records a successful index: indexed_commit_sha is set to the
// branch's current head, index_state becomes Completed, last_indexed_at is
// updated. Idempotent for the same (repo, branch, sha).
func (t *Tracker) MarkIndexed(repoName, branchName, sha string) error {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return fmt.Errorf("repository %q not cloned", repoName)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	state, ok := rs.branches[branchName]
	if !ok {
		return fmt.Errorf("branch %q not tracked", branchName)
	}
	now := time.Now()
	state.IndexedCommitSHA = sha
	state.IndexState = model.IndexStateCompleted
	state.LastIndexedAt = &now
	return nil
}

// Changes computes the file-change list between the branch's
// indexed_commit_sha and its current head. With no prior indexed sha,
// every blob reachable from the current tree is reported as Added.
func (t *Tracker) Changes(repoID, repoName, branchName string) ([]model.FileChange, error) {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return nil, fmt.Errorf("repository %q not cloned", repoName)
	}
	rs.mu.Lock()
	state, ok := rs.branches[branchName]
	rs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("branch %q not tracked", branchName)
	}

	headCommit, err := rs.repo.CommitObject(plumbing.NewHash(state.HeadCommitSHA))
	if err != nil {
		return nil, fmt.Errorf("head commit lookup failed: %w", err)
	}

	if state.IndexedCommitSHA == "" {
		return allBlobsAsAdded(repoID, branchName, headCommit)
	}

	oldCommit, err := rs.repo.CommitObject(plumbing.NewHash(state.IndexedCommitSHA))
	if err != nil {
		// Missing commit: empty result and no error; nothing is logged
		// here (Tracker carries no logger).
		return nil, nil
	}

	oldTree, err := oldCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("old tree lookup failed: %w", err)
	}
	newTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("new tree lookup failed: %w", err)
	}

	patch, err := oldTree.Patch(newTree)
	if err != nil {
		return nil, fmt.Errorf("tree diff failed: %w", err)
	}

	var changes []model.FileChange
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case from == nil && to != nil:
			changes = append(changes, model.FileChange{RepoID: repoID, BranchName: branchName, Kind: model.ChangeAdded, FilePath: to.Path()})
		case from != nil && to == nil:
			changes = append(changes, model.FileChange{RepoID: repoID, BranchName: branchName, Kind: model.ChangeDeleted, FilePath: from.Path()})
		case from != nil && to != nil && from.Path() != to.Path():
			changes = append(changes, model.FileChange{RepoID: repoID, BranchName: branchName, Kind: model.ChangeRenamed, FilePath: to.Path(), OldPath: from.Path()})
		case from != nil && to != nil:
			changes = append(changes, model.FileChange{RepoID: repoID, BranchName: branchName, Kind: model.ChangeModified, FilePath: to.Path()})
		}
	}
	return changes, nil
}

func allBlobsAsAdded(repoID, branchName string, commit *object.Commit) ([]model.FileChange, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree lookup failed: %w", err)
	}

	var changes []model.FileChange
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err != nil {
			break
		}
		if entry.Mode.IsFile() {
			changes = append(changes, model.FileChange{RepoID: repoID, BranchName: branchName, Kind: model.ChangeAdded, FilePath: name})
		}
	}
	return changes, nil
}

// GetFileContent reads a path through the Git object database at the
// given commit — never the working tree. Returns ("", false, nil) when the
// path is absent, not a blob, or binary.
func (t *Tracker) GetFileContent(repoName, commitSHA, path string) (string, bool, error) {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return "", false, fmt.Errorf("repository %q not cloned", repoName)
	}

	commit, err := rs.repo.CommitObject(plumbing.NewHash(commitSHA))
	if err != nil {
		return "", false, nil
	}

	file, err := commit.File(path)
	if err != nil {
		return "", false, nil
	}

	isBinary, err := file.IsBinary()
	if err == nil && isBinary {
		return "", false, nil
	}

	content, err := file.Contents()
	if err != nil {
		return "", false, nil
	}
	return content, true, nil
}

// ReleaseStaleBranches drops in-memory branches whose last_accessed_at is
// older than staleAfter, except defaultBranch (spec.md §4.G cleanup /
// §4.M). Takes the repository's own lock itself and holds it for the
// duration; callers need no lock of their own.
func (t *Tracker) ReleaseStaleBranches(repoName, defaultBranch string, staleAfter time.Duration) {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for name, state := range rs.branches {
		if name == defaultBranch {
			continue
		}
		if state.LastAccessedAt.Before(cutoff) {
			delete(rs.branches, name)
		}
	}
}

// WorkDirFor returns the on-disk checkout path for a tracked repository,
// for callers (e.g. the workspace loader) that need the root directory
// rather than object-database reads.
func (t *Tracker) WorkDirFor(repoName string) string {
	rs, ok := t.repos.Get(repoName)
	if !ok {
		return ""
	}
	return rs.path
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '\\' || r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
