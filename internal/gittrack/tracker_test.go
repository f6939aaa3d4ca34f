package gittrack

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/util"
)

func TestSanitizeReplacesPathUnsafeCharacters(t *testing.T) {
	if got := sanitize("org/repo name"); got != "org_repo_name" {
		t.Fatalf("expected sanitized path, got %q", got)
	}
}

func TestChangesReportsAllAddedWithNoPriorIndex(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := wt.Add("a.go"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	sha, err := wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@t", When: time.Unix(0, 0)}})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	rs := &repoState{repo: repo, branches: map[string]*BranchState{
		"main": {HeadCommitSHA: sha.String()},
	}}
	repos := util.NewSafeMap[*repoState]()
	repos.Set("r", rs)
	tr := &Tracker{repos: *repos}

	changes, err := tr.Changes("repo-1", "r", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != model.ChangeAdded || changes[0].FilePath != "a.go" {
		t.Fatalf("expected single Added change for a.go, got %+v", changes)
	}
}
