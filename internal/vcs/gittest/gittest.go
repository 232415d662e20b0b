// Package gittest builds throwaway upstream repositories on disk for tests
// that exercise real clones.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Upstream is a non-bare repository used as the origin of clones under test.
// Its path is a valid fetch URL for both backends.
type Upstream struct {
	Path string
	repo *git.Repository
}

// NewUpstream creates an upstream repository with one commit on master
// touching README.md.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()

	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("failed to init upstream: %v", err)
	}
	u := &Upstream{Path: path, repo: repo}
	u.Commit(t, "README.md", "initial\n")
	return u
}

// URL returns the fetch URL of the upstream.
func (u *Upstream) URL() string {
	return u.Path
}

// Commit writes content to file on the current branch and commits it.
func (u *Upstream) Commit(t *testing.T, file, content string) string {
	t.Helper()

	worktree, err := u.repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	full := filepath.Join(u.Path, file)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", file, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", file, err)
	}
	if _, err := worktree.Add(file); err != nil {
		t.Fatalf("failed to add %s: %v", file, err)
	}
	sig := Signature()
	hash, err := worktree.Commit("update "+file, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		t.Fatalf("failed to commit %s: %v", file, err)
	}
	return hash.String()
}

// SwitchBranch checks out branch name in the upstream, creating it at the
// current HEAD when it does not exist.
func (u *Upstream) SwitchBranch(t *testing.T, name string) {
	t.Helper()

	worktree, err := u.repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	ref := plumbing.NewBranchReferenceName(name)
	_, lookupErr := u.repo.Reference(ref, true)
	if err := worktree.Checkout(&git.CheckoutOptions{
		Branch: ref,
		Create: lookupErr != nil,
	}); err != nil {
		t.Fatalf("failed to switch to %s: %v", name, err)
	}
}

// Branch points branch name at hash without checking it out.
func (u *Upstream) Branch(t *testing.T, name, hash string) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), plumbing.NewHash(hash))
	if err := u.repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("failed to set branch %s: %v", name, err)
	}
}

// Tag creates or moves lightweight tag name to hash.
func (u *Upstream) Tag(t *testing.T, name, hash string) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), plumbing.NewHash(hash))
	if err := u.repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("failed to set tag %s: %v", name, err)
	}
}

// AnnotatedTag creates annotated tag name pointing at hash.
func (u *Upstream) AnnotatedTag(t *testing.T, name, hash string) {
	t.Helper()
	if _, err := u.repo.CreateTag(name, plumbing.NewHash(hash), &git.CreateTagOptions{
		Tagger:  Signature(),
		Message: "release " + name,
	}); err != nil {
		t.Fatalf("failed to create tag %s: %v", name, err)
	}
}

// Head returns the commit at the upstream HEAD.
func (u *Upstream) Head(t *testing.T) string {
	t.Helper()
	ref, err := u.repo.Head()
	if err != nil {
		t.Fatalf("failed to read upstream HEAD: %v", err)
	}
	return ref.Hash().String()
}

// Signature is the author used for fixture commits.
func Signature() *object.Signature {
	return &object.Signature{
		Name:  "test",
		Email: "test@example.com",
		When:  time.Now(),
	}
}

// Modify overwrites a tracked file in a clone so its worktree is dirty.
func Modify(t *testing.T, clonePath, file string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(clonePath, file), []byte("local edit\n"), 0o644); err != nil {
		t.Fatalf("failed to modify %s: %v", file, err)
	}
}
