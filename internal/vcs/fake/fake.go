// Package fake is a deterministic in-memory vcs.Backend for tests. Remotes and
// clones are plain maps; every state-changing call is recorded so tests can
// assert which operations a run performed.
package fake

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"refsync/internal/vcs"
)

// Hash derives a stable 40-character object id from seed.
func Hash(seed string) string {
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Remote is an upstream repository.
type Remote struct {
	mu       sync.Mutex
	commits  map[string]struct{}
	branches map[string]string
	tags     map[string]string
	token    string
}

// RequireToken rejects fetches that do not present token.
func (r *Remote) RequireToken(token string) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
	return r
}

// Commit registers commits without attaching a reference to them.
func (r *Remote) Commit(hashes ...string) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hashes {
		r.commits[h] = struct{}{}
	}
	return r
}

// SetBranch points branch name at hash, registering the commit.
func (r *Remote) SetBranch(name, hash string) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[hash] = struct{}{}
	r.branches[name] = hash
	return r
}

// SetTag points tag name at hash, registering the commit.
func (r *Remote) SetTag(name, hash string) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[hash] = struct{}{}
	r.tags[name] = hash
	return r
}

// Backend implements vcs.Backend in memory.
type Backend struct {
	mu      sync.Mutex
	remotes map[string]*Remote
	repos   map[string]*Repo

	// FetchDelay makes every fetch block for the given duration or until the
	// context is canceled.
	FetchDelay time.Duration

	concurrent atomic.Bool
}

var _ vcs.Backend = (*Backend)(nil)

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{
		remotes: make(map[string]*Remote),
		repos:   make(map[string]*Repo),
	}
}

// Name implements vcs.Backend.
func (b *Backend) Name() string { return "fake" }

// AddRemote registers an upstream repository reachable at url.
func (b *Backend) AddRemote(url string) *Remote {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &Remote{
		commits:  make(map[string]struct{}),
		branches: make(map[string]string),
		tags:     make(map[string]string),
	}
	b.remotes[url] = r
	return r
}

// AddRepo registers an existing local clone at path with HEAD detached at
// head (or empty when head is ""). It is used for url-less repositories.
func (b *Backend) AddRepo(path string, head string) *Repo {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := newRepo(b, path, "")
	if head != "" {
		r.commits[head] = struct{}{}
		r.head = vcs.HeadState{Hash: head}
	}
	b.repos[path] = r
	return r
}

// Repo returns the clone at path, or nil.
func (b *Backend) Repo(path string) *Repo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repos[path]
}

// ConcurrentAccess reports whether two operations ever ran on the same clone
// at the same time.
func (b *Backend) ConcurrentAccess() bool {
	return b.concurrent.Load()
}

// Open implements vcs.Backend.
func (b *Backend) Open(_ context.Context, path string) (vcs.Repository, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.repos[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotRepository)
	}
	return r, nil
}

// Init implements vcs.Backend.
func (b *Backend) Init(_ context.Context, path, remoteURL string) (vcs.Repository, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.repos[path]; ok {
		return nil, fmt.Errorf("repository already exists at %s", path)
	}
	r := newRepo(b, path, remoteURL)
	r.head = vcs.HeadState{Symbolic: true, Ref: vcs.BranchPrefix + "master"}
	r.record("init")
	b.repos[path] = r
	return r, nil
}

func (b *Backend) remote(url string) *Remote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remotes[url]
}

// Repo is an in-memory clone.
type Repo struct {
	backend *Backend
	path    string

	mu             sync.Mutex
	busy           atomic.Int32
	origin         string
	commits        map[string]struct{}
	branches       map[string]string
	remoteBranches map[string]string
	tags           map[string]string
	tracking       map[string]bool
	head           vcs.HeadState
	dirty          bool
	ops            []string
}

var _ vcs.Repository = (*Repo)(nil)

func newRepo(b *Backend, path, origin string) *Repo {
	return &Repo{
		backend:        b,
		path:           path,
		origin:         origin,
		commits:        make(map[string]struct{}),
		branches:       make(map[string]string),
		remoteBranches: make(map[string]string),
		tags:           make(map[string]string),
		tracking:       make(map[string]bool),
	}
}

func (r *Repo) enter() func() {
	if r.busy.Add(1) > 1 {
		r.backend.concurrent.Store(true)
	}
	return func() { r.busy.Add(-1) }
}

func (r *Repo) record(op string) {
	r.ops = append(r.ops, op)
}

// Ops returns the recorded state-changing operations.
func (r *Repo) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// ResetOps clears the operation log.
func (r *Repo) ResetOps() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

// SetDirty marks the worktree as having uncommitted changes.
func (r *Repo) SetDirty(dirty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = dirty
}

// SetLocalBranch creates or moves a local branch without touching HEAD.
func (r *Repo) SetLocalBranch(name, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[hash] = struct{}{}
	r.branches[name] = hash
}

// SetLocalTag creates or moves a local tag.
func (r *Repo) SetLocalTag(name, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[hash] = struct{}{}
	r.tags[name] = hash
}

// Tracking reports whether branch name tracks origin.
func (r *Repo) Tracking(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking[name]
}

// HeadState returns HEAD without going through the interface.
func (r *Repo) HeadState() vcs.HeadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head
}

// Path implements vcs.Repository.
func (r *Repo) Path() string { return r.path }

// RemoteURL implements vcs.Repository.
func (r *Repo) RemoteURL(context.Context) (string, error) {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.origin, nil
}

// SetRemoteURL implements vcs.Repository.
func (r *Repo) SetRemoteURL(_ context.Context, url string) error {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origin = url
	r.record("set-url " + url)
	return nil
}

// Fetch implements vcs.Repository.
func (r *Repo) Fetch(ctx context.Context, opts vcs.FetchOptions) error {
	defer r.enter()()
	args := []string{"fetch", vcs.RemoteName}

	if delay := r.backend.FetchDelay; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return vcs.NewCommandError(ctx, args, ctx.Err(), "", "")
		}
	}
	if err := ctx.Err(); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}

	r.mu.Lock()
	origin := r.origin
	r.mu.Unlock()

	remote := r.backend.remote(origin)
	if remote == nil {
		return vcs.NewCommandError(ctx, args, fmt.Errorf("exit status 128"), "",
			fmt.Sprintf("fatal: '%s' does not appear to be a git repository", origin))
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if remote.token != "" && opts.Token != remote.token {
		r.record("fetch-denied")
		return vcs.NewCommandError(ctx, args, fmt.Errorf("exit status 128"), "",
			fmt.Sprintf("fatal: Authentication failed for '%s'", origin))
	}
	for h := range remote.commits {
		r.commits[h] = struct{}{}
	}
	r.remoteBranches = make(map[string]string, len(remote.branches))
	for name, h := range remote.branches {
		r.remoteBranches[name] = h
	}
	for name, h := range remote.tags {
		r.tags[name] = h
	}
	r.record("fetch")
	return nil
}

// Head implements vcs.Repository.
func (r *Repo) Head(context.Context) (vcs.HeadState, error) {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	head := r.head
	if head.Symbolic {
		head.Hash = r.branches[strings.TrimPrefix(head.Ref, vcs.BranchPrefix)]
	}
	return head, nil
}

// ResolveRevision implements vcs.Repository.
func (r *Repo) ResolveRevision(_ context.Context, rev string) (string, error) {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(rev)
}

func (r *Repo) resolve(rev string) (string, error) {
	var (
		hash string
		ok   bool
	)
	switch {
	case strings.HasPrefix(rev, vcs.RemoteBranchPrefix):
		hash, ok = r.remoteBranches[strings.TrimPrefix(rev, vcs.RemoteBranchPrefix)]
	case strings.HasPrefix(rev, vcs.BranchPrefix):
		hash, ok = r.branches[strings.TrimPrefix(rev, vcs.BranchPrefix)]
	case strings.HasPrefix(rev, vcs.TagPrefix):
		hash, ok = r.tags[strings.TrimPrefix(rev, vcs.TagPrefix)]
	case vcs.IsFullHash(rev):
		_, ok = r.commits[strings.ToLower(rev)]
		hash = strings.ToLower(rev)
	case vcs.IsHashLike(rev):
		var found []string
		for h := range r.commits {
			if strings.HasPrefix(h, strings.ToLower(rev)) {
				found = append(found, h)
			}
		}
		if len(found) == 1 {
			hash, ok = found[0], true
		}
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound)
	}
	return hash, nil
}

// TagsAt implements vcs.Repository.
func (r *Repo) TagsAt(_ context.Context, commit string) ([]string, error) {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	var tags []string
	for name, h := range r.tags {
		if h == commit {
			tags = append(tags, name)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// CheckoutDetached implements vcs.Repository.
func (r *Repo) CheckoutDetached(ctx context.Context, commit string) error {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commits[commit]; !ok {
		return vcs.NewCommandError(ctx, []string{"checkout", "--detach", commit},
			fmt.Errorf("exit status 128"), "", "fatal: reference not found")
	}
	if err := r.checkDirty(ctx, commit); err != nil {
		return err
	}
	r.head = vcs.HeadState{Hash: commit}
	r.record("checkout-detached " + commit)
	return nil
}

// CheckoutBranch implements vcs.Repository.
func (r *Repo) CheckoutBranch(ctx context.Context, name, commit string, track bool) error {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commits[commit]; !ok {
		return vcs.NewCommandError(ctx, []string{"checkout", "-B", name, commit},
			fmt.Errorf("exit status 128"), "", "fatal: reference not found")
	}
	if err := r.checkDirty(ctx, commit); err != nil {
		return err
	}
	r.branches[name] = commit
	r.tracking[name] = track
	r.head = vcs.HeadState{Symbolic: true, Ref: vcs.BranchPrefix + name}
	r.record("checkout-branch " + name + " " + commit)
	return nil
}

func (r *Repo) checkDirty(ctx context.Context, target string) error {
	current := r.head.Hash
	if r.head.Symbolic {
		current = r.branches[strings.TrimPrefix(r.head.Ref, vcs.BranchPrefix)]
	}
	if r.dirty && current != target {
		return vcs.NewCommandError(ctx, []string{"checkout"}, fmt.Errorf("exit status 1"), "",
			"error: Your local changes to the following files would be overwritten by checkout")
	}
	return nil
}

// IsDirty implements vcs.Repository.
func (r *Repo) IsDirty(context.Context) (bool, error) {
	defer r.enter()()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty, nil
}
