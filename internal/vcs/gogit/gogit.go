// Package gogit implements the vcs interfaces on top of go-git, so checkouts
// work without a git executable on the host.
package gogit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport/http"

	"refsync/internal/logging"
	"refsync/internal/vcs"
)

// Backend opens and initializes repositories with go-git.
type Backend struct {
	logger *logging.AppLogger
}

var _ vcs.Backend = (*Backend)(nil)

// New returns a go-git backend. A nil logger uses the default logger.
func New(logger *logging.AppLogger) *Backend {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Backend{logger: logger}
}

// Name implements vcs.Backend.
func (b *Backend) Name() string { return "go-git" }

// Open implements vcs.Backend.
func (b *Backend) Open(_ context.Context, path string) (vcs.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotRepository)
		}
		return nil, fmt.Errorf("failed to open repository %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo, logger: b.logger}, nil
}

// Init implements vcs.Backend.
func (b *Backend) Init(_ context.Context, path, remoteURL string) (vcs.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clone directory %s: %w", path, err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository %s: %w", path, err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: vcs.RemoteName,
		URLs: []string{remoteURL},
	}); err != nil {
		return nil, fmt.Errorf("failed to add remote %s: %w", vcs.RemoteName, err)
	}
	b.logger.Debug("Initialized repository", "path", path, "url", remoteURL)
	return &Repository{path: path, repo: repo, logger: b.logger}, nil
}

// Repository is a clone opened with go-git.
type Repository struct {
	path   string
	repo   *git.Repository
	logger *logging.AppLogger
}

var _ vcs.Repository = (*Repository)(nil)

// Path implements vcs.Repository.
func (r *Repository) Path() string { return r.path }

// RemoteURL implements vcs.Repository.
func (r *Repository) RemoteURL(context.Context) (string, error) {
	remote, err := r.repo.Remote(vcs.RemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read remote %s: %w", vcs.RemoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", nil
	}
	return urls[0], nil
}

// SetRemoteURL implements vcs.Repository.
func (r *Repository) SetRemoteURL(_ context.Context, url string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	if rc, ok := cfg.Remotes[vcs.RemoteName]; ok {
		rc.URLs = []string{url}
		if err := r.repo.SetConfig(cfg); err != nil {
			return fmt.Errorf("failed to update remote %s: %w", vcs.RemoteName, err)
		}
		return nil
	}
	if _, err := r.repo.CreateRemote(&config.RemoteConfig{
		Name: vcs.RemoteName,
		URLs: []string{url},
	}); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", vcs.RemoteName, err)
	}
	return nil
}

// Fetch implements vcs.Repository.
func (r *Repository) Fetch(ctx context.Context, opts vcs.FetchOptions) error {
	refSpecs := make([]config.RefSpec, 0, len(vcs.FetchRefSpecs))
	for _, spec := range vcs.FetchRefSpecs {
		refSpecs = append(refSpecs, config.RefSpec(spec))
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: vcs.RemoteName,
		RefSpecs:   refSpecs,
		// Remote branches and tags may be rewritten upstream.
		Force: true,
	}
	if opts.Token != "" {
		fetchOpts.Auth = &http.BasicAuth{
			Username: "token",
			Password: opts.Token,
		}
	}

	r.logger.Debug("Fetching", "path", r.path, "authenticated", opts.Token != "")
	err := r.repo.FetchContext(ctx, fetchOpts)
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		r.logger.Debug("Repository already up to date", "path", r.path)
	default:
		return vcs.NewCommandError(ctx, []string{"fetch", vcs.RemoteName}, err, "", "")
	}
	return nil
}

// Head implements vcs.Repository.
func (r *Repository) Head(context.Context) (vcs.HeadState, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return vcs.HeadState{}, nil
		}
		return vcs.HeadState{}, fmt.Errorf("failed to read HEAD: %w", err)
	}

	var state vcs.HeadState
	if head.Type() == plumbing.SymbolicReference {
		state.Symbolic = true
		state.Ref = head.Target().String()
	}

	resolved, err := r.repo.Reference(plumbing.HEAD, true)
	switch {
	case err == nil:
		state.Hash = resolved.Hash().String()
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// unborn branch
	default:
		return vcs.HeadState{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return state, nil
}

// ResolveRevision implements vcs.Repository.
func (r *Repository) ResolveRevision(_ context.Context, rev string) (string, error) {
	var hash plumbing.Hash
	switch {
	case vcs.IsFullHash(rev):
		hash = plumbing.NewHash(strings.ToLower(rev))
	case strings.HasPrefix(rev, "refs/"):
		ref, err := r.repo.Reference(plumbing.ReferenceName(rev), true)
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return "", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound)
			}
			return "", fmt.Errorf("failed to read reference %s: %w", rev, err)
		}
		hash = ref.Hash()
	default:
		h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return "", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound)
		}
		hash = *h
	}

	commit, err := r.peel(hash)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rev, err)
	}
	return commit.String(), nil
}

// peel follows annotated tag objects until it reaches a commit.
func (r *Repository) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	for {
		tag, err := r.repo.TagObject(hash)
		if err != nil {
			break
		}
		hash = tag.Target
	}
	if _, err := r.repo.CommitObject(hash); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, vcs.ErrRevisionNotFound
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	return hash, nil
}

// TagsAt implements vcs.Repository.
func (r *Repository) TagsAt(_ context.Context, commit string) ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target, err := r.peel(ref.Hash())
		if err != nil {
			// Tags pointing at non-commit objects are not candidates.
			return nil
		}
		if target.String() == commit {
			tags = append(tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	sort.Strings(tags)
	return tags, nil
}

// CheckoutDetached implements vcs.Repository.
func (r *Repository) CheckoutDetached(ctx context.Context, commit string) error {
	args := []string{"checkout", "--detach", commit}
	hash := plumbing.NewHash(commit)
	if err := r.moveWorktree(hash); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}
	return nil
}

// moveWorktree updates the worktree to hash. When HEAD already resolves to
// hash the worktree, including any local edits, is left alone.
func (r *Repository) moveWorktree(hash plumbing.Hash) error {
	if current, err := r.repo.Reference(plumbing.HEAD, true); err == nil && current.Hash() == hash {
		return nil
	}
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get working tree: %w", err)
	}
	return worktree.Checkout(&git.CheckoutOptions{Hash: hash})
}

// CheckoutBranch implements vcs.Repository.
func (r *Repository) CheckoutBranch(ctx context.Context, name, commit string, track bool) error {
	args := []string{"checkout", "-B", name, commit}
	hash := plumbing.NewHash(commit)
	// Update the worktree first so a refused checkout leaves refs untouched.
	if err := r.moveWorktree(hash); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, hash)); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}
	if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return vcs.NewCommandError(ctx, args, err, "", "")
	}

	if !track {
		return nil
	}
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	cfg.Branches[name] = &config.Branch{
		Name:   name,
		Remote: vcs.RemoteName,
		Merge:  branchRef,
	}
	if err := r.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("failed to configure upstream for %s: %w", name, err)
	}
	return nil
}

// IsDirty implements vcs.Repository.
func (r *Repository) IsDirty(context.Context) (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get working tree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get working tree status: %w", err)
	}
	for _, s := range status {
		if changed(s.Staging) || changed(s.Worktree) {
			return true, nil
		}
	}
	return false, nil
}

func changed(code git.StatusCode) bool {
	return code != git.Unmodified && code != git.Untracked
}
