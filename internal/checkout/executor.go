// Package checkout converges a local clone to a resolved reference using the
// smallest set of version-control operations. Converging twice with the same
// reference does nothing the second time.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"refsync/internal/logging"
	"refsync/internal/refspec"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/pkg/fileops"
)

// TokenSource looks up an HTTPS token for a remote URL. It returns "" when no
// token applies. *repository.CredentialManager implements it.
type TokenSource interface {
	TokenForURL(remoteURL string) (string, error)
}

// Options tunes an Executor.
type Options struct {
	// Update fetches even when the requested reference is already present,
	// and moves existing local branches to their remote counterpart. It has
	// no effect on commit references.
	Update bool

	// Tokens supplies credentials when an anonymous fetch is rejected.
	Tokens TokenSource
}

// Executor converges clones through a vcs.Backend.
type Executor struct {
	backend vcs.Backend
	logger  *logging.AppLogger
	opts    Options
}

// New returns an Executor. A nil logger uses the default logger.
func New(backend vcs.Backend, logger *logging.AppLogger, opts Options) *Executor {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Executor{backend: backend, logger: logger, opts: opts}
}

// Result describes what Converge did to one clone.
type Result struct {
	// Head is the state of HEAD after convergence.
	Head vcs.HeadState
	// Cloned is set when the clone was created by this call.
	Cloned bool
	// Fetched is set when origin was fetched.
	Fetched bool
	// Changed is set when HEAD or the worktree was moved.
	Changed bool
}

// convergence carries the per-call state of Converge.
type convergence struct {
	*Executor
	log     *logging.AppLogger
	spec    repository.RepoSpec
	repo    vcs.Repository
	result  Result
	fetched bool
}

// Converge brings the clone at spec.Path to the state described by ref.
// Reference consistency problems found along the way are returned as
// *refspec.RefError; everything else is a *CheckoutError.
func (e *Executor) Converge(ctx context.Context, spec repository.RepoSpec, ref refspec.ResolvedRef) (Result, error) {
	start := time.Now()
	defer e.logger.LogPerformance("converge "+spec.Name, start)

	c := &convergence{Executor: e, log: e.logger.With("repository", spec.Name), spec: spec}
	if err := ctx.Err(); err != nil {
		return Result{}, c.fail("open", err)
	}
	if ref.Kind == refspec.Local {
		return c.local(ctx), nil
	}
	if err := c.open(ctx); err != nil {
		return Result{}, err
	}

	var (
		target string
		err    error
	)
	switch ref.Kind {
	case refspec.DetachedCommit:
		target, err = c.commit(ctx, ref)
	case refspec.Branch:
		target, err = c.branch(ctx, ref)
	case refspec.Tag:
		target, err = c.tag(ctx, ref)
	default:
		err = c.fail("resolve", fmt.Errorf("unsupported reference kind %s", ref.Kind))
	}
	if err != nil {
		return Result{}, err
	}

	if err := c.verify(ctx, ref, target); err != nil {
		return Result{}, err
	}
	return c.result, nil
}

// local reports HEAD of a url-less repository without a reference. The
// directory is never modified and need not be the top of a clone: it may be
// a subdirectory of one, or not under version control at all.
func (c *convergence) local(ctx context.Context) Result {
	repo, err := c.backend.Open(ctx, c.spec.Path)
	if err != nil {
		c.log.Debug("Local repository left as is", "path", c.spec.Path, "reason", err)
		return c.result
	}
	head, err := repo.Head(ctx)
	if err != nil {
		c.log.Debug("Cannot read HEAD of local repository", "path", c.spec.Path, "error", err)
		return c.result
	}
	c.result.Head = head
	return c.result
}

func (c *convergence) fail(op string, err error) error {
	return &CheckoutError{Repo: c.spec.Name, Path: c.spec.Path, Op: op, Err: err}
}

// open opens the clone, creating it when the directory is missing or empty,
// and points origin at the configured url.
func (c *convergence) open(ctx context.Context) error {
	repo, err := c.backend.Open(ctx, c.spec.Path)
	switch {
	case err == nil:
	case errors.Is(err, vcs.ErrNotRepository):
		state, inspectErr := fileops.InspectDirectory(c.spec.Path)
		if inspectErr != nil {
			return c.fail("open", inspectErr)
		}
		switch {
		case !c.spec.IsRemote():
			return c.fail("open", ErrNoClone)
		case !state.CanClone():
			return c.fail("open", fmt.Errorf("%w (%s)", ErrOccupied, state))
		}
		c.log.Info("Creating clone", "path", c.spec.Path)
		repo, err = c.backend.Init(ctx, c.spec.Path, c.spec.URL)
		if err != nil {
			return c.fail("open", err)
		}
		c.result.Cloned = true
		c.result.Changed = true
	default:
		return c.fail("open", err)
	}
	c.repo = repo

	if !c.spec.IsRemote() || c.result.Cloned {
		return nil
	}
	current, err := repo.RemoteURL(ctx)
	if err != nil {
		return c.fail("open", err)
	}
	if want := strings.TrimSpace(c.spec.URL); current != want {
		c.log.Info("Updating origin url", "from", current, "to", want)
		if err := repo.SetRemoteURL(ctx, want); err != nil {
			return c.fail("open", err)
		}
	}
	return nil
}

// fetch fetches origin once per convergence. Like an anonymous clone, it
// first tries without credentials and retries with a stored token only when
// the remote asks for authentication.
func (c *convergence) fetch(ctx context.Context) error {
	if c.fetched || !c.spec.IsRemote() {
		return nil
	}
	c.log.Info("Fetching", "url", c.spec.URL)

	err := c.repo.Fetch(ctx, vcs.FetchOptions{})
	if err != nil && vcs.TypeOf(err) == vcs.AuthRequired && c.opts.Tokens != nil {
		token, tokenErr := c.opts.Tokens.TokenForURL(c.spec.URL)
		switch {
		case tokenErr != nil:
			c.log.Debug("Token lookup failed", "error", tokenErr)
		case token != "":
			c.log.Debug("Anonymous fetch rejected, retrying with token")
			err = c.repo.Fetch(ctx, vcs.FetchOptions{Token: token})
		}
	}
	if err != nil {
		return c.fail("fetch", err)
	}
	c.fetched = true
	c.result.Fetched = true
	return nil
}

// lookup resolves rev locally. found is false when rev does not exist.
func (c *convergence) lookup(ctx context.Context, rev string) (hash string, found bool, err error) {
	hash, err = c.repo.ResolveRevision(ctx, rev)
	switch {
	case err == nil:
		return hash, true, nil
	case errors.Is(err, vcs.ErrRevisionNotFound):
		return "", false, nil
	default:
		return "", false, c.fail("resolve", err)
	}
}

// lookupOrFetch resolves rev, fetching once if it is missing locally.
func (c *convergence) lookupOrFetch(ctx context.Context, rev string) (string, error) {
	hash, found, err := c.lookup(ctx, rev)
	if err != nil || found {
		return hash, err
	}
	if c.spec.IsRemote() && !c.fetched {
		if err := c.fetch(ctx); err != nil {
			return "", err
		}
		hash, found, err = c.lookup(ctx, rev)
		if err != nil || found {
			return hash, err
		}
	}
	return "", c.fail("resolve", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound))
}

func (c *convergence) commit(ctx context.Context, ref refspec.ResolvedRef) (string, error) {
	target, err := c.lookupOrFetch(ctx, ref.Commit)
	if err != nil {
		return "", err
	}

	if ref.NeedsTagCheck() {
		_, found, err := c.lookup(ctx, vcs.TagPrefix+ref.Tag)
		if err != nil {
			return "", err
		}
		if !found || c.opts.Update {
			if err := c.fetch(ctx); err != nil {
				return "", err
			}
		}
		if err := refspec.VerifyTagCommit(ctx, c.repo, c.spec.Name, ref); err != nil {
			var refErr *refspec.RefError
			if errors.As(err, &refErr) {
				return "", err
			}
			return "", c.fail("resolve", err)
		}
	}

	head, err := c.repo.Head(ctx)
	if err != nil {
		return "", c.fail("resolve", err)
	}
	if head.Detached() && head.Hash == target {
		c.log.Debug("Already at commit", "commit", vcs.ShortHash(target))
		return target, nil
	}
	return target, c.detach(ctx, target)
}

func (c *convergence) branch(ctx context.Context, ref refspec.ResolvedRef) (string, error) {
	localRef := vcs.BranchPrefix + ref.Branch
	remoteRef := vcs.RemoteBranchPrefix + ref.Branch

	local, hasLocal, err := c.lookup(ctx, localRef)
	if err != nil {
		return "", err
	}
	remote, hasRemote, err := c.lookup(ctx, remoteRef)
	if err != nil {
		return "", err
	}
	if c.spec.IsRemote() && (c.opts.Update || (!hasLocal && !hasRemote)) {
		if err := c.fetch(ctx); err != nil {
			return "", err
		}
		if remote, hasRemote, err = c.lookup(ctx, remoteRef); err != nil {
			return "", err
		}
	}

	var target string
	switch {
	case hasRemote && (c.opts.Update || !hasLocal):
		target = remote
	case hasLocal:
		target = local
	default:
		return "", c.fail("resolve", fmt.Errorf("branch %s: %w", ref.Branch, vcs.ErrRevisionNotFound))
	}

	head, err := c.repo.Head(ctx)
	if err != nil {
		return "", c.fail("resolve", err)
	}
	if head.Symbolic && head.Ref == localRef && head.Hash == target {
		c.log.Debug("Already on branch", "branch", ref.Branch)
		return target, nil
	}

	if err := c.ensureClean(ctx, head, target); err != nil {
		return "", err
	}
	c.log.Info("Checking out branch", "branch", ref.Branch, "commit", vcs.ShortHash(target))
	if err := c.repo.CheckoutBranch(ctx, ref.Branch, target, hasRemote); err != nil {
		return "", c.fail("checkout", err)
	}
	c.result.Changed = true
	return target, nil
}

func (c *convergence) tag(ctx context.Context, ref refspec.ResolvedRef) (string, error) {
	tagRef := vcs.TagPrefix + ref.Tag
	if c.opts.Update {
		if err := c.fetch(ctx); err != nil {
			return "", err
		}
	}
	target, err := c.lookupOrFetch(ctx, tagRef)
	if err != nil {
		return "", err
	}

	head, err := c.repo.Head(ctx)
	if err != nil {
		return "", c.fail("resolve", err)
	}
	if head.Detached() && head.Hash == target {
		c.log.Debug("Already at tag", "tag", ref.Tag)
		return target, nil
	}
	return target, c.detach(ctx, target)
}

func (c *convergence) detach(ctx context.Context, target string) error {
	head, err := c.repo.Head(ctx)
	if err != nil {
		return c.fail("resolve", err)
	}
	if err := c.ensureClean(ctx, head, target); err != nil {
		return err
	}
	c.log.Info("Checking out commit", "commit", vcs.ShortHash(target))
	if err := c.repo.CheckoutDetached(ctx, target); err != nil {
		return c.fail("checkout", err)
	}
	c.result.Changed = true
	return nil
}

// ensureClean refuses to move a dirty worktree to a different commit. Moving
// HEAD between references to the same commit keeps local edits intact.
func (c *convergence) ensureClean(ctx context.Context, head vcs.HeadState, target string) error {
	if head.Hash == "" || head.Hash == target {
		return nil
	}
	dirty, err := c.repo.IsDirty(ctx)
	if err != nil {
		return c.fail("checkout", err)
	}
	if dirty {
		return c.fail("checkout", ErrDirtyWorktree)
	}
	return nil
}

// verify re-reads HEAD and checks it matches the requested state.
func (c *convergence) verify(ctx context.Context, ref refspec.ResolvedRef, target string) error {
	head, err := c.repo.Head(ctx)
	if err != nil {
		return c.fail("verify", err)
	}
	c.result.Head = head

	var ok bool
	switch ref.Kind {
	case refspec.DetachedCommit:
		ok = head.Detached() && head.Hash == target
	case refspec.Branch:
		ok = head.Symbolic && head.Ref == vcs.BranchPrefix+ref.Branch && head.Hash == target
	case refspec.Tag:
		if head.Detached() && head.Hash == target {
			tags, err := c.repo.TagsAt(ctx, head.Hash)
			if err != nil {
				return c.fail("verify", err)
			}
			ok = slices.Contains(tags, ref.Tag)
		}
	}
	if !ok {
		return c.fail("verify", fmt.Errorf("HEAD is %s after checking out %s", head, ref))
	}
	return nil
}
