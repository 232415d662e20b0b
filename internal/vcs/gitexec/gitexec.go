package gitexec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"refsync/internal/logging"
	"refsync/internal/vcs"
)

// Backend runs the git executable.
type Backend struct {
	logger *logging.AppLogger
}

var _ vcs.Backend = (*Backend)(nil)

// New returns a backend driving the git found on PATH. It fails when git is
// not installed.
func New(logger *logging.AppLogger) (*Backend, error) {
	if logger == nil {
		logger = logging.GetDefault()
	}
	// Probe once so a missing git is reported before any work starts.
	if _, err := NewRunner("", logger); err != nil {
		return nil, err
	}
	return &Backend{logger: logger}, nil
}

// Name implements vcs.Backend.
func (b *Backend) Name() string { return "git" }

// Open implements vcs.Backend. path must be the top level of a worktree; a
// directory nested inside some other repository is not a clone.
func (b *Backend) Open(ctx context.Context, path string) (vcs.Repository, error) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotRepository)
	}
	r, err := NewRunner(path, b.logger)
	if err != nil {
		return nil, err
	}
	rr, err := r.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if vcs.TypeOf(err) == vcs.Canceled {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotRepository)
	}
	if !samePath(strings.TrimSpace(rr.Stdout), path) {
		return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotRepository)
	}
	return &Repository{runner: r}, nil
}

// Init implements vcs.Backend.
func (b *Backend) Init(ctx context.Context, path, remoteURL string) (vcs.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clone directory %s: %w", path, err)
	}
	r, err := NewRunner(path, b.logger)
	if err != nil {
		return nil, err
	}
	if _, err := r.Run(ctx, "init", "-q"); err != nil {
		return nil, err
	}
	if _, err := r.Run(ctx, "remote", "add", vcs.RemoteName, remoteURL); err != nil {
		return nil, err
	}
	return &Repository{runner: r}, nil
}

func samePath(a, b string) bool {
	ea, err := filepath.EvalSymlinks(a)
	if err != nil {
		ea = a
	}
	eb, err := filepath.EvalSymlinks(b)
	if err != nil {
		eb = b
	}
	return filepath.Clean(ea) == filepath.Clean(eb)
}

// Repository is a clone driven through the git executable.
type Repository struct {
	runner *Runner
}

var _ vcs.Repository = (*Repository)(nil)

// Path implements vcs.Repository.
func (r *Repository) Path() string { return r.runner.Dir }

// RemoteURL implements vcs.Repository.
func (r *Repository) RemoteURL(ctx context.Context) (string, error) {
	rr, err := r.runner.Run(ctx, "config", "--get", "remote."+vcs.RemoteName+".url")
	if err != nil {
		// git config exits 1 when the key is unset.
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// SetRemoteURL implements vcs.Repository.
func (r *Repository) SetRemoteURL(ctx context.Context, url string) error {
	current, err := r.RemoteURL(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		_, err = r.runner.Run(ctx, "remote", "add", vcs.RemoteName, url)
	} else {
		_, err = r.runner.Run(ctx, "remote", "set-url", vcs.RemoteName, url)
	}
	return err
}

// Fetch implements vcs.Repository.
func (r *Repository) Fetch(ctx context.Context, opts vcs.FetchOptions) error {
	var config []configEntry
	if opts.Token != "" {
		config = append(config, tokenHeader(opts.Token))
	}
	args := append([]string{"fetch", "-q", vcs.RemoteName}, vcs.FetchRefSpecs...)
	_, err := r.runner.run(ctx, config, args...)
	return err
}

// tokenHeader sends token as HTTP basic credentials on every request.
func tokenHeader(token string) configEntry {
	creds := base64.StdEncoding.EncodeToString([]byte("token:" + token))
	return configEntry{Key: "http.extraHeader", Value: "Authorization: Basic " + creds}
}

// Head implements vcs.Repository.
func (r *Repository) Head(ctx context.Context) (vcs.HeadState, error) {
	var state vcs.HeadState

	rr, err := r.runner.Run(ctx, "symbolic-ref", "-q", "HEAD")
	switch {
	case err == nil:
		state.Symbolic = true
		state.Ref = strings.TrimSpace(rr.Stdout)
	case exitCode(err) == 1:
		// detached
	default:
		return vcs.HeadState{}, err
	}

	rr, err = r.runner.Run(ctx, "rev-parse", "--verify", "-q", "HEAD")
	switch {
	case err == nil:
		state.Hash = strings.TrimSpace(rr.Stdout)
	case exitCode(err) == 1:
		// unborn branch
	default:
		return vcs.HeadState{}, err
	}
	return state, nil
}

// ResolveRevision implements vcs.Repository.
func (r *Repository) ResolveRevision(ctx context.Context, rev string) (string, error) {
	if strings.HasPrefix(rev, "-") {
		return "", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound)
	}
	rr, err := r.runner.Run(ctx, "rev-parse", "--verify", "-q", rev+"^{commit}")
	if err != nil {
		if exitCode(err) == 1 || exitCode(err) == 128 {
			return "", fmt.Errorf("%s: %w", rev, vcs.ErrRevisionNotFound)
		}
		return "", err
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// TagsAt implements vcs.Repository.
func (r *Repository) TagsAt(ctx context.Context, commit string) ([]string, error) {
	rr, err := r.runner.Run(ctx, "tag", "--points-at", commit)
	if err != nil {
		return nil, err
	}
	tags := strings.Fields(rr.Stdout)
	sort.Strings(tags)
	return tags, nil
}

// CheckoutDetached implements vcs.Repository.
func (r *Repository) CheckoutDetached(ctx context.Context, commit string) error {
	_, err := r.runner.Run(ctx, "checkout", "-q", "--detach", commit)
	return err
}

// CheckoutBranch implements vcs.Repository.
func (r *Repository) CheckoutBranch(ctx context.Context, name, commit string, track bool) error {
	if _, err := r.runner.Run(ctx, "checkout", "-q", "-B", name, commit); err != nil {
		return err
	}
	if !track {
		return nil
	}
	// Written directly so tracking works before origin/<name> is fetched.
	if _, err := r.runner.Run(ctx, "config", "branch."+name+".remote", vcs.RemoteName); err != nil {
		return err
	}
	_, err := r.runner.Run(ctx, "config", "branch."+name+".merge", vcs.BranchPrefix+name)
	return err
}

// IsDirty implements vcs.Repository.
func (r *Repository) IsDirty(ctx context.Context) (bool, error) {
	rr, err := r.runner.Run(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(rr.Stdout) != "", nil
}

// IsUnavailable reports whether err means no git executable was found.
func IsUnavailable(err error) bool {
	return err != nil && errors.Is(err, exec.ErrNotFound)
}
