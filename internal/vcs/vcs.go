// Package vcs defines the narrow version-control interface the checkout
// engine depends on. Two implementations exist: gogit (pure Go, default) and
// gitexec (drives the git executable). Package fake provides an in-memory
// implementation for tests.
//
// All revisions passed to a Repository are either full object ids or full
// reference names ("refs/heads/master", "refs/remotes/origin/master",
// "refs/tags/3.0.1"); callers never rely on short-name expansion, which is
// what keeps a branch and a tag of the same name from being confused.
package vcs

import (
	"context"
	"strings"
)

const (
	// RemoteName is the remote every clone fetches from.
	RemoteName = "origin"

	BranchPrefix       = "refs/heads/"
	TagPrefix          = "refs/tags/"
	RemoteBranchPrefix = "refs/remotes/" + RemoteName + "/"
)

// FetchRefSpecs are the refspecs used for every fetch. Branches land in the
// remote-tracking namespace, tags are mirrored and may be moved by the remote.
var FetchRefSpecs = []string{
	"+" + BranchPrefix + "*:" + RemoteBranchPrefix + "*",
	"+" + TagPrefix + "*:" + TagPrefix + "*",
}

// Backend opens and creates local repositories.
type Backend interface {
	// Name identifies the backend in logs and configuration.
	Name() string

	// Open opens the repository whose worktree root is path. It returns an
	// error wrapping ErrNotRepository when path holds no repository.
	Open(ctx context.Context, path string) (Repository, error)

	// Init creates an empty repository at path with origin set to remoteURL.
	// Parent directories are created as needed.
	Init(ctx context.Context, path, remoteURL string) (Repository, error)
}

// Repository is a local clone. Implementations are not safe for concurrent
// use; the orchestrator guarantees one worker per clone.
type Repository interface {
	// Path returns the worktree root.
	Path() string

	// RemoteURL returns the URL of origin, or "" if origin is not configured.
	RemoteURL(ctx context.Context) (string, error)

	// SetRemoteURL creates origin or points it at url.
	SetRemoteURL(ctx context.Context, url string) error

	// Fetch fetches FetchRefSpecs from origin.
	Fetch(ctx context.Context, opts FetchOptions) error

	// Head reports where HEAD points.
	Head(ctx context.Context) (HeadState, error)

	// ResolveRevision resolves a full object id or full reference name to the
	// commit it designates, peeling annotated tags. It returns an error
	// wrapping ErrRevisionNotFound when the revision does not exist locally.
	ResolveRevision(ctx context.Context, rev string) (string, error)

	// TagsAt returns the short names of all tags that dereference to commit,
	// sorted.
	TagsAt(ctx context.Context, commit string) ([]string, error)

	// CheckoutDetached detaches HEAD at commit and updates the worktree.
	CheckoutDetached(ctx context.Context, commit string) error

	// CheckoutBranch points refs/heads/<name> at commit, makes HEAD a
	// symbolic reference to it and updates the worktree. When track is set
	// the branch is configured to track origin/<name>.
	CheckoutBranch(ctx context.Context, name, commit string, track bool) error

	// IsDirty reports uncommitted changes to tracked files.
	IsDirty(ctx context.Context) (bool, error)
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	// Token is an HTTPS access token for the remote host, if any.
	Token string
}

// HeadState describes HEAD.
type HeadState struct {
	// Symbolic is true when HEAD refers to a branch.
	Symbolic bool
	// Ref is the full branch reference name when Symbolic is true.
	Ref string
	// Hash is the commit HEAD resolves to; empty for an unborn branch or a
	// freshly initialized repository.
	Hash string
}

// Detached reports whether HEAD points directly at a commit.
func (h HeadState) Detached() bool {
	return !h.Symbolic && h.Hash != ""
}

// Branch returns the short branch name for a symbolic HEAD.
func (h HeadState) Branch() string {
	if !h.Symbolic {
		return ""
	}
	return strings.TrimPrefix(h.Ref, BranchPrefix)
}

func (h HeadState) String() string {
	switch {
	case h.Symbolic && h.Hash == "":
		return h.Ref + " (unborn)"
	case h.Symbolic:
		return h.Ref + " @ " + ShortHash(h.Hash)
	case h.Hash != "":
		return "detached @ " + ShortHash(h.Hash)
	default:
		return "empty"
	}
}

// ShortHash abbreviates an object id for display.
func ShortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// IsFullHash reports whether s is a complete SHA-1 or SHA-256 object id.
func IsFullHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	return isHex(s)
}

// IsHashLike reports whether s could be an (abbreviated) object id.
func IsHashLike(s string) bool {
	return len(s) >= 4 && len(s) <= 64 && isHex(s)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
