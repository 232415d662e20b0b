// Package report inspects clones without changing them and renders the
// result for humans.
package report

import (
	"context"
	"errors"
	"slices"
	"strings"

	"refsync/internal/refspec"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/pkg/fileops"
)

// RepoStatus is the observed state of one clone next to the state the
// project asks for.
type RepoStatus struct {
	Name string
	Path string

	// Desired is the resolved reference; zero when ResolveErr is set.
	Desired    refspec.ResolvedRef
	ResolveErr error

	// Present is false when no clone exists at Path yet.
	Present bool
	Head    vcs.HeadState
	Tags    []string
	Dirty   bool

	// InSync reports whether HEAD already matches Desired.
	InSync bool

	// Err is set when the clone exists but could not be inspected.
	Err error
}

// State returns a one-word summary: "ok", "dirty", "behind", "missing",
// "invalid" or "error".
func (s RepoStatus) State() string {
	switch {
	case s.ResolveErr != nil:
		return "invalid"
	case s.Err != nil:
		return "error"
	case !s.Present:
		return "missing"
	case !s.InSync:
		return "behind"
	case s.Dirty:
		return "dirty"
	default:
		return "ok"
	}
}

// Collect resolves every spec and reads the state of its clone. Nothing is
// fetched or checked out, and per-repository failures are recorded in the
// returned statuses rather than aborting the collection. Only a canceled
// context stops it early.
func Collect(ctx context.Context, backend vcs.Backend, resolver *refspec.Resolver, specs []repository.RepoSpec) ([]RepoStatus, error) {
	statuses := make([]RepoStatus, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		statuses = append(statuses, inspect(ctx, backend, resolver, spec))
	}
	return statuses, nil
}

func inspect(ctx context.Context, backend vcs.Backend, resolver *refspec.Resolver, spec repository.RepoSpec) RepoStatus {
	status := RepoStatus{Name: spec.Name, Path: spec.Path}
	status.Desired, status.ResolveErr = resolver.Resolve(spec)

	repo, err := backend.Open(ctx, spec.Path)
	switch {
	case errors.Is(err, vcs.ErrNotRepository):
		// A url-less repository without a reference is whatever the
		// directory holds; it need not be a clone.
		if status.ResolveErr == nil && status.Desired.Kind == refspec.Local {
			state, _ := fileops.InspectDirectory(spec.Path)
			status.Present = state != fileops.DirectoryMissing
			status.InSync = status.Present
		}
		return status
	case err != nil:
		status.Err = err
		return status
	}
	status.Present = true

	if status.Head, err = repo.Head(ctx); err != nil {
		status.Err = err
		return status
	}
	if status.Head.Hash != "" {
		if status.Tags, err = repo.TagsAt(ctx, status.Head.Hash); err != nil {
			status.Err = err
			return status
		}
	}
	if status.Dirty, err = repo.IsDirty(ctx); err != nil {
		status.Err = err
		return status
	}

	if status.ResolveErr == nil {
		status.InSync = matches(status.Head, status.Tags, status.Desired)
	}
	return status
}

// matches compares HEAD with a resolved reference using only local
// information.
func matches(head vcs.HeadState, tags []string, ref refspec.ResolvedRef) bool {
	switch ref.Kind {
	case refspec.Local:
		return true
	case refspec.DetachedCommit:
		return head.Detached() && strings.HasPrefix(head.Hash, ref.Commit)
	case refspec.Branch:
		return head.Symbolic && head.Branch() == ref.Branch
	case refspec.Tag:
		return head.Detached() && slices.Contains(tags, ref.Tag)
	default:
		return false
	}
}
