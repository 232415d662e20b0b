package refspec

import (
	"context"
	"errors"
	"fmt"

	"refsync/internal/vcs"
)

// VerifyTagCommit checks that refs/tags/<ref.Tag> dereferences to ref.Commit
// in repo. The tag must already be present locally. A mismatch, or a tag that
// does not exist, is a *RefError of kind TagCommitMismatch; other failures
// are returned as is.
func VerifyTagCommit(ctx context.Context, repo vcs.Repository, name string, ref ResolvedRef) error {
	if !ref.NeedsTagCheck() {
		return nil
	}

	tagCommit, err := repo.ResolveRevision(ctx, vcs.TagPrefix+ref.Tag)
	if err != nil {
		if errors.Is(err, vcs.ErrRevisionNotFound) {
			return newRefError(name, TagCommitMismatch, "tag %q does not exist", ref.Tag)
		}
		return fmt.Errorf("failed to resolve tag %s: %w", ref.Tag, err)
	}

	commit, err := repo.ResolveRevision(ctx, ref.Commit)
	if err != nil {
		if errors.Is(err, vcs.ErrRevisionNotFound) {
			return newRefError(name, TagCommitMismatch,
				"tag %q points at %s, commit %s does not exist", ref.Tag, vcs.ShortHash(tagCommit), ref.Commit)
		}
		return fmt.Errorf("failed to resolve commit %s: %w", ref.Commit, err)
	}

	if commit != tagCommit {
		return newRefError(name, TagCommitMismatch,
			"tag %q points at %s, not %s", ref.Tag, vcs.ShortHash(tagCommit), vcs.ShortHash(commit))
	}
	return nil
}
