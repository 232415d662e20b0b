package refspec

import (
	"strings"

	"refsync/internal/vcs"
)

// legacyRef is the (branch, commit) pair encoded by a deprecated refspec.
// At most one of the fields is set, except that a tag reference uses tag.
type legacyRef struct {
	commit string
	branch string
	tag    string
}

// parseLegacy interprets the deprecated single-field refspec. A full object
// id is a commit, refs/tags/<t> is a tag, and refs/heads/<b> or any other
// value is a branch.
func parseLegacy(refspec string) (legacyRef, bool) {
	refspec = strings.TrimSpace(refspec)
	switch {
	case vcs.IsFullHash(refspec):
		return legacyRef{commit: strings.ToLower(refspec)}, true
	case strings.HasPrefix(refspec, vcs.TagPrefix):
		tag := strings.TrimPrefix(refspec, vcs.TagPrefix)
		return legacyRef{tag: tag}, validRefName(tag)
	default:
		branch, ok := shortBranch(refspec)
		return legacyRef{branch: branch}, ok && validRefName(branch)
	}
}
