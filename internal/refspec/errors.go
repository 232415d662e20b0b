package refspec

import (
	"errors"
	"fmt"
)

// ErrRef matches every *RefError with errors.Is.
var ErrRef = errors.New("invalid reference specification")

// ErrorKind identifies which consistency rule a RepoSpec broke.
type ErrorKind int

const (
	// NoRefspec: a repository with a url names no reference at all.
	NoRefspec ErrorKind = iota + 1
	// MixedRefspec: the legacy refspec is combined with commit, branch or tag.
	MixedRefspec
	// TagCommitMismatch: tag and commit designate different revisions.
	TagCommitMismatch
	// InvalidReference: a reference value is malformed.
	InvalidReference
)

func (k ErrorKind) String() string {
	switch k {
	case NoRefspec:
		return "no refspec"
	case MixedRefspec:
		return "mixed refspec"
	case TagCommitMismatch:
		return "tag/commit mismatch"
	case InvalidReference:
		return "invalid reference"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RefError reports a configuration-level reference problem for one
// repository. It is never retried.
type RefError struct {
	Repo   string
	Kind   ErrorKind
	Detail string
}

func (e *RefError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("repository %q: %s", e.Repo, e.Kind)
	}
	return fmt.Sprintf("repository %q: %s: %s", e.Repo, e.Kind, e.Detail)
}

// Is lets errors.Is(err, ErrRef) match any RefError.
func (e *RefError) Is(target error) bool {
	return target == ErrRef
}

func newRefError(repo string, kind ErrorKind, format string, args ...any) *RefError {
	return &RefError{Repo: repo, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a RefError.
func KindOf(err error) ErrorKind {
	var refErr *RefError
	if errors.As(err, &refErr) {
		return refErr.Kind
	}
	return 0
}
