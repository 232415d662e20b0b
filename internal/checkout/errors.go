package checkout

import (
	"errors"
	"fmt"
	"strings"

	"refsync/internal/vcs"
)

var (
	// ErrCheckout matches every *CheckoutError with errors.Is.
	ErrCheckout = errors.New("checkout failed")

	// ErrDirtyWorktree is wrapped when uncommitted changes block a switch.
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

	// ErrNoClone is wrapped when a url-less repository has no local clone.
	ErrNoClone = errors.New("no local clone and no url to clone from")

	// ErrOccupied is wrapped when the clone directory holds something other
	// than a repository.
	ErrOccupied = errors.New("directory exists and is not a git repository")
)

// CheckoutError is an operational failure while converging one clone.
type CheckoutError struct {
	Repo string
	Path string
	// Op is the step that failed: open, fetch, resolve, checkout or verify.
	Op  string
	Err error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("repository %q: %s failed in %s: %v", e.Repo, e.Op, e.Path, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCheckout) match any CheckoutError.
func (e *CheckoutError) Is(target error) bool {
	return target == ErrCheckout
}

// Type classifies the failure.
func (e *CheckoutError) Type() vcs.ErrorType {
	switch {
	case errors.Is(e.Err, ErrDirtyWorktree):
		return vcs.LocalChanges
	case errors.Is(e.Err, vcs.ErrRevisionNotFound):
		return vcs.UnknownReference
	}
	return vcs.TypeOf(e.Err)
}

// Diagnostic returns the output of the failed version-control command, if
// any.
func (e *CheckoutError) Diagnostic() string {
	var cmdErr *vcs.CommandError
	if errors.As(e.Err, &cmdErr) {
		return strings.TrimSpace(cmdErr.Stderr)
	}
	return ""
}
