package vcs

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNotRepository is returned by Backend.Open when the path holds no
	// repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRevisionNotFound is returned when a revision does not exist locally.
	ErrRevisionNotFound = errors.New("revision not found")
)

// ErrorType classifies a failed VCS operation.
type ErrorType int

const (
	Unknown ErrorType = iota
	UnknownReference
	AuthRequired
	RepositoryNotFound
	RepositoryUnavailable
	LocalChanges
	Canceled
)

func (t ErrorType) String() string {
	switch t {
	case UnknownReference:
		return "unknown reference"
	case AuthRequired:
		return "authentication required"
	case RepositoryNotFound:
		return "repository not found"
	case RepositoryUnavailable:
		return "repository unavailable"
	case LocalChanges:
		return "local changes"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CommandError is a failed VCS operation together with the diagnostic output
// it produced.
type CommandError struct {
	Type   ErrorType
	Args   []string
	Err    error
	Stdout string
	Stderr string
}

func (e *CommandError) Error() string {
	b := new(strings.Builder)
	if len(e.Args) > 0 {
		b.WriteString("git ")
		b.WriteString(strings.Join(e.Args, " "))
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError builds a CommandError and classifies it from ctx, err and
// the diagnostic output.
func NewCommandError(ctx context.Context, args []string, err error, stdout, stderr string) *CommandError {
	e := &CommandError{
		Args:   args,
		Err:    err,
		Stdout: stdout,
		Stderr: stderr,
	}
	switch {
	case ctx != nil && ctx.Err() != nil:
		e.Type = Canceled
		if !errors.Is(err, ctx.Err()) {
			e.Err = errors.Join(ctx.Err(), err)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Type = Canceled
	default:
		diag := stderr
		if diag == "" && err != nil {
			diag = err.Error()
		}
		e.Type = DetermineErrorType(diag)
	}
	return e
}

// TypeOf returns the classification of err, or Unknown when err carries no
// CommandError.
func TypeOf(err error) ErrorType {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Type
	}
	return Unknown
}

// DetermineErrorType classifies diagnostic output of git or go-git.
func DetermineErrorType(diag string) ErrorType {
	lower := strings.ToLower(diag)
	switch {
	case strings.Contains(lower, "unknown revision or path not in the working tree"),
		strings.Contains(lower, "did not match any file(s) known to git"),
		strings.Contains(lower, "couldn't find remote ref"),
		strings.Contains(lower, "reference not found"),
		strings.Contains(lower, "object not found"):
		return UnknownReference
	case strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "authentication required"),
		strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "authorization failed"),
		matches(`\b(401|403)\b`, lower):
		return AuthRequired
	case strings.Contains(lower, "could not resolve host"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "timed out"):
		return RepositoryUnavailable
	case matches(`repository '.*' not found`, lower),
		strings.Contains(lower, "does not appear to be a git repository"),
		strings.Contains(lower, "repository not found"),
		strings.Contains(lower, "repository does not exist"):
		return RepositoryNotFound
	case strings.Contains(lower, "would be overwritten by checkout"),
		strings.Contains(lower, "your local changes"),
		strings.Contains(lower, "worktree contains unstaged changes"),
		strings.Contains(lower, "unstaged changes"):
		return LocalChanges
	}
	return Unknown
}

func matches(pattern, s string) bool {
	matched, err := regexp.MatchString(pattern, s)
	if err != nil {
		// Only an invalid pattern can fail here.
		panic(err)
	}
	return matched
}
