// Package warnings deduplicates advisory diagnostics so each one is emitted at
// most once per repository name for the lifetime of a Registry.
package warnings

import (
	"fmt"
	"sync"

	"refsync/internal/logging"
)

// Kind identifies a class of one-time diagnostic.
type Kind int

const (
	// LegacyRefspecUsed is recorded when a repository uses the deprecated
	// combined refspec field.
	LegacyRefspecUsed Kind = iota
	// UnsafeTagWithoutCommit is recorded when a tag is checked out without a
	// commit pinning it.
	UnsafeTagWithoutCommit
)

func (k Kind) String() string {
	switch k {
	case LegacyRefspecUsed:
		return "legacyRefspecUsed"
	case UnsafeTagWithoutCommit:
		return "unsafeTagWithoutCommit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message renders the user-facing diagnostic for kind and repository name.
func (k Kind) Message(name string) string {
	switch k {
	case LegacyRefspecUsed:
		return fmt.Sprintf("Using deprecated refspec for repository %q.", name)
	case UnsafeTagWithoutCommit:
		return fmt.Sprintf("Using tag without commit for repository %q is unsafe as tags are mutable.", name)
	default:
		return fmt.Sprintf("%s for repository %q.", k, name)
	}
}

type key struct {
	kind Kind
	name string
}

// Registry records which (kind, repository) diagnostics were already emitted.
// It is safe for concurrent use; the zero value is ready to use.
type Registry struct {
	mu   sync.Mutex
	seen map[key]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[key]struct{})}
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// Default returns the process-wide registry used by the CLI.
func Default() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// RecordIfFirst marks (kind, name) as emitted and reports whether this call
// was the first to do so. Among concurrent callers exactly one gets true.
func (r *Registry) RecordIfFirst(kind Kind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen == nil {
		r.seen = make(map[key]struct{})
	}
	k := key{kind: kind, name: name}
	if _, ok := r.seen[k]; ok {
		return false
	}
	r.seen[k] = struct{}{}
	return true
}

// Emit logs the diagnostic for (kind, name) through logger if it has not been
// emitted before. It returns true when the message was written.
func (r *Registry) Emit(logger *logging.AppLogger, kind Kind, name string) bool {
	if !r.RecordIfFirst(kind, name) {
		return false
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	logger.Warn(kind.Message(name))
	return true
}

// Len returns the number of recorded diagnostics. The orchestrator reports it
// when a run finishes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Reset forgets every recorded diagnostic so a new run in the same process
// emits them again.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[key]struct{})
}
