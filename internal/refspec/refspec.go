// Package refspec turns the reference fields of a RepoSpec into a single
// validated target state.
//
// Precedence is fixed: a commit always wins and yields a detached checkout; a
// tag comes next and a branch last. Branch and tag names are normalized to
// their short form, so "refs/heads/master" and "master" resolve identically,
// and are later looked up only through their fully qualified reference. That
// keeps a tag and a branch of the same name apart.
package refspec

import (
	"strings"

	"refsync/internal/vcs"
)

// Kind is the variant of a ResolvedRef.
type Kind int

const (
	// Local means "keep whatever the local clone has". Only url-less
	// repositories without any reference resolve to it.
	Local Kind = iota
	// DetachedCommit checks out an exact revision with a detached HEAD.
	DetachedCommit
	// Branch checks out a branch that tracks origin.
	Branch
	// Tag checks out a tag with a detached HEAD.
	Tag
)

func (k Kind) String() string {
	switch k {
	case DetachedCommit:
		return "commit"
	case Branch:
		return "branch"
	case Tag:
		return "tag"
	default:
		return "local"
	}
}

// ResolvedRef is the unambiguous target state of one repository.
type ResolvedRef struct {
	Kind Kind

	// Commit is the revision to detach at (DetachedCommit).
	Commit string

	// Branch is the short branch name (Branch). For DetachedCommit it records
	// a branch that was also configured; it does not influence the checkout.
	Branch string

	// Tag is the short tag name (Tag). For DetachedCommit it names a tag that
	// must dereference to Commit.
	Tag string

	// Legacy is set when the reference came from the deprecated refspec.
	Legacy bool
}

// Ref returns the fully qualified reference the checkout follows, or the
// commit for DetachedCommit, or "" for Local.
func (r ResolvedRef) Ref() string {
	switch r.Kind {
	case DetachedCommit:
		return r.Commit
	case Branch:
		return vcs.BranchPrefix + r.Branch
	case Tag:
		return vcs.TagPrefix + r.Tag
	default:
		return ""
	}
}

// NeedsTagCheck reports whether a tag must be verified against the commit.
func (r ResolvedRef) NeedsTagCheck() bool {
	return r.Kind == DetachedCommit && r.Tag != ""
}

func (r ResolvedRef) String() string {
	switch r.Kind {
	case DetachedCommit:
		s := "commit " + r.Commit
		if r.Tag != "" {
			s += " (tag " + r.Tag + ")"
		}
		return s
	case Branch:
		return "branch " + r.Branch
	case Tag:
		return "tag " + r.Tag
	default:
		return "local state"
	}
}

// shortBranch strips refs/heads/ from name. ok is false when name is fully
// qualified under a different namespace.
func shortBranch(name string) (string, bool) {
	if s, found := strings.CutPrefix(name, vcs.BranchPrefix); found {
		return s, true
	}
	return name, !strings.HasPrefix(name, "refs/")
}

// shortTag strips refs/tags/ from name. ok is false when name is fully
// qualified under a different namespace.
func shortTag(name string) (string, bool) {
	if s, found := strings.CutPrefix(name, vcs.TagPrefix); found {
		return s, true
	}
	return name, !strings.HasPrefix(name, "refs/")
}

// validRefName applies the subset of git-check-ref-format rules that matter
// for names coming from a project file.
func validRefName(name string) bool {
	if name == "" || name == "@" {
		return false
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") ||
		strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") ||
		strings.HasSuffix(name, ".lock") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "@{") || strings.Contains(name, "//") {
		return false
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f {
			return false
		}
		switch c {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return false
		}
	}
	return true
}
