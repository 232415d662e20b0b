package repository

import (
	"fmt"
	"strings"
)

// RepoSpec is the declarative description of one repository's desired state,
// as read from a project file. It is a value type; nothing in refsync mutates
// a RepoSpec after the loader produced it.
//
// Reference fields are kept exactly as written by the user (including any
// "refs/heads/" or "refs/tags/" prefix). Interpreting and validating them is
// the job of the refspec package.
type RepoSpec struct {
	// Name is the unique key of the repository within a project. It is used
	// in diagnostics and as the default clone directory name.
	Name string

	// URL is the remote to fetch from. An empty URL means the clone already
	// exists locally and is never fetched.
	URL string

	// Commit pins the checkout to an exact revision.
	Commit string

	// Branch selects a branch to follow. When Commit is also set the commit
	// wins and the branch is informational.
	Branch string

	// Tag selects a tag to check out.
	Tag string

	// LegacyRefspec is the deprecated single-field reference syntax.
	LegacyRefspec string

	// Path is the absolute directory of the local clone.
	Path string
}

// IsRemote returns true if the repository has a remote URL to fetch from.
func (r RepoSpec) IsRemote() bool {
	return strings.TrimSpace(r.URL) != ""
}

// IsLocal returns true if the repository is a url-less local checkout.
func (r RepoSpec) IsLocal() bool {
	return !r.IsRemote()
}

// HasModernRef returns true if any of commit, branch or tag is set.
func (r RepoSpec) HasModernRef() bool {
	return r.Commit != "" || r.Branch != "" || r.Tag != ""
}

// HasRef returns true if any reference field, legacy or modern, is set.
func (r RepoSpec) HasRef() bool {
	return r.HasModernRef() || r.LegacyRefspec != ""
}

// String returns a compact description used in log output.
func (r RepoSpec) String() string {
	var parts []string
	if r.Commit != "" {
		parts = append(parts, "commit="+r.Commit)
	}
	if r.Branch != "" {
		parts = append(parts, "branch="+r.Branch)
	}
	if r.Tag != "" {
		parts = append(parts, "tag="+r.Tag)
	}
	if r.LegacyRefspec != "" {
		parts = append(parts, "refspec="+r.LegacyRefspec)
	}
	if len(parts) == 0 {
		parts = append(parts, "no reference")
	}

	source := "local"
	if r.IsRemote() {
		source = r.URL
	}
	return fmt.Sprintf("%s (%s, %s)", r.Name, source, strings.Join(parts, " "))
}
