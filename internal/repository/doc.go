// Package repository holds the declarative description of the repositories a
// project needs, together with the helpers that turn project-file values into
// safe local clone locations.
//
// # Architecture
//
//   - RepoSpec: immutable description of one repository (name, url, reference
//     fields, clone path). Reference fields are stored verbatim; the refspec
//     package validates and interprets them.
//   - ValidateAll(specs): shape validation run before any work starts. Names
//     must be unique and no two repositories may share a clone directory.
//   - ClonePath(workDir, projectDir, name, path, remote): computes the absolute
//     clone directory for a repository.
//   - ParseGitURL / NormalizeGitURL: remote URL parsing for host lookup and
//     origin comparison.
//   - CredentialManager: per-host HTTPS tokens in the OS keyring.
//
// Usage:
//
//	path, err := repository.ClonePath(workDir, projectDir, "kas", "", true)
//	if err != nil {
//	    return err
//	}
//	spec := repository.RepoSpec{Name: "kas", URL: url, Branch: "master", Path: path}
//	if err := repository.ValidateAll([]repository.RepoSpec{spec}); err != nil {
//	    return fmt.Errorf("invalid project: %w", err)
//	}
//
// # Credentials
//
// Tokens are stored under the "refsync" keyring service with one key per
// host. Only HTTPS remotes use them; SSH remotes rely on the user's agent.
//
//	cm := repository.NewCredentialManager()
//	token, err := cm.TokenForURL("https://git.example.com/layers/meta.git")
package repository
