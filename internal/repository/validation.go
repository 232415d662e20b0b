package repository

import (
	"fmt"
	"path/filepath"
	"strings"

	"refsync/pkg/fileops"
)

// ValidateRepoSpec validates the shape of a single repository spec. Reference
// consistency is not checked here; see refspec.Resolver.
//
// Validation checks:
//   - Name is valid (see ValidateRepositoryName)
//   - Path is absolute and passes fileops.ValidatePathSecurity
//
// Usage:
//
//	if err := repository.ValidateRepoSpec(spec); err != nil {
//	    return fmt.Errorf("invalid repository: %w", err)
//	}
func ValidateRepoSpec(spec RepoSpec) error {
	if err := ValidateRepositoryName(spec.Name); err != nil {
		return err
	}

	if strings.TrimSpace(spec.Path) == "" {
		return fmt.Errorf("repository %q: clone path cannot be empty", spec.Name)
	}
	if !filepath.IsAbs(spec.Path) {
		return fmt.Errorf("repository %q: clone path must be absolute: %s", spec.Name, spec.Path)
	}
	if err := fileops.ValidatePathSecurity(spec.Path); err != nil {
		return fmt.Errorf("repository %q: invalid clone path: %w", spec.Name, err)
	}

	return nil
}

// ValidateAll validates a list of repository specs for structural correctness
// and uniqueness constraints. This should be called before any repository is
// fetched or checked out.
//
// Validation checks:
//   - Each spec is structurally valid
//   - No duplicate repository names
//   - No two repositories share a clone directory, which guarantees that no
//     two workers ever operate on the same clone
//
// Returns:
//   - error: Detailed validation error, nil if all valid
func ValidateAll(specs []RepoSpec) error {
	var validationErrors []string
	for i, spec := range specs {
		if err := ValidateRepoSpec(spec); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("repository[%d]: %v", i, err))
		}
	}
	if len(validationErrors) > 0 {
		return fmt.Errorf("repository validation failed:\n  - %s",
			strings.Join(validationErrors, "\n  - "))
	}

	seenNames := make(map[string]struct{}, len(specs))
	seenPaths := make(map[string]string, len(specs)) // clean path -> name
	for _, spec := range specs {
		if _, exists := seenNames[spec.Name]; exists {
			return fmt.Errorf("duplicate repository name %q", spec.Name)
		}
		seenNames[spec.Name] = struct{}{}

		clean := filepath.Clean(spec.Path)
		if owner, exists := seenPaths[clean]; exists {
			return fmt.Errorf("repositories %q and %q share the clone directory %s",
				owner, spec.Name, clean)
		}
		seenPaths[clean] = spec.Name
	}

	return nil
}

// ValidateRepositoryName validates a repository name for use as a map key and
// default directory name.
//
// Validation rules:
//   - Non-empty after trimming whitespace
//   - Maximum 100 characters
//   - No control characters or path separators
func ValidateRepositoryName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if trimmed != name {
		return fmt.Errorf("repository name %q has leading or trailing whitespace", name)
	}
	if len(trimmed) > 100 {
		return fmt.Errorf("repository name too long (%d characters, maximum 100)", len(trimmed))
	}

	for _, ch := range trimmed {
		if ch < 32 || ch == 127 {
			return fmt.Errorf("repository name contains invalid control characters")
		}
		if ch == '/' || ch == '\\' {
			return fmt.Errorf("repository name %q must not contain path separators", name)
		}
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("repository name %q is not allowed", name)
	}

	return nil
}
