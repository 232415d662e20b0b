package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirectoryState describes what InspectDirectory found at a clone path.
type DirectoryState int

const (
	// DirectoryMissing means nothing exists at the path.
	DirectoryMissing DirectoryState = iota
	// DirectoryEmpty means the path is an existing, empty directory.
	DirectoryEmpty
	// DirectoryGit means the directory has a .git entry (worktree or gitfile).
	DirectoryGit
	// DirectoryOccupied means the directory has content but no .git entry.
	DirectoryOccupied
)

// String returns a human-readable description of the directory state
func (ds DirectoryState) String() string {
	switch ds {
	case DirectoryMissing:
		return "does not exist"
	case DirectoryEmpty:
		return "empty"
	case DirectoryGit:
		return "git repository"
	case DirectoryOccupied:
		return "contains non-git content"
	default:
		return "unknown state"
	}
}

// CanClone reports whether a fresh clone may be created at a path in this state.
func (ds DirectoryState) CanClone() bool {
	return ds == DirectoryMissing || ds == DirectoryEmpty
}

// InspectDirectory classifies a clone path without modifying it.
//
// Parameters:
//   - path: Directory to inspect
//
// Returns:
//   - DirectoryState: What was found at the path
//   - error: Access errors, or a regular file sitting where a directory is expected
func InspectDirectory(path string) (DirectoryState, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return DirectoryMissing, nil
	}
	if err != nil {
		return DirectoryMissing, fmt.Errorf("cannot access directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return DirectoryOccupied, fmt.Errorf("path exists but is not a directory: %s", path)
	}

	empty, err := IsDirEmpty(path)
	if err != nil {
		return DirectoryOccupied, err
	}
	if empty {
		return DirectoryEmpty, nil
	}

	if _, err := os.Lstat(filepath.Join(path, ".git")); err == nil {
		return DirectoryGit, nil
	}
	return DirectoryOccupied, nil
}

// IsDirEmpty reports whether the directory at path has no entries. A missing
// directory counts as empty.
//
// Usage example:
//
//	empty, err := fileops.IsDirEmpty("/work/kas")
//	if err != nil {
//	    return err
//	}
func IsDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot open directory %s: %w", path, err)
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot read directory %s: %w", path, err)
	}
	return false, nil
}

// EnsureDirectoryExists creates a directory and all necessary parent directories.
// This is equivalent to `mkdir -p` and is safe to call multiple times.
//
// The function sets directory permissions to 0755 (readable and executable by all,
// writable by owner only).
//
// Usage example:
//
//	if err := fileops.EnsureDirectoryExists("/path/to/nested/directory"); err != nil {
//	    log.Fatalf("Failed to create directory: %v", err)
//	}
func EnsureDirectoryExists(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
