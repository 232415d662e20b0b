// Package fileops provides path handling and directory checks for the
// directories refsync writes clones into.
//
// # Path Validation
//
// Clone paths come from project files and are therefore untrusted. Combine the
// helpers in this order before touching the filesystem:
//
//  1. ExpandPath() - expands "~/" to the user's home directory
//  2. ValidatePathSecurity() - rejects empty paths, ".." segments and system directories
//  3. IsDirEmpty() / InspectDirectory() - decides whether a clone may be created
//
// # Example: Preparing a Clone Directory
//
//	path := filepath.Clean(fileops.ExpandPath(raw))
//	if err := fileops.ValidatePathSecurity(path); err != nil {
//	    return fmt.Errorf("clone path: %w", err)
//	}
//	state, err := fileops.InspectDirectory(path)
//	if err != nil {
//	    return err
//	}
//	if state == fileops.DirectoryMissing {
//	    err = fileops.EnsureDirectoryExists(filepath.Dir(path))
//	}
//
// # Directory Operations
//
// EnsureDirectoryExists() creates directories safely with proper permissions (0755).
package fileops
