package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ValidatePathSecurity performs security validation on a clone path.
// This function checks for path traversal and dangerous path patterns.
//
// The function validates:
//   - Empty or whitespace-only paths
//   - NUL bytes, which no filesystem accepts
//   - ".." path segments in the raw input
//   - Absolute paths that point into reserved system directories
//
// Parameters:
//   - path: The file path to validate
//
// Returns:
//   - error: Validation errors if the path is considered unsafe
//
// Security considerations:
//   - This function performs static analysis apart from symlink resolution in
//     IsReservedDirectory
//   - Relative paths are only checked for traversal; callers join them onto a
//     trusted base directory first
//
// Usage example:
//
//	if err := fileops.ValidatePathSecurity("../../etc/passwd"); err != nil {
//	    log.Printf("Unsafe path detected: %v", err)
//	    return err
//	}
func ValidatePathSecurity(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte")
	}

	// Check for traversal segments in raw input. A name like "file..txt" is fine.
	for _, segment := range strings.FieldsFunc(path, isSeparator) {
		if segment == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}

	if filepath.IsAbs(path) && IsReservedDirectory(filepath.Clean(path)) {
		return fmt.Errorf("path %s is inside a reserved system directory", path)
	}

	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// ExpandPath expands a path that starts with "~/" (or is exactly "~") to the
// user's home directory.
//
// Parameters:
//   - path: The path to expand, which may start with "~/"
//
// Returns:
//   - string: The expanded path, or the original path if it doesn't start with "~"
//
// Usage example:
//
//	expanded := fileops.ExpandPath("~/work/layers")
//	// Returns something like "/home/user/work/layers"
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// IsReservedDirectory checks if the path is a system or reserved directory
// that must not receive repository clones.
//
// Parameters:
//   - path: The path to check
//
// Returns:
//   - bool: true if the path is reserved/dangerous, false otherwise
//
// The function checks:
//   - System directories (like /etc, /bin, C:\Windows, etc.)
//   - Credential directories of the current user (~/.ssh, ~/.gnupg)
//   - Resolves symlinks to check final destinations
//
// The current user's home directory is never reserved itself, which keeps
// /root usable when refsync runs as root inside a build container.
//
// Usage example:
//
//	if fileops.IsReservedDirectory("/etc/passwd") {
//	    return fmt.Errorf("cannot use system directory")
//	}
func IsReservedDirectory(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return true // If we can't resolve it, treat as reserved
	}
	absPath = filepath.Clean(absPath)

	if resolvedPath, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolvedPath
	}

	if absPath == "/" || absPath == "\\" || strings.EqualFold(absPath, "C:\\") {
		return true
	}

	for _, reserved := range getReservedDirectories() {
		reservedAbs, err := filepath.Abs(reserved)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(reservedAbs); err == nil {
			reservedAbs = resolved
		}
		reservedAbs = filepath.Clean(reservedAbs)

		if strings.EqualFold(absPath, reservedAbs) {
			return true
		}

		reservedPrefix := strings.ToLower(reservedAbs) + string(os.PathSeparator)
		if strings.HasPrefix(strings.ToLower(absPath), reservedPrefix) {
			if isUserTempDirectory(absPath) {
				continue
			}
			return true
		}
	}

	return false
}

// getReservedDirectories returns platform-specific reserved directories
func getReservedDirectories() []string {
	var reservedDirs []string

	switch runtime.GOOS {
	case "windows":
		reservedDirs = []string{
			"C:\\Windows",
			"C:\\Program Files",
			"C:\\Program Files (x86)",
			"C:\\System32",
			"C:\\ProgramData\\Microsoft",
		}

	case "darwin":
		reservedDirs = []string{
			"/System",
			"/usr/bin",
			"/usr/sbin",
			"/bin",
			"/sbin",
			"/etc",
			"/var/log",
			"/var/db",
			"/var/root",
			"/Library/System",
			"/Applications",
			"/private/etc",
		}

	default: // Linux and other Unix
		reservedDirs = []string{
			"/bin",
			"/sbin",
			"/usr/bin",
			"/usr/sbin",
			"/etc",
			"/boot",
			"/dev",
			"/proc",
			"/sys",
			"/var/log",
			"/var/lib",
			"/var/cache",
			"/root",
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return reservedDirs
	}
	home = filepath.Clean(home)

	filtered := reservedDirs[:0]
	for _, dir := range reservedDirs {
		if dir == home {
			continue
		}
		filtered = append(filtered, dir)
	}

	return append(filtered,
		filepath.Join(home, ".ssh"),
		filepath.Join(home, ".gnupg"),
	)
}

// isUserTempDirectory detects legitimate user temp directories
func isUserTempDirectory(path string) bool {
	// macOS: /var/folders/xx/yyyy/T/ are user temp dirs
	if runtime.GOOS == "darwin" && strings.Contains(path, "/var/folders/") {
		return true
	}

	if runtime.GOOS == "linux" && (strings.HasPrefix(path, "/tmp/") || path == "/tmp") {
		return true
	}

	if runtime.GOOS == "windows" {
		lower := strings.ToLower(path)
		if strings.Contains(lower, "\\temp\\") || strings.Contains(lower, "\\tmp\\") {
			return true
		}
	}

	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(os.TempDir()))
}
