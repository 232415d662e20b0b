package fileops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInspectDirectory(t *testing.T) {
	base := t.TempDir()

	emptyDir := filepath.Join(base, "empty")
	if err := os.Mkdir(emptyDir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	gitDir := filepath.Join(base, "clone")
	if err := os.MkdirAll(filepath.Join(gitDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	occupied := filepath.Join(base, "occupied")
	if err := os.MkdirAll(occupied, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(occupied, "README"), []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	regularFile := filepath.Join(base, "file")
	if err := os.WriteFile(regularFile, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := map[string]struct {
		path        string
		expected    DirectoryState
		expectError bool
		canClone    bool
	}{
		"missing":      {path: filepath.Join(base, "missing"), expected: DirectoryMissing, canClone: true},
		"empty":        {path: emptyDir, expected: DirectoryEmpty, canClone: true},
		"git":          {path: gitDir, expected: DirectoryGit},
		"occupied":     {path: occupied, expected: DirectoryOccupied},
		"regular file": {path: regularFile, expected: DirectoryOccupied, expectError: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			state, err := InspectDirectory(tc.path)
			if tc.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if state != tc.expected {
				t.Errorf("InspectDirectory(%q) = %s, want %s", tc.path, state, tc.expected)
			}
			if !tc.expectError && state.CanClone() != tc.canClone {
				t.Errorf("CanClone() = %v, want %v", state.CanClone(), tc.canClone)
			}
		})
	}
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsDirEmpty(dir)
	if err != nil {
		t.Fatalf("IsDirEmpty failed: %v", err)
	}
	if !empty {
		t.Error("new temp directory should be empty")
	}

	empty, err = IsDirEmpty(filepath.Join(dir, "does-not-exist"))
	if err != nil {
		t.Fatalf("IsDirEmpty failed for missing directory: %v", err)
	}
	if !empty {
		t.Error("missing directory should count as empty")
	}

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	empty, err = IsDirEmpty(dir)
	if err != nil {
		t.Fatalf("IsDirEmpty failed: %v", err)
	}
	if empty {
		t.Error("directory with a hidden file should not be empty")
	}
}

func TestEnsureDirectoryExists(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "a", "b", "c")

	if err := EnsureDirectoryExists(nested); err != nil {
		t.Fatalf("EnsureDirectoryExists failed: %v", err)
	}
	if err := EnsureDirectoryExists(nested); err != nil {
		t.Fatalf("EnsureDirectoryExists should be idempotent: %v", err)
	}

	info, err := os.Stat(nested)
	if err != nil {
		t.Fatalf("directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("created path is not a directory")
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := EnsureDirectoryExists(filepath.Join(file, "child")); err == nil {
		t.Error("expected error when a parent is a regular file")
	}
}
