package repository

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"refsync/pkg/fileops"
)

// ClonePath computes the absolute clone directory of a repository.
//
// Rules:
//   - An explicit path is expanded ("~/") and joined onto workDir when relative
//   - Without a path, a remote repository lives at <workDir>/<name>
//   - Without a path, a url-less repository is the project directory itself
//
// Parameters:
//   - workDir: Absolute work directory
//   - projectDir: Absolute directory of the project file
//   - name: Repository name
//   - path: Path as written in the project file (may be empty)
//   - remote: Whether the repository has a URL
//
// Returns:
//   - string: Cleaned absolute clone path
//   - error: Security validation failures
func ClonePath(workDir, projectDir, name, path string, remote bool) (string, error) {
	var clonePath string
	switch {
	case strings.TrimSpace(path) != "":
		expanded := fileops.ExpandPath(strings.TrimSpace(path))
		if err := fileops.ValidatePathSecurity(expanded); err != nil {
			return "", fmt.Errorf("repository %q: invalid path %q: %w", name, path, err)
		}
		if filepath.IsAbs(expanded) {
			clonePath = expanded
		} else {
			clonePath = filepath.Join(workDir, expanded)
		}
	case remote:
		clonePath = filepath.Join(workDir, name)
	default:
		clonePath = projectDir
	}

	clonePath = filepath.Clean(clonePath)
	if !filepath.IsAbs(clonePath) {
		abs, err := filepath.Abs(clonePath)
		if err != nil {
			return "", fmt.Errorf("cannot resolve absolute path: %w", err)
		}
		clonePath = abs
	}

	return clonePath, nil
}

// GitURLInfo contains the parsed components of a Git remote URL.
type GitURLInfo struct {
	Scheme string // "https", "http", "ssh", "git" or "file"
	Host   string // Host without port or user (empty for local paths)
	Path   string // Repository path on the host, or the local path
}

// Name returns the last path component without a ".git" suffix.
func (i GitURLInfo) Name() string {
	base := filepath.Base(strings.TrimRight(filepath.ToSlash(i.Path), "/"))
	return strings.TrimSuffix(base, ".git")
}

var scpLikeURL = regexp.MustCompile(`^(?:[^@/\s]+@)?([^:/\s]{2,}):(.+)$`)

// ParseGitURL parses a Git remote URL. It supports URLs with a scheme
// (https://host/owner/repo.git, ssh://git@host/repo), scp-like SSH addresses
// (git@host:owner/repo.git) and plain local paths.
//
// Example:
//
//	info, err := repository.ParseGitURL("https://github.com/siemens/kas.git")
//	// info.Host = "github.com", info.Path = "siemens/kas.git"
func ParseGitURL(gitURL string) (GitURLInfo, error) {
	gitURL = strings.TrimSpace(gitURL)
	if gitURL == "" {
		return GitURLInfo{}, fmt.Errorf("URL cannot be empty")
	}

	if strings.Contains(gitURL, "://") {
		parsedURL, err := url.Parse(gitURL)
		if err != nil {
			return GitURLInfo{}, fmt.Errorf("invalid URL format: %w", err)
		}
		if parsedURL.Scheme == "file" {
			return GitURLInfo{Scheme: "file", Path: parsedURL.Path}, nil
		}
		if parsedURL.Host == "" {
			return GitURLInfo{}, fmt.Errorf("URL missing host component")
		}
		return GitURLInfo{
			Scheme: parsedURL.Scheme,
			Host:   strings.ToLower(parsedURL.Hostname()),
			Path:   strings.Trim(parsedURL.Path, "/"),
		}, nil
	}

	if !filepath.IsAbs(gitURL) {
		if matches := scpLikeURL.FindStringSubmatch(gitURL); matches != nil {
			return GitURLInfo{
				Scheme: "ssh",
				Host:   strings.ToLower(matches[1]),
				Path:   strings.Trim(matches[2], "/"),
			}, nil
		}
	}

	return GitURLInfo{Scheme: "file", Path: gitURL}, nil
}

// NormalizeGitURL normalizes git URLs for comparison. Two URLs that normalize
// to the same string address the same repository.
func NormalizeGitURL(gitURL string) string {
	info, err := ParseGitURL(gitURL)
	if err != nil {
		return strings.TrimSpace(gitURL)
	}
	if info.Scheme == "file" {
		return filepath.Clean(info.Path)
	}
	return info.Host + "/" + strings.TrimSuffix(info.Path, ".git")
}
