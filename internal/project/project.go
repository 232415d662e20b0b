// Package project reads project files: the list of repositories a build
// needs and the reference each one should be checked out at.
//
// Both YAML and TOML are accepted. Repositories are returned in declaration
// order, which is the order diagnostics are printed in.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"refsync/internal/logging"
	"refsync/internal/repository"
)

// MaxVersion is the newest project file format this build understands.
const MaxVersion = 1

// Format is the encoding of a project file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("unsupported project file %s: want .yml, .yaml or .toml", path)
	}
}

// Entry is one repository as written in the project file.
type Entry struct {
	Name    string `yaml:"-" toml:"-"`
	URL     string `yaml:"url" toml:"url"`
	Commit  string `yaml:"commit" toml:"commit"`
	Branch  string `yaml:"branch" toml:"branch"`
	Tag     string `yaml:"tag" toml:"tag"`
	Refspec string `yaml:"refspec" toml:"refspec"`
	Path    string `yaml:"path" toml:"path"`
}

func (e Entry) hasRef() bool {
	return e.Commit != "" || e.Branch != "" || e.Tag != "" || e.Refspec != ""
}

// Defaults are applied to repositories that name a url but no reference.
type Defaults struct {
	Branch string `yaml:"branch" toml:"branch"`
	Tag    string `yaml:"tag" toml:"tag"`
}

// File is a decoded project file.
type File struct {
	Version  int
	Defaults Defaults
	Repos    []Entry
}

// Project is a loaded project file with clone paths resolved.
type Project struct {
	// Path is the absolute path of the project file.
	Path string
	// Dir is the directory containing the project file.
	Dir     string
	Version int
	Repos   []repository.RepoSpec
}

// Parse decodes a project file and checks its header.
func Parse(data []byte, format Format) (*File, error) {
	var (
		f   *File
		err error
	)
	switch format {
	case FormatYAML:
		f, err = parseYAML(data)
	case FormatTOML:
		f, err = parseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case f.Version == 0:
		return nil, fmt.Errorf("header.version is required")
	case f.Version < 0 || f.Version > MaxVersion:
		return nil, fmt.Errorf("unsupported header.version %d (newest supported is %d)", f.Version, MaxVersion)
	}
	return f, nil
}

// Load reads the project file at path. Relative clone paths are placed under
// workDir.
func Load(path, workDir string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve project path: %w", err)
	}
	format, err := FormatOf(abs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	if workDir, err = filepath.Abs(workDir); err != nil {
		return nil, fmt.Errorf("cannot resolve work directory: %w", err)
	}
	p := &Project{Path: abs, Dir: filepath.Dir(abs), Version: f.Version}
	p.Repos, err = f.Specs(workDir, p.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	logging.Debug("Loaded project", "path", abs, "format", format, "repositories", len(p.Repos))
	return p, nil
}

// Specs turns the entries into RepoSpecs, applying defaults and computing
// clone paths.
func (f *File) Specs(workDir, projectDir string) ([]repository.RepoSpec, error) {
	specs := make([]repository.RepoSpec, 0, len(f.Repos))
	for _, e := range f.Repos {
		e = trimEntry(e)
		if e.URL != "" && !e.hasRef() {
			e.Branch = f.Defaults.Branch
			e.Tag = f.Defaults.Tag
		}

		path, err := repository.ClonePath(workDir, projectDir, e.Name, e.Path, e.URL != "")
		if err != nil {
			return nil, err
		}
		specs = append(specs, repository.RepoSpec{
			Name:          e.Name,
			URL:           e.URL,
			Commit:        e.Commit,
			Branch:        e.Branch,
			Tag:           e.Tag,
			LegacyRefspec: e.Refspec,
			Path:          path,
		})
	}
	return specs, nil
}

func trimEntry(e Entry) Entry {
	e.URL = strings.TrimSpace(e.URL)
	e.Commit = strings.TrimSpace(e.Commit)
	e.Branch = strings.TrimSpace(e.Branch)
	e.Tag = strings.TrimSpace(e.Tag)
	e.Refspec = strings.TrimSpace(e.Refspec)
	e.Path = strings.TrimSpace(e.Path)
	return e
}
