package refspec

import (
	"strings"

	"refsync/internal/logging"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/internal/warnings"
)

// Resolver validates RepoSpec reference fields and picks the target state.
// It never touches a clone; the one check that needs repository data, tag
// against commit, is done by VerifyTagCommit once the tag is available.
type Resolver struct {
	registry *warnings.Registry
	logger   *logging.AppLogger
}

// NewResolver returns a Resolver emitting diagnostics through registry and
// logger. Nil arguments select the process-wide defaults.
func NewResolver(registry *warnings.Registry, logger *logging.AppLogger) *Resolver {
	if registry == nil {
		registry = warnings.Default()
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Registry returns the registry diagnostics are recorded in.
func (r *Resolver) Registry() *warnings.Registry {
	return r.registry
}

// Resolve turns spec into a ResolvedRef or a *RefError.
func (r *Resolver) Resolve(spec repository.RepoSpec) (ResolvedRef, error) {
	commit := strings.TrimSpace(spec.Commit)
	branch := strings.TrimSpace(spec.Branch)
	tag := strings.TrimSpace(spec.Tag)
	legacy := strings.TrimSpace(spec.LegacyRefspec)
	modern := commit != "" || branch != "" || tag != ""

	switch {
	case legacy != "" && modern:
		return ResolvedRef{}, newRefError(spec.Name, MixedRefspec,
			"refspec cannot be combined with commit, branch or tag")
	case legacy == "" && !modern:
		if spec.IsRemote() {
			return ResolvedRef{}, newRefError(spec.Name, NoRefspec,
				"a repository with a url needs a commit, branch or tag")
		}
		return ResolvedRef{Kind: Local}, nil
	}

	var ref ResolvedRef
	if legacy != "" {
		parsed, ok := parseLegacy(legacy)
		if !ok {
			return ResolvedRef{}, newRefError(spec.Name, InvalidReference, "malformed refspec %q", legacy)
		}
		r.registry.Emit(r.logger, warnings.LegacyRefspecUsed, spec.Name)
		commit, branch, tag = parsed.commit, parsed.branch, parsed.tag
		ref.Legacy = true
	}

	if commit != "" {
		if !vcs.IsHashLike(commit) {
			return ResolvedRef{}, newRefError(spec.Name, InvalidReference, "commit %q is not an object id", commit)
		}
		ref.Commit = strings.ToLower(commit)
	}
	if branch != "" {
		short, ok := shortBranch(branch)
		if !ok || !validRefName(short) {
			return ResolvedRef{}, newRefError(spec.Name, InvalidReference, "malformed branch %q", branch)
		}
		ref.Branch = short
	}
	if tag != "" {
		short, ok := shortTag(tag)
		if !ok || !validRefName(short) {
			return ResolvedRef{}, newRefError(spec.Name, InvalidReference, "malformed tag %q", tag)
		}
		ref.Tag = short
	}

	switch {
	case ref.Commit != "":
		ref.Kind = DetachedCommit
	case ref.Tag != "":
		ref.Kind = Tag
		r.registry.Emit(r.logger, warnings.UnsafeTagWithoutCommit, spec.Name)
	default:
		ref.Kind = Branch
	}

	r.logger.Debug("Resolved reference", "repository", spec.Name, "ref", ref.String())
	return ref, nil
}

// Resolution pairs a RepoSpec with its resolved reference.
type Resolution struct {
	Spec repository.RepoSpec
	Ref  ResolvedRef
}

// ResolveAll resolves every spec in order and stops at the first error.
func (r *Resolver) ResolveAll(specs []repository.RepoSpec) ([]Resolution, error) {
	out := make([]Resolution, 0, len(specs))
	for _, spec := range specs {
		ref, err := r.Resolve(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, Resolution{Spec: spec, Ref: ref})
	}
	return out, nil
}
