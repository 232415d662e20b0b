package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refsync/internal/checkout"
	"refsync/internal/logging"
	"refsync/internal/orchestrator"
	"refsync/internal/refspec"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/internal/vcs/fake"
	"refsync/internal/warnings"
)

const kasURL = "https://github.com/siemens/kas.git"

type fixture struct {
	backend  *fake.Backend
	resolver *refspec.Resolver
	executor *checkout.Executor
	workDir  string
	pinned   string
	tip      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	f := &fixture{
		backend:  fake.NewBackend(),
		resolver: refspec.NewResolver(warnings.NewRegistry(), logger),
		workDir:  t.TempDir(),
		pinned:   fake.Hash("pinned"),
		tip:      fake.Hash("tip"),
	}
	f.executor = checkout.New(f.backend, logger, checkout.Options{})
	f.backend.AddRemote(kasURL).
		Commit(f.pinned).
		SetBranch("master", f.tip).
		SetTag("3.0.1", f.pinned)
	return f
}

func (f *fixture) spec(name string) repository.RepoSpec {
	return repository.RepoSpec{Name: name, URL: kasURL, Path: filepath.Join(f.workDir, name)}
}

// converge puts the clone for spec into the state the spec describes.
func (f *fixture) converge(t *testing.T, spec repository.RepoSpec) {
	t.Helper()
	ref, err := f.resolver.Resolve(spec)
	require.NoError(t, err)
	_, err = f.executor.Converge(context.Background(), spec, ref)
	require.NoError(t, err)
}

func TestCollect(t *testing.T) {
	f := newFixture(t)

	pinned := f.spec("pinned")
	pinned.Commit = f.pinned[:12]
	f.converge(t, pinned)

	follows := f.spec("follows")
	follows.Branch = "master"
	f.converge(t, follows)

	released := f.spec("released")
	released.Tag = "3.0.1"
	f.converge(t, released)

	// Clone exists but sits on a commit instead of the requested branch.
	moved := f.spec("moved")
	moved.Commit = f.pinned
	f.converge(t, moved)
	moved.Commit = ""
	moved.Branch = "master"

	edited := f.spec("edited")
	edited.Branch = "master"
	f.converge(t, edited)
	f.backend.Repo(edited.Path).SetDirty(true)

	missing := f.spec("missing")
	missing.Tag = "3.0.1"

	invalid := f.spec("invalid")

	specs := []repository.RepoSpec{pinned, follows, released, moved, edited, missing, invalid}
	for _, s := range specs[:5] {
		f.backend.Repo(s.Path).ResetOps()
	}
	statuses, err := Collect(context.Background(), f.backend, f.resolver, specs)
	require.NoError(t, err)
	require.Len(t, statuses, len(specs))

	states := make(map[string]string)
	for _, s := range statuses {
		states[s.Name] = s.State()
	}
	assert.Equal(t, map[string]string{
		"pinned":   "ok",
		"follows":  "ok",
		"released": "ok",
		"moved":    "behind",
		"edited":   "dirty",
		"missing":  "missing",
		"invalid":  "invalid",
	}, states)

	assert.Equal(t, []string{"3.0.1"}, statuses[2].Tags)
	assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: f.tip}, statuses[1].Head)
	assert.True(t, statuses[4].InSync)
	assert.Equal(t, refspec.NoRefspec, refspec.KindOf(statuses[6].ResolveErr))

	// Collecting does not touch the clones.
	for _, s := range specs[:5] {
		assert.Empty(t, f.backend.Repo(s.Path).Ops(), s.Name)
	}
}

func TestCollectCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := f.spec("kas")
	spec.Branch = "master"
	statuses, err := Collect(ctx, f.backend, f.resolver, []repository.RepoSpec{spec})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, statuses)
}

func TestCollectLocalDirectory(t *testing.T) {
	f := newFixture(t)
	plain := repository.RepoSpec{Name: "meta", Path: t.TempDir()}
	absent := repository.RepoSpec{Name: "absent", Path: filepath.Join(f.workDir, "absent")}

	statuses, err := Collect(context.Background(), f.backend, f.resolver, []repository.RepoSpec{plain, absent})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "ok", statuses[0].State())
	assert.Equal(t, "missing", statuses[1].State())
}

func sampleStatuses() []RepoStatus {
	return []RepoStatus{
		{
			Name:    "kas",
			Path:    "/work/kas",
			Desired: refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"},
			Present: true,
			Head:    vcs.HeadState{Hash: "907816a5c4094b59a36aec12226e71c461c05b77"},
			Tags:    []string{"3.0.1"},
			InSync:  true,
		},
		{
			Name:    "poky",
			Path:    "/work/poky",
			Desired: refspec.ResolvedRef{Kind: refspec.Branch, Branch: "kirkstone"},
		},
	}
}

func TestRenderText(t *testing.T) {
	out := RenderText(sampleStatuses())

	for _, want := range []string{"REPOSITORY", "kas", "tag 3.0.1", "detached @ 907816a5c409 [3.0.1]", "ok", "poky", "branch kirkstone", "missing"} {
		assert.Contains(t, out, want)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleStatuses())

	assert.Contains(t, md, "| REPOSITORY | DESIRED | HEAD | STATE |\n| --- | --- | --- | --- |\n")
	assert.Contains(t, md, "| kas | tag 3.0.1 | detached @ 907816a5c409 [3.0.1] | ok |\n")
	assert.Contains(t, md, "- **poky** (`/work/poky`): missing\n")

	md = Markdown(sampleStatuses()[:1])
	assert.Contains(t, md, "All repositories are at their requested reference.")
	assert.NotContains(t, md, "Needs attention")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(sampleStatuses(), "notty", 100)
	require.NoError(t, err)
	assert.Contains(t, out, "Repository status")
	assert.Contains(t, out, "poky")
	assert.Contains(t, out, "Needs attention")
}

func TestDetectStyleFromEnvironment(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "light")
	assert.Equal(t, "light", DetectStyle(0))
}

func TestRenderResults(t *testing.T) {
	results := []orchestrator.Result{
		{
			Name:     "kas",
			Status:   orchestrator.StatusSuccess,
			Checkout: checkout.Result{Cloned: true, Head: vcs.HeadState{Hash: "907816a5c4094b59a36aec12226e71c461c05b77"}},
		},
		{Name: "meta-custom", Status: orchestrator.StatusFailed, Error: errors.New("boom")},
		{Name: "poky"},
	}

	out := RenderResults(results)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "kas          detached @ 907816a5c409 (cloned in 0s)")
	assert.Contains(t, lines[1], "meta-custom  failed: boom")
	assert.Contains(t, lines[2], "poky         not started")
	assert.Contains(t, lines[3], "1 succeeded, 1 failed, 0 skipped, 1 not started")
}
