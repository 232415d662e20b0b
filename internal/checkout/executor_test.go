package checkout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refsync/internal/logging"
	"refsync/internal/refspec"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/internal/vcs/fake"
)

const upstreamURL = "https://example.com/kas.git"

type fixture struct {
	backend *fake.Backend
	remote  *fake.Remote
	c1, c2  string
	path    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: fake.NewBackend(),
		c1:      fake.Hash("c1"),
		c2:      fake.Hash("c2"),
		path:    filepath.Join(t.TempDir(), "kas"),
	}
	f.remote = f.backend.AddRemote(upstreamURL).
		SetBranch("master", f.c2).
		SetTag("3.0.1", f.c1)
	return f
}

func (f *fixture) executor(opts Options) *Executor {
	logger, _ := logging.NewTestLogger()
	return New(f.backend, logger, opts)
}

func (f *fixture) spec() repository.RepoSpec {
	return repository.RepoSpec{Name: "kas", URL: upstreamURL, Path: f.path}
}

func (f *fixture) ops() []string {
	return f.backend.Repo(f.path).Ops()
}

func TestConvergeCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.executor(Options{})
	ref := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1}

	res, err := e.Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.True(t, res.Cloned)
	assert.True(t, res.Fetched)
	assert.True(t, res.Changed)
	assert.Equal(t, vcs.HeadState{Hash: f.c1}, res.Head)
	assert.Equal(t, []string{"init", "fetch", "checkout-detached " + f.c1}, f.ops())

	f.backend.Repo(f.path).ResetOps()
	res, err = e.Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.False(t, res.Cloned)
	assert.False(t, res.Fetched)
	assert.False(t, res.Changed)
	assert.Empty(t, f.ops())
}

func TestConvergeAbbreviatedCommit(t *testing.T) {
	f := newFixture(t)
	ref := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1[:10]}

	res, err := f.executor(Options{}).Converge(context.Background(), f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, f.c1, res.Head.Hash)
}

func TestConvergeBranch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"}

	res, err := f.executor(Options{}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: f.c2}, res.Head)
	assert.True(t, f.backend.Repo(f.path).Tracking("master"))

	// Upstream moves on; without --update the local branch stays put.
	c3 := fake.Hash("c3")
	f.remote.SetBranch("master", c3)
	f.backend.Repo(f.path).ResetOps()

	res, err = f.executor(Options{}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, f.c2, res.Head.Hash)
	assert.Empty(t, f.ops())

	res, err = f.executor(Options{Update: true}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: c3}, res.Head)
	assert.Equal(t, []string{"fetch", "checkout-branch master " + c3}, f.ops())
}

func TestConvergeMissingBranch(t *testing.T) {
	f := newFixture(t)
	ref := refspec.ResolvedRef{Kind: refspec.Branch, Branch: "nope"}

	_, err := f.executor(Options{}).Converge(context.Background(), f.spec(), ref)
	require.Error(t, err)

	var coErr *CheckoutError
	require.ErrorAs(t, err, &coErr)
	assert.Equal(t, "resolve", coErr.Op)
	assert.Equal(t, vcs.UnknownReference, coErr.Type())
	assert.ErrorIs(t, err, ErrCheckout)
}

func TestConvergeTag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"}

	res, err := f.executor(Options{}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Hash: f.c1}, res.Head)

	f.backend.Repo(f.path).ResetOps()
	_, err = f.executor(Options{}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Empty(t, f.ops())

	// --update refreshes tags even when the tag is present.
	_, err = f.executor(Options{Update: true}).Converge(ctx, f.spec(), ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, f.ops())
}

func TestConvergeTagWinsOverLikeNamedBranch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.executor(Options{}).Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"})
	require.NoError(t, err)
	f.backend.Repo(f.path).SetLocalBranch("3.0.1", f.c2)

	res, err := f.executor(Options{}).Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"})
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Hash: f.c1}, res.Head)
}

func TestConvergeBranchWinsOverLikeNamedTag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	branch := refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"}

	_, err := f.executor(Options{}).Converge(ctx, f.spec(), branch)
	require.NoError(t, err)

	repo := f.backend.Repo(f.path)
	repo.SetLocalTag("master", f.c1)
	_, err = f.executor(Options{}).Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1})
	require.NoError(t, err)

	res, err := f.executor(Options{}).Converge(ctx, f.spec(), branch)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: f.c2}, res.Head)
}

func TestConvergeSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.executor(Options{})
	commit := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1}
	branch := refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"}

	for i := 0; i < 2; i++ {
		res, err := e.Converge(ctx, f.spec(), commit)
		require.NoError(t, err)
		assert.Equal(t, vcs.HeadState{Hash: f.c1}, res.Head)

		res, err = e.Converge(ctx, f.spec(), branch)
		require.NoError(t, err)
		assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: f.c2}, res.Head)
	}
	assert.Equal(t, []string{
		"init",
		"fetch",
		"checkout-detached " + f.c1,
		"checkout-branch master " + f.c2,
		"checkout-detached " + f.c1,
		"checkout-branch master " + f.c2,
	}, f.ops())
}

func TestConvergeTagCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("match", func(t *testing.T) {
		f := newFixture(t)
		ref := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1, Tag: "3.0.1"}
		res, err := f.executor(Options{}).Converge(ctx, f.spec(), ref)
		require.NoError(t, err)
		assert.Equal(t, f.c1, res.Head.Hash)
	})

	t.Run("mismatch", func(t *testing.T) {
		f := newFixture(t)
		ref := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c2, Tag: "3.0.1"}
		_, err := f.executor(Options{}).Converge(ctx, f.spec(), ref)
		require.Error(t, err)
		assert.Equal(t, refspec.TagCommitMismatch, refspec.KindOf(err))
		assert.False(t, errors.Is(err, ErrCheckout))
		assert.Equal(t, []string{"init", "fetch"}, f.ops())
	})
}

func TestConvergeMissingCommit(t *testing.T) {
	f := newFixture(t)
	ref := refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: fake.Hash("gone")}

	_, err := f.executor(Options{}).Converge(context.Background(), f.spec(), ref)
	require.Error(t, err)
	var coErr *CheckoutError
	require.ErrorAs(t, err, &coErr)
	assert.Equal(t, vcs.UnknownReference, coErr.Type())
	assert.Equal(t, []string{"init", "fetch"}, f.ops())
}

func TestConvergeDirtyWorktree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.executor(Options{})

	_, err := e.Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.DetachedCommit, Commit: f.c1})
	require.NoError(t, err)
	f.backend.Repo(f.path).SetDirty(true)

	// Nothing to do: local edits are left alone.
	_, err = e.Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"})
	require.NoError(t, err)

	_, err = e.Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"})
	require.Error(t, err)
	var coErr *CheckoutError
	require.ErrorAs(t, err, &coErr)
	assert.Equal(t, "checkout", coErr.Op)
	assert.Equal(t, vcs.LocalChanges, coErr.Type())
	assert.ErrorIs(t, err, ErrDirtyWorktree)

	assert.Equal(t, vcs.HeadState{Hash: f.c1}, f.backend.Repo(f.path).HeadState())
}

func TestConvergeLocalRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	local := fake.Hash("local")
	f.backend.AddRepo(f.path, local)
	spec := repository.RepoSpec{Name: "meta", Path: f.path}

	res, err := f.executor(Options{}).Converge(ctx, spec, refspec.ResolvedRef{Kind: refspec.Local})
	require.NoError(t, err)
	assert.Equal(t, local, res.Head.Hash)
	assert.False(t, res.Fetched)
	assert.Empty(t, f.ops())

	_, err = f.executor(Options{}).Converge(ctx, spec, refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"})
	require.Error(t, err)
	assert.Equal(t, vcs.UnknownReference, err.(*CheckoutError).Type())
	assert.Empty(t, f.ops())
}

func TestConvergeLocalWithoutClone(t *testing.T) {
	testCases := map[string]struct {
		setup func(t *testing.T, dir string) string
	}{
		"directory without version control": {
			setup: func(t *testing.T, dir string) string {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "kas.yml"), []byte("header:\n  version: 1\n"), 0o644))
				return dir
			},
		},
		"subdirectory of a clone": {
			setup: func(t *testing.T, dir string) string {
				conf := filepath.Join(dir, "conf")
				require.NoError(t, os.MkdirAll(conf, 0o755))
				return conf
			},
		},
		"missing directory": {
			setup: func(t *testing.T, dir string) string {
				return filepath.Join(dir, "absent")
			},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, os.MkdirAll(f.path, 0o755))
			f.backend.AddRepo(filepath.Dir(f.path), fake.Hash("outer"))
			path := tc.setup(t, f.path)
			spec := repository.RepoSpec{Name: "meta", Path: path}

			res, err := f.executor(Options{}).Converge(context.Background(), spec, refspec.ResolvedRef{Kind: refspec.Local})
			require.NoError(t, err)
			assert.Equal(t, Result{}, res)
			assert.Nil(t, f.backend.Repo(path))
			assert.Empty(t, f.backend.Repo(filepath.Dir(f.path)).Ops())
		})
	}
}

func TestConvergeNoClone(t *testing.T) {
	f := newFixture(t)
	spec := repository.RepoSpec{Name: "meta", Path: f.path}

	// A reference on a url-less repository needs an existing clone.
	_, err := f.executor(Options{}).Converge(context.Background(), spec, refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoClone)
	assert.Nil(t, f.backend.Repo(f.path))
}

func TestConvergeOccupiedDirectory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.path, "notes.txt"), []byte("x"), 0o644))

	_, err := f.executor(Options{}).Converge(context.Background(), f.spec(), refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOccupied)
	assert.Nil(t, f.backend.Repo(f.path))
}

func TestConvergeFetchFailure(t *testing.T) {
	f := newFixture(t)
	spec := f.spec()
	spec.URL = "https://example.com/missing.git"

	_, err := f.executor(Options{}).Converge(context.Background(), spec, refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"})
	require.Error(t, err)

	var coErr *CheckoutError
	require.ErrorAs(t, err, &coErr)
	assert.Equal(t, "fetch", coErr.Op)
	assert.Equal(t, vcs.RepositoryNotFound, coErr.Type())
	assert.Contains(t, coErr.Diagnostic(), "does not appear to be a git repository")
}

type staticTokens map[string]string

func (s staticTokens) TokenForURL(url string) (string, error) {
	return s[url], nil
}

func TestConvergeTokenFallback(t *testing.T) {
	ctx := context.Background()
	ref := refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"}

	t.Run("token accepted", func(t *testing.T) {
		f := newFixture(t)
		f.remote.RequireToken("s3cret")
		e := f.executor(Options{Tokens: staticTokens{upstreamURL: "s3cret"}})

		_, err := e.Converge(ctx, f.spec(), ref)
		require.NoError(t, err)
		assert.Equal(t, []string{"init", "fetch-denied", "fetch", "checkout-branch master " + f.c2}, f.ops())
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		f.remote.RequireToken("s3cret")
		e := f.executor(Options{Tokens: staticTokens{}})

		_, err := e.Converge(ctx, f.spec(), ref)
		require.Error(t, err)
		assert.Equal(t, vcs.AuthRequired, err.(*CheckoutError).Type())
	})
}

func TestConvergeUpdatesOriginURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.backend.Init(ctx, f.path, "https://old.example.com/kas.git")
	require.NoError(t, err)

	_, err = f.executor(Options{}).Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Tag, Tag: "3.0.1"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"init",
		"set-url " + upstreamURL,
		"fetch",
		"checkout-detached " + f.c1,
	}, f.ops())
}

func TestConvergeCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.executor(Options{}).Converge(ctx, f.spec(), refspec.ResolvedRef{Kind: refspec.Branch, Branch: "master"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, f.backend.Repo(f.path))
}
