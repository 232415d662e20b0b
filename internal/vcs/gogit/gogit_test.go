package gogit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refsync/internal/logging"
	"refsync/internal/vcs"
	"refsync/internal/vcs/gittest"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	return New(logger)
}

func initAndFetch(t *testing.T, up *gittest.Upstream) vcs.Repository {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clone")
	repo, err := newBackend(t).Init(ctx, path, up.URL())
	require.NoError(t, err)
	require.NoError(t, repo.Fetch(ctx, vcs.FetchOptions{}))
	return repo
}

func TestOpenNotRepository(t *testing.T) {
	_, err := newBackend(t).Open(context.Background(), t.TempDir())
	require.ErrorIs(t, err, vcs.ErrNotRepository)
}

func TestInitAndRemoteURL(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "nested", "kas")

	repo, err := b.Init(ctx, path, "https://example.com/kas.git")
	require.NoError(t, err)

	url, err := repo.RemoteURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/kas.git", url)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.True(t, head.Symbolic)
	assert.Empty(t, head.Hash)

	require.NoError(t, repo.SetRemoteURL(ctx, "https://example.com/other.git"))

	reopened, err := b.Open(ctx, path)
	require.NoError(t, err)
	url, err = reopened.RemoteURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other.git", url)
}

func TestFetchAndResolve(t *testing.T) {
	ctx := context.Background()
	up := gittest.NewUpstream(t)
	first := up.Head(t)
	second := up.Commit(t, "conf.txt", "v2\n")
	up.Tag(t, "1.0", first)
	up.AnnotatedTag(t, "2.0", second)

	repo := initAndFetch(t, up)

	tests := []struct {
		rev  string
		want string
	}{
		{rev: "refs/remotes/origin/master", want: second},
		{rev: "refs/tags/1.0", want: first},
		{rev: "refs/tags/2.0", want: second},
		{rev: first, want: first},
		{rev: first[:10], want: first},
	}
	for _, tt := range tests {
		t.Run(tt.rev, func(t *testing.T) {
			got, err := repo.ResolveRevision(ctx, tt.rev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := repo.ResolveRevision(ctx, "refs/heads/master")
	assert.ErrorIs(t, err, vcs.ErrRevisionNotFound)
	_, err = repo.ResolveRevision(ctx, "0123456789012345678901234567890123456789")
	assert.ErrorIs(t, err, vcs.ErrRevisionNotFound)

	tags, err := repo.TagsAt(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.0"}, tags)
}

func TestFetchMovedTag(t *testing.T) {
	ctx := context.Background()
	up := gittest.NewUpstream(t)
	first := up.Head(t)
	up.Tag(t, "moving", first)

	repo := initAndFetch(t, up)

	second := up.Commit(t, "conf.txt", "v2\n")
	up.Tag(t, "moving", second)
	require.NoError(t, repo.Fetch(ctx, vcs.FetchOptions{}))

	got, err := repo.ResolveRevision(ctx, "refs/tags/moving")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestFetchMissingRemote(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clone")
	repo, err := newBackend(t).Init(ctx, path, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	err = repo.Fetch(ctx, vcs.FetchOptions{})
	require.Error(t, err)
	var cmdErr *vcs.CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestCheckoutDetachedAndBranch(t *testing.T) {
	ctx := context.Background()
	up := gittest.NewUpstream(t)
	first := up.Head(t)
	second := up.Commit(t, "conf.txt", "v2\n")

	repo := initAndFetch(t, up)

	require.NoError(t, repo.CheckoutDetached(ctx, first))
	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Hash: first}, head)
	assert.NoFileExists(t, filepath.Join(repo.Path(), "conf.txt"))

	require.NoError(t, repo.CheckoutBranch(ctx, "master", second, true))
	head, err = repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, vcs.HeadState{Symbolic: true, Ref: "refs/heads/master", Hash: second}, head)
	assert.FileExists(t, filepath.Join(repo.Path(), "conf.txt"))

	got, err := repo.ResolveRevision(ctx, "refs/heads/master")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestIsDirtyAndRefusedCheckout(t *testing.T) {
	ctx := context.Background()
	up := gittest.NewUpstream(t)
	first := up.Head(t)
	second := up.Commit(t, "README.md", "v2\n")

	repo := initAndFetch(t, up)
	require.NoError(t, repo.CheckoutDetached(ctx, second))

	dirty, err := repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	gittest.Modify(t, repo.Path(), "README.md")
	dirty, err = repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	err = repo.CheckoutDetached(ctx, first)
	require.Error(t, err)
	assert.Equal(t, vcs.LocalChanges, vcs.TypeOf(err))

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, head.Hash)
}
