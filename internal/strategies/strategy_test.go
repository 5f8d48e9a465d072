package strategies

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/mocks"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

type resolverFixture struct {
	root     *workspace.Root
	cloner   *mocks.MockCloner
	fetcher  *mocks.MockArchiveFetcher
	metrics  *metrics.Metrics
	resolver *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	root, err := workspace.NewRoot(t.TempDir())
	require.NoError(t, err)

	f := &resolverFixture{
		root:    root,
		cloner:  mocks.NewMockCloner(ctrl),
		fetcher: mocks.NewMockArchiveFetcher(ctrl),
		metrics: metrics.New(),
	}
	f.cloner.EXPECT().Name().Return("cli").AnyTimes()
	f.resolver = NewResolver(&Dependencies{
		Root:    root,
		Cloner:  f.cloner,
		Fetcher: f.fetcher,
		Metrics: f.metrics,
	})
	return f
}

func (f *resolverFixture) rootEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.root.Path())
	require.NoError(t, err)
	return entries
}

func TestSelect(t *testing.T) {
	f := newResolverFixture(t)

	tests := []struct {
		name     string
		opts     domain.RequestOptions
		want     string
		missing  []string
		noSource bool
	}{
		{
			name: "private archive",
			opts: domain.RequestOptions{Git: true, Private: true, Repository: "widget", Owner: "acme", Token: "t"},
			want: StrategyArchive,
		},
		{
			name: "private wins over locator",
			opts: domain.RequestOptions{Git: true, Private: true, Repository: "widget", Owner: "acme", Token: "t", Locator: "https://github.com/x/y"},
			want: StrategyArchive,
		},
		{
			name:    "private missing fields",
			opts:    domain.RequestOptions{Git: true, Private: true, Owner: "acme"},
			missing: []string{"repository", "token"},
		},
		{
			name:     "no locator",
			opts:     domain.RequestOptions{Git: true},
			noSource: true,
		},
		{
			name: "https clone",
			opts: domain.RequestOptions{Git: true, Locator: "https://github.com/acme/widget.git"},
			want: StrategyClone,
		},
		{
			name: "scp clone",
			opts: domain.RequestOptions{Git: true, Locator: "git@github.com:acme/widget.git"},
			want: StrategyClone,
		},
		{
			name: "url without git flag is a path",
			opts: domain.RequestOptions{Locator: "https://github.com/acme/widget.git"},
			want: StrategyLocal,
		},
		{
			name: "git flag with local path",
			opts: domain.RequestOptions{Git: true, Locator: "/srv/app"},
			want: StrategyLocal,
		},
		{
			name: "private without git flag",
			opts: domain.RequestOptions{Private: true, Locator: "/srv/app"},
			want: StrategyLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.resolver.Select(tt.opts)
			switch {
			case tt.missing != nil:
				var missing *domain.MissingSourceError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, tt.missing, missing.Fields)
			case tt.noSource:
				var missing *domain.MissingSourceError
				require.True(t, errors.As(err, &missing))
				assert.Empty(t, missing.Fields)
				assert.Equal(t, "path or url is required", missing.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, s.Name())
			}
		})
	}
}

func TestResolve_Local(t *testing.T) {
	f := newResolverFixture(t)

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{Locator: "/srv/app"})
	require.NoError(t, err)

	assert.Equal(t, "/srv/app", tree.Path)
	assert.False(t, tree.Ephemeral())
	assert.Empty(t, f.rootEntries(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Acquisitions.WithLabelValues(StrategyLocal, metrics.ResultSuccess)))
}

func TestResolve_MissingSourceTouchesNothing(t *testing.T) {
	f := newResolverFixture(t)

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{Git: true, Private: true})
	assert.Nil(t, tree)
	var missing *domain.MissingSourceError
	assert.True(t, errors.As(err, &missing))
	assert.Empty(t, f.rootEntries(t))
}

func TestResolve_Clone(t *testing.T) {
	f := newResolverFixture(t)
	url := "https://github.com/acme/widget.git"

	f.cloner.EXPECT().
		Clone(gomock.Any(), url, "dev", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, dir *workspace.Dir) error {
			return os.WriteFile(filepath.Join(dir.Path(), "go.mod"), []byte("module x"), 0o600)
		})

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{Git: true, Locator: url, GitBranch: "dev"})
	require.NoError(t, err)

	assert.True(t, tree.Ephemeral())
	assert.Equal(t, StrategyClone, tree.Strategy)
	assert.Equal(t, f.root.Path(), filepath.Dir(tree.Path))
	assert.Contains(t, filepath.Base(tree.Path), "widget-")
	assert.FileExists(t, filepath.Join(tree.Path, "go.mod"))
}

func TestResolve_CloneFailureReturnsPartialTree(t *testing.T) {
	f := newResolverFixture(t)
	cloneErr := &domain.CloneError{URL: "https://github.com/acme/missing.git", ExitCode: 128}

	f.cloner.EXPECT().Clone(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(cloneErr)

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{Git: true, Locator: "https://github.com/acme/missing.git"})

	require.Error(t, err)
	assert.ErrorIs(t, err, cloneErr)
	require.NotNil(t, tree)
	assert.True(t, tree.Ephemeral())
	assert.DirExists(t, tree.Path)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Acquisitions.WithLabelValues(StrategyClone, metrics.ResultError)))

	require.NoError(t, tree.Dir.Remove())
	assert.Empty(t, f.rootEntries(t))
}

func TestResolve_Archive(t *testing.T) {
	f := newResolverFixture(t)

	f.fetcher.EXPECT().
		FetchArchive(gomock.Any(), "widget", "acme", "ghp_x", "main", gomock.Any()).
		Return(nil)

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{
		Git: true, Private: true, Repository: "widget", Owner: "acme", Token: "ghp_x",
	})
	require.NoError(t, err)

	assert.True(t, tree.Ephemeral())
	assert.Equal(t, StrategyArchive, tree.Strategy)
	assert.Contains(t, filepath.Base(tree.Path), "acme-widget-")
}

func TestResolve_ArchiveBranchAndFailure(t *testing.T) {
	f := newResolverFixture(t)
	fetchErr := domain.NewFetchError("https://api.github.com/repos/acme/widget/tarball/v2", 404, errors.New("Not Found"))

	f.fetcher.EXPECT().
		FetchArchive(gomock.Any(), "widget", "acme", "t", "v2", gomock.Any()).
		Return(fetchErr)

	tree, err := f.resolver.Resolve(context.Background(), domain.RequestOptions{
		Git: true, Private: true, Repository: "widget", Owner: "acme", Token: "t", GitBranch: "v2",
	})

	assert.ErrorIs(t, err, fetchErr)
	require.NotNil(t, tree)
	assert.True(t, tree.Ephemeral())
}

func TestIsGitLocator(t *testing.T) {
	assert.True(t, IsGitLocator("https://github.com/a/b"))
	assert.True(t, IsGitLocator("http://example.com/a.git"))
	assert.True(t, IsGitLocator("git@github.com:a/b.git"))
	assert.True(t, IsGitLocator("git://example.com/a.git"))
	assert.False(t, IsGitLocator("/srv/app"))
	assert.False(t, IsGitLocator("ssh://example.com/a.git"))
}
