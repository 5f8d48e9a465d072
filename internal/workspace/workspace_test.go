package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) *Root {
	t.Helper()
	root, err := NewRoot(filepath.Join(t.TempDir(), "ws"))
	require.NoError(t, err)
	return root
}

func TestNewRoot(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b")
		root, err := NewRoot(path)
		require.NoError(t, err)
		assert.DirExists(t, root.Path())
		assert.True(t, filepath.IsAbs(root.Path()))
	})

	t.Run("empty path uses system temp", func(t *testing.T) {
		root, err := NewRoot("")
		require.NoError(t, err)
		assert.Equal(t, "bomgate", filepath.Base(root.Path()))
	})
}

func TestRoot_NewDir(t *testing.T) {
	root := newRoot(t)

	dir, err := root.NewDir("https://evil/../../etc")
	require.NoError(t, err)

	assert.DirExists(t, dir.Path())
	assert.Equal(t, root.Path(), filepath.Dir(dir.Path()))
	assert.NotContains(t, dir.Name(), "/")

	info, err := os.Stat(dir.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRoot_NewDirUnique(t *testing.T) {
	root := newRoot(t)

	const n = 50
	names := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir, err := root.NewDir("repo")
			if assert.NoError(t, err) {
				names <- dir.Name()
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		assert.False(t, seen[name], "duplicate directory %s", name)
		seen[name] = true
		assert.True(t, strings.HasPrefix(name, "repo-"))
	}
	assert.Len(t, seen, n)
}

func TestRoot_Prune(t *testing.T) {
	root := newRoot(t)

	stale, err := root.NewDir("repo")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stale.Path(), "f"), []byte("x"), 0o600))
	staleFile := filepath.Join(root.Path(), "repo-1234.tar")
	require.NoError(t, os.WriteFile(staleFile, []byte("x"), 0o600))
	fresh, err := root.NewDir("repo")
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path(), old, old))
	require.NoError(t, os.Chtimes(staleFile, old, old))

	removed, err := root.Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoDirExists(t, stale.Path())
	assert.NoFileExists(t, staleFile)
	assert.DirExists(t, fresh.Path())
	assert.DirExists(t, root.Path())
}

func TestRoot_PruneEmpty(t *testing.T) {
	root := newRoot(t)

	removed, err := root.Prune(time.Minute)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDir_Remove(t *testing.T) {
	root := newRoot(t)

	t.Run("removes tree", func(t *testing.T) {
		dir, err := root.NewDir("repo")
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Join(dir.Path(), "a", "b"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path(), "a", "b", "f"), []byte("x"), 0o600))

		require.NoError(t, dir.Remove())
		assert.NoDirExists(t, dir.Path())
		assert.DirExists(t, root.Path())
	})

	t.Run("missing directory is not an error", func(t *testing.T) {
		dir, err := root.NewDir("repo")
		require.NoError(t, err)
		require.NoError(t, os.RemoveAll(dir.Path()))

		assert.NoError(t, dir.Remove())
	})

	t.Run("rejects names that are not a single element", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../outside"} {
			d := &Dir{root: root.Path(), name: name}
			err := d.Remove()
			assert.True(t, errors.Is(err, ErrUnsafePath), "name %q", name)
		}
		assert.DirExists(t, root.Path())
	})
}

func TestGuard(t *testing.T) {
	root := newRoot(t)

	t.Run("nil dir is a no-op", func(t *testing.T) {
		called := false
		g := NewGuard(nil, func(*Dir, error) { called = true })
		assert.NoError(t, g.Release())
		assert.False(t, called)
		assert.DirExists(t, root.Path())
	})

	t.Run("removes exactly once", func(t *testing.T) {
		dir, err := root.NewDir("repo")
		require.NoError(t, err)

		calls := 0
		g := NewGuard(dir, func(d *Dir, err error) {
			calls++
			assert.NoError(t, err)
			assert.Equal(t, dir, d)
		})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = g.Release()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, calls)
		assert.NoDirExists(t, dir.Path())
	})

	t.Run("reports removal error", func(t *testing.T) {
		g := NewGuard(&Dir{root: root.Path(), name: ".."}, nil)
		err := g.Release()
		assert.ErrorIs(t, err, ErrUnsafePath)
		assert.ErrorIs(t, g.Release(), ErrUnsafePath)
	})
}

func TestSanitizePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"repo", "repo"},
		{"my repo", "my-repo"},
		{"../../etc", "etc"},
		{"a/b\\c", "a-b-c"},
		{"", "src"},
		{"...", "src"},
		{"Repo.Name_1", "Repo.Name_1"},
		{strings.Repeat("x", 100), strings.Repeat("x", MaxPrefixLength)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePrefix(tt.in))
		})
	}
}

func TestPrefixFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/acme/widget.git", "widget"},
		{"https://github.com/acme/widget/", "widget"},
		{"git@github.com:acme/widget.git", "widget"},
		{"git@github.com:widget.git", "widget"},
		{"https://github.com/", "github.com"},
		{"", "src"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, PrefixFromURL(tt.url))
		})
	}
}

func TestPrefixFromRepo(t *testing.T) {
	assert.Equal(t, "acme-widget", PrefixFromRepo("acme", "widget"))
	assert.Equal(t, "acme-etc", PrefixFromRepo("acme", "../etc"))
}
