package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/bomgate/internal/workspace"
)

func TestSourceTree(t *testing.T) {
	t.Run("local tree is not ephemeral", func(t *testing.T) {
		tree := NewLocalTree("/srv/app")
		assert.Equal(t, "/srv/app", tree.Path)
		assert.Equal(t, "local", tree.Strategy)
		assert.False(t, tree.Ephemeral())
	})

	t.Run("nil tree is not ephemeral", func(t *testing.T) {
		var tree *SourceTree
		assert.False(t, tree.Ephemeral())
	})

	t.Run("ephemeral tree carries its directory", func(t *testing.T) {
		root, err := workspace.NewRoot(t.TempDir())
		require.NoError(t, err)
		dir, err := root.NewDir("widget")
		require.NoError(t, err)

		tree := NewEphemeralTree(dir, "clone")
		assert.True(t, tree.Ephemeral())
		assert.Equal(t, dir.Path(), tree.Path)
		assert.Same(t, dir, tree.Dir)
	})
}

func TestBomResult(t *testing.T) {
	t.Run("nil and empty", func(t *testing.T) {
		var nilResult *BomResult
		assert.True(t, nilResult.Empty())
		assert.True(t, (&BomResult{}).Empty())

		data, err := nilResult.Bytes()
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("raw bytes are returned verbatim", func(t *testing.T) {
		raw := []byte(`{"b":1,  "a":2}`)
		data, err := (&BomResult{Raw: raw, Document: map[string]int{"x": 1}}).Bytes()
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("document is indented with two spaces", func(t *testing.T) {
		data, err := (&BomResult{Document: map[string]any{"bomFormat": "CycloneDX"}}).Bytes()
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"bomFormat\": \"CycloneDX\"\n}", string(data))
	})

	t.Run("unserializable document", func(t *testing.T) {
		_, err := (&BomResult{Document: make(chan int)}).Bytes()
		assert.Error(t, err)
	})
}
