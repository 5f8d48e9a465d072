package git

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
)

// TestNewClient tests creating a new client
func TestNewClient(t *testing.T) {
	client := NewClient()
	assert.NotNil(t, client)
}

// TestRealClient_PlainCloneContext tests cloning repository
func TestRealClient_PlainCloneContext(t *testing.T) {
	t.Run("clones valid repository", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping integration test in short mode")
		}

		client := NewClient()
		ctx := context.Background()

		// Clone a small test repository
		tmpDir := t.TempDir()
		opts := &git.CloneOptions{
			URL:      "https://github.com/git-fixtures/basic.git",
			Depth:    1,
			Progress: nil,
		}

		repo, err := client.PlainCloneContext(ctx, tmpDir, false, opts)
		// May fail due to network, so we accept either success or failure
		if err == nil {
			assert.NotNil(t, repo)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client := NewClient()
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		tmpDir := t.TempDir()
		opts := &git.CloneOptions{
			URL: "https://github.com/git-fixtures/basic.git",
		}

		_, err := client.PlainCloneContext(ctx, tmpDir, false, opts)
		// Should fail due to context cancellation or network error
		assert.Error(t, err)
	})
}

// TestClientInterface verifies RealClient implements Client interface
func TestClientInterface(t *testing.T) {
	var client Client = NewClient()
	assert.NotNil(t, client)
	_, ok := client.(*RealClient)
	assert.True(t, ok)
}

func TestShallowCloneOptions(t *testing.T) {
	t.Run("default branch", func(t *testing.T) {
		opts := ShallowCloneOptions("https://github.com/acme/widget.git", "")
		assert.Equal(t, "https://github.com/acme/widget.git", opts.URL)
		assert.Equal(t, 1, opts.Depth)
		assert.Equal(t, git.NoTags, opts.Tags)
		assert.False(t, opts.SingleBranch)
		assert.Empty(t, opts.ReferenceName)
	})

	t.Run("named branch", func(t *testing.T) {
		opts := ShallowCloneOptions("https://github.com/acme/widget.git", "release/1.x")
		assert.True(t, opts.SingleBranch)
		assert.Equal(t, "refs/heads/release/1.x", opts.ReferenceName.String())
	})
}
