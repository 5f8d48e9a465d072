// Package git wraps go-git behind a small interface so that callers can be
// tested without network access.
package git

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// RealClient implements Client using go-git
type RealClient struct{}

// NewClient creates a new RealClient
func NewClient() *RealClient {
	return &RealClient{}
}

// PlainCloneContext calls git.PlainCloneContext
func (c *RealClient) PlainCloneContext(ctx context.Context, path string, isBare bool, o *git.CloneOptions) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, path, isBare, o)
}

// ShallowCloneOptions returns depth-1 clone options without tags. A non-empty
// branch restricts the clone to that branch.
func ShallowCloneOptions(url, branch string) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:   url,
		Depth: 1,
		Tags:  git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	return opts
}
