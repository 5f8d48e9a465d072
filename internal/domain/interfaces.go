package domain

import (
	"context"

	"github.com/quantmind-br/bomgate/internal/workspace"
)

//go:generate mockgen -destination=../mocks/mock_domain.go -package=mocks github.com/quantmind-br/bomgate/internal/domain Generator,PostProcessor,Publisher,Cloner,ArchiveFetcher,Resolver

// Generator defines the interface for the BOM generation engine
type Generator interface {
	// Generate produces a BOM for the tree at sourcePath. A nil result with a
	// nil error means nothing was found.
	Generate(ctx context.Context, sourcePath string, opts RequestOptions) (*BomResult, error)
}

// PostProcessor defines the interface for BOM filtering
type PostProcessor interface {
	PostProcess(ctx context.Context, bom *BomResult, opts RequestOptions) (*BomResult, error)
}

// Publisher defines the interface for pushing a BOM to a tracking server
type Publisher interface {
	Publish(ctx context.Context, opts RequestOptions, document []byte) error
}

// Cloner performs a shallow clone of url into dir
type Cloner interface {
	// Name returns the backend name
	Name() string
	// Clone clones url into the existing empty directory dir. An empty
	// branch clones the remote's default branch.
	Clone(ctx context.Context, url, branch string, dir *workspace.Dir) error
}

// ArchiveFetcher downloads and unpacks a private repository tarball into dir
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, repository, owner, token, branch string, dir *workspace.Dir) error
}

// Resolver turns request options into a local source tree
type Resolver interface {
	// Resolve acquires the source tree. When acquisition fails after an
	// ephemeral directory was created, the partial tree is returned together
	// with the error so the caller can remove it.
	Resolve(ctx context.Context, opts RequestOptions) (*SourceTree, error)
}
