package strategies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/strategies/git"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

// Strategy names
const (
	StrategyLocal   = "local"
	StrategyClone   = "clone"
	StrategyArchive = "archive"
)

// Strategy defines the interface for source acquisition strategies
type Strategy interface {
	// Name returns the strategy name
	Name() string
	// Acquire materializes the source tree for opts. Ephemeral strategies
	// return the tree they created even when acquisition fails.
	Acquire(ctx context.Context, opts domain.RequestOptions) (*domain.SourceTree, error)
}

// Dependencies contains shared dependencies for all strategies
type Dependencies struct {
	Root    *workspace.Root
	Cloner  domain.Cloner
	Fetcher domain.ArchiveFetcher
	Logger  *utils.Logger
	Metrics *metrics.Metrics
}

// LocalStrategy uses the request locator as an existing directory. It never
// touches storage.
type LocalStrategy struct{}

// NewLocalStrategy creates a LocalStrategy
func NewLocalStrategy() *LocalStrategy {
	return &LocalStrategy{}
}

func (s *LocalStrategy) Name() string {
	return StrategyLocal
}

func (s *LocalStrategy) Acquire(_ context.Context, opts domain.RequestOptions) (*domain.SourceTree, error) {
	return domain.NewLocalTree(opts.Locator), nil
}

// CloneStrategy shallow-clones a public repository into a fresh directory
type CloneStrategy struct {
	root   *workspace.Root
	cloner domain.Cloner
	logger *utils.Logger
}

// NewCloneStrategy creates a CloneStrategy
func NewCloneStrategy(deps *Dependencies) *CloneStrategy {
	return &CloneStrategy{
		root:   deps.Root,
		cloner: deps.Cloner,
		logger: deps.Logger.OrNop().WithStrategy(StrategyClone),
	}
}

func (s *CloneStrategy) Name() string {
	return StrategyClone
}

func (s *CloneStrategy) Acquire(ctx context.Context, opts domain.RequestOptions) (*domain.SourceTree, error) {
	dir, err := s.root.NewDir(workspace.PrefixFromURL(opts.Locator))
	if err != nil {
		return nil, err
	}
	tree := domain.NewEphemeralTree(dir, StrategyClone)

	s.logger.Debug().
		Str("backend", s.cloner.Name()).
		Str("dir", dir.Name()).
		Msg("Cloning into workspace")

	if err := s.cloner.Clone(ctx, opts.Locator, opts.GitBranch, dir); err != nil {
		return tree, err
	}
	return tree, nil
}

// ArchiveStrategy downloads and extracts a private repository tarball
type ArchiveStrategy struct {
	root    *workspace.Root
	fetcher domain.ArchiveFetcher
	logger  *utils.Logger
}

// NewArchiveStrategy creates an ArchiveStrategy
func NewArchiveStrategy(deps *Dependencies) *ArchiveStrategy {
	return &ArchiveStrategy{
		root:    deps.Root,
		fetcher: deps.Fetcher,
		logger:  deps.Logger.OrNop().WithStrategy(StrategyArchive),
	}
}

func (s *ArchiveStrategy) Name() string {
	return StrategyArchive
}

func (s *ArchiveStrategy) Acquire(ctx context.Context, opts domain.RequestOptions) (*domain.SourceTree, error) {
	branch := opts.GitBranch
	if branch == "" {
		branch = git.DefaultBranch
	}

	dir, err := s.root.NewDir(workspace.PrefixFromRepo(opts.Owner, opts.Repository))
	if err != nil {
		return nil, err
	}
	tree := domain.NewEphemeralTree(dir, StrategyArchive)

	if err := s.fetcher.FetchArchive(ctx, opts.Repository, opts.Owner, opts.Token, branch, dir); err != nil {
		return tree, err
	}
	return tree, nil
}

// IsGitLocator reports whether a locator should be cloned rather than read
// from disk
func IsGitLocator(locator string) bool {
	return strings.HasPrefix(locator, "http") || strings.HasPrefix(locator, "git")
}

// observe wraps a strategy call with timing and metrics
func observe(ctx context.Context, m *metrics.Metrics, s Strategy, opts domain.RequestOptions) (*domain.SourceTree, error) {
	started := time.Now()
	tree, err := s.Acquire(ctx, opts)
	m.ObserveAcquisition(s.Name(), started, err)
	if err != nil {
		return tree, fmt.Errorf("%s acquisition failed: %w", s.Name(), err)
	}
	return tree, nil
}
