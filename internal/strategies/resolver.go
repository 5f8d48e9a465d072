package strategies

import (
	"context"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/utils"
)

// Ensure Resolver implements domain.Resolver
var _ domain.Resolver = (*Resolver)(nil)

// Resolver picks the acquisition strategy for a request
type Resolver struct {
	local   Strategy
	clone   Strategy
	archive Strategy
	logger  *utils.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver with the standard strategies
func NewResolver(deps *Dependencies) *Resolver {
	return NewResolverWithStrategies(deps, NewLocalStrategy(), NewCloneStrategy(deps), NewArchiveStrategy(deps))
}

// NewResolverWithStrategies creates a Resolver over the given strategies
func NewResolverWithStrategies(deps *Dependencies, local, clone, archive Strategy) *Resolver {
	return &Resolver{
		local:   local,
		clone:   clone,
		archive: archive,
		logger:  deps.Logger.OrNop().WithComponent("resolver"),
		metrics: deps.Metrics,
	}
}

// Select returns the strategy for opts, or a MissingSourceError. The first
// matching rule wins:
//  1. git and private: archive download, which needs repository, owner and token
//  2. no locator: missing source
//  3. git and a locator starting with "http" or "git": clone
//  4. anything else: local path
func (r *Resolver) Select(opts domain.RequestOptions) (Strategy, error) {
	if opts.Git && opts.Private {
		var missing []string
		if opts.Repository == "" {
			missing = append(missing, "repository")
		}
		if opts.Owner == "" {
			missing = append(missing, "owner")
		}
		if opts.Token == "" {
			missing = append(missing, "token")
		}
		if len(missing) > 0 {
			return nil, domain.NewMissingSourceError(missing...)
		}
		return r.archive, nil
	}

	if opts.Locator == "" {
		return nil, domain.NewMissingSourceError()
	}

	if opts.Git && IsGitLocator(opts.Locator) {
		return r.clone, nil
	}

	return r.local, nil
}

// Resolve selects a strategy and acquires the source tree
func (r *Resolver) Resolve(ctx context.Context, opts domain.RequestOptions) (*domain.SourceTree, error) {
	strategy, err := r.Select(opts)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Str("strategy", strategy.Name()).Msg("Resolved acquisition strategy")
	return observe(ctx, r.metrics, strategy, opts)
}
