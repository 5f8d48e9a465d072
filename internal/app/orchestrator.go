package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

// DefaultPublishTimeout bounds one background upload
const DefaultPublishTimeout = 5 * time.Minute

// Orchestrator runs one SBOM request: acquire, generate, post-process,
// respond, publish, clean up.
type Orchestrator struct {
	resolver       domain.Resolver
	generator      domain.Generator
	postProcessor  domain.PostProcessor
	publisher      domain.Publisher
	metrics        *metrics.Metrics
	logger         *utils.Logger
	publishTimeout time.Duration

	publishes sync.WaitGroup
}

// OrchestratorOptions contains options for creating an orchestrator
type OrchestratorOptions struct {
	Resolver      domain.Resolver
	Generator     domain.Generator
	PostProcessor domain.PostProcessor
	// Publisher may be nil, in which case publishing is skipped
	Publisher      domain.Publisher
	Metrics        *metrics.Metrics
	Logger         *utils.Logger
	PublishTimeout time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}

	return &Orchestrator{
		resolver:       opts.Resolver,
		generator:      opts.Generator,
		postProcessor:  opts.PostProcessor,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         opts.Logger.OrNop().WithComponent("orchestrator"),
		publishTimeout: publishTimeout,
	}, nil
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   bool     `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

// Handle serves one request and writes the response to w. Any directory
// created for the request is removed before Handle returns, including when
// a collaborator panics.
func (o *Orchestrator) Handle(ctx context.Context, w http.ResponseWriter, opts domain.RequestOptions) {
	logger := utils.LoggerFromContext(ctx, o.logger)
	startTime := time.Now()

	tree, err := o.resolver.Resolve(ctx, opts)

	var dir *workspace.Dir
	if tree.Ephemeral() {
		dir = tree.Dir
	}
	guard := workspace.NewGuard(dir, func(d *workspace.Dir, rmErr error) {
		o.metrics.ObserveCleanup(rmErr)
		if rmErr != nil {
			logger.Error().Err(rmErr).Str("dir", d.Name()).Msg("Failed to remove source directory")
			return
		}
		logger.Debug().Str("dir", d.Name()).Msg("Removed source directory")
	})
	defer guard.Release()

	if err != nil {
		var missing *domain.MissingSourceError
		if errors.As(err, &missing) {
			o.metrics.ObserveRequest(metrics.OutcomeMissingSource)
			logger.Warn().Strs("missing", missing.Fields).Msg("Request does not identify a source")
			writeJSON(w, http.StatusBadRequest, errorBody{Error: true, Message: missing.Error(), Missing: missing.Fields})
			return
		}
		o.fail(ctx, w, logger, "acquire source", err)
		return
	}

	logger.Info().Str("strategy", tree.Strategy).Msg("Source acquired")

	bom, err := o.generator.Generate(ctx, tree.Path, opts)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			o.metrics.ObserveRequest(metrics.OutcomeNotFound)
			logger.Warn().Err(err).Msg("Source path not found")
			writeJSON(w, http.StatusNotFound, errorBody{Error: true, Message: "source path not found"})
			return
		}
		o.fail(ctx, w, logger, "generate BOM", err)
		return
	}

	original := bom
	if opts.NeedsPostProcessing() && o.postProcessor != nil && !bom.Empty() {
		bom, err = o.postProcessor.PostProcess(ctx, bom, opts)
		if err != nil {
			o.fail(ctx, w, logger, "post-process BOM", err)
			return
		}
	}

	body, err := bom.Bytes()
	if err != nil {
		o.fail(ctx, w, logger, "encode BOM", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
	_, _ = w.Write([]byte("\n"))

	o.metrics.ObserveRequest(metrics.OutcomeOK)
	logger.Info().
		Bool("empty", len(body) == 0).
		Dur("duration", time.Since(startTime)).
		Msg("SBOM generated")

	if opts.ShouldPublish() && o.publisher != nil && !original.Empty() {
		o.publishAsync(ctx, logger, publishOptions(opts), original)
	}
}

// Wait blocks until background publishes have finished
func (o *Orchestrator) Wait() {
	o.publishes.Wait()
}

// publishAsync uploads doc without holding the response. The upload keeps
// its own deadline once the request context is done.
func (o *Orchestrator) publishAsync(ctx context.Context, logger *utils.Logger, opts domain.RequestOptions, bom *domain.BomResult) {
	doc, err := bom.Bytes()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode BOM for publishing")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.publishTimeout)
	o.publishes.Add(1)
	go func() {
		defer o.publishes.Done()
		defer cancel()

		err := o.publisher.Publish(pubCtx, opts, doc)
		o.metrics.ObservePublish(err)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to publish BOM")
			return
		}
		logger.Info().Str("project", opts.ProjectName).Msg("BOM published")
	}()
}

// fail logs err and writes a generic 500 response. The body never carries
// paths, URLs or credentials.
func (o *Orchestrator) fail(ctx context.Context, w http.ResponseWriter, logger *utils.Logger, stage string, err error) {
	o.metrics.ObserveRequest(metrics.OutcomeError)

	message := "failed to generate SBOM"
	if ctx.Err() != nil {
		message = "request timed out"
	}
	logger.Error().Err(err).Str("stage", stage).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: true, Message: message})
}

// publishOptions fills in a project name when the request names neither a
// project id nor a name
func publishOptions(opts domain.RequestOptions) domain.RequestOptions {
	if opts.ProjectID != "" || opts.ProjectName != "" {
		return opts
	}
	switch {
	case opts.Repository != "":
		opts.ProjectName = opts.Repository
	case opts.Locator != "":
		name := path.Base(strings.TrimRight(strings.ReplaceAll(opts.Locator, "\\", "/"), "/"))
		opts.ProjectName = strings.TrimSuffix(name, ".git")
	}
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
