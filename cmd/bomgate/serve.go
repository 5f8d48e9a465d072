package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantmind-br/bomgate/internal/app"
	"github.com/quantmind-br/bomgate/internal/config"
	"github.com/quantmind-br/bomgate/internal/fetcher"
	"github.com/quantmind-br/bomgate/internal/generator"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/postprocess"
	"github.com/quantmind-br/bomgate/internal/publisher"
	"github.com/quantmind-br/bomgate/internal/server"
	"github.com/quantmind-br/bomgate/internal/strategies"
	gitstrategy "github.com/quantmind-br/bomgate/internal/strategies/git"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
	"github.com/quantmind-br/bomgate/pkg/version"
)

// shutdownTimeout bounds the wait for in-flight requests after a signal
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	svc.prune(cfg.PruneAge())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", svc.server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", svc.server.Addr(), err)
	}

	log.Info().
		Str("version", version.Short()).
		Str("workspace", svc.root.Path()).
		Str("clone_backend", cfg.Clone.Backend).
		Str("generator", cfg.Generator.Command).
		Msg("Starting bomgate")

	return svc.run(ctx, l)
}

// service holds the wired application
type service struct {
	root         *workspace.Root
	orchestrator *app.Orchestrator
	server       *server.Server
	metrics      *metrics.Metrics
	logger       *utils.Logger
}

// buildService wires every component from cfg
func buildService(cfg *config.Config, log *utils.Logger) (*service, error) {
	root, err := workspace.NewRoot(cfg.Workspace.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	cloner, err := gitstrategy.NewCloner(gitstrategy.Backend(cfg.Clone.Backend), gitstrategy.ClonerOptions{
		GitBinary: cfg.Clone.GitBinary,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	archives := gitstrategy.NewArchiveFetcher(gitstrategy.ArchiveFetcherOptions{
		HTTPClient: &http.Client{Timeout: cfg.GitHub.Timeout},
		APIURL:     cfg.GitHub.APIURL,
		APIVersion: cfg.GitHub.APIVersion,
		Logger:     log,
	})

	resolver := strategies.NewResolver(&strategies.Dependencies{
		Root:    root,
		Cloner:  cloner,
		Fetcher: archives,
		Logger:  log,
		Metrics: m,
	})

	gen := generator.New(generator.Options{
		Command: cfg.Generator.Command,
		Args:    cfg.Generator.Args,
		Env:     cfg.Generator.Env,
		Root:    root,
		Logger:  log,
	})

	pub := publisher.New(publisher.Options{
		Timeout: cfg.Publish.Timeout,
		Retrier: retrierOptions(cfg.Publish),
		Logger:  log,
	})

	orch, err := app.NewOrchestrator(app.OrchestratorOptions{
		Resolver:       resolver,
		Generator:      gen,
		PostProcessor:  postprocess.NewFilter(log),
		Publisher:      pub,
		Metrics:        m,
		Logger:         log,
		PublishTimeout: cfg.Publish.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	srv, err := server.New(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Timeout:      cfg.Server.Timeout(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Defaults:     cfg.Defaults,
		Handler:      orch,
		Metrics:      m,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	return &service{
		root:         root,
		orchestrator: orch,
		server:       srv,
		metrics:      m,
		logger:       log.OrNop(),
	}, nil
}

// prune removes workspace leftovers older than maxAge. Zero disables it.
func (s *service) prune(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	removed, err := s.root.Prune(maxAge)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to prune workspace")
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Str("workspace", s.root.Path()).Msg("Pruned stale workspace entries")
	}
}

// retrierOptions maps publish settings onto the retrier. Zero retries in the
// config means no retries, which the retrier spells as a negative count.
func retrierOptions(p config.PublishConfig) fetcher.RetrierOptions {
	opts := fetcher.RetrierOptions{
		MaxRetries:      p.MaxRetries,
		InitialInterval: p.InitialInterval,
		MaxInterval:     p.MaxInterval,
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	return opts
}

// run serves on l until ctx is cancelled, then drains in-flight requests and
// background uploads
func (s *service) run(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(l)
	}()

	select {
	case err := <-errCh:
		s.orchestrator.Wait()
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil {
		err = errors.Join(err, serveErr)
	}
	s.orchestrator.Wait()
	s.logger.Info().Msg("Stopped")
	return err
}
