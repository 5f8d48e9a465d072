// Package server exposes the SBOM endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/metrics"
	"github.com/quantmind-br/bomgate/internal/utils"
)

// Default server settings
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 9090
	DefaultTimeout      = 10 * time.Minute
	DefaultMaxBodyBytes = 1 << 20
)

// RequestHandler serves one parsed SBOM request
type RequestHandler interface {
	Handle(ctx context.Context, w http.ResponseWriter, opts domain.RequestOptions)
}

// Options contains options for creating a Server
type Options struct {
	Host         string
	Port         int
	Timeout      time.Duration
	MaxBodyBytes int64
	// Defaults are merged under every request's options
	Defaults map[string]any
	Handler  RequestHandler
	// Metrics, when non-nil, is served on /metrics
	Metrics *metrics.Metrics
	Logger  *utils.Logger
}

// Server is the HTTP front-end
type Server struct {
	opts    Options
	handler RequestHandler
	logger  *utils.Logger
	engine  *gin.Engine
	http    *http.Server
}

// New creates a Server
func New(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("request handler is required")
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		opts:    opts,
		handler: opts.Handler,
		logger:  opts.Logger.OrNop().WithComponent("server"),
	}
	s.engine = s.routes()

	handler, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return nil, fmt.Errorf("create compression wrapper: %w", err)
	}

	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           handler(s.engine),
		ReadHeaderTimeout: opts.Timeout,
		ReadTimeout:       opts.Timeout,
		IdleTimeout:       opts.Timeout,
	}
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RequestID(s.logger))
	router.Use(RequestLogger(s.logger))
	router.Use(gin.CustomRecovery(s.onPanic))

	router.NoRoute(func(c *gin.Context) {
		abortJSON(c, http.StatusNotFound, "not found")
	})
	router.NoMethod(func(c *gin.Context) {
		abortJSON(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Match([]string{http.MethodGet, http.MethodPost}, "/health", s.health)

	sbom := []gin.HandlerFunc{
		Decompress(),
		BodyLimit(s.opts.MaxBodyBytes),
		Timeout(s.opts.Timeout),
		s.sbom,
	}
	router.Match([]string{http.MethodGet, http.MethodPost}, "/sbom", sbom...)

	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
	return router
}

// onPanic answers a panicking request with the generic JSON error
func (s *Server) onPanic(c *gin.Context, rec any) {
	utils.LoggerFromContext(c.Request.Context(), s.logger).Error().
		Interface("panic", rec).
		Str("path", c.Request.URL.Path).
		Msg("Request panicked")
	abortJSON(c, http.StatusInternalServerError, "failed to generate SBOM")
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler returns the root handler including response compression
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().
		Str("addr", l.Addr().String()).
		Dur("timeout", s.opts.Timeout).
		Msg("Listening")
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on Addr and serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
