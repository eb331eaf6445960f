// Package api exposes the pipeline operations over HTTP.
//
// Routes:
//
//	GET  /api/health
//	POST /api/projects                          create a project
//	GET  /api/projects                          list projects
//	GET  /api/projects/:id                      project status
//	GET  /api/projects/:id/events               server-sent event stream
//	POST /api/projects/:id/pipeline/start       start the pipeline
//	POST /api/projects/:id/phases/:phase/start  start or restart a phase
//	PUT  /api/projects/:id/concept              edit title and description
//	POST /api/projects/:id/concept/steps/:step  advance the concept sub-flow
//	POST /api/projects/:id/review               approve or reject the current phase
//	POST /api/projects/:id/council/retry        re-run the council
//	GET  /metrics                               prometheus metrics
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/project"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	defaultHeartbeat  = 15 * time.Second
)

// Pipeline is the set of operations the API serves. *pipeline.Machine
// implements it.
type Pipeline interface {
	CreateProject(ctx context.Context, title, description string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*project.Project, error)
	GetStatus(ctx context.Context, id string) (*pipeline.Status, error)
	StartPipeline(ctx context.Context, id string) (*project.Project, error)
	StartPhase(ctx context.Context, id string, phase project.Phase, feedback string) (*project.Project, error)
	UpdateConcept(ctx context.Context, id, title, description string) (*project.Project, error)
	AdvanceConceptStep(ctx context.Context, id string, step project.Step) (*project.Project, error)
	ReviewPhase(ctx context.Context, id, action, feedback string) (*project.Project, error)
	RetryCouncil(ctx context.Context, id string) (*project.Project, error)
}

// Option configures a Server.
type Option func(*Server)

// WithBus enables the per-project event stream.
func WithBus(bus *event.Bus) Option {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithLogger sets the logger for request and error logging.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the metrics source served on /metrics. The default is
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithCORSOrigins allows browser calls from the given origins. "*" allows
// any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithDebug runs gin in debug mode.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithHeartbeat sets how often an idle event stream sends a keep-alive.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// Server is the HTTP surface over a Pipeline.
type Server struct {
	pipeline    Pipeline
	bus         *event.Bus
	logger      *logging.Logger
	gatherer    prometheus.Gatherer
	corsOrigins []string
	debug       bool
	heartbeat   time.Duration

	engine *gin.Engine

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a Server and registers its routes.
func NewServer(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		logger:    logging.NopLogger(),
		gatherer:  prometheus.DefaultGatherer,
		heartbeat: defaultHeartbeat,
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.engine.Use(s.requestLogger(), s.recovery())
	if len(s.corsOrigins) > 0 {
		s.engine.Use(cors.New(s.corsConfig()))
	}
	s.routes()
	return s
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	for _, o := range s.corsOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.corsOrigins
	return cfg
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.health)

	projects := api.Group("/projects")
	{
		projects.POST("", s.createProject)
		projects.GET("", s.listProjects)
		projects.GET("/:id", s.getProject)
		projects.GET("/:id/events", s.streamEvents)
		projects.POST("/:id/pipeline/start", s.startPipeline)
		projects.POST("/:id/phases/:phase/start", s.startPhase)
		projects.PUT("/:id/concept", s.updateConcept)
		projects.POST("/:id/concept/steps/:step", s.advanceConceptStep)
		projects.POST("/:id/review", s.review)
		projects.POST("/:id/council/retry", s.retryCouncil)
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Open event streams are closed on shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(s.closeStreams)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("api server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) closeStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// requestLogger logs each request through the foundry logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("http handler panicked", "path", c.FullPath(), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal server error",
		})
	})
}
