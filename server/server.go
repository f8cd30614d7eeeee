// Package server exposes the coordinator as a DIAL compatible chat completion
// endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/mascoordinator/coordinator"
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/stage"
)

// Handler runs one coordinated request. *coordinator.Coordinator implements it.
type Handler interface {
	HandleRequest(ctx context.Context, choice *stage.Choice, req coordinator.Request) (core.Message, error)
}

// Options configure a Server.
type Options struct {
	Addr              string
	DeploymentName    string
	ReadHeaderTimeout time.Duration
	// RateLimit is the sustained number of requests per second allowed per
	// caller. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer    prometheus.Gatherer
	MetricsPath string
	// StreamBuffer is the number of updates buffered between the pipeline
	// and the response writer.
	StreamBuffer int
	Logger       logging.Logger
}

// Server is the HTTP front of the coordinator.
type Server struct {
	handler Handler
	opts    Options
	logger  logging.Logger
	engine  *gin.Engine
	server  *http.Server
}

// New creates a Server dispatching chat completions to handler.
func New(handler Handler, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:              ":8055",
		DeploymentName:    "mas-coordinator",
		ReadHeaderTimeout: 10 * time.Second,
		MetricsPath:       "/metrics",
		StreamBuffer:      64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		handler: handler,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.registerRoutes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.engine.GET(s.opts.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	completions := s.engine.Group("/openai/deployments")
	if s.opts.RateLimit > 0 {
		completions.Use(newCallerRateLimiter(s.opts.RateLimit, s.opts.RateBurst).middleware())
	}
	completions.POST("/:deployment/chat/completions", s.handleChatCompletion)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until Shutdown is called. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.opts.Addr, "deployment", s.opts.DeploymentName)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func abortWithError(c *gin.Context, status int, apiErr APIError) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: apiErr})
}
