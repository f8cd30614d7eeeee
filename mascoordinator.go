// Package mascoordinator assembles the multi-agent coordinator service from a
// loaded configuration: logger, metrics registry, tracer provider, the
// per-request backend connector, the coordinator itself and its HTTP server.
//
// Most applications only need:
//  1. config.Load to read defaults, an optional file and the environment
//  2. New to build the Service
//  3. Service.Server().ListenAndServe, followed by Service.Shutdown
package mascoordinator

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/mascoordinator/backend"
	"github.com/hupe1980/mascoordinator/config"
	"github.com/hupe1980/mascoordinator/coordinator"
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/metrics"
	"github.com/hupe1980/mascoordinator/server"
	"github.com/hupe1980/mascoordinator/tracing"
)

// Version is the service version reported by the CLI and in traces.
const Version = "0.1.0"

// Options configures the Service instance.
type Options struct {
	// Logger overrides the logger built from the configuration.
	Logger logging.Logger
	// Registry receives the pipeline and process collectors. A fresh registry
	// is created when metrics are enabled and none is given.
	Registry *prometheus.Registry
	// Connector overrides the configuration backed connector.
	Connector coordinator.Connector
}

// Service is the assembled coordinator with its ambient dependencies.
type Service struct {
	cfg         *config.Config
	logger      logging.Logger
	registry    *prometheus.Registry
	tracing     *tracing.Provider
	coordinator *coordinator.Coordinator
}

// New builds a Service from cfg.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Service, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(cfg.Logging())
	}

	var (
		registry = opts.Registry
		m        *metrics.Metrics
	)
	if cfg.Metrics.Enabled {
		if registry == nil {
			registry = prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		m = metrics.New(registry)
	}

	tp, err := tracing.NewProvider(ctx, cfg.TracingProvider(Version), logger)
	if err != nil {
		return nil, err
	}

	connector := opts.Connector
	if connector == nil {
		connector = backend.NewConnector(cfg, func(o *backend.Options) { o.Logger = logger })
	}

	coord, err := coordinator.New(connector, func(o *coordinator.Options) {
		o.Logger = logger
		o.Tracer = tp.Tracer("github.com/hupe1980/mascoordinator/coordinator")
		o.Metrics = m
	})
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}

	return &Service{
		cfg:         cfg,
		logger:      logger,
		registry:    registry,
		tracing:     tp,
		coordinator: coord,
	}, nil
}

// Coordinator returns the pipeline.
func (s *Service) Coordinator() *coordinator.Coordinator { return s.coordinator }

// Logger returns the service logger.
func (s *Service) Logger() logging.Logger { return s.logger }

// Server builds the HTTP front end for the configured deployment.
func (s *Service) Server() *server.Server {
	return server.New(s.coordinator, func(o *server.Options) {
		o.Addr = s.cfg.Server.Addr
		o.DeploymentName = s.cfg.Server.DeploymentName
		o.ReadHeaderTimeout = s.cfg.Server.ReadHeaderTimeout
		o.RateLimit = s.cfg.Server.RateLimit
		o.RateBurst = s.cfg.Server.RateBurst
		o.MetricsPath = s.cfg.Metrics.Path
		o.Logger = s.logger
		if s.registry != nil {
			o.Gatherer = s.registry
		}
	})
}

// Decide runs only the decision phase for a single user message.
func (s *Service) Decide(ctx context.Context, apiKey, message string) (core.Decision, error) {
	return s.coordinator.Decide(ctx, coordinator.Request{
		ConversationID: core.NewID(),
		APIKey:         apiKey,
		Messages:       []core.Message{core.NewUserMessage(message)},
	})
}

// Shutdown flushes pending traces.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.tracing.Shutdown(ctx)
}
