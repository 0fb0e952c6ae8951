package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/termhost/internal/api/http"
	"github.com/GriffinCanCode/termhost/internal/api/middleware"
	"github.com/GriffinCanCode/termhost/internal/api/ws"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/termhost/internal/sharing"
	"github.com/GriffinCanCode/termhost/internal/state"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/registry"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
)

const warmStartTimeout = 30 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	router     *gin.Engine
	httpServer *http.Server
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	registry   *registry.Registry
	sender     *sharing.Sender
}

// Option customizes a Server
type Option func(*options)

type options struct {
	spawner session.Spawner
	logger  *logging.Logger
}

// WithSpawner replaces the PTY spawner used for every session
func WithSpawner(spawner session.Spawner) Option {
	return func(o *options) { o.spawner = spawner }
}

// WithLogger replaces the logger built from configuration
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewFor(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing terminal host",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("shell", cfg.Terminal.Shell),
		zap.Bool("auto_forward", cfg.Terminal.AutoForward),
		zap.Bool("auto_restart", cfg.Terminal.AutoRestart),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("termhost", logger.Logger)

	var store *state.Store
	if cfg.State.Enabled() {
		format, err := state.ParseFormat(cfg.State.Format)
		if err != nil {
			tracer.Close()
			return nil, err
		}
		store, err = state.NewStore(cfg.State.Dir, format)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		logger.Info("Session persistence enabled",
			zap.String("dir", cfg.State.Dir),
			zap.String("format", string(format)),
		)
	}

	reg := registry.New(registry.Options{
		Template: session.Config{
			Shell:            cfg.Terminal.Shell,
			Home:             cfg.Terminal.Home,
			Cols:             uint16(cfg.Terminal.Cols),
			Rows:             uint16(cfg.Terminal.Rows),
			HistoryLimit:     cfg.Terminal.HistoryLimit,
			OutputBufferSize: cfg.Terminal.OutputBuffer,
			StopGrace:        cfg.Terminal.StopGrace,
			AutoForward:      cfg.Terminal.AutoForward,
			AutoRestart:      cfg.Terminal.AutoRestart,
			Spawner:          o.spawner,
			Recorder:         metrics,
			Logger:           logger.Logger,
		},
		Store:    store,
		Recorder: metrics,
		Logger:   logger.Logger,
	})

	deliverer := delivery.NewDeliverer(delivery.SizeTiered{
		Threshold: cfg.Terminal.PasteThreshold,
		Small:     cfg.Terminal.SmallDelay,
		Large:     cfg.Terminal.LargeDelay,
	}, logger.Logger)
	tracker := sharing.NewTracker()
	sender := sharing.NewSender(reg, tracker, deliverer, metrics, logger.Logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(reg, sender, deliverer, metrics, tracer, logger.Logger)
	wsHandler := ws.NewHandler(reg, tracker, deliverer, metrics, logger.Logger)

	handlers.Register(router)
	router.GET("/projects/:project/session/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		metrics:  metrics,
		tracer:   tracer,
		registry: reg,
		sender:   sender,
	}, nil
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// WarmStart starts the shell of every persisted project. It is a no-op when
// warm start or persistence is disabled.
func (s *Server) WarmStart(ctx context.Context) error {
	if !s.config.Terminal.WarmStart {
		return nil
	}
	projects, err := s.registry.Projects()
	if err != nil {
		return fmt.Errorf("failed to list persisted projects: %w", err)
	}
	if len(projects) == 0 {
		return nil
	}

	s.logger.Info("Warm starting sessions", zap.Int("count", len(projects)))
	return s.registry.StartAll(ctx, projects)
}

// Run warm starts persisted sessions and serves HTTP until Close
func (s *Server) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), warmStartTimeout)
	if err := s.WarmStart(ctx); err != nil {
		s.logger.Warn("Warm start incomplete", zap.Error(err))
	}
	cancel()

	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server: it stops accepting requests,
// persists and stops every session, then flushes traces and logs.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}

	if err := s.registry.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down sessions", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to shut down sessions: %w", err))
	}
	s.logger.Info("Stopped all sessions", zap.Int("count", s.registry.Len()))

	s.tracer.Close()
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
