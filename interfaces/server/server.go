// Package server exposes the engine over HTTP: synchronous runs, SSE
// streams, resume and checkpoint inspection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/config"
	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// Defaults for a zero ServerConfig.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultShutdownTimeout = 10 * time.Second

	heartbeatInterval = 15 * time.Second
)

// ErrNoEngine is returned by New without an engine.
var ErrNoEngine = errors.New("engine is required")

// Engine is the part of the application engine the server drives.
type Engine interface {
	Run(ctx context.Context, req application.Request) (*application.Response, error)
	Stream(ctx context.Context, req application.Request) (<-chan event.Event, error)
	Resume(ctx context.Context, threadID, checkpointID string) (*application.Response, error)
	ResumeStream(ctx context.Context, threadID, checkpointID string) (<-chan event.Event, error)
	Checkpoints() checkpoint.Saver
}

// Server serves the HTTP API.
type Server struct {
	echo      *echo.Echo
	engine    Engine
	inspector *application.InspectionService
	events    event.Subscriber
	config    config.ServerConfig
	heartbeat time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithSubscriber enables live thread event streams.
func WithSubscriber(sub event.Subscriber) Option {
	return func(s *Server) {
		s.events = sub
	}
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates a server for the engine.
func New(engine Engine, cfg config.ServerConfig, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger)

	s := &Server{
		echo:      e,
		engine:    engine,
		inspector: application.NewInspectionService(engine.Checkpoints()),
		config:    cfg,
		heartbeat: heartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/agent", s.handleAgent)
	v1.POST("/agent/stream", s.handleAgentStream)
	v1.GET("/graph", s.handleGraph)

	threads := v1.Group("/threads/:id")
	threads.GET("/checkpoints", s.handleCheckpoints)
	threads.POST("/resume", s.handleResume)
	threads.GET("/events", s.handleThreadEvents)
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info().
			Add(logging.Component("server")).
			Add(logging.Str("addr", s.Addr())).
			Msg("http server listening")
		if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()

		logging.Info().
			Add(logging.Component("server")).
			Msg("shutting down http server")
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// requestLogger logs one line per request.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		logging.Info().
			Add(logging.Component("server")).
			Add(logging.Str("method", c.Request().Method)).
			Add(logging.Str("uri", c.Request().RequestURI)).
			Add(logging.Count("status", c.Response().Status)).
			Add(logging.Duration(time.Since(start))).
			Add(logging.Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID))).
			Msg("http request")
		return err
	}
}
