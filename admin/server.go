package admin

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/filterkit/component"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
	"github.com/kbukum/filterkit/sse"
)

const componentName = "admin-server"

var _ component.Component = (*Server)(nil)

// Inspector is the read-only view of the lifecycle registry the server
// exposes. *lifecycle.Registry implements it.
type Inspector interface {
	Snapshot() []lifecycle.EntryInfo
	Health(ctx context.Context) component.Health
}

// HealthChecker returns the health of every component of the process.
type HealthChecker func(ctx context.Context) []component.Health

// Option configures a Server.
type Option func(*Server)

// WithHealthChecker replaces the default health source, which reports the
// inspected registry only. Pass component.Registry.HealthAll to report the
// whole process.
func WithHealthChecker(fn HealthChecker) Option {
	return func(s *Server) {
		if fn != nil {
			s.checker = fn
		}
	}
}

// WithServiceName sets the service name reported by /health.
func WithServiceName(name string) Option {
	return func(s *Server) { s.service = name }
}

// WithEventHub exposes GET /events, streaming the transitions published
// to hub.
func WithEventHub(hub *sse.Hub) Option {
	return func(s *Server) { s.events = hub }
}

// Server is the admin HTTP server backed by Gin.
type Server struct {
	cfg        Config
	engine     *gin.Engine
	httpServer *http.Server
	inspector  Inspector
	checker    HealthChecker
	service    string
	events     *sse.Hub
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates the admin server. Routes are registered immediately; nothing
// listens until Start.
func New(cfg Config, inspector Inspector, log *logger.Logger, opts ...Option) *Server {
	// Set Gin mode based on global zerolog level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	s := &Server{
		cfg:       cfg,
		engine:    gin.New(),
		inspector: inspector,
		service:   "filterkit",
		log:       log.WithComponent(componentName),
	}
	s.checker = func(ctx context.Context) []component.Health {
		return []component.Health{s.inspector.Health(ctx)}
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(recovery(s.log), requestID(), requestLogger(s.log))
	s.routes()

	// Wrap with h2c for HTTP/2 cleartext.
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h2c.NewHandler(s.engine, h2s),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Request contexts end when Shutdown begins so open event streams
	// do not hold shutdown until its timeout.
	baseCtx, cancel := context.WithCancel(context.Background())
	s.httpServer.BaseContext = func(net.Listener) context.Context { return baseCtx }
	s.httpServer.RegisterOnShutdown(cancel)
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("admin server already started on %s", s.listener.Addr())
	}

	tlsCfg, err := s.cfg.TLS.Build()
	if err != nil {
		return fmt.Errorf("admin server TLS: %w", err)
	}
	s.httpServer.TLSConfig = tlsCfg

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("admin server failed to bind %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	go func() {
		var err error
		if tlsCfg != nil {
			err = s.httpServer.ServeTLS(listener, "", "")
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.log.Error("Admin server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("Admin server started", logger.Fields(
		"addr", listener.Addr().String(),
		"tls", tlsCfg != nil,
		"mtls", tlsCfg != nil && s.cfg.TLS.ClientCAFile != "",
	))
	return nil
}

// Stop gracefully shuts down the server within the configured shutdown
// timeout. A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	s.log.Info("Admin server stopped")
	return nil
}

// Health implements component.HealthReporter.
func (s *Server) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: s.listener.Addr().String()}
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}
