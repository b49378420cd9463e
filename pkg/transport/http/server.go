package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/agentserver/pkg/agent"
	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr              string
	MaxBodySize       int64
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration // zero leaves streams unbounded
	AgentType         api.AgentType
	Logger            *slog.Logger

	// Registry is sealed when the server starts serving.
	Registry *agent.Registry

	// TracerProvider enables otelhttp server spans when set.
	TracerProvider trace.TracerProvider

	// Middleware wraps the invocation handler, after the defaults.
	Middleware []transport.Middleware

	// HTTPMiddleware wraps the whole HTTP handler, outermost first.
	HTTPMiddleware []func(http.Handler) http.Handler

	// Routes are extra handlers mounted next to the adapter, such as /metrics.
	Routes map[string]http.Handler

	// PanicHooks are notified by the recovery middleware.
	PanicHooks []transport.PanicHook
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		MaxBodySize:       10 << 20, // 10 MB
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		AgentType:         api.AgentTypeResponses,
		Logger:            slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithTimeouts sets the read and write timeouts of the HTTP server.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithAgentType sets the agent type reported by the health endpoint.
func WithAgentType(t api.AgentType) ServerOption {
	return func(s *Server) { s.config.AgentType = t }
}

// WithRegistry seals reg when the server starts serving.
func WithRegistry(reg *agent.Registry) ServerOption {
	return func(s *Server) { s.config.Registry = reg }
}

// WithTracerProvider enables HTTP server spans.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) { s.config.TracerProvider = tp }
}

// WithMiddleware appends invocation middleware.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.config.Middleware = append(s.config.Middleware, mw...) }
}

// WithHTTPMiddleware appends HTTP middleware such as authentication or
// request metrics.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.config.HTTPMiddleware = append(s.config.HTTPMiddleware, mw...) }
}

// WithRoute mounts an extra handler on pattern.
func WithRoute(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		if s.config.Routes == nil {
			s.config.Routes = make(map[string]http.Handler)
		}
		s.config.Routes[pattern] = h
	}
}

// WithPanicHook registers a hook for recovered handler panics.
func WithPanicHook(h transport.PanicHook) ServerOption {
	return func(s *Server) { s.config.PanicHooks = append(s.config.PanicHooks, h) }
}

// NewServer creates a new transport server with the given handler and options.
// Default middleware (recovery, request ID, logging) is applied automatically.
func NewServer(handler transport.InvocationHandler, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	mw := []transport.Middleware{
		transport.Recovery(s.config.PanicHooks...),
		transport.RequestID(),
		transport.Logging(s.logger),
	}
	mw = append(mw, s.config.Middleware...)

	s.adapter = NewAdapter(handler, Config{
		MaxBodySize: s.config.MaxBodySize,
		AgentType:   s.config.AgentType,
		Logger:      s.logger,
	}, mw...)

	mux := http.NewServeMux()
	mux.Handle("/", s.adapter.Handler())
	for pattern, h := range s.config.Routes {
		mux.Handle(pattern, h)
	}

	var h http.Handler = mux
	for i := len(s.config.HTTPMiddleware) - 1; i >= 0; i-- {
		h = s.config.HTTPMiddleware[i](h)
	}
	if s.config.TracerProvider != nil {
		h = otelhttp.NewHandler(h, "agentserver",
			otelhttp.WithTracerProvider(s.config.TracerProvider),
		)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           h,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
// Registration is closed before the first request is accepted.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.Registry != nil {
		s.config.Registry.Seal()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if n := s.adapter.InFlight().CancelAll(); n > 0 {
		s.logger.Info("cancelled in-flight streams", slog.Int("count", n))
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.adapter.InFlight().CancelAll()
	return s.httpServer.Shutdown(ctx)
}
