// Package web serves the HTTP trigger API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/service"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
)

// Coordinator runs capture requests on behalf of the API.
type Coordinator interface {
	Store(kind core.ArtifactKind, info core.CaptureInfo, cb core.Callback) string
	Write(kind core.ArtifactKind, info core.CaptureInfo) string
	Destination() *storage.Destination
	Metrics() service.CaptureMetrics
}

// Server represents the HTTP server for the trigger API.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *slog.Logger

	coord   Coordinator
	modes   core.Modes
	monitor *diagnostics.ResourceMonitor
	service string
	redact  func(string) string
}

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DefaultConfig returns the default server configuration. WriteTimeout
// covers a synchronous core dump upload.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8470,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    10 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithModes sets the per-kind trigger modes. Kinds whose mode lacks "api"
// are refused.
func WithModes(modes core.Modes) ServerOption {
	return func(s *Server) {
		s.modes = modes
	}
}

// WithMonitor exposes the resource monitor under /api/v1/diagnostics/resources.
func WithMonitor(m *diagnostics.ResourceMonitor) ServerOption {
	return func(s *Server) {
		s.monitor = m
	}
}

// WithServiceName sets the name reported by the API root.
func WithServiceName(name string) ServerOption {
	return func(s *Server) {
		s.service = name
	}
}

// WithRedactor filters error text before it is sent to clients.
func WithRedactor(fn func(string) string) ServerOption {
	return func(s *Server) {
		s.redact = fn
	}
}

// New creates a new Server instance with the given configuration.
func New(cfg Config, coord Coordinator, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		coord:   coord,
		modes:   core.DefaultModes(),
		service: "cloud-diagnostics",
		redact:  func(s string) string { return s },
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupRouter configures the Chi router with middleware and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if len(s.config.CORSOrigins) > 0 {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleAPIRoot)

		r.Route("/diagnostics", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Get("/resources", s.handleResources)
			r.Get("/metrics", s.handleMetrics)
			r.Post("/{kind}", s.handleCapture)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests using structured logging.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server in a non-blocking manner.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("starting http server",
		slog.String("addr", ln.Addr().String()),
	)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
