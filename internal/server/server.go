// Package server runs the proxytrace HTTP and gRPC endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/abczzz13/proxytrace"
	"github.com/abczzz13/proxytrace/grpctrace"
	"github.com/abczzz13/proxytrace/internal/config"
	"github.com/abczzz13/proxytrace/internal/ratelimit"
	proxytraceprom "github.com/abczzz13/proxytrace/prometheus"
)

const shutdownTimeout = 10 * time.Second

// Server answers every HTTP request with the trace of that request and
// optionally traces gRPC calls. The tracer can be swapped at runtime.
type Server struct {
	tracer   atomic.Pointer[proxytrace.Tracer]
	logger   *slog.Logger
	registry *prom.Registry
	limiter  *ratelimit.Limiter

	httpServer *http.Server
	grpcAddr   string
	grpcServer *grpc.Server
	health     *health.Server
}

// New builds a server from cfg. Metrics are registered on a private
// registry served at /metrics.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = slog.New(requestIDHandler{logger.Handler()})

	s := &Server{
		logger:   logger,
		registry: prom.NewRegistry(),
	}

	if err := s.Apply(cfg); err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.GRPCListen != "" {
		s.grpcAddr = cfg.GRPCListen
		s.grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(s.unaryInterceptor, s.logUnary),
			grpc.ChainStreamInterceptor(s.streamInterceptor),
		)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
	}

	return s, nil
}

// Tracer returns the tracer currently serving requests.
func (s *Server) Tracer() *proxytrace.Tracer {
	return s.tracer.Load()
}

// Apply replaces the active tracer with one built from cfg. Listen
// addresses and rate limits are fixed at startup and ignored here.
func (s *Server) Apply(cfg config.Config) error {
	opts := append(cfg.TracerOptions(),
		proxytrace.WithLogger(s.logger),
		proxytraceprom.WithRegisterer(s.registry),
	)

	tracer, err := proxytrace.New(opts...)
	if err != nil {
		return err
	}

	if len(cfg.Trust) == 0 {
		s.logger.Warn("no trusted proxies configured; every hop is trusted and clients can choose their own peer address")
	}

	s.tracer.Store(tracer)
	return nil
}

// Handler returns the HTTP handler: /metrics exposes Prometheus metrics,
// every other path responds with the request's trace as JSON. Every
// response carries an X-Request-Id header.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.tracer.Load().Middleware(http.HandlerFunc(s.writeTrace)).ServeHTTP(w, r)
	}))
	return withRequestID(mux)
}

func (s *Server) writeTrace(w http.ResponseWriter, r *http.Request) {
	trace, ok := proxytrace.FromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(trace.Peer) {
		s.logger.WarnContext(r.Context(), "rate limit exceeded", "peer", trace.Peer)
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	s.logger.DebugContext(r.Context(), "request traced",
		"peer", trace.Peer,
		"proxy", trace.Proxy,
		"intermediate_proxies", trace.IntermediateProxies,
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trace); err != nil {
		s.logger.ErrorContext(r.Context(), "write trace response", "error", err)
	}
}

func (s *Server) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return grpctrace.UnaryServerInterceptor(s.tracer.Load())(ctx, req, info, handler)
}

func (s *Server) streamInterceptor(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return grpctrace.StreamServerInterceptor(s.tracer.Load())(srv, stream, info, handler)
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if trace, ok := grpctrace.FromContext(ctx); ok {
		s.logger.DebugContext(ctx, "call traced",
			"method", info.FullMethod,
			"peer", trace.Peer,
			"proxy", trace.Proxy,
		)
	}
	return handler(ctx, req)
}

// Run serves until ctx is cancelled, then shuts both listeners down.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	var grpcLis net.Listener
	if s.grpcServer != nil {
		grpcLis, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.grpcAddr, err)
		}
	}

	return s.serve(ctx, httpLis, grpcLis)
}

func (s *Server) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("http server listening", "addr", httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcLis != nil {
		go func() {
			s.logger.Info("grpc server listening", "addr", grpcLis.Addr().String())
			if err := s.grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown", "error", err)
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.grpcServer != nil {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
}
