package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"


	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/httputil"
	"github.com/contractd/contractd/pkg/logging"
	"github.com/contractd/contractd/pkg/metrics"
	"github.com/contractd/contractd/pkg/ratelimit"
	"github.com/contractd/contractd/pkg/validation"
)

// Server is the contract HTTP API. It holds no per-request state.
type Server struct {
	engine    engine.Engine
	apiKey    string
	version   string
	log       *slog.Logger
	metrics   *metrics.Metrics
	limiter   *ratelimit.PerIPLimiter
	maxBody   int64
	validator *validation.RequestValidator
	mux       *http.ServeMux
	handler   http.Handler

	httpServer *http.Server
	mu         sync.Mutex
	listener   net.Listener
}

// NewServer creates a server forwarding requests to eng.
func NewServer(eng engine.Engine, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}

	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		engine:  eng,
		apiKey:  cfg.apiKey,
		version: cfg.version,
		log:     cfg.logger,
		metrics: cfg.metrics,
		limiter: cfg.limiter,
		maxBody: cfg.maxBodyBytes,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}

	doc := NewOpenAPIDocument(s.version, eng.Formats())
	validator, err := validation.NewRequestValidator(context.Background(), doc,
		validation.WithBodyMediaType("text/plain"))
	if err != nil {
		return nil, fmt.Errorf("building request validator: %w", err)
	}
	s.validator = validator

	s.mux = http.NewServeMux()
	s.registerRoutes(s.mux)
	s.handler = s.withMiddleware(s.mux)

	s.httpServer = &http.Server{
		Addr:              cfg.addr,
		Handler:           s.handler,
		ReadTimeout:       cfg.readTimeout,
		ReadHeaderTimeout: cfg.readTimeout,
		WriteTimeout:      cfg.writeTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned; serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("starting contract API",
		"addr", ln.Addr().String(),
		"api_key_required", s.apiKey != "",
		"metrics", s.metrics != nil,
		"rate_limit", s.limiter != nil)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("contract API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop gracefully shuts the server down and stops the rate limiter.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return err
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Contract operations
	mux.HandleFunc("POST /test", s.requireAPIKey(s.handleTest))
	mux.HandleFunc("POST /lint", s.handleLint)
	mux.HandleFunc("POST /export", s.handleExport)

	// Service
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, s.validator.Document())
}
