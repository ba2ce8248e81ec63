// Package server exposes a hakai project over HTTP: server-rendered pages,
// the live reload client script, the favicon and the live reload socket.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/KevTale/hakai/internal/compiler"
	"github.com/KevTale/hakai/internal/config"
	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/hmr"
	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/routing"
)

const (
	// ClientScriptPath serves the live reload client.
	ClientScriptPath = "/hmr-client.js"
	faviconPath      = "/favicon.ico"
	faviconFile      = "favicon.ico"
)

//go:embed static/hmr-client.js
var clientScript string

// Server serves pages with live reload capability
type Server struct {
	config      *config.Config
	project     *project.Project
	compiler    *compiler.Compiler
	resolver    *routing.Resolver
	coordinator *hmr.Coordinator
	logger      logging.Logger

	clientScript   []byte
	originPatterns []string

	// baseCtx outlives requests; socket connections end when it is canceled.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	httpServer   *http.Server
	listener     net.Listener
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a server.
func New(cfg *config.Config, c *compiler.Compiler, r *routing.Resolver, coordinator *hmr.Coordinator, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:         cfg,
		project:        c.Project(),
		compiler:       c,
		resolver:       r,
		coordinator:    coordinator,
		logger:         logger.WithComponent("server"),
		clientScript:   []byte(strings.ReplaceAll(clientScript, "__HAKAI_HMR_PATH__", cfg.HMR.Path)),
		originPatterns: originPatterns(cfg.Server.AllowedOrigins),
		baseCtx:        baseCtx,
		cancelBase:     cancel,
	}
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(faviconPath, s.handleFavicon)
	mux.HandleFunc(ClientScriptPath, s.handleClientScript)
	mux.HandleFunc(s.config.HMR.Path, s.handleWebSocket)
	mux.HandleFunc("/", s.handlePage)

	return s.logRequests(mux)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Address(), err)
	}

	s.serverMutex.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving", "url", "http://"+listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown closes live reload sessions, which stops the watcher, and then
// shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.cancelBase()
		s.coordinator.Close()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	pages, err := s.resolver.ResolvePages(ctx, r.URL.Path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	page, err := s.compiler.Compile(ctx, pages)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	templ.Handler(Shell(page)).ServeHTTP(w, r)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if hakaierrors.HasCode(err, hakaierrors.CodePageNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Warn(r.Context(), err, "Page compile failed", "path", r.URL.Path)
	}

	templ.Handler(ErrorShell(hakaierrors.ClientMessage(err)), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(s.clientScript)
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	data, err := s.project.ReadFile(r.Context(), faviconFile)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/x-icon")
	_, _ = w.Write([]byte(data))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the hijacker for sockets.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == s.config.HMR.Path {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
