// Package api serves storage pools over HTTP. The server listens on a Unix
// socket by default and can additionally listen on a TCP address.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shyim/filestore/internal/storage"
)

// DefaultSocketPath is the default Unix socket path
const DefaultSocketPath = "/var/run/filestore.sock"

// Pools resolves the storage pools the server exposes
type Pools interface {
	Get(name string) (storage.Backend, error)
	List() []string
}

// Options configures a Server
type Options struct {
	// SocketPath is the Unix socket to listen on. Empty disables the socket
	// unless Addr is empty too, in which case DefaultSocketPath is used.
	SocketPath string

	// Addr is an optional TCP listen address such as ":8080"
	Addr string

	// Auth enables HTTP basic authentication when set
	Auth *Credentials

	// TempDir stages uploads and downloads. Defaults to os.TempDir().
	TempDir string
}

// Server provides the HTTP API
type Server struct {
	opts    Options
	pools   Pools
	handler http.Handler

	mu      sync.Mutex
	servers []*http.Server
	stopped bool
}

// NewServer creates a new API server
func NewServer(pools Pools, opts Options) *Server {
	if opts.SocketPath == "" && opts.Addr == "" {
		opts.SocketPath = DefaultSocketPath
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	s := &Server{
		opts:  opts,
		pools: pools,
	}
	s.handler = s.router()
	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pools := router.Group("/pools")
	if s.opts.Auth != nil {
		pools.Use(BasicAuthMiddleware(s.opts.Auth))
	}

	pools.GET("", s.handlePools)
	pools.GET("/:pool/files", s.handleFind)
	pools.GET("/:pool/files/*path", s.handleDownload)
	pools.PUT("/:pool/files/*path", s.handleUpload)
	pools.DELETE("/:pool/files/*path", s.handleDelete)
	pools.GET("/:pool/meta/*path", s.handleMetadata)
	pools.POST("/:pool/dirs/*path", s.handleMakeDir)

	return router
}

// Start listens on the configured socket and address and serves until
// Shutdown is called. Start after Shutdown returns http.ErrServerClosed.
func (s *Server) Start() error {
	var listeners []net.Listener
	closeAll := func() {
		for _, listener := range listeners {
			_ = listener.Close()
		}
	}

	if s.opts.SocketPath != "" {
		// Remove a stale socket left behind by an unclean shutdown
		if err := os.RemoveAll(s.opts.SocketPath); err != nil {
			return err
		}

		listener, err := net.Listen("unix", s.opts.SocketPath)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.opts.SocketPath, err)
		}

		if err := os.Chmod(s.opts.SocketPath, 0660); err != nil {
			_ = listener.Close()
			return err
		}
		listeners = append(listeners, listener)
	}

	if s.opts.Addr != "" {
		listener, err := net.Listen("tcp", s.opts.Addr)
		if err != nil {
			closeAll()
			return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
		}
		listeners = append(listeners, listener)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		closeAll()
		return http.ErrServerClosed
	}
	servers := make([]*http.Server, len(listeners))
	for i := range listeners {
		servers[i] = s.newHTTPServer()
	}
	s.servers = append(s.servers, servers...)
	s.mu.Unlock()

	errc := make(chan error, len(listeners))
	for i, listener := range listeners {
		slog.Info("starting API server", "listen", listener.Addr().String())
		go func() {
			errc <- servers[i].Serve(listener)
		}()
	}

	for range listeners {
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return http.ErrServerClosed
}

// newHTTPServer bounds the header read only; artifact bodies stream for as
// long as the transfer takes.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	servers := s.servers
	s.mu.Unlock()

	var errs []error
	for _, server := range servers {
		errs = append(errs, server.Shutdown(ctx))
	}

	if s.opts.SocketPath != "" {
		_ = os.RemoveAll(s.opts.SocketPath)
	}

	return errors.Join(errs...)
}

// SocketPath returns the socket path
func (s *Server) SocketPath() string {
	return s.opts.SocketPath
}
