// Package api hosts the HTTP server: the gin engine, its shared middleware and the
// listener lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/logging"
)

const defaultShutdownTimeout = 10 * time.Second

// Module registers its routes on the engine.
type Module interface {
	RegisterRoutes(engine *gin.Engine)
}

// Server serves the gin engine on a TCP listener.
type Server struct {
	addr            string
	engine          *gin.Engine
	shutdownTimeout time.Duration

	ready    chan struct{}
	listener net.Addr
}

// NewServer builds the engine with request logging, panic recovery and compression, and
// lets every module register its routes.
func NewServer(addr string, modules ...Module) *Server {
	engine := gin.New()
	engine.Use(logging.GinLogger(), gin.Recovery(), Compression())
	for _, m := range modules {
		m.RegisterRoutes(engine)
	}
	return &Server{
		addr:            addr,
		engine:          engine,
		shutdownTimeout: defaultShutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr { return s.listener }

// Serve accepts connections until ctx is cancelled, then drains in-flight requests for up
// to the shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	log.WithField("addr", s.listener.String()).Info("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	log.Info("HTTP server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
