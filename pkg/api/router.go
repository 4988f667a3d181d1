// Package api serves the printing subsystem over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eolymp/direct-printing/pkg/logger"
)

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
	CORS            CORSConfig
}

// NewRouter mounts the printing endpoints under /api and a health check at /health.
func NewRouter(cfg Config, h *Handler, log *zap.Logger) *gin.Engine {
	SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(CORSWithConfig(cfg.CORS))

	if cfg.MaxBodySize > 0 {
		engine.Use(BodyLimit(cfg.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		failure(c, http.StatusNotFound, "Not found")
	})

	engine.NoMethod(func(c *gin.Context) {
		failure(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	engine.GET("/health", h.Health)

	api := engine.Group("/api")
	api.GET("/printers", h.ListPrinters)
	api.GET("/printers/:name", h.GetPrinter)
	api.GET("/settings", h.GetSettings)
	api.POST("/print", h.Print)

	return engine
}

type Server struct {
	cfg Config
	srv *http.Server
	log *zap.Logger
}

func NewServer(cfg Config, handler http.Handler, log *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errs := make(chan error, 1)

	go func() {
		s.log.Info("Server starting", zap.String("addr", listener.Addr().String()))
		errs <- s.srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdown); err != nil {
		return err
	}

	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	s.log.Info("Server exited gracefully")
	return nil
}
