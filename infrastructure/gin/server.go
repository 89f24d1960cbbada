package gin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/onronder/p-958660-sub000/infrastructure/logger"
)

// Server is a gin engine bound to an http.Server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	log    logger.Logger
	cfg    Config
}

// NewServer installs the standard middleware chain and then calls routes.
// Order: recovery, request id + scoped logger, access log, CORS.
func NewServer(cfg Config, log logger.Logger, routes func(*gin.Engine)) *Server {
	cfg.setDefaults()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		RecoveryMiddleware(log),
		RequestIDMiddleware(log),
		AccessLogMiddleware(log),
		CORSMiddleware(cfg.CORS),
	)
	if routes != nil {
		routes(engine)
	}

	return &Server{
		engine: engine,
		log:    log,
		cfg:    cfg,
		http: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// connections within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server",
			logger.String("address", s.http.Addr),
			logger.String("service", s.cfg.ServiceName),
			logger.String("version", s.cfg.ServiceVersion),
		)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		s.log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
