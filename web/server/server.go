package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// Server runs the gateway's http.Server and drains it on shutdown.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New creates a Server for handler.
//
// There is no write timeout: a download response lasts as long as the
// upstream report takes to arrive, which the report timeout bounds.
func New(handler http.Handler, opts ...Option) *Server {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}

	return &Server{
		srv: &http.Server{
			Addr:              s.addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       s.readTimeout,
			IdleTimeout:       2 * time.Minute,
			ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		},
		shutdownTimeout: s.shutdownTimeout,
		logger:          s.logger,
	}
}

// Run serves until ctx is done or the process gets SIGINT or SIGTERM,
// then shuts down gracefully. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", ln.Addr().String())
		serveErr <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)

	case <-ctx.Done():
		stop()
	}

	s.logger.Info("gateway shutting down", "timeout", s.shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("gateway stopped")

	return nil
}

// Shutdown stops accepting requests and waits for in-flight downloads
// until ctx expires, then closes whatever is left.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		return fmt.Errorf("downloads still running at shutdown deadline: %w", err)
	}

	return nil
}
