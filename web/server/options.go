package server

import (
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*settings)

type settings struct {
	addr            string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func defaults() settings {
	return settings{
		addr:            ":8080",
		readTimeout:     30 * time.Second,
		shutdownTimeout: 20 * time.Second,
		logger:          slog.Default(),
	}
}

// WithHost sets the listen address. Default ":8080".
func WithHost(addr string) Option {
	return func(s *settings) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithReadTimeout bounds reading a whole request. Default 30s; zero keeps
// the default.
func WithReadTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long in-flight downloads may run after
// shutdown starts. Default 20s; zero keeps the default.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.logger = log
		}
	}
}
