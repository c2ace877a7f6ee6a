package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Config holds HTTP server configuration
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a server config with the service's timeouts.
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:            addr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// CreateServer creates an HTTP server with the given configuration
func CreateServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts the server down within
// cfg.ShutdownTimeout. ctx is also the base context of every request, so
// long-lived live sessions end with it.
func Run(ctx context.Context, cfg *Config, handler http.Handler) error {
	srv := CreateServer(cfg, handler)
	srv.BaseContext = func(_ net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Service runs the server as a supervised service. Every Serve call starts a
// fresh *http.Server, so a restart after a crash can listen again.
type Service struct {
	cfg     *Config
	handler http.Handler
}

func NewService(cfg *Config, handler http.Handler) *Service {
	return &Service{cfg: cfg, handler: handler}
}

// Serve implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if err := Run(ctx, s.cfg, s.handler); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return ctx.Err()
}

func (s *Service) String() string {
	return "http-server"
}
