package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server runs the HTTP API as a registry service.
type Server struct {
	cfg     ServerConfig
	handler http.Handler
	hub     *Hub
	logger  zerolog.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
	wg  sync.WaitGroup
}

// NewServer creates a Server. hub is closed on Stop when not nil.
func NewServer(cfg ServerConfig, handler http.Handler, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		hub:     hub,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		s.logger.Warn().Msg("HTTP server is already running")
		return errors.New("http server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	s.wg.Add(1)
	go func(srv *http.Server) {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}(s.srv)

	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server started successfully")
	return nil
}

// Addr returns the bound address, or "" when the server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down gracefully and disconnects live clients.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		s.logger.Warn().Msg("HTTP server is not running")
		return errors.New("http server is not running")
	}

	if s.hub != nil {
		s.hub.Close()
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.wg.Wait()

	s.srv = nil
	s.ln = nil

	if err != nil {
		return err
	}
	s.logger.Info().Msg("HTTP server stopped successfully")
	return nil
}
