// Package server accepts client connections and hands each one to a session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/topicbus/internal/broker"
	"github.com/rmacdonaldsmith/topicbus/internal/logging"
	"github.com/rmacdonaldsmith/topicbus/internal/session"
	"github.com/rmacdonaldsmith/topicbus/internal/transport"
	"go.uber.org/zap"
)

const maxAcceptDelay = time.Second

// Config holds listener configuration
type Config struct {
	// Address is the host:port to bind
	Address string

	Session   session.Config
	Transport transport.Config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address cannot be empty")
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Transport.Validate()
}

// Server is a bound listener serving topicbus sessions
type Server struct {
	config   Config
	listener net.Listener
	router   session.Router
	logger   *zap.Logger
	sessions sync.WaitGroup

	sessionLogger *zap.Logger
}

// Listen binds the configured address. The returned server accepts nothing
// until Serve is called. Listener and session logs are tagged with their
// component.
func Listen(config Config, router session.Router, logger *zap.Logger) (*Server, error) {
	if router == nil {
		return nil, errors.New("router cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", config.Address, err)
	}

	return newServer(config, listener, router, logger), nil
}

func newServer(config Config, listener net.Listener, router session.Router, logger *zap.Logger) *Server {
	s := &Server{
		config:        config,
		listener:      listener,
		router:        router,
		logger:        logging.ForComponent(logger, logging.ComponentListener),
		sessionLogger: logging.ForComponent(logger, logging.ComponentSession),
	}
	s.logger.Info("Listening", zap.Stringer("address", listener.Addr()))
	return s
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close releases the listening socket. Use it when Serve will never be
// called; a running Serve closes the listener itself on shutdown.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and waits for every session to end.
func (s *Server) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.listener.Close()
	}()

	err := s.acceptLoop(ctx)

	s.sessions.Wait()
	s.logger.Info("Listener stopped")
	return err
}

// Run adapts Serve for errgroup
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		return s.Serve(ctx)
	}
}

func (s *Server) acceptLoop(ctx context.Context) error {
	var delay time.Duration

	for {
		raw, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.logger.Warn("Accept failed, retrying",
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.serveConn(ctx, raw)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, raw net.Conn) {
	conn := transport.NewConn(raw, s.config.Transport)

	handler, err := session.New(conn, s.router, s.config.Session, s.sessionLogger)
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		conn.Close()
		return
	}

	logger := s.logger.With(
		zap.String("session", handler.ID()),
		zap.Stringer("remote", raw.RemoteAddr()))
	logger.Info("Client connected")

	err = handler.Serve(ctx)
	switch {
	case err == nil:
		logger.Info("Client disconnected")
	case errors.Is(err, broker.ErrBrokerStopped):
		logger.Info("Client dropped, broker stopped")
	default:
		logger.Warn("Client session failed", zap.Error(err))
	}
}
