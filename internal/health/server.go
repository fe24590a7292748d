// Package health exposes broker liveness over the standard gRPC health
// checking protocol (grpc.health.v1.Health).
package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status
const ServiceName = "topicbus.Broker"

// Monitored is anything whose end can be observed; the broker satisfies it
type Monitored interface {
	Done() <-chan struct{}
}

// Server serves health checks for one monitored component
type Server struct {
	listener  net.Listener
	grpc      *grpc.Server
	health    *health.Server
	monitored Monitored
	logger    *zap.Logger
}

// Listen binds address and registers the health service
func Listen(address string, monitored Monitored, logger *zap.Logger) (*Server, error) {
	if address == "" {
		return nil, errors.New("health address cannot be empty")
	}
	if monitored == nil {
		return nil, errors.New("monitored component cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind health address %s: %w", address, err)
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	logger.Info("Health service listening", zap.Stringer("address", listener.Addr()))

	return &Server{
		listener:  listener,
		grpc:      gs,
		health:    hs,
		monitored: monitored,
		logger:    logger,
	}, nil
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve reports SERVING until the monitored component stops, NOT_SERVING
// afterwards, and shuts down when ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpc.Serve(s.listener)
	}()

	done := s.monitored.Done()
	for {
		select {
		case <-done:
			s.logger.Warn("Broker stopped, reporting not serving")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			done = nil

		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.Stop()
			<-serveErr
			s.logger.Info("Health service stopped")
			return nil

		case err := <-serveErr:
			return fmt.Errorf("health service failed: %w", err)
		}
	}
}

// Run adapts Serve for errgroup
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		return s.Serve(ctx)
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
