package worker

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// healthServer exposes the standard grpc_health_v1 service so orchestrators
// can probe the worker.
type healthServer struct {
	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
}

// newHealthServer listens on addr and registers the health service. The
// server advertises SERVING until setServing flips it.
func newHealthServer(addr string) (*healthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &healthServer{
		grpcServer: grpcServer,
		listener:   listener,
		health:     hs,
	}, nil
}

// start serves in a background goroutine until stop is called.
func (s *healthServer) start(logger *slog.Logger) {
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
			logger.Error("health server stopped", "error", err)
		}
	}()
}

// addr returns the actual listen address, resolving ":0" to the bound port.
func (s *healthServer) addr() string {
	return s.listener.Addr().String()
}

// setServing flips the advertised health status.
func (s *healthServer) setServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}

// stop gracefully stops the server, forcing the issue after timeout.
func (s *healthServer) stop(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.grpcServer.Stop()
	}
}
