// SPDX-License-Identifier:Apache-2.0

package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name the speaker status is published under. The empty
// service name carries the overall process status.
const Service = "bgpspeaker"

// Server publishes the speaker status through the standard gRPC health
// protocol.
type Server struct {
	health *health.Server
	logger *slog.Logger
}

func New(logger *slog.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing marks the speaker as serving or not.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, st)
	s.logger.Debug("health status changed", "service", Service, "status", st.String())
}

// Serve listens on address and serves health checks until ctx is done.
func (s *Server) Serve(ctx context.Context, address string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.ServeListener(ctx, l)
}

// ServeListener serves health checks on l until ctx is done.
func (s *Server) ServeListener(ctx context.Context, l net.Listener) error {
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, s.health)

	stop := context.AfterFunc(ctx, func() {
		s.health.Shutdown()
		grpcSrv.GracefulStop()
	})
	defer stop()

	s.logger.Info("health endpoint listening", "address", l.Addr().String())
	if err := grpcSrv.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health endpoint failed: %w", err)
	}
	return nil
}
