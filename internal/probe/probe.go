// ABOUTME: gRPC health-protocol server that mirrors backend connectivity
// ABOUTME: Lets orchestrators probe the console's view of the backend with standard tooling

package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/coven-console/internal/health"
)

// BackendService is the service name reported for the backend.
const BackendService = "coven.backend"

// Source is the part of the health monitor the probe follows.
type Source interface {
	OnConnectivity(fn func(health.Connectivity)) (unsubscribe func())
	Snapshot() health.Snapshot
}

// Server serves grpc.health.v1.Health.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	logger *slog.Logger
}

// New creates a Server reporting NOT_SERVING until connectivity is known.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gs := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, logger: logger.With("component", "probe")}
	s.set(false)
	return s
}

// Follow mirrors src into the served status until the returned func is called.
func (s *Server) Follow(src Source) (stop func()) {
	s.set(src.Snapshot().Connected)
	return src.OnConnectivity(func(c health.Connectivity) {
		s.set(c.Connected)
	})
}

func (s *Server) set(connected bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(BackendService, status)
	s.health.SetServingStatus("", status)
	s.logger.Debug("probe status", "status", status.String())
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	s.logger.Info("probe listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serving probe: %w", err)
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}
