package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/capture.gateway/internal/monitoring"
)

// HealthServiceName is the service reported by the gRPC health endpoint.
const HealthServiceName = "capture.gateway.Waterfall"

var healthLogf = monitoring.Tagged("gRPC")

// HealthServer exposes grpc.health.v1 for load balancers and probes.
type HealthServer struct {
	address  string
	server   *grpc.Server
	health   *health.Server
	mu       sync.Mutex
	listener net.Listener
}

// NewHealthServer creates a health server bound to address on Listen.
func NewHealthServer(address string) *HealthServer {
	hs := &HealthServer{
		address: address,
		server:  grpc.NewServer(),
		health:  health.NewServer(),
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.health.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Listen binds the listener. Addr is valid afterwards.
func (hs *HealthServer) Listen() error {
	lis, err := net.Listen("tcp", hs.address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	hs.mu.Lock()
	hs.listener = lis
	hs.mu.Unlock()
	healthLogf("health service bound to %s", lis.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (hs *HealthServer) Addr() net.Addr {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.listener == nil {
		return nil
	}
	return hs.listener.Addr()
}

// SetServing flips the waterfall service between SERVING and NOT_SERVING.
func (hs *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus(HealthServiceName, status)
	hs.health.SetServingStatus("", status)
}

// Serve runs until ctx is cancelled. Listen must have been called.
func (hs *HealthServer) Serve(ctx context.Context) error {
	hs.mu.Lock()
	lis := hs.listener
	hs.mu.Unlock()
	if lis == nil {
		return errors.New("health server is not listening")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := hs.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()
	hs.SetServing(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	hs.health.Shutdown()
	hs.server.GracefulStop()
	healthLogf("health service stopped")
	return nil
}

// Start is Listen followed by Serve.
func (hs *HealthServer) Start(ctx context.Context) error {
	if err := hs.Listen(); err != nil {
		return err
	}
	return hs.Serve(ctx)
}
