// Package observability exposes the liveness of the applier through the standard
// gRPC health protocol, so orchestrators can probe the process without parsing logs.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"problem-map/runtime/workers"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ApplierService is the health service name probes should ask for.
const ApplierService = "applier"

type Health struct {
	log    *slog.Logger
	server *health.Server
}

// NewHealth starts NOT_SERVING for the applier, the process itself is SERVING.
func NewHealth(log *slog.Logger) *Health {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	server.SetServingStatus(ApplierService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{log: log, server: server}
}

// OnApplierState is meant to be registered as an applier state listener.
func (h *Health) OnApplierState(state workers.ApplierState) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == workers.Running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.log.Debug("Applier health changed", "state", state, "status", status)
	h.server.SetServingStatus(ApplierService, status)
}

// Check answers like a remote probe would get answered.
func (h *Health) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// ListenAndServe exposes the health service until ctx is canceled.
func (h *Health) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(h.log)))
	healthpb.RegisterHealthServer(s, h.server)

	errChan := make(chan error, 1)
	go func() {
		h.log.Info("Starting gRPC health server", "address", address)
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		// Watchers are told NOT_SERVING before the listener goes away
		h.server.Shutdown()
		s.GracefulStop()
		return nil
	}
}
