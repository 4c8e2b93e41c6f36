package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "storefront.Storefront"

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer returns a traced gRPC server exposing the standard health service.
func NewServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}

// CheckOnce sets the serving status of hs from a single database ping.
func CheckOnce(ctx context.Context, hs *health.Server, db Pinger, timeout time.Duration, logger *zap.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := db.Ping(pingCtx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logger.Warn("Database health check failed", zap.Error(err))
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}

// WatchDatabase re-checks the database every interval until ctx is done.
func WatchDatabase(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration, logger *zap.Logger) {
	CheckOnce(ctx, hs, db, interval, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CheckOnce(ctx, hs, db, interval, logger)
		}
	}
}
