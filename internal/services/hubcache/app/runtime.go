package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/subdogs/hub/internal/platform/discovery"
	hubsqlite "github.com/subdogs/hub/internal/services/hubcache/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// SweeperHealthService is the health service name tracking sweep outcomes.
const SweeperHealthService = "hubcache.sweeper"

const defaultHubcacheDB = "data/hubcache.db"

// RuntimeConfig controls the hub cache sweeper daemon.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	SweepInterval time.Duration
}

// Run opens the store, serves gRPC health, and sweeps expired records until
// ctx is done. The sweeper health status drops to NOT_SERVING while sweeps
// fail.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = discovery.DefaultGRPCPort(discovery.ServiceHubcache)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultHubcacheDB
	}

	store, err := hubsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open hubcache sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close hubcache sqlite store: %v", closeErr)
		}
	}()

	service, err := New(store, nil, DefaultOptions())
	if err != nil {
		return fmt.Errorf("build hubcache service: %w", err)
	}
	defer service.Close()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on hubcache port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(SweeperHealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	sweeper := NewSweeper(service, cfg.SweepInterval, func(_ SweepReport, err error) {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		healthServer.SetServingStatus(SweeperHealthService, status)
	})

	log.Printf("hubcache server listening at %v", listener.Addr())
	return sweeper.Run(ctx)
}
