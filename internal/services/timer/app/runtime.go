package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundcheck-app/soundcheck/internal/platform/timeouts"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/scheduler"
	timersqlite "github.com/soundcheck-app/soundcheck/internal/services/timer/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls timer service startup and loop behavior.
type RuntimeConfig struct {
	HTTPPort        int
	HealthPort      int
	DBPath          string
	SessionTTL      time.Duration
	PollInterval    time.Duration
	InitialDelay    time.Duration
	Workers         int
	GCInterval      time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultHTTPPort   = 8080
	defaultHealthPort = 8081
	defaultDBPath     = "data/timer.db"
	defaultGCInterval = 5 * time.Minute
)

// Run starts the timer runtime: SQLite store, band hub, scheduler worker
// pool, HTTP control+websocket server, gRPC health server, and the store
// GC sweep. It blocks until ctx is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaultGCInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create timer storage dir: %w", err)
		}
	}

	store, err := timersqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open timer sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close timer sqlite store: %v", closeErr)
		}
	}()

	hub := newBandHub()
	service := NewService(store, store, hub, ServiceConfig{
		SessionTTL:   cfg.SessionTTL,
		PollInterval: cfg.PollInterval,
		InitialDelay: cfg.InitialDelay,
	})
	sched := scheduler.New(service.CheckCompletion, scheduler.Config{Workers: cfg.Workers})
	service.SetRearmer(sched)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           NewHandler(service, hub),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Printf("timer http server listening at %s", httpServer.Addr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			httpErr <- serveErr
			return
		}
		httpErr <- nil
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("shutdown http server: %v", shutdownErr)
		}
		if serveErr := <-httpErr; serveErr != nil {
			log.Printf("serve http: %v", serveErr)
		}
	}()

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("timer.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	healthErr := make(chan error, 1)
	go func() {
		healthErr <- grpcServer.Serve(healthListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-healthErr
	}()

	// TTL garbage collection belongs to the store, not the engine: the
	// sweep only reclaims rows that reads already treat as absent.
	go func() {
		ticker := time.NewTicker(cfg.GCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				swept, sweepErr := store.DeleteExpiredSessions(ctx, now)
				if sweepErr != nil {
					if ctx.Err() == nil {
						log.Printf("sweep expired sessions: %v", sweepErr)
					}
					continue
				}
				if swept > 0 {
					log.Printf("swept %d expired sessions", swept)
				}
			}
		}
	}()

	log.Printf("timer health server listening at %v", healthListener.Addr())
	return sched.Run(ctx)
}
