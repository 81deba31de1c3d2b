package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service names reported next to the overall ("") status.
const (
	ServiceExtraction = "invoice-extraction"
	ServiceDatabase   = "database"
)

// Check probes one dependency. A nil error means it is usable.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// Monitor runs its checks on an interval and publishes the results on a gRPC health
// server. The overall status is SERVING only when every check passes.
type Monitor struct {
	hs       *health.Server
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	checks []namedCheck
}

func NewMonitor(hs *health.Server, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		hs:       hs,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Add registers a check; its service starts out NOT_SERVING until the first probe.
func (m *Monitor) Add(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, namedCheck{name: name, check: check})
	m.hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// CheckOnce probes every dependency and reports whether all of them passed.
func (m *Monitor) CheckOnce(ctx context.Context) bool {
	m.mu.Lock()
	checks := append([]namedCheck(nil), m.checks...)
	m.mu.Unlock()

	healthy := true
	for _, c := range checks {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := c.check(cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			m.logger.Warn("health.check.fail", "service", c.name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		} else {
			m.logger.Debug("health.check.ok", "service", c.name, "elapsed_ms", time.Since(start).Milliseconds())
		}
		m.hs.SetServingStatus(c.name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.hs.SetServingStatus("", overall)
	return healthy
}

// Run probes immediately and then on every tick until ctx is done, at which point all
// services are marked NOT_SERVING.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.hs.Shutdown()
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// NewServer builds a gRPC server exposing the standard health service and reflection
// for grpcurl.
func NewServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	return grpcServer, hs
}
