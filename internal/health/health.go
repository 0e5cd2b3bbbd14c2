// Package health reports storefront readiness through the standard gRPC health service.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name probed by orchestrators.
const ServiceName = "storefront"

type Check func(ctx context.Context) error

// Reporter runs dependency checks and publishes SERVING only while all pass.
type Reporter struct {
	server  *health.Server
	mu      sync.Mutex
	checks  map[string]Check
	timeout time.Duration
	logger  *zap.Logger
}

func NewReporter(server *health.Server, timeout time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		server:  server,
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  logger,
	}
}

func (r *Reporter) Register(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Probe runs every check once and updates the served status.
func (r *Reporter) Probe(ctx context.Context) bool {
	r.mu.Lock()
	checks := make(map[string]Check, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.Unlock()

	healthy := true
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			healthy = false
			r.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.server.SetServingStatus(ServiceName, status)
	r.server.SetServingStatus("", status)
	return healthy
}

func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	r.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown marks everything NOT_SERVING so load balancers drain the instance.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}
