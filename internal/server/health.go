package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to grpc health clients besides "".
const ServiceName = "matchmaker"

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker pings the consumer's dependencies and publishes the result to the
// grpc health service and the HTTP healthcheck.
type Checker struct {
	deps     map[string]Pinger
	interval time.Duration
	health   *health.Server
	healthy  atomic.Bool
	log      *slog.Logger
}

func NewChecker(deps map[string]Pinger, interval time.Duration, log *slog.Logger) *Checker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	c := &Checker{
		deps:     deps,
		interval: interval,
		health:   health.NewServer(),
		log:      log.With("component", "health"),
	}
	c.set(false)
	return c
}

// Healthy reports the result of the last check.
func (c *Checker) Healthy() bool {
	return c.healthy.Load()
}

// Check pings every dependency once. Returns true when all answered.
func (c *Checker) Check(ctx context.Context) bool {
	ok := true
	for name, dep := range c.deps {
		pingCtx, cancel := context.WithTimeout(ctx, c.interval/2)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			ok = false
			c.log.Warn("dependency unhealthy", "dependency", name, "err", err)
		}
	}
	c.set(ok)
	return ok
}

// Run checks immediately and then every interval until ctx is cancelled,
// at which point everything is reported NOT_SERVING.
func (c *Checker) Run(ctx context.Context) error {
	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.health.Shutdown()
			c.healthy.Store(false)
			return nil
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

func (c *Checker) set(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	if c.healthy.Swap(ok) != ok {
		c.log.Info("health changed", "serving", ok)
	}
	c.health.SetServingStatus("", status)
	c.health.SetServingStatus(ServiceName, status)
}
