package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// HealthRegistrar exposes the standard grpc.health.v1 service backed by a Checker.
type HealthRegistrar struct {
	health *health.Server
}

func NewHealthRegistrar(c *Checker) *HealthRegistrar {
	return &HealthRegistrar{health: c.health}
}

func (r *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.health)
}
