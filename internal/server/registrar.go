package server

import "google.golang.org/grpc"

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
	// Name is the fully qualified service name reported by the health service.
	Name() string
}
