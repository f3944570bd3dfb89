// Package probe exposes backend connectivity over the standard gRPC health protocol,
// so grpc_health_probe and orchestrator liveness checks can watch the console.
package probe
