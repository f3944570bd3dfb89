// Package transport builds the HTTP plumbing between the console and the backend:
// the http.Client (optionally dialing through a tsnet node) and a circuit breaker.
package transport
