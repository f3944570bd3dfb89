// Package mockapi is an in-memory fake of the coven backend.
//
// It serves the REST, streaming chat and health WebSocket endpoints the
// console talks to, so the clients and commands can be exercised without a
// real deployment. Tests drive it through httptest; cmd/fake-backend serves
// it on a real port with an optional YAML seed.
package mockapi
