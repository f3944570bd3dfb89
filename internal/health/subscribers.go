// ABOUTME: Callback sets for connectivity and status subscribers keyed by subscription ID
// ABOUTME: Callbacks run in the monitor goroutine outside the lock; panics are recovered and logged

package health

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-console/internal/client"
)

type subscribers struct {
	mu           sync.RWMutex
	connectivity map[string]func(Connectivity)
	status       map[string]func(client.HealthStatus)
	logger       *slog.Logger
}

func newSubscribers(logger *slog.Logger) *subscribers {
	return &subscribers{
		connectivity: make(map[string]func(Connectivity)),
		status:       make(map[string]func(client.HealthStatus)),
		logger:       logger,
	}
}

func (s *subscribers) addConnectivity(fn func(Connectivity)) func() {
	id := uuid.New().String()
	s.mu.Lock()
	s.connectivity[id] = fn
	s.mu.Unlock()
	s.logger.Debug("subscriber added", "kind", "connectivity", "sub_id", id)

	return func() {
		s.mu.Lock()
		delete(s.connectivity, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) addStatus(fn func(client.HealthStatus)) func() {
	id := uuid.New().String()
	s.mu.Lock()
	s.status[id] = fn
	s.mu.Unlock()
	s.logger.Debug("subscriber added", "kind", "status", "sub_id", id)

	return func() {
		s.mu.Lock()
		delete(s.status, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) emitConnectivity(c Connectivity) {
	// Copy under the read lock so callbacks may unsubscribe
	s.mu.RLock()
	targets := make(map[string]func(Connectivity), len(s.connectivity))
	for id, fn := range s.connectivity {
		targets[id] = fn
	}
	s.mu.RUnlock()

	for id, fn := range targets {
		s.safeCall(id, func() { fn(c) })
	}
}

func (s *subscribers) emitStatus(st client.HealthStatus) {
	s.mu.RLock()
	targets := make(map[string]func(client.HealthStatus), len(s.status))
	for id, fn := range s.status {
		targets[id] = fn
	}
	s.mu.RUnlock()

	for id, fn := range targets {
		s.safeCall(id, func() { fn(st) })
	}
}

func (s *subscribers) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "sub_id", id, "panic", r)
		}
	}()
	fn()
}
