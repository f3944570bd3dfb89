// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	session  *SavedSession
	kv       map[string]string
	sessions map[string]*ChatSession  // keyed by session ID
	messages map[string][]*ChatMessage // keyed by session ID
	seen     map[string]bool           // message IDs already appended
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		kv:       make(map[string]string),
		sessions: make(map[string]*ChatSession),
		messages: make(map[string][]*ChatMessage),
		seen:     make(map[string]bool),
	}
}

// LoadToken returns the saved session or ErrNotFound.
func (m *MockStore) LoadToken(ctx context.Context) (*SavedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, ErrNotFound
	}
	s := *m.session
	return &s, nil
}

// SaveToken replaces the saved session.
func (m *MockStore) SaveToken(ctx context.Context, session *SavedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	m.session = &s
	return nil
}

// ClearToken removes the saved session.
func (m *MockStore) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// GetValue returns a cached value or ErrNotFound.
func (m *MockStore) GetValue(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetValue stores a cached value.
func (m *MockStore) SetValue(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

// UpsertChatSession creates or updates a chat session.
func (m *MockStore) UpsertChatSession(ctx context.Context, session *ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	existing, ok := m.sessions[session.ID]
	if !ok {
		s := *session
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
		m.sessions[s.ID] = &s
		return nil
	}

	if session.Title != "" {
		existing.Title = session.Title
	}
	existing.UpdatedAt = session.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = now
	}
	return nil
}

// ListChatSessions returns sessions, most recently updated first.
func (m *MockStore) ListChatSessions(ctx context.Context, limit int) ([]*ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	result := make([]*ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		c := *s
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// AppendChatMessage stores a message. Returns ErrNotFound for an unknown session.
func (m *MockStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
	}
	if m.seen[msg.ID] {
		return nil
	}

	c := *msg
	c.ToolsUsed = append([]string(nil), msg.ToolsUsed...)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &c)
	m.seen[msg.ID] = true
	return nil
}

// GetChatMessages returns a session's messages in insertion order.
func (m *MockStore) GetChatMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionID]
	result := make([]*ChatMessage, len(msgs))
	for i, msg := range msgs {
		c := *msg
		result[i] = &c
	}
	return result, nil
}

// DeleteChatSession removes a session and its messages.
func (m *MockStore) DeleteChatSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	for _, msg := range m.messages[id] {
		delete(m.seen, msg.ID)
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
