// ABOUTME: Store interfaces and data types for coven-console local state
// ABOUTME: Defines the saved auth session, key/value cache and chat transcript records

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SavedSession is the locally persisted login session
type SavedSession struct {
	Token     string
	Email     string
	ExpiresAt *time.Time
	SavedAt   time.Time
}

// ChatSession is a locally mirrored chat session
type ChatSession struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role constants for chat messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a locally mirrored transcript
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	ToolsUsed []string
	CreatedAt time.Time
}

// TokenStore persists the session token between runs
type TokenStore interface {
	LoadToken(ctx context.Context) (*SavedSession, error)
	SaveToken(ctx context.Context, session *SavedSession) error
	ClearToken(ctx context.Context) error
}

// KVStore is a small string key/value cache
type KVStore interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// TranscriptStore mirrors chat sessions locally for offline viewing and export
type TranscriptStore interface {
	UpsertChatSession(ctx context.Context, session *ChatSession) error
	ListChatSessions(ctx context.Context, limit int) ([]*ChatSession, error)
	AppendChatMessage(ctx context.Context, msg *ChatMessage) error
	GetChatMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error)
	DeleteChatSession(ctx context.Context, id string) error
}

// Store is the full local state surface
type Store interface {
	TokenStore
	KVStore
	TranscriptStore

	// Close releases any resources held by the store
	Close() error
}
