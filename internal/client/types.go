// ABOUTME: Wire types for the coven backend REST API
// ABOUTME: JSON tags follow the backend's snake_case field names

package client

import "time"

// User roles
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Document statuses
const (
	DocumentPending  = "pending"
	DocumentApproved = "approved"
	DocumentRejected = "rejected"
)

// Tool sources
const (
	ToolSourceBuiltin = "builtin"
	ToolSourceMCP     = "mcp"
	ToolSourceRAG     = "rag"
)

// MCP transports
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// User is a platform account.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// IsAdmin reports whether the user may use admin endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}

// AuthResponse is returned by OTP verification.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// HealthStatus is the backend liveness report, sent by GET /health and the health socket.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Healthy reports whether the backend considers itself healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "ok" || h.Status == "healthy"
}

// UserFilter narrows the admin user list.
type UserFilter struct {
	Page   int
	Limit  int
	Search string
	Role   string
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// UserUpdate is a partial admin update of a user. Nil fields are left unchanged.
type UserUpdate struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// SystemStats summarizes platform usage for superadmins.
type SystemStats struct {
	TotalUsers       int    `json:"total_users"`
	ActiveUsers      int    `json:"active_users"`
	TotalDocuments   int    `json:"total_documents"`
	PendingDocuments int    `json:"pending_documents"`
	TotalCollections int    `json:"total_collections"`
	TotalSessions    int    `json:"total_sessions"`
	TotalMessages    int    `json:"total_messages"`
	ActiveLLM        string `json:"active_llm,omitempty"`
}

// UsageDay is one day of usage history.
type UsageDay struct {
	Date        string `json:"date"`
	Messages    int    `json:"messages"`
	Sessions    int    `json:"sessions"`
	ActiveUsers int    `json:"active_users"`
	Tokens      int64  `json:"tokens"`
}

// Document is an uploaded RAG source document.
type Document struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Title           string    `json:"title"`
	ContentType     string    `json:"content_type"`
	Size            int64     `json:"size"`
	Status          string    `json:"status"`
	CollectionID    string    `json:"collection_id,omitempty"`
	UploadedBy      string    `json:"uploaded_by,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DocumentFilter narrows the document list.
type DocumentFilter struct {
	Status       string
	CollectionID string
}

// DocumentUpdate is a partial document update. Nil fields are left unchanged.
type DocumentUpdate struct {
	Title        *string `json:"title,omitempty"`
	CollectionID *string `json:"collection_id,omitempty"`
}

// Collection groups documents for retrieval.
type Collection struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"document_count"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
}

// CollectionInput creates or updates a collection.
type CollectionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// CustomRAGTool exposes a set of collections to the agent as a search tool.
type CustomRAGTool struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CollectionIDs []string  `json:"collection_ids"`
	TopK          int       `json:"top_k"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// RAGToolInput creates or updates a custom RAG tool.
type RAGToolInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	CollectionIDs []string `json:"collection_ids"`
	TopK          int      `json:"top_k"`
	Enabled       bool     `json:"enabled"`
}

// Tool is an entry of the combined tool catalog.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Enabled     bool   `json:"enabled"`
}

// MCPServer is a configured Model Context Protocol tool server.
type MCPServer struct {
	Name      string            `json:"name"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Transport string            `json:"transport"`
	Enabled   bool              `json:"enabled"`
}

// LLMConfig selects the language model backend. APIKey is masked on read.
type LLMConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	IsActive    bool    `json:"is_active"`
}

// LLMConfigInput creates or updates an LLM config. An empty APIKey on update keeps the stored key.
type LLMConfigInput struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// ChatSession is a server-side conversation.
type ChatSession struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// SessionMessage is one message of a server-side conversation.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetail is a conversation with its messages.
type SessionDetail struct {
	Session  ChatSession      `json:"session"`
	Messages []SessionMessage `json:"messages"`
}

// ChatRequest starts a streamed reply.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}
