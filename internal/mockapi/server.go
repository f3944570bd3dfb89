// ABOUTME: In-memory fake of the coven backend REST and WebSocket surface
// ABOUTME: Wires routes with gorilla/mux and holds all state behind a single mutex

package mockapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/2389/coven-console/internal/client"
)

// Version is reported by the fake health endpoint.
const Version = "mock-1.0.0"

// Options configures a Server.
type Options struct {
	// Secret signs session tokens. A random secret is used when empty.
	Secret []byte
	// TokenTTL is the session lifetime. Defaults to 24h.
	TokenTTL time.Duration
	// HealthInterval is the period between health socket frames. Defaults to 5s.
	HealthInterval time.Duration
	// MaxUploadBytes bounds document uploads. Defaults to 10 MiB.
	MaxUploadBytes int64
	// ChunkDelay is slept between streamed chat chunks.
	ChunkDelay time.Duration
	Logger     *slog.Logger
}

// userRecord is a user plus credentials the API never returns
type userRecord struct {
	client.User
	passwordHash []byte
}

// llmRecord keeps the unmasked key
type llmRecord struct {
	client.LLMConfig
}

// sessionRecord is a chat session owned by one user
type sessionRecord struct {
	owner    string
	session  client.ChatSession
	messages []client.SessionMessage
}

// Server is the fake backend.
type Server struct {
	opts     Options
	logger   *slog.Logger
	tokens   *tokenIssuer
	upgrader websocket.Upgrader
	router   *mux.Router
	now      func() time.Time

	mu           sync.Mutex
	users        map[string]*userRecord // keyed by user ID
	usersByEmail map[string]string      // email -> user ID
	otpSecrets   map[string]string      // email -> TOTP secret
	lastOTP      map[string]string      // email -> last issued code
	revoked      map[string]bool        // revoked token jti
	documents    map[string]*client.Document
	collections  map[string]*client.Collection
	ragTools     map[string]*client.CustomRAGTool
	mcpServers   map[string]*client.MCPServer // keyed by name
	llmConfigs   map[string]*llmRecord
	llmDefaults  []client.LLMConfig
	sessions     map[string]*sessionRecord
	healthy      bool
	closeQueue   []int
	closeSignal  chan struct{}
	activeClose  int
}

// New creates a Server with empty state and one built-in LLM config.
func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(randomSecret())
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 5 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		opts:   opts,
		logger: logger.With("component", "mockapi"),
		tokens: newTokenIssuer(opts.Secret, opts.TokenTTL),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:          time.Now,
		users:        make(map[string]*userRecord),
		usersByEmail: make(map[string]string),
		otpSecrets:   make(map[string]string),
		lastOTP:      make(map[string]string),
		revoked:      make(map[string]bool),
		documents:    make(map[string]*client.Document),
		collections:  make(map[string]*client.Collection),
		ragTools:     make(map[string]*client.CustomRAGTool),
		mcpServers:   make(map[string]*client.MCPServer),
		llmConfigs:   make(map[string]*llmRecord),
		sessions:     make(map[string]*sessionRecord),
		healthy:      true,
		closeSignal:  make(chan struct{}),
		llmDefaults: []client.LLMConfig{{
			ID:          "default",
			Name:        "Default",
			Provider:    "ollama",
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
			MaxTokens:   2048,
			IsActive:    true,
		}},
	}
	s.resetLLMLocked()
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the fake API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// Public
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/ws/health", s.handleHealthSocket)
	r.HandleFunc("/api/auth/request-otp", s.handleRequestOTP).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/verify-otp", s.handleVerifyOTP).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/auth/change-password", s.handleChangePassword).Methods(http.MethodPost)

	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/pending", s.requireRole(s.handlePendingDocuments)).Methods(http.MethodGet)
	api.HandleFunc("/documents/upload", s.handleUploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleUpdateDocument).Methods(http.MethodPut)
	api.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/approve", s.requireRole(s.handleApproveDocument)).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/reject", s.requireRole(s.handleRejectDocument)).Methods(http.MethodPost)

	api.HandleFunc("/collections", s.handleListCollections).Methods(http.MethodGet)
	api.HandleFunc("/collections", s.handleCreateCollection).Methods(http.MethodPost)
	api.HandleFunc("/collections/{id}", s.handleGetCollection).Methods(http.MethodGet)
	api.HandleFunc("/collections/{id}", s.handleUpdateCollection).Methods(http.MethodPut)
	api.HandleFunc("/collections/{id}", s.handleDeleteCollection).Methods(http.MethodDelete)
	api.HandleFunc("/collections/{id}/documents", s.handleCollectionDocuments).Methods(http.MethodGet)
	api.HandleFunc("/collections/{id}/documents", s.handleAddCollectionDocument).Methods(http.MethodPost)
	api.HandleFunc("/collections/{id}/documents/{doc_id}", s.handleRemoveCollectionDocument).Methods(http.MethodDelete)

	api.HandleFunc("/custom-rag-tools", s.handleListRAGTools).Methods(http.MethodGet)
	api.HandleFunc("/custom-rag-tools", s.requireRole(s.handleCreateRAGTool)).Methods(http.MethodPost)
	api.HandleFunc("/custom-rag-tools/{id}", s.handleGetRAGTool).Methods(http.MethodGet)
	api.HandleFunc("/custom-rag-tools/{id}", s.requireRole(s.handleUpdateRAGTool)).Methods(http.MethodPut)
	api.HandleFunc("/custom-rag-tools/{id}", s.requireRole(s.handleDeleteRAGTool)).Methods(http.MethodDelete)
	api.HandleFunc("/tools", s.handleListTools).Methods(http.MethodGet)

	api.HandleFunc("/mcp/servers", s.handleListMCPServers).Methods(http.MethodGet)
	api.HandleFunc("/mcp/servers", s.requireRole(s.handleCreateMCPServer)).Methods(http.MethodPost)
	api.HandleFunc("/mcp/servers/{name}", s.handleGetMCPServer).Methods(http.MethodGet)
	api.HandleFunc("/mcp/servers/{name}", s.requireRole(s.handleUpdateMCPServer)).Methods(http.MethodPut)
	api.HandleFunc("/mcp/servers/{name}", s.requireRole(s.handleDeleteMCPServer)).Methods(http.MethodDelete)
	api.HandleFunc("/mcp/servers/{name}/toggle", s.requireRole(s.handleToggleMCPServer)).Methods(http.MethodPost)

	api.HandleFunc("/llm/configs", s.requireRole(s.handleListLLMConfigs)).Methods(http.MethodGet)
	api.HandleFunc("/llm/configs", s.requireRole(s.handleCreateLLMConfig)).Methods(http.MethodPost)
	api.HandleFunc("/llm/configs/active", s.handleActiveLLMConfig).Methods(http.MethodGet)
	api.HandleFunc("/llm/configs/reset", s.requireRole(s.handleResetLLMConfigs)).Methods(http.MethodPost)
	api.HandleFunc("/llm/configs/{id}", s.requireRole(s.handleUpdateLLMConfig)).Methods(http.MethodPut)
	api.HandleFunc("/llm/configs/{id}", s.requireRole(s.handleDeleteLLMConfig)).Methods(http.MethodDelete)
	api.HandleFunc("/llm/configs/{id}/activate", s.requireRole(s.handleActivateLLMConfig)).Methods(http.MethodPost)

	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/chat/stream", s.handleChatStream).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminOnly)
	admin.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}/role", s.handleSetUserRole).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}/status", s.handleSetUserStatus).Methods(http.MethodPut)
	admin.HandleFunc("/system/stats", s.handleSystemStats).Methods(http.MethodGet)
	admin.HandleFunc("/system/usage-history", s.handleUsageHistory).Methods(http.MethodGet)

	return r
}

// SetHealthy switches GET /health between 200 and 503.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// CloseNext makes the next health socket connection close immediately with code.
// Calls queue up, one code per connection. 1006 drops the TCP connection without a close frame.
func (s *Server) CloseNext(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeQueue = append(s.closeQueue, codes...)
}

// CloseActive closes every open health socket with code.
func (s *Server) CloseActive(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeClose = code
	close(s.closeSignal)
	s.closeSignal = make(chan struct{})
}

// LastOTP returns the most recent one-time code issued for email.
func (s *Server) LastOTP(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOTP[normalizeEmail(email)]
}

// IssueToken signs a session token for an existing user, bypassing the OTP flow.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[normalizeEmail(email)]
	if !ok {
		return "", fmt.Errorf("unknown user %s", email)
	}
	u := s.users[id]
	return s.tokens.Issue(u.ID, u.Email, u.Role)
}

type ctxKey struct{}

// currentUser returns the authenticated user attached by requireAuth
func currentUser(ctx context.Context) *userRecord {
	u, _ := ctx.Value(ctxKey{}).(*userRecord)
	return u
}

// authenticate resolves a bearer token to a live user
func (s *Server) authenticate(token string) (*userRecord, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoked[claims.JTI] {
		return nil, ErrInvalidToken
	}
	u, ok := s.users[claims.UserID]
	if !ok {
		return nil, ErrInvalidToken
	}
	return u, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		u, err := s.authenticate(token)
		if err != nil {
			detail := "Could not validate credentials"
			if errors.Is(err, ErrExpiredToken) {
				detail = "Token has expired"
			}
			writeError(w, http.StatusUnauthorized, detail)
			return
		}
		if !u.IsActive {
			writeError(w, http.StatusForbidden, "Account is disabled")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := currentUser(r.Context()); u == nil || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole wraps a single handler with the admin check
func (s *Server) requireRole(h http.HandlerFunc) http.HandlerFunc {
	return s.adminOnly(h).ServeHTTP
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// statusRecorder captures the status code while keeping streaming and upgrades working
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacking not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a FastAPI-style {"detail": "..."} error.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidationError writes a 422 with a list of {msg} entries.
func writeValidationError(w http.ResponseWriter, msgs ...string) {
	items := make([]map[string]string, len(msgs))
	for i, m := range msgs {
		items[i] = map[string]string{"msg": m}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
