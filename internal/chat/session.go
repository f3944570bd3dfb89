// ABOUTME: Chat session orchestration: validation, double-submit guard, rate limit and streaming
// ABOUTME: Keeps the transcript in memory and mirrors completed exchanges to the local store

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/dedupe"
	"github.com/2389/coven-console/internal/store"
	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
)

// ErrDuplicate is returned when the same message is sent to the same session within the dedupe window.
var ErrDuplicate = &validate.Error{Field: "message", Message: "That message was just sent."}

// titleLength bounds locally derived session titles
const titleLength = 40

// API is the part of the backend client a chat session uses.
type API interface {
	StreamChat(ctx context.Context, req client.ChatRequest) (io.ReadCloser, error)
	GetSession(ctx context.Context, id string) (*client.SessionDetail, error)
}

// Options configures a Session.
type Options struct {
	MaxChars  int
	SendRate  float64 // sends per second; zero disables limiting
	SendBurst int
	DedupeTTL time.Duration

	// Store mirrors transcripts locally. May be nil.
	Store  store.TranscriptStore
	Logger *slog.Logger
}

// OptionsFromConfig maps the [chat] config section to Options.
func OptionsFromConfig(cfg config.ChatConfig) Options {
	return Options{
		MaxChars:  cfg.MaxChars,
		SendRate:  cfg.SendRate,
		SendBurst: cfg.SendBurst,
		DedupeTTL: cfg.DedupeTTL,
	}
}

// Session is one conversation with the assistant. Sends are serialized.
type Session struct {
	api      API
	store    store.TranscriptStore
	logger   *slog.Logger
	maxChars int
	limiter  *rate.Limiter
	window   *dedupe.Window

	sendMu sync.Mutex

	mu        sync.Mutex
	messages  []stream.Message
	localID   string // stable conversation id for the double-submit guard
	sessionID string
	title     string
}

// NewSession creates an empty Session. Call Close when done.
func NewSession(api API, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 1
	}

	return &Session{
		api:      api,
		store:    opts.Store,
		logger:   logger.With("component", "chat"),
		maxChars: opts.MaxChars,
		limiter:  rate.NewLimiter(limit, burst),
		window:   dedupe.NewWindow(opts.DedupeTTL, 256),
		localID:  uuid.NewString(),
	}
}

// Close releases background resources.
func (s *Session) Close() {
	s.window.Close()
}

// SessionID returns the server-side session id, empty before the first reply.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []stream.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stream.Message, len(s.messages))
	for i, m := range s.messages {
		m.ToolsUsed = append([]string(nil), m.ToolsUsed...)
		out[i] = m
	}
	return out
}

// Reset starts a new conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.localID = uuid.NewString()
	s.sessionID = ""
	s.title = ""
}

// Send streams a reply to text. onUpdate, when non-nil, sees every intermediate transcript.
// On failure the user message stays in the transcript and the assistant placeholder is dropped.
func (s *Session) Send(ctx context.Context, text string, onUpdate func(stream.Snapshot)) (*stream.Message, error) {
	if err := validate.Message(text, s.maxChars); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	// Claimed before queueing behind an in-flight send
	s.mu.Lock()
	key := dedupe.SubmissionKey(s.localID, text)
	s.mu.Unlock()
	if !s.window.Claim(key) {
		s.logger.Debug("duplicate send rejected")
		return nil, ErrDuplicate
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	sessionID := s.sessionID
	history := append([]stream.Message(nil), s.messages...)
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		s.window.Release(key)
		return nil, fmt.Errorf("waiting to send: %w", err)
	}

	acc := stream.NewAccumulator(history, text)
	if onUpdate != nil {
		onUpdate(acc.Snapshot())
	}

	body, err := s.api.StreamChat(ctx, client.ChatRequest{Message: text, SessionID: sessionID})
	if err != nil {
		acc.Fail(err)
		s.commit(acc)
		if onUpdate != nil {
			onUpdate(acc.Snapshot())
		}
		s.window.Release(key)
		return nil, err
	}
	defer body.Close()

	err = stream.Consume(ctx, body, acc, onUpdate)
	s.commit(acc)
	if err != nil {
		s.window.Release(key)
		s.logger.Debug("send failed", "session_id", acc.SessionID(), "error", err)
		return nil, err
	}

	reply := acc.Reply()
	s.persist(ctx, acc.Snapshot().Messages)
	return reply, nil
}

// commit adopts the accumulator's transcript and session id
func (s *Session) commit(acc *stream.Accumulator) {
	snap := acc.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = snap.Messages
	if snap.SessionID != "" {
		s.sessionID = snap.SessionID
	}
	if s.title == "" {
		for _, m := range snap.Messages {
			if m.Role == stream.RoleUser {
				s.title = truncate(m.Content, titleLength)
				break
			}
		}
	}
}

// persist mirrors the last exchange to the local store. Failures are logged, not returned.
func (s *Session) persist(ctx context.Context, msgs []stream.Message) {
	if s.store == nil || len(msgs) < 2 {
		return
	}

	s.mu.Lock()
	sessionID, title := s.sessionID, s.title
	s.mu.Unlock()
	if sessionID == "" {
		s.logger.Warn("stream did not announce a session id, transcript not mirrored")
		return
	}

	now := time.Now()
	if err := s.store.UpsertChatSession(ctx, &store.ChatSession{ID: sessionID, Title: title, CreatedAt: now, UpdatedAt: now}); err != nil {
		s.logger.Warn("failed to mirror chat session", "session_id", sessionID, "error", err)
		return
	}
	for _, m := range msgs[len(msgs)-2:] {
		if err := s.store.AppendChatMessage(ctx, toStored(sessionID, m)); err != nil {
			s.logger.Warn("failed to mirror chat message", "session_id", sessionID, "error", err)
			return
		}
	}
}

// Load replaces the transcript with server session id and refreshes the local mirror.
func (s *Session) Load(ctx context.Context, id string) error {
	detail, err := s.api.GetSession(ctx, id)
	if err != nil {
		return err
	}

	msgs := make([]stream.Message, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		msgs = append(msgs, stream.Message{
			ID:        uuid.NewString(),
			Role:      m.Role,
			Content:   m.Content,
			ToolsUsed: m.ToolsUsed,
			CreatedAt: m.CreatedAt,
		})
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	s.messages = msgs
	s.localID = uuid.NewString()
	s.sessionID = detail.Session.ID
	s.title = detail.Session.Title
	s.mu.Unlock()

	if s.store != nil {
		s.mirror(ctx, detail.Session, msgs)
	}
	return nil
}

func (s *Session) mirror(ctx context.Context, sess client.ChatSession, msgs []stream.Message) {
	if err := s.store.DeleteChatSession(ctx, sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to reset mirrored session", "session_id", sess.ID, "error", err)
		return
	}
	err := s.store.UpsertChatSession(ctx, &store.ChatSession{
		ID:        sess.ID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to mirror chat session", "session_id", sess.ID, "error", err)
		return
	}
	for _, m := range msgs {
		if err := s.store.AppendChatMessage(ctx, toStored(sess.ID, m)); err != nil {
			s.logger.Warn("failed to mirror chat message", "session_id", sess.ID, "error", err)
			return
		}
	}
}

func toStored(sessionID string, m stream.Message) *store.ChatMessage {
	return &store.ChatMessage{
		ID:        m.ID,
		SessionID: sessionID,
		Role:      m.Role,
		Content:   m.Content,
		ToolsUsed: m.ToolsUsed,
		CreatedAt: m.CreatedAt,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
