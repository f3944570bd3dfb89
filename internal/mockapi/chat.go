// ABOUTME: Fake chat session handlers and the streamed chat endpoint
// ABOUTME: Replies echo the prompt word by word as SSE data lines and are persisted per session

package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/stream"
)

// Prompts with special meaning to the fake chat endpoint.
const (
	// PromptError makes the stream emit an error event.
	PromptError = "/error"
	// PromptEmpty makes the stream finish without content.
	PromptEmpty = "/empty"
)

// titleLength bounds auto-generated session titles
const titleLength = 40

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	s.mu.Lock()
	out := []client.ChatSession{}
	for _, rec := range s.sessions {
		if rec.owner == u.ID {
			out = append(out, rec.summary())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	writeJSON(w, http.StatusOK, out)
}

func (rec *sessionRecord) summary() client.ChatSession {
	c := rec.session
	c.MessageCount = len(rec.messages)
	return c
}

// ownSessionLocked returns the session if it exists and belongs to u
func (s *Server) ownSessionLocked(u *userRecord, id string) (*sessionRecord, bool) {
	rec, ok := s.sessions[id]
	if !ok || rec.owner != u.ID {
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ownSessionLocked(u, mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, client.SessionDetail{
		Session:  rec.summary(),
		Messages: append([]client.SessionMessage{}, rec.messages...),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["id"]
	if _, ok := s.ownSessionLocked(u, id); !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	delete(s.sessions, id)
	w.WriteHeader(http.StatusNoContent)
}

// sessionForChatLocked returns the session named by id, creating one when id is empty
func (s *Server) sessionForChatLocked(u *userRecord, id, prompt string) (*sessionRecord, bool) {
	if id != "" {
		return s.ownSessionLocked(u, id)
	}
	title := strings.TrimSpace(prompt)
	if r := []rune(title); len(r) > titleLength {
		title = string(r[:titleLength]) + "…"
	}
	now := s.now().UTC()
	rec := &sessionRecord{
		owner: u.ID,
		session: client.ChatSession{
			ID:        uuid.NewString(),
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	s.sessions[rec.session.ID] = rec
	return rec, true
}

// replyFor builds the scripted reply and the tools it pretends to use
func replyFor(prompt string) (string, []string) {
	var tools []string
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "document") || strings.Contains(lower, "docs") {
		tools = append(tools, "search_documents")
	}
	return "You said: " + prompt, tools
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req client.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		writeValidationError(w, "message cannot be empty")
		return
	}

	u := currentUser(r.Context())
	s.mu.Lock()
	rec, ok := s.sessionForChatLocked(u, req.SessionID, prompt)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	sessionID := rec.session.ID
	rec.messages = append(rec.messages, client.SessionMessage{
		Role:      stream.RoleUser,
		Content:   prompt,
		CreatedAt: s.now().UTC(),
	})
	rec.session.UpdatedAt = s.now().UTC()
	s.mu.Unlock()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	emit := func(ev stream.Event) bool {
		b, err := json.Marshal(ev)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !emit(stream.Event{SessionID: sessionID, Status: "thinking"}) {
		return
	}

	switch prompt {
	case PromptError:
		emit(stream.Event{Error: "The model failed to respond"})
		return
	case PromptEmpty:
		emit(stream.Event{Done: true, SessionID: sessionID})
		return
	}

	reply, tools := replyFor(prompt)
	for _, t := range tools {
		if !emit(stream.Event{Tool: t, Status: "using " + t}) {
			return
		}
	}

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if s.opts.ChunkDelay > 0 {
			select {
			case <-time.After(s.opts.ChunkDelay):
			case <-r.Context().Done():
				return
			}
		}
		if !emit(stream.Event{Chunk: word}) {
			return
		}
	}

	if len(tools) > 0 {
		emit(stream.Event{ToolsUsed: tools})
	}

	s.mu.Lock()
	if rec, ok := s.sessions[sessionID]; ok {
		rec.messages = append(rec.messages, client.SessionMessage{
			Role:      stream.RoleAssistant,
			Content:   reply,
			ToolsUsed: tools,
			CreatedAt: s.now().UTC(),
		})
		rec.session.UpdatedAt = s.now().UTC()
	}
	s.mu.Unlock()

	emit(stream.Event{Done: true, SessionID: sessionID})
}
