// ABOUTME: Fake custom RAG tool handlers and the combined tool catalog
// ABOUTME: The catalog lists builtins, enabled MCP servers and RAG tools

package mockapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
)

// builtinTools are always present in the catalog
var builtinTools = []client.Tool{
	{Name: "search_documents", Description: "Search approved documents", Source: client.ToolSourceBuiltin, Enabled: true},
	{Name: "list_collections", Description: "List document collections", Source: client.ToolSourceBuiltin, Enabled: true},
}

// checkRAGToolLocked validates input and returns validation messages
func (s *Server) checkRAGToolLocked(in client.RAGToolInput) []string {
	var msgs []string
	if strings.TrimSpace(in.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if in.TopK < 0 {
		msgs = append(msgs, "top_k must not be negative")
	}
	for _, id := range in.CollectionIDs {
		if _, ok := s.collections[id]; !ok {
			msgs = append(msgs, "unknown collection "+id)
		}
	}
	return msgs
}

func (s *Server) handleListRAGTools(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]client.CustomRAGTool, 0, len(s.ragTools))
	for _, t := range s.ragTools {
		out = append(out, *t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRAGTool(w http.ResponseWriter, r *http.Request) {
	var in client.RAGToolInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msgs := s.checkRAGToolLocked(in); len(msgs) > 0 {
		writeValidationError(w, msgs...)
		return
	}
	if in.TopK == 0 {
		in.TopK = 5
	}
	t := &client.CustomRAGTool{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		CollectionIDs: append([]string{}, in.CollectionIDs...),
		TopK:          in.TopK,
		Enabled:       in.Enabled,
		CreatedAt:     s.now().UTC(),
	}
	s.ragTools[t.ID] = t
	writeJSON(w, http.StatusCreated, *t)
}

func (s *Server) handleGetRAGTool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ragTools[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Tool not found")
		return
	}
	writeJSON(w, http.StatusOK, *t)
}

func (s *Server) handleUpdateRAGTool(w http.ResponseWriter, r *http.Request) {
	var in client.RAGToolInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ragTools[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Tool not found")
		return
	}
	if msgs := s.checkRAGToolLocked(in); len(msgs) > 0 {
		writeValidationError(w, msgs...)
		return
	}
	t.Name = strings.TrimSpace(in.Name)
	t.Description = in.Description
	t.CollectionIDs = append([]string{}, in.CollectionIDs...)
	if in.TopK > 0 {
		t.TopK = in.TopK
	}
	t.Enabled = in.Enabled
	writeJSON(w, http.StatusOK, *t)
}

func (s *Server) handleDeleteRAGTool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["id"]
	if _, ok := s.ragTools[id]; !ok {
		writeError(w, http.StatusNotFound, "Tool not found")
		return
	}
	delete(s.ragTools, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]client.Tool{}, builtinTools...)
	var extra []client.Tool
	for _, m := range s.mcpServers {
		if m.Enabled {
			extra = append(extra, client.Tool{
				Name:        m.Name,
				Description: "MCP server (" + m.Transport + ")",
				Source:      client.ToolSourceMCP,
				Enabled:     true,
			})
		}
	}
	for _, t := range s.ragTools {
		extra = append(extra, client.Tool{
			Name:        t.Name,
			Description: t.Description,
			Source:      client.ToolSourceRAG,
			Enabled:     t.Enabled,
		})
	}
	s.mu.Unlock()

	sort.Slice(extra, func(i, j int) bool {
		if extra[i].Source != extra[j].Source {
			return extra[i].Source < extra[j].Source
		}
		return extra[i].Name < extra[j].Name
	})
	writeJSON(w, http.StatusOK, append(out, extra...))
}
