// ABOUTME: Fake MCP server registry handlers keyed by server name
// ABOUTME: Reuses the client-side transport checks so both ends agree on what is valid

package mockapi

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
)

func (s *Server) handleListMCPServers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]client.MCPServer, 0, len(s.mcpServers))
	for _, m := range s.mcpServers {
		out = append(out, *m)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMCPServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mcpServers[mux.Vars(r)["name"]]
	if !ok {
		writeError(w, http.StatusNotFound, "MCP server not found")
		return
	}
	writeJSON(w, http.StatusOK, *m)
}

func (s *Server) handleCreateMCPServer(w http.ResponseWriter, r *http.Request) {
	var in client.MCPServer
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := client.CheckMCPServer(in); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.mcpServers[in.Name]; exists {
		writeError(w, http.StatusConflict, "MCP server already exists")
		return
	}
	m := in
	s.mcpServers[m.Name] = &m
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMCPServer(w http.ResponseWriter, r *http.Request) {
	var in client.MCPServer
	if !decodeJSON(w, r, &in) {
		return
	}
	name := mux.Vars(r)["name"]
	if in.Name == "" {
		in.Name = name
	}
	if err := client.CheckMCPServer(in); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mcpServers[name]; !ok {
		writeError(w, http.StatusNotFound, "MCP server not found")
		return
	}
	if in.Name != name {
		if _, exists := s.mcpServers[in.Name]; exists {
			writeError(w, http.StatusConflict, "MCP server already exists")
			return
		}
		delete(s.mcpServers, name)
	}
	m := in
	s.mcpServers[m.Name] = &m
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMCPServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := mux.Vars(r)["name"]
	if _, ok := s.mcpServers[name]; !ok {
		writeError(w, http.StatusNotFound, "MCP server not found")
		return
	}
	delete(s.mcpServers, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleMCPServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mcpServers[mux.Vars(r)["name"]]
	if !ok {
		writeError(w, http.StatusNotFound, "MCP server not found")
		return
	}
	m.Enabled = !m.Enabled
	writeJSON(w, http.StatusOK, *m)
}
