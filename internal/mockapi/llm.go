// ABOUTME: Fake LLM configuration handlers with API key masking
// ABOUTME: Exactly one config is active whenever any exist; reset restores the built-in default

package mockapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
)

// maskKey hides all but the last four characters of an API key
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

func (rec *llmRecord) masked() client.LLMConfig {
	c := rec.LLMConfig
	c.APIKey = maskKey(c.APIKey)
	return c
}

// resetLLMLocked replaces every config with the built-in defaults
func (s *Server) resetLLMLocked() {
	s.llmConfigs = make(map[string]*llmRecord, len(s.llmDefaults))
	for _, c := range s.llmDefaults {
		s.llmConfigs[c.ID] = &llmRecord{LLMConfig: c}
	}
}

func (s *Server) activeLLMLocked() *llmRecord {
	for _, c := range s.llmConfigs {
		if c.IsActive {
			return c
		}
	}
	return nil
}

func checkLLMInput(in client.LLMConfigInput) []string {
	var msgs []string
	if strings.TrimSpace(in.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if in.Provider == "" || in.Model == "" {
		msgs = append(msgs, "provider and model are required")
	}
	if in.Temperature < 0 || in.Temperature > 2 {
		msgs = append(msgs, "temperature must be between 0 and 2")
	}
	return msgs
}

func (s *Server) handleListLLMConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]client.LLMConfig, 0, len(s.llmConfigs))
	for _, c := range s.llmConfigs {
		out = append(out, c.masked())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActiveLLMConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.activeLLMLocked()
	if c == nil {
		writeError(w, http.StatusNotFound, "No active LLM config")
		return
	}
	writeJSON(w, http.StatusOK, c.masked())
}

func (s *Server) handleCreateLLMConfig(w http.ResponseWriter, r *http.Request) {
	var in client.LLMConfigInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if msgs := checkLLMInput(in); len(msgs) > 0 {
		writeValidationError(w, msgs...)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &llmRecord{LLMConfig: client.LLMConfig{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Provider:    in.Provider,
		Model:       in.Model,
		BaseURL:     in.BaseURL,
		APIKey:      in.APIKey,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		IsActive:    s.activeLLMLocked() == nil,
	}}
	s.llmConfigs[rec.ID] = rec
	writeJSON(w, http.StatusCreated, rec.masked())
}

func (s *Server) handleUpdateLLMConfig(w http.ResponseWriter, r *http.Request) {
	var in client.LLMConfigInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if msgs := checkLLMInput(in); len(msgs) > 0 {
		writeValidationError(w, msgs...)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.llmConfigs[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "LLM config not found")
		return
	}
	rec.Name = strings.TrimSpace(in.Name)
	rec.Provider = in.Provider
	rec.Model = in.Model
	rec.BaseURL = in.BaseURL
	rec.Temperature = in.Temperature
	rec.MaxTokens = in.MaxTokens
	if in.APIKey != "" {
		rec.APIKey = in.APIKey
	}
	writeJSON(w, http.StatusOK, rec.masked())
}

func (s *Server) handleDeleteLLMConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["id"]
	rec, ok := s.llmConfigs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "LLM config not found")
		return
	}
	if rec.IsActive {
		writeError(w, http.StatusConflict, "Cannot delete the active LLM config")
		return
	}
	delete(s.llmConfigs, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateLLMConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.llmConfigs[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "LLM config not found")
		return
	}
	for _, c := range s.llmConfigs {
		c.IsActive = false
	}
	rec.IsActive = true
	writeJSON(w, http.StatusOK, rec.masked())
}

func (s *Server) handleResetLLMConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.resetLLMLocked()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
