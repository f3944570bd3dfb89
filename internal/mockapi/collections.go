// ABOUTME: Fake collection handlers including document membership
// ABOUTME: A document belongs to at most one collection; counts are recomputed on every change

package mockapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
)

// refreshCountsLocked recomputes DocumentCount for every collection
func (s *Server) refreshCountsLocked() {
	for _, c := range s.collections {
		c.DocumentCount = 0
	}
	for _, d := range s.documents {
		if c, ok := s.collections[d.CollectionID]; ok {
			c.DocumentCount++
		}
	}
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]client.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, *c)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var in client.CollectionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		writeValidationError(w, "name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.collections {
		if strings.EqualFold(c.Name, name) {
			writeError(w, http.StatusConflict, "A collection with this name already exists")
			return
		}
	}
	c := &client.Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
		CreatedAt:   s.now().UTC(),
	}
	s.collections[c.ID] = c
	writeJSON(w, http.StatusCreated, *c)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	writeJSON(w, http.StatusOK, *c)
}

func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	var in client.CollectionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
	}
	c.Description = in.Description
	c.IsPublic = in.IsPublic
	writeJSON(w, http.StatusOK, *c)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["id"]
	if _, ok := s.collections[id]; !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	delete(s.collections, id)
	for _, d := range s.documents {
		if d.CollectionID == id {
			d.CollectionID = ""
		}
	}
	for _, t := range s.ragTools {
		t.CollectionIDs = removeString(t.CollectionIDs, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCollectionDocuments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	u := currentUser(r.Context())

	s.mu.Lock()
	if _, ok := s.collections[id]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	docs := []client.Document{}
	for _, d := range s.documents {
		if d.CollectionID == id && visibleLocked(u, d) {
			docs = append(docs, *d)
		}
	}
	s.mu.Unlock()

	sortDocuments(docs)
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleAddCollectionDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["id"]
	if _, ok := s.collections[id]; !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	d, ok := s.documents[req.DocumentID]
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	d.CollectionID = id
	d.UpdatedAt = s.now().UTC()
	s.refreshCountsLocked()
	writeJSON(w, http.StatusOK, *d)
}

func (s *Server) handleRemoveCollectionDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars := mux.Vars(r)
	d, ok := s.documents[vars["doc_id"]]
	if !ok || d.CollectionID != vars["id"] {
		writeError(w, http.StatusNotFound, "Document not in collection")
		return
	}
	d.CollectionID = ""
	d.UpdatedAt = s.now().UTC()
	s.refreshCountsLocked()
	w.WriteHeader(http.StatusNoContent)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
