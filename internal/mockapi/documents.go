// ABOUTME: Fake document handlers: multipart upload, listing and the approval workflow
// ABOUTME: Regular users see approved documents and their own uploads; admins see everything

package mockapi

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
)

// visibleLocked reports whether u may see d
func visibleLocked(u *userRecord, d *client.Document) bool {
	return u.IsAdmin() || d.Status == client.DocumentApproved || d.UploadedBy == u.ID
}

func sortDocuments(docs []client.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	collectionID := r.URL.Query().Get("collection_id")
	u := currentUser(r.Context())

	s.mu.Lock()
	docs := []client.Document{}
	for _, d := range s.documents {
		if !visibleLocked(u, d) {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		if collectionID != "" && d.CollectionID != collectionID {
			continue
		}
		docs = append(docs, *d)
	}
	s.mu.Unlock()

	sortDocuments(docs)
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handlePendingDocuments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	docs := []client.Document{}
	for _, d := range s.documents {
		if d.Status == client.DocumentPending {
			docs = append(docs, *d)
		}
	}
	s.mu.Unlock()

	sortDocuments(docs)
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	s.mu.Lock()
	d, ok := s.documents[mux.Vars(r)["id"]]
	var doc client.Document
	if ok && visibleLocked(u, d) {
		doc = *d
	} else {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expected multipart/form-data")
		return
	}

	var (
		filename, contentType string
		size                  int64
		title, collectionID   string
		gotFile               bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Malformed multipart body")
			return
		}

		switch part.FormName() {
		case "file":
			filename = part.FileName()
			contentType = part.Header.Get("Content-Type")
			n, err := io.Copy(io.Discard, io.LimitReader(part, s.opts.MaxUploadBytes+1))
			if err != nil {
				var tooBig *http.MaxBytesError
				if errors.As(err, &tooBig) {
					writeError(w, http.StatusRequestEntityTooLarge, "File too large")
					return
				}
				writeError(w, http.StatusBadRequest, "Malformed multipart body")
				return
			}
			if n > s.opts.MaxUploadBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			size = n
			gotFile = true
		case "title":
			b, _ := io.ReadAll(io.LimitReader(part, 1024))
			title = strings.TrimSpace(string(b))
		case "collection_id":
			b, _ := io.ReadAll(io.LimitReader(part, 256))
			collectionID = strings.TrimSpace(string(b))
		}
		_ = part.Close()
	}

	if !gotFile || filename == "" {
		writeValidationError(w, "file is required")
		return
	}
	if title == "" {
		title = filename
	}

	u := currentUser(r.Context())
	s.mu.Lock()
	if collectionID != "" {
		if _, ok := s.collections[collectionID]; !ok {
			s.mu.Unlock()
			writeValidationError(w, "collection_id does not exist")
			return
		}
	}
	now := s.now().UTC()
	doc := &client.Document{
		ID:           uuid.NewString(),
		Filename:     filename,
		Title:        title,
		ContentType:  contentType,
		Size:         size,
		Status:       client.DocumentPending,
		CollectionID: collectionID,
		UploadedBy:   u.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.documents[doc.ID] = doc
	s.refreshCountsLocked()
	out := *doc
	s.mu.Unlock()

	s.logger.Info("document uploaded", "id", out.ID, "filename", filename, "size", size)
	writeJSON(w, http.StatusCreated, out)
}

// ownedDocumentLocked returns the document if u may modify it
func (s *Server) ownedDocumentLocked(u *userRecord, id string) (*client.Document, int, string) {
	d, ok := s.documents[id]
	if !ok || !visibleLocked(u, d) {
		return nil, http.StatusNotFound, "Document not found"
	}
	if !u.IsAdmin() && d.UploadedBy != u.ID {
		return nil, http.StatusForbidden, "Not allowed to modify this document"
	}
	return d, http.StatusOK, ""
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var upd client.DocumentUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	u := currentUser(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	d, code, detail := s.ownedDocumentLocked(u, mux.Vars(r)["id"])
	if d == nil {
		writeError(w, code, detail)
		return
	}
	if upd.CollectionID != nil && *upd.CollectionID != "" {
		if _, ok := s.collections[*upd.CollectionID]; !ok {
			writeValidationError(w, "collection_id does not exist")
			return
		}
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			writeValidationError(w, "title cannot be empty")
			return
		}
		d.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.CollectionID != nil {
		d.CollectionID = *upd.CollectionID
	}
	d.UpdatedAt = s.now().UTC()
	s.refreshCountsLocked()
	writeJSON(w, http.StatusOK, *d)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	d, code, detail := s.ownedDocumentLocked(u, mux.Vars(r)["id"])
	if d == nil {
		writeError(w, code, detail)
		return
	}
	delete(s.documents, d.ID)
	s.refreshCountsLocked()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApproveDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	if d.Status != client.DocumentPending {
		writeError(w, http.StatusConflict, "Document is not pending")
		return
	}
	d.Status = client.DocumentApproved
	d.RejectionReason = ""
	d.UpdatedAt = s.now().UTC()
	writeJSON(w, http.StatusOK, *d)
}

func (s *Server) handleRejectDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeValidationError(w, "reason is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	if d.Status != client.DocumentPending {
		writeError(w, http.StatusConflict, "Document is not pending")
		return
	}
	d.Status = client.DocumentRejected
	d.RejectionReason = strings.TrimSpace(req.Reason)
	d.UpdatedAt = s.now().UTC()
	writeJSON(w, http.StatusOK, *d)
}
