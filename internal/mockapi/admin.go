// ABOUTME: Fake admin handlers for user management, system stats and usage history
// ABOUTME: Only superadmins may grant or revoke the superadmin role

package mockapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/validate"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	role := q.Get("role")

	s.mu.Lock()
	var matched []client.User
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Email), search) && !strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		matched = append(matched, u.User)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })

	resp := client.UserPage{Users: []client.User{}, Total: len(matched), Page: page, Limit: limit}
	start := (page - 1) * limit
	if start < len(matched) {
		end := min(start+limit, len(matched))
		resp.Users = matched[start:end]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[mux.Vars(r)["id"]]
	var user client.User
	if ok {
		user = u.User
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// applyUserUpdate changes a user under the lock, enforcing role rules. Returns a status and detail on failure.
func (s *Server) applyUserUpdate(actor *userRecord, id string, upd client.UserUpdate) (client.User, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return client.User{}, http.StatusNotFound, "User not found"
	}

	if upd.Name != nil {
		if err := validate.Name(*upd.Name); err != nil {
			return client.User{}, http.StatusUnprocessableEntity, err.Error()
		}
	}
	if upd.Role != nil {
		switch *upd.Role {
		case client.RoleUser, client.RoleAdmin, client.RoleSuperadmin:
		default:
			return client.User{}, http.StatusUnprocessableEntity, "Invalid role"
		}
		touchesSuper := *upd.Role == client.RoleSuperadmin || u.Role == client.RoleSuperadmin
		if touchesSuper && actor.Role != client.RoleSuperadmin {
			return client.User{}, http.StatusForbidden, "Only a superadmin can change superadmin roles"
		}
	}
	if upd.IsActive != nil && !*upd.IsActive && u.ID == actor.ID {
		return client.User{}, http.StatusBadRequest, "You cannot deactivate your own account"
	}

	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	return u.User, http.StatusOK, ""
}

func (s *Server) respondUserUpdate(w http.ResponseWriter, r *http.Request, upd client.UserUpdate) {
	user, code, detail := s.applyUserUpdate(currentUser(r.Context()), mux.Vars(r)["id"], upd)
	if code != http.StatusOK {
		if code == http.StatusUnprocessableEntity {
			writeValidationError(w, detail)
			return
		}
		writeError(w, code, detail)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd client.UserUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	s.respondUserUpdate(w, r, upd)
}

func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respondUserUpdate(w, r, client.UserUpdate{Role: &req.Role})
}

func (s *Server) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeValidationError(w, "is_active is required")
		return
	}
	s.respondUserUpdate(w, r, client.UserUpdate{IsActive: req.IsActive})
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := client.SystemStats{
		TotalUsers:       len(s.users),
		TotalDocuments:   len(s.documents),
		TotalCollections: len(s.collections),
		TotalSessions:    len(s.sessions),
	}
	for _, u := range s.users {
		if u.IsActive {
			stats.ActiveUsers++
		}
	}
	for _, d := range s.documents {
		if d.Status == client.DocumentPending {
			stats.PendingDocuments++
		}
	}
	for _, sess := range s.sessions {
		stats.TotalMessages += len(sess.messages)
	}
	for _, c := range s.llmConfigs {
		if c.IsActive {
			stats.ActiveLLM = c.Name
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUsageHistory(w http.ResponseWriter, r *http.Request) {
	days := atoiDefault(r.URL.Query().Get("days"), 7)
	if days < 1 || days > 90 {
		writeValidationError(w, "days must be between 1 and 90")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().UTC().Truncate(24 * time.Hour)
	index := make(map[string]*client.UsageDay, days)
	out := make([]client.UsageDay, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i-days+1).Format("2006-01-02")
		out[i] = client.UsageDay{Date: d}
		index[d] = &out[i]
	}

	users := make(map[string]map[string]bool)
	for _, sess := range s.sessions {
		sessionDays := make(map[string]bool)
		for _, m := range sess.messages {
			d := m.CreatedAt.UTC().Format("2006-01-02")
			day, ok := index[d]
			if !ok {
				continue
			}
			day.Messages++
			day.Tokens += int64(len(strings.Fields(m.Content)))
			sessionDays[d] = true
			if users[d] == nil {
				users[d] = make(map[string]bool)
			}
			users[d][sess.owner] = true
		}
		for d := range sessionDays {
			index[d].Sessions++
		}
	}
	for d, set := range users {
		index[d].ActiveUsers = len(set)
	}

	writeJSON(w, http.StatusOK, out)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
