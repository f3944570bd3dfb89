// ABOUTME: Fake authentication handlers: TOTP-backed OTP sign-in, logout, profile and password
// ABOUTME: Unknown emails are registered on first OTP request

package mockapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/validate"
)

func randomSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// ensureUserLocked returns the user for email, creating a regular user when unknown.
func (s *Server) ensureUserLocked(email string) *userRecord {
	if id, ok := s.usersByEmail[email]; ok {
		return s.users[id]
	}
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}
	u := &userRecord{User: client.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      client.RoleUser,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u
}

// otpSecretLocked returns the per-email TOTP secret, generating one on first use.
func (s *Server) otpSecretLocked(email string) (string, error) {
	if secret, ok := s.otpSecrets[email]; ok {
		return secret, nil
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "coven-mock",
		AccountName: email,
	})
	if err != nil {
		return "", err
	}
	s.otpSecrets[email] = key.Secret()
	return key.Secret(), nil
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Email(req.Email); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	email := normalizeEmail(req.Email)

	s.mu.Lock()
	s.ensureUserLocked(email)
	secret, err := s.otpSecretLocked(email)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to create otp secret", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	code, err := totp.GenerateCode(secret, s.now())
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to generate otp", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.lastOTP[email] = code
	s.mu.Unlock()

	s.logger.Info("otp issued", "email", email, "code", code)
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	s.mu.Lock()
	secret, hasSecret := s.otpSecrets[email]
	id, hasUser := s.usersByEmail[email]
	s.mu.Unlock()

	if !hasSecret || !hasUser {
		writeError(w, http.StatusBadRequest, "No code was requested for this email")
		return
	}
	if !totp.Validate(strings.TrimSpace(req.OTP), secret) {
		writeError(w, http.StatusUnauthorized, "Invalid or expired code")
		return
	}

	s.mu.Lock()
	u := s.users[id]
	if !u.IsActive {
		s.mu.Unlock()
		writeError(w, http.StatusForbidden, "Account is disabled")
		return
	}
	now := s.now().UTC()
	u.LastLogin = &now
	delete(s.lastOTP, email)
	user := u.User
	s.mu.Unlock()

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, client.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if claims, err := s.tokens.Verify(token); err == nil && claims.JTI != "" {
		s.mu.Lock()
		s.revoked[claims.JTI] = true
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := currentUser(r.Context()).User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Name(req.Name); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	s.mu.Lock()
	u := currentUser(r.Context())
	u.Name = strings.TrimSpace(req.Name)
	user := u.User
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, user)
}

// handleChangePassword sets a new password. A user without a password yet may set one with any current value.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Password(req.NewPassword); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	s.mu.Lock()
	u := currentUser(r.Context())
	existing := u.passwordHash
	s.mu.Unlock()

	if len(existing) > 0 {
		if err := bcrypt.CompareHashAndPassword(existing, []byte(req.CurrentPassword)); err != nil {
			writeError(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.mu.Lock()
	u.passwordHash = hash
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// setPassword hashes and stores a password for seeding.
func (u *userRecord) setPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.passwordHash = hash
	return nil
}
