// ABOUTME: Session token lifecycle for coven-console
// ABOUTME: Resolves the bearer token from env or the local store and tracks JWT expiry

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/2389/coven-console/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

// EnvToken overrides the stored session when set.
const EnvToken = "COVEN_TOKEN"

// Session errors
var (
	ErrNoSession = errors.New("not logged in")
	ErrExpired   = errors.New("session expired")
)

// Source identifies where the active token came from
type Source string

const (
	SourceEnv   Source = "env"
	SourceStore Source = "store"
)

// Claims is the subset of the backend's JWT claims the console cares about.
// The signature is never verified client side.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt *time.Time
}

// Info describes the active session
type Info struct {
	Token  string
	Email  string
	Source Source
	Claims *Claims
}

// Expired reports whether the session has a known expiry in the past
func (i *Info) Expired(now time.Time) bool {
	return i.Claims != nil && i.Claims.ExpiresAt != nil && !now.Before(*i.Claims.ExpiresAt)
}

// Manager owns the bearer token used for API calls
type Manager struct {
	store  store.TokenStore
	logger *slog.Logger
	now    func() time.Time
	getenv func(string) string
}

// NewManager creates a Manager over the given token store.
func NewManager(ts store.TokenStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  ts,
		logger: logger.With("component", "session"),
		now:    time.Now,
		getenv: os.Getenv,
	}
}

// Current returns the active session. The environment variable wins over the store.
// An expired stored session is cleared and ErrExpired returned.
func (m *Manager) Current(ctx context.Context) (*Info, error) {
	if tok := strings.TrimSpace(m.getenv(EnvToken)); tok != "" {
		info := &Info{Token: tok, Source: SourceEnv}
		if claims, err := Inspect(tok); err == nil {
			info.Claims = claims
			info.Email = claims.Email
		}
		return info, nil
	}

	saved, err := m.store.LoadToken(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	info := &Info{Token: saved.Token, Email: saved.Email, Source: SourceStore}
	if claims, err := Inspect(saved.Token); err == nil {
		info.Claims = claims
	} else {
		info.Claims = &Claims{ExpiresAt: saved.ExpiresAt}
	}
	if info.Claims.ExpiresAt == nil {
		info.Claims.ExpiresAt = saved.ExpiresAt
	}

	if info.Expired(m.now()) {
		m.logger.Info("stored session expired", "email", info.Email)
		if err := m.store.ClearToken(ctx); err != nil {
			m.logger.Warn("failed to clear expired session", "error", err)
		}
		return nil, ErrExpired
	}

	return info, nil
}

// Token returns the bearer token for API calls, or an empty string when logged out.
func (m *Manager) Token(ctx context.Context) (string, error) {
	info, err := m.Current(ctx)
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrExpired) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Token, nil
}

// Save stores a freshly issued token. Expiry is taken from the token's exp claim when present.
func (m *Manager) Save(ctx context.Context, token, email string) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}

	saved := &store.SavedSession{
		Token:   token,
		Email:   email,
		SavedAt: m.now(),
	}
	if claims, err := Inspect(token); err == nil {
		saved.ExpiresAt = claims.ExpiresAt
		if saved.Email == "" {
			saved.Email = claims.Email
		}
	}

	if err := m.store.SaveToken(ctx, saved); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	m.logger.Debug("session saved", "email", saved.Email)
	return nil
}

// Clear forgets the stored token. The environment override is not affected.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.ClearToken(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.logger.Debug("session cleared")
	return nil
}

// Inspect decodes a JWT's claims without verifying its signature.
func Inspect(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims := &Claims{}
	claims.Subject, _ = mc.GetSubject()
	if v, ok := mc["email"].(string); ok {
		claims.Email = v
	}
	if v, ok := mc["role"].(string); ok {
		claims.Role = v
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("reading exp claim: %w", err)
	}
	if exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	return claims, nil
}
