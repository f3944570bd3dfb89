// ABOUTME: Unit tests for the fake backend's JWT issuer
// ABOUTME: Tests valid tokens, tampered tokens, and expired tokens

package mockapi

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := newTokenIssuer([]byte("test-secret-key-for-jwt-signing"), time.Hour)

	token, err := issuer.Issue("user-1", "ada@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ada@example.com" || claims.Role != "admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.JTI == "" {
		t.Error("expected a jti claim")
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	a := newTokenIssuer([]byte("secret-a"), time.Hour)
	b := newTokenIssuer([]byte("secret-b"), time.Hour)

	token, err := a.Issue("user-1", "", "user")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = b.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := newTokenIssuer([]byte("secret"), time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.Issue("user-1", "", "user")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestTokenIssuer_Garbage(t *testing.T) {
	issuer := newTokenIssuer([]byte("secret"), time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "header.payload.signature"} {
		if _, err := issuer.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", tok, err)
		}
	}
}
