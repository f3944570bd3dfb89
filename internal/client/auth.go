// ABOUTME: Authentication endpoints: OTP sign-in, logout, profile and password
// ABOUTME: Inputs are validated locally before any request is sent

package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/coven-console/internal/validate"
)

// RequestOTP asks the backend to email a one-time code.
func (c *Client) RequestOTP(ctx context.Context, email string) error {
	if err := validate.Email(email); err != nil {
		return err
	}
	body := map[string]string{"email": strings.TrimSpace(email)}
	return c.do(ctx, http.MethodPost, "/api/auth/request-otp", nil, body, nil)
}

// VerifyOTP exchanges a one-time code for a session token and stores it.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*AuthResponse, error) {
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.OTP(otp); err != nil {
		return nil, err
	}

	body := map[string]string{
		"email": strings.TrimSpace(email),
		"otp":   strings.TrimSpace(otp),
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-otp", nil, body, &resp); err != nil {
		return nil, err
	}

	if c.tokens != nil {
		if err := c.tokens.Save(ctx, resp.AccessToken, resp.User.Email); err != nil {
			return nil, err
		}
	}
	c.logger.Info("signed in", "email", resp.User.Email, "role", resp.User.Role)
	return &resp, nil
}

// Logout ends the session on the server. The local token is cleared even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	callErr := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)

	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			return err
		}
	}
	if callErr != nil {
		c.logger.Debug("server logout failed, local session cleared", "error", callErr)
	}
	return callErr
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes the signed-in user's display name.
func (c *Client) UpdateProfile(ctx context.Context, name string) (*User, error) {
	if err := validate.Name(name); err != nil {
		return nil, err
	}
	var u User
	body := map[string]string{"name": strings.TrimSpace(name)}
	if err := c.do(ctx, http.MethodPut, "/api/auth/profile", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	if err := validate.NewPassword(current, next); err != nil {
		return err
	}
	body := map[string]string{
		"current_password": current,
		"new_password":     next,
	}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", nil, body, nil)
}
