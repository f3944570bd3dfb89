// ABOUTME: Superadmin endpoints for user management and system statistics
// ABOUTME: Wraps /api/admin/users and /api/admin/system

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/coven-console/internal/validate"
)

// ListUsers returns one page of users.
func (c *Client) ListUsers(ctx context.Context, f UserFilter) (*UserPage, error) {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Role != "" {
		q.Set("role", f.Role)
	}

	var page UserPage
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser returns a single user.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/admin/users/"+pathEscape(id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser applies a partial update.
func (c *Client) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	if upd.Role != nil {
		if err := checkRole(*upd.Role); err != nil {
			return nil, err
		}
	}
	var u User
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+pathEscape(id), nil, upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserRole changes a user's role.
func (c *Client) SetUserRole(ctx context.Context, id, role string) (*User, error) {
	if err := checkRole(role); err != nil {
		return nil, err
	}
	var u User
	body := map[string]string{"role": role}
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+pathEscape(id)+"/role", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserStatus activates or deactivates a user.
func (c *Client) SetUserStatus(ctx context.Context, id string, active bool) (*User, error) {
	var u User
	body := map[string]bool{"is_active": active}
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+pathEscape(id)+"/status", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SystemStats returns platform totals.
func (c *Client) SystemStats(ctx context.Context) (*SystemStats, error) {
	var s SystemStats
	if err := c.do(ctx, http.MethodGet, "/api/admin/system/stats", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UsageHistory returns daily usage for the last days days.
func (c *Client) UsageHistory(ctx context.Context, days int) ([]UsageDay, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out []UsageDay
	if err := c.do(ctx, http.MethodGet, "/api/admin/system/usage-history", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkRole(role string) error {
	switch role {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return nil
	}
	return &validate.Error{Field: "role", Message: fmt.Sprintf("Unknown role %q (want user, admin or superadmin).", role)}
}
