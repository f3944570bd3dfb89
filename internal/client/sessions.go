// ABOUTME: Chat session history endpoints
// ABOUTME: Note the backend uses /api/sessions for the list and /api/session/{id} for one session

package client

import (
	"context"
	"net/http"
)

// ListSessions returns the signed-in user's chat sessions.
func (c *Client) ListSessions(ctx context.Context) ([]ChatSession, error) {
	var out []ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns a session with its messages.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var d SessionDetail
	if err := c.do(ctx, http.MethodGet, "/api/session/"+pathEscape(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/session/"+pathEscape(id), nil, nil, nil)
}
