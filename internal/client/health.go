// ABOUTME: Backend liveness endpoint
// ABOUTME: Used by the HTTP polling fallback and the health command

package client

import (
	"context"
	"net/http"
)

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
