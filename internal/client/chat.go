// ABOUTME: Streaming chat endpoint
// ABOUTME: Returns the raw response body for the stream package to decode

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/2389/coven-console/internal/validate"
)

// StreamChat posts a message and returns the streaming response body. The caller must close it.
// No per-request timeout is applied; cancel ctx to abort.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if err := validate.Message(req.Message, c.maxChars); err != nil {
		return nil, err
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream", nil, bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream, application/x-ndjson")

	resp, err := c.execute(httpReq)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
