// ABOUTME: Custom RAG tool endpoints and the combined tool catalog
// ABOUTME: Wraps /api/custom-rag-tools and /api/tools

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListRAGTools returns all custom RAG tools.
func (c *Client) ListRAGTools(ctx context.Context) ([]CustomRAGTool, error) {
	var out []CustomRAGTool
	if err := c.do(ctx, http.MethodGet, "/api/custom-rag-tools", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRAGTool creates a custom RAG tool.
func (c *Client) CreateRAGTool(ctx context.Context, in RAGToolInput) (*CustomRAGTool, error) {
	if err := checkRAGTool(in); err != nil {
		return nil, err
	}
	var t CustomRAGTool
	if err := c.do(ctx, http.MethodPost, "/api/custom-rag-tools", nil, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetRAGTool returns one custom RAG tool.
func (c *Client) GetRAGTool(ctx context.Context, id string) (*CustomRAGTool, error) {
	var t CustomRAGTool
	if err := c.do(ctx, http.MethodGet, "/api/custom-rag-tools/"+pathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateRAGTool replaces a custom RAG tool's fields.
func (c *Client) UpdateRAGTool(ctx context.Context, id string, in RAGToolInput) (*CustomRAGTool, error) {
	if err := checkRAGTool(in); err != nil {
		return nil, err
	}
	var t CustomRAGTool
	if err := c.do(ctx, http.MethodPut, "/api/custom-rag-tools/"+pathEscape(id), nil, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteRAGTool removes a custom RAG tool.
func (c *Client) DeleteRAGTool(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/custom-rag-tools/"+pathEscape(id), nil, nil, nil)
}

// ListTools returns every tool the agent can call.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var out []Tool
	if err := c.do(ctx, http.MethodGet, "/api/tools", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkRAGTool(in RAGToolInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("tool name is required")
	}
	if in.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	return nil
}
