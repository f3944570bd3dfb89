// ABOUTME: MCP tool server configuration endpoints
// ABOUTME: Servers are addressed by name under /api/mcp/servers

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListMCPServers returns all configured MCP servers.
func (c *Client) ListMCPServers(ctx context.Context) ([]MCPServer, error) {
	var out []MCPServer
	if err := c.do(ctx, http.MethodGet, "/api/mcp/servers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMCPServer returns one MCP server.
func (c *Client) GetMCPServer(ctx context.Context, name string) (*MCPServer, error) {
	var s MCPServer
	if err := c.do(ctx, http.MethodGet, "/api/mcp/servers/"+pathEscape(name), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateMCPServer adds an MCP server.
func (c *Client) CreateMCPServer(ctx context.Context, in MCPServer) (*MCPServer, error) {
	if err := CheckMCPServer(in); err != nil {
		return nil, err
	}
	var s MCPServer
	if err := c.do(ctx, http.MethodPost, "/api/mcp/servers", nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateMCPServer replaces an MCP server's configuration.
func (c *Client) UpdateMCPServer(ctx context.Context, name string, in MCPServer) (*MCPServer, error) {
	if in.Name == "" {
		in.Name = name
	}
	if err := CheckMCPServer(in); err != nil {
		return nil, err
	}
	var s MCPServer
	if err := c.do(ctx, http.MethodPut, "/api/mcp/servers/"+pathEscape(name), nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteMCPServer removes an MCP server.
func (c *Client) DeleteMCPServer(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/mcp/servers/"+pathEscape(name), nil, nil, nil)
}

// ToggleMCPServer flips an MCP server's enabled flag.
func (c *Client) ToggleMCPServer(ctx context.Context, name string) (*MCPServer, error) {
	var s MCPServer
	if err := c.do(ctx, http.MethodPost, "/api/mcp/servers/"+pathEscape(name)+"/toggle", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CheckMCPServer validates an MCP server definition: stdio needs a command, sse and http need a URL.
func CheckMCPServer(s MCPServer) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server name is required")
	}
	switch s.Transport {
	case TransportStdio:
		if s.Command == "" {
			return fmt.Errorf("stdio server %q needs a command", s.Name)
		}
	case TransportSSE, TransportHTTP:
		if s.URL == "" {
			return fmt.Errorf("%s server %q needs a url", s.Transport, s.Name)
		}
	default:
		return fmt.Errorf("unknown transport %q (want stdio, sse or http)", s.Transport)
	}
	return nil
}
