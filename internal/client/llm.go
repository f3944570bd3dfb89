// ABOUTME: LLM configuration endpoints
// ABOUTME: Wraps /api/llm/configs including activation and reset

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListLLMConfigs returns all LLM configs with keys masked.
func (c *Client) ListLLMConfigs(ctx context.Context) ([]LLMConfig, error) {
	var out []LLMConfig
	if err := c.do(ctx, http.MethodGet, "/api/llm/configs", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveLLMConfig returns the config currently serving chat.
func (c *Client) ActiveLLMConfig(ctx context.Context) (*LLMConfig, error) {
	var cfg LLMConfig
	if err := c.do(ctx, http.MethodGet, "/api/llm/configs/active", nil, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateLLMConfig stores a new LLM config.
func (c *Client) CreateLLMConfig(ctx context.Context, in LLMConfigInput) (*LLMConfig, error) {
	if err := checkLLMConfig(in); err != nil {
		return nil, err
	}
	var cfg LLMConfig
	if err := c.do(ctx, http.MethodPost, "/api/llm/configs", nil, in, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateLLMConfig replaces an LLM config. An empty APIKey keeps the stored key.
func (c *Client) UpdateLLMConfig(ctx context.Context, id string, in LLMConfigInput) (*LLMConfig, error) {
	if err := checkLLMConfig(in); err != nil {
		return nil, err
	}
	var cfg LLMConfig
	if err := c.do(ctx, http.MethodPut, "/api/llm/configs/"+pathEscape(id), nil, in, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DeleteLLMConfig removes an LLM config.
func (c *Client) DeleteLLMConfig(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/llm/configs/"+pathEscape(id), nil, nil, nil)
}

// ActivateLLMConfig switches chat to the given config.
func (c *Client) ActivateLLMConfig(ctx context.Context, id string) (*LLMConfig, error) {
	var cfg LLMConfig
	if err := c.do(ctx, http.MethodPost, "/api/llm/configs/"+pathEscape(id)+"/activate", nil, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResetLLMConfigs restores the backend's default LLM configuration.
func (c *Client) ResetLLMConfigs(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/llm/configs/reset", nil, nil, nil)
}

func checkLLMConfig(in LLMConfigInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("config name is required")
	}
	if in.Provider == "" || in.Model == "" {
		return fmt.Errorf("provider and model are required")
	}
	if in.Temperature < 0 || in.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if in.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}
