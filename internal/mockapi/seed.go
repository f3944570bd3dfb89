// ABOUTME: YAML seed files for the fake backend
// ABOUTME: Seeds users, collections, MCP servers and LLM configs before the server starts

package mockapi

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/validate"
)

// Seed is the initial state of a fake backend.
type Seed struct {
	Users       []SeedUser       `yaml:"users"`
	Collections []SeedCollection `yaml:"collections"`
	MCPServers  []SeedMCPServer  `yaml:"mcp_servers"`
	LLMConfigs  []SeedLLMConfig  `yaml:"llm_configs"`
}

// SeedUser is a pre-registered account.
type SeedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
	// Disabled accounts cannot sign in.
	Disabled bool `yaml:"disabled"`
}

// SeedCollection is a pre-created collection.
type SeedCollection struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Public      bool   `yaml:"public"`
}

// SeedMCPServer is a pre-registered MCP server.
type SeedMCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
	Enabled   bool              `yaml:"enabled"`
}

// SeedLLMConfig replaces the built-in LLM default. The first active entry wins.
type SeedLLMConfig struct {
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Active      bool    `yaml:"active"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed loads seed into the server. It is meant to run before serving.
func (s *Server) ApplySeed(seed *Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, su := range seed.Users {
		if err := validate.Email(su.Email); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		role := su.Role
		if role == "" {
			role = client.RoleUser
		}
		switch role {
		case client.RoleUser, client.RoleAdmin, client.RoleSuperadmin:
		default:
			return fmt.Errorf("users[%d]: unknown role %q", i, role)
		}

		u := s.ensureUserLocked(normalizeEmail(su.Email))
		if su.Name != "" {
			u.Name = su.Name
		}
		u.Role = role
		u.IsActive = !su.Disabled
		if su.Password != "" {
			if err := u.setPassword(su.Password); err != nil {
				return fmt.Errorf("users[%d]: hashing password: %w", i, err)
			}
		}
	}

	for i, sc := range seed.Collections {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return fmt.Errorf("collections[%d]: name is required", i)
		}
		c := &client.Collection{
			ID:          uuid.NewString(),
			Name:        name,
			Description: sc.Description,
			IsPublic:    sc.Public,
			CreatedAt:   time.Now().UTC(),
		}
		s.collections[c.ID] = c
	}

	for i, sm := range seed.MCPServers {
		m := client.MCPServer{
			Name:      sm.Name,
			Transport: sm.Transport,
			Command:   sm.Command,
			Args:      sm.Args,
			Env:       sm.Env,
			URL:       sm.URL,
			Enabled:   sm.Enabled,
		}
		if err := client.CheckMCPServer(m); err != nil {
			return fmt.Errorf("mcp_servers[%d]: %w", i, err)
		}
		s.mcpServers[m.Name] = &m
	}

	if len(seed.LLMConfigs) > 0 {
		defaults := make([]client.LLMConfig, 0, len(seed.LLMConfigs))
		active := false
		for i, sl := range seed.LLMConfigs {
			if sl.Name == "" || sl.Provider == "" || sl.Model == "" {
				return fmt.Errorf("llm_configs[%d]: name, provider and model are required", i)
			}
			c := client.LLMConfig{
				ID:          uuid.NewString(),
				Name:        sl.Name,
				Provider:    sl.Provider,
				Model:       sl.Model,
				BaseURL:     sl.BaseURL,
				APIKey:      sl.APIKey,
				Temperature: sl.Temperature,
				MaxTokens:   sl.MaxTokens,
				IsActive:    sl.Active && !active,
			}
			active = active || c.IsActive
			defaults = append(defaults, c)
		}
		if !active {
			defaults[0].IsActive = true
		}
		s.llmDefaults = defaults
		s.resetLLMLocked()
	}

	return nil
}
