// ABOUTME: Runtime resolution of the backend base URL from a config endpoint
// ABOUTME: Fetches once, caches the result, and falls back to the last known value

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// DefaultBaseURL is used when neither a pinned URL, a config endpoint nor a cached value is available.
const DefaultBaseURL = "http://localhost:8000"

// cacheKey is the KV key holding the last successfully resolved base URL.
const cacheKey = "runtime.api_base_url"

// ValueCache persists the last resolved base URL between runs.
type ValueCache interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// runtimeConfig is the JSON document served by the config endpoint.
type runtimeConfig struct {
	APIBaseURL      string `json:"apiBaseUrl"`
	APIBaseURLSnake string `json:"api_base_url"`
}

// Resolver resolves the backend base URL once and caches it.
// Concurrent callers share a single in-flight fetch. Failed fetches are not cached.
type Resolver struct {
	pinned    string
	configURL string
	http      *http.Client
	cache     ValueCache
	logger    *slog.Logger

	mu       sync.Mutex
	resolved string
	inflight *resolveCall
}

// resolveCall is one fetch shared by every caller that arrives while it runs
type resolveCall struct {
	done  chan struct{}
	value string
	err   error
}

// NewResolver creates a Resolver from API config. cache may be nil.
func NewResolver(cfg APIConfig, httpClient *http.Client, cache ValueCache, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		pinned:    normalizeBaseURL(cfg.BaseURL),
		configURL: cfg.ConfigURL,
		http:      httpClient,
		cache:     cache,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve returns the backend base URL without a trailing slash.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.pinned != "" {
		return r.pinned, nil
	}

	for {
		r.mu.Lock()
		if r.resolved != "" {
			v := r.resolved
			r.mu.Unlock()
			return v, nil
		}
		if call := r.inflight; call != nil {
			r.mu.Unlock()
			select {
			case <-call.done:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			if call.err != nil {
				// The fetching caller was cancelled, try again with our own context
				continue
			}
			return call.value, nil
		}
		call := &resolveCall{done: make(chan struct{})}
		r.inflight = call
		r.mu.Unlock()

		v, cacheable := r.fetch(ctx)
		if err := ctx.Err(); err != nil {
			call.err = err
		} else {
			call.value = v
		}

		r.mu.Lock()
		if cacheable && call.err == nil {
			r.resolved = v
		}
		r.inflight = nil
		r.mu.Unlock()
		close(call.done)

		if call.err != nil {
			return "", call.err
		}
		return v, nil
	}
}

// fetch loads the base URL from the config endpoint, the persisted cache or the default.
// The boolean reports whether the value came from the config endpoint and may be memoized.
func (r *Resolver) fetch(ctx context.Context) (string, bool) {
	if r.configURL == "" {
		if v := r.cached(ctx); v != "" {
			return v, false
		}
		return DefaultBaseURL, true
	}

	v, err := r.fetchRemote(ctx)
	if err == nil {
		if r.cache != nil {
			if err := r.cache.SetValue(ctx, cacheKey, v); err != nil {
				r.logger.Warn("failed to persist base url", "error", err)
			}
		}
		r.logger.Debug("resolved base url", "base_url", v)
		return v, true
	}

	r.logger.Warn("runtime config fetch failed", "config_url", r.configURL, "error", err)
	if v := r.cached(ctx); v != "" {
		return v, false
	}
	return DefaultBaseURL, false
}

func (r *Resolver) fetchRemote(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.configURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching runtime config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runtime config returned status %d", resp.StatusCode)
	}

	var rc runtimeConfig
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&rc); err != nil {
		return "", fmt.Errorf("parsing runtime config: %w", err)
	}

	v := rc.APIBaseURL
	if v == "" {
		v = rc.APIBaseURLSnake
	}
	v = normalizeBaseURL(v)
	if v == "" {
		return "", fmt.Errorf("runtime config has no api base url")
	}
	return v, nil
}

func (r *Resolver) cached(ctx context.Context) string {
	if r.cache == nil {
		return ""
	}
	v, err := r.cache.GetValue(ctx, cacheKey)
	if err != nil {
		return ""
	}
	return normalizeBaseURL(v)
}

func normalizeBaseURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
