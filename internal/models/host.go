// Package models wraps the four inference transforms behind a common
// contract: lazy load on first use, advertised readiness, and pure
// transform calls. The model internals live in sidecar services reached
// over a small JSON contract; these hosts are the thin adapters.
package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fennec/internal/services"
)

// Host is the contract every model adapter satisfies.
type Host interface {
	Name() string
	Ready() bool
	Load(ctx context.Context) error
}

type client struct {
	name       string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	loaded bool
}

func newClient(name, baseURL string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &client{
		name:       name,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) Name() string { return c.name }

// Ready reports whether the model has completed a successful load.
func (c *client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Load asks the sidecar to load the model weights. Safe to call
// repeatedly; only the first successful call does work.
func (c *client) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	if c.baseURL == "" {
		return services.Wrap(services.ErrModelNotReady, c.name, "load", "no endpoint configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/load", nil)
	if err != nil {
		return services.Wrap(services.ErrModelNotReady, c.name, "load", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrModelNotReady, c.name, "load", "endpoint unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return services.Wrap(services.ErrModelNotReady, c.name, "load",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	c.loaded = true
	return nil
}

// ensureLoaded lazily loads the model before the first transform call.
func (c *client) ensureLoaded(ctx context.Context) error {
	if c.Ready() {
		return nil
	}
	return c.Load(ctx)
}

func (c *client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, c.name, path, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrTransient, c.name, path, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, c.name, path, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return services.Wrap(services.ErrTransient, c.name, path,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, c.name, path, "decode response", err)
	}
	return nil
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
