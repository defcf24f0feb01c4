package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avkuzmin/techharvest/internal/config"
)

// Client asks a local LLM to summarize crawled data, e.g. condensing a
// product's review corpus into a short digest.
type Client struct {
	cfg    *config.AIConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an AI client for the configured provider.
func NewClient(cfg *config.AIConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 120 * time.Second},
		logger: logger.With("component", "ai"),
	}
}

// Enabled reports whether a provider is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.Endpoint != ""
}

// Generate sends a prompt to the provider and returns the completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("ai provider is not configured")
	}

	switch strings.ToLower(c.cfg.Provider) {
	case "ollama":
		return c.generateOllama(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported ai provider: %s", c.cfg.Provider)
	}
}

func (c *Client) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("completion received", "model", c.cfg.Model, "chars", len(out.Response))
	return strings.TrimSpace(out.Response), nil
}
