// Package openrouter implements the secondary language-model provider over an
// OpenAI-compatible chat completions API (OpenRouter by default).
package openrouter

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

const snippetLimit = 512

// Client implements domain.Provider. It performs exactly one HTTP call per Generate;
// retries belong to the caller.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	referer string
	title   string
	hc      *http.Client
}

// New constructs a client with an otelhttp-instrumented transport.
func New(cfg config.Config) *Client {
	timeout := cfg.AIRequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("OpenRouter %s %s", r.Method, r.URL.Path)
		}),
	)
	return &Client{
		apiKey:  strings.TrimSpace(cfg.OpenRouterAPIKey),
		baseURL: strings.TrimRight(cfg.OpenRouterBaseURL, "/"),
		model:   cfg.OpenRouterModel,
		referer: cfg.OpenRouterReferer,
		title:   cfg.OpenRouterTitle,
		hc:      &http.Client{Timeout: timeout, Transport: transport},
	}
}

var _ domain.Provider = (*Client)(nil)

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "openrouter" }

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the reply content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("op=openrouter.marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("op=openrouter.request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=openrouter.read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := textx.Truncate(string(raw), snippetLimit)
		slog.Warn("ai provider non-2xx",
			slog.String("provider", c.Name()),
			slog.String("model", c.model),
			slog.Int("status", resp.StatusCode),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", snippet))
		return "", fmt.Errorf("chat status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("op=openrouter.decode: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", fmt.Errorf("provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty choices from %s", c.Name())
	}
	if out.Model != "" && out.Model != c.model {
		slog.Debug("model substitution detected",
			slog.String("requested_model", c.model),
			slog.String("actual_model", out.Model))
	}
	return out.Choices[0].Message.Content, nil
}
