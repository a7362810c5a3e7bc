// Package completion implements the client for OpenAI-compatible chat
// completion endpoints (OpenRouter by default).
//
// Complete never returns an error: every outcome is folded into a Result so
// callers handle the failure kinds explicitly.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the OpenRouter chat completions URL.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "openai/gpt-3.5-turbo"

	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3
	DefaultTimeout     = 30 * time.Second
)

// Config holds completion endpoint settings.
type Config struct {
	// Endpoint is the full chat completions URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a Bearer token.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier passed to the endpoint.
	Model string `yaml:"model"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds the whole request, including reading the body.
	Timeout time.Duration `yaml:"timeout"`

	// Headers are extra request headers, e.g. HTTP-Referer and X-Title for
	// OpenRouter app attribution.
	Headers map[string]string `yaml:"headers"`
}

// DefaultConfig returns a Config with the OpenRouter defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:    DefaultEndpoint,
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// ---------- Wire Types ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat completions request body.
type Request struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatResponse mirrors the parts of the response we read. Pointers let us tell
// a missing field apart from an empty one.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ---------- Client ----------

// Client sends one chat completion request per call. It performs no retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a completion client. Zero values in cfg fall back to
// DefaultConfig.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "completion"),
	}
}

// NewRequest builds the request body for a system prompt and user text.
func (c *Client) NewRequest(systemPrompt, userText string) Request {
	return Request{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
}

// Complete sends the prompt and user text to the endpoint and returns the
// first choice's content verbatim, or a failure Result.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) Result {
	body, err := json.Marshal(c.NewRequest(systemPrompt, userText))
	if err != nil {
		return c.fail(FailureTransport, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(FailureTransport, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("sending chat completion",
		"model", c.cfg.Model,
		"endpoint", c.cfg.Endpoint,
		"user_chars", len(userText),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(FailureTransport, fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(FailureTransport, fmt.Errorf("%w: reading response: %w", ErrTransport, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(FailureTransport, fmt.Errorf("%w: endpoint returned %d: %s",
			ErrTransport, resp.StatusCode, truncate(string(respBody), 300)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return c.fail(FailureMalformed, fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	if len(chatResp.Choices) == 0 {
		return c.fail(FailureMalformed, fmt.Errorf("%w: no choices", ErrMalformedResponse))
	}
	choice := chatResp.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return c.fail(FailureMalformed, fmt.Errorf("%w: choice has no message content", ErrMalformedResponse))
	}

	c.logger.Info("chat completion done",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"finish_reason", choice.FinishReason,
	)

	return Success(*choice.Message.Content)
}

func (c *Client) fail(kind FailureKind, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error("chat completion timed out", "timeout", c.cfg.Timeout, "error", err)
	} else {
		c.logger.Error("chat completion failed", "kind", string(kind), "error", err)
	}
	return Failure(kind, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
