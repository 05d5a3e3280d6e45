// Package llm talks to an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Params are the sampling settings for one prompt.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the narrow surface callers depend on.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string, p Params) (string, error)
}

var ErrEmptyResponse = errors.New("model returned no choices")

type Client struct {
	http   *resty.Client
	model  string
	logger zerolog.Logger
}

func NewClient(baseURL, model string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: rc, model: model, logger: logger}
}

// Complete sends prompt as a single user message and returns the first
// choice's content. The key is passed per call; it is never cached here.
func (c *Client) Complete(ctx context.Context, apiKey, prompt string, p Params) (string, error) {
	body := ChatRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	var out chatResponse
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("status", resp.StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("model call")

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("model API returned status %d", resp.StatusCode())
		}
		return "", errors.New(msg)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

// DecodeJSON parses model output into v. Markdown code fences around the
// payload are tolerated.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return nil
}
