// Package llm implements the chat-completions client used for answer
// generation and knowledge relevance selection. The wire format follows
// the OpenRouter/OpenAI chat completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Completer is the interface the orchestrator talks to. Both methods
// send a single chat request; Stream delivers the answer incrementally.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, chunks chan<- string) error
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call. Model selection is per call
// because the router picks a tier for every question.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Settings holds client-level configuration.
type Settings struct {
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	HTTPTimeout time.Duration
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a completions client.
func NewClient(settings Settings, logger zerolog.Logger) *Client {
	if settings.BaseURL == "" {
		settings.BaseURL = "https://openrouter.ai/api/v1"
	}
	timeout := settings.HTTPTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a blocking chat request and returns the full answer.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result wireResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("promptTokens", result.Usage.PromptTokens).
		Int("completionTokens", result.Usage.CompletionTokens).
		Msg("completion finished")

	return result.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat request, pushing content deltas to
// chunks as they arrive. The channel is not closed by Stream; the
// caller owns its lifecycle.
func (c *Client) Stream(ctx context.Context, req Request, chunks chan<- string) error {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	parser := newStreamParser(resp.Body)
	for {
		chunk, err := parser.next()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if chunk.done {
			return nil
		}
		if chunk.content == "" {
			continue
		}

		select {
		case chunks <- chunk.content:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) send(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.settings.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.settings.MaxTokens
	}

	body, err := json.Marshal(wireRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.settings.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	return resp, nil
}

// statusError builds an error whose message names the upstream failure
// mode. The queue's retry check matches on these fragments, so the
// wording for 429 and 5xx statuses is deliberate.
func statusError(status int, body string) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("llm rate limit exceeded (status 429): %s", body)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("llm upstream unavailable (status 503): %s", body)
	case http.StatusGatewayTimeout:
		return fmt.Errorf("llm upstream timeout (status 504): %s", body)
	case 529:
		return fmt.Errorf("llm provider overloaded (status 529): %s", body)
	default:
		return fmt.Errorf("llm request failed (status %d): %s", status, body)
	}
}
