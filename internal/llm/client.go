// Package llm wraps the hosted chat-completions gateway used for
// transcriptions and video scripts. The gateway is OpenAI-compatible;
// only the single completions call is needed here.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Gateway is the chat-completion surface services depend on.
type Gateway interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client calls the hosted LLM gateway
type Client struct {
	client *resty.Client
	model  string
}

// Ensure Client implements Gateway
var _ Gateway = (*Client)(nil)

// NewClient creates a gateway client. baseURL points at the /v1 root.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetTimeout(60 * time.Second),
		model: model,
	}
}

// Complete sends one system+user exchange and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var out completionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model: c.model,
			Messages: []Message{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call LLM gateway: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("LLM gateway returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("LLM gateway returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
