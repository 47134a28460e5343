// Package llm resolves credentials into ready-to-invoke chat model handles
// and implements the provider HTTP clients behind them.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

const (
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	// Gemini exposes an OpenAI-compatible chat completions endpoint.
	geminiChatURL = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
)

// chatMessage represents a chat message on the wire
type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart represents a part of message content (text or image)
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

// imageURL represents an image URL in the message
type imageURL struct {
	URL string `json:"url"`
}

// chatRequest represents the API request structure
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

// chatResponse represents the API response structure
type chatResponse struct {
	ID      string   `json:"id"`
	Choices []choice `json:"choices"`
}

// choice represents a single completion choice
type choice struct {
	Delta        delta  `json:"delta"`
	Message      delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// delta represents a message or message delta
type delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// apiErrorBody is the error envelope returned by the provider.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client is a chat model handle speaking the OpenAI-compatible chat
// completions protocol. It serves the openai and gemini providers.
type Client struct {
	url        string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	retry      *RetryPolicy
	logger     *observability.Logger
}

// ClientConfig holds construction parameters for a Client.
type ClientConfig struct {
	URL        string
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	Logger     *observability.Logger
}

// NewClient creates a chat completions client. Transient provider errors are
// retried up to MaxRetries times; the request itself has no timeout.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{},
		retry: &RetryPolicy{
			MaxAttempts: cfg.MaxRetries + 1,
			Backoff:     ExponentialBackoff(time.Second),
			Retryable:   TransientOnly,
		},
		logger: logger,
	}
}

// Invoke sends the messages and returns the full response text.
func (c *Client) Invoke(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	body, err := c.marshalRequest(messages, false)
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.APIError("failed to read response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", domain.APIError("failed to decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.APIError("response contains no choices", nil)
	}

	return parsed.Choices[0].Message.Content, nil
}

// Stream sends the messages and returns one fragment per streamed delta, in
// arrival order. The channel is closed when the stream ends.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.Fragment, error) {
	body, err := c.marshalRequest(messages, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, body)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Fragment)

	go func() {
		defer close(out)
		defer resp.Body.Close()

		parser := NewStreamParser(resp.Body)
		for {
			chunk, err := parser.Next()
			if err != nil {
				out <- domain.Fragment{Err: domain.APIError("failed to parse stream", err)}
				return
			}
			if chunk.Content != "" {
				select {
				case out <- domain.Fragment{Text: chunk.Content}:
				case <-ctx.Done():
					out <- domain.Fragment{Err: ctx.Err()}
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) marshalRequest(messages []domain.ChatMessage, stream bool) ([]byte, error) {
	req := chatRequest{
		Model:     c.model,
		Messages:  make([]chatMessage, 0, len(messages)),
		MaxTokens: c.maxTokens,
		Stream:    stream,
	}

	for _, m := range messages {
		wire := chatMessage{Role: m.Role}
		for _, part := range m.Parts {
			switch part.Type {
			case "image":
				encoded := base64.StdEncoding.EncodeToString(part.Image)
				wire.Content = append(wire.Content, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: "data:image/png;base64," + encoded},
				})
			default:
				wire.Content = append(wire.Content, contentPart{Type: "text", Text: part.Text})
			}
		}
		req.Messages = append(req.Messages, wire)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.APIError("failed to marshal request", err)
	}
	return body, nil
}

// send posts the request with bounded retry on transient provider errors and
// returns a response with status 200.
func (c *Client) send(ctx context.Context, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return domain.APIError("failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		r, err := c.httpClient.Do(req)
		if err != nil {
			return domain.TransientError("request failed", err)
		}

		if r.StatusCode != http.StatusOK {
			defer r.Body.Close()
			return classifyStatus(r.StatusCode, r.Body)
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// classifyStatus maps a non-200 provider response onto the error taxonomy.
func classifyStatus(status int, body io.Reader) error {
	detail := readErrorDetail(body)
	msg := fmt.Sprintf("provider returned status %d: %s", status, detail)

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.TransientError(msg, nil)
	case status == http.StatusBadRequest ||
		status == http.StatusRequestEntityTooLarge ||
		status == http.StatusUnprocessableEntity:
		return domain.RequestError(msg, nil)
	default:
		return domain.APIError(msg, nil)
	}
}

func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(data)
}
