package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
)

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// anthropicEvent covers the streaming event payloads this client consumes.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient is a chat model handle speaking the Anthropic messages API.
type AnthropicClient struct {
	url        string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	retry      *RetryPolicy
	logger     *observability.Logger
}

// NewAnthropicClient creates a messages API client. ClientConfig.URL is
// optional and defaults to the public endpoint.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	url := cfg.URL
	if url == "" {
		url = anthropicMessagesURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // max_tokens is mandatory on this API
	}

	return &AnthropicClient{
		url:        url,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  maxTokens,
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
func (c *AnthropicClient) Invoke(ctx context.Context, messages []domain.ChatMessage) (string, error) {
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

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", domain.APIError("failed to decode response", err)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stream sends the messages and returns one fragment per content_block_delta
// event, in arrival order.
func (c *AnthropicClient) Stream(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.Fragment, error) {
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

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event anthropicEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case out <- domain.Fragment{Text: event.Delta.Text}:
				case <-ctx.Done():
					out <- domain.Fragment{Err: ctx.Err()}
					return
				}
			case "error":
				out <- domain.Fragment{Err: domain.APIError(event.Error.Message, nil)}
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			out <- domain.Fragment{Err: domain.APIError("failed to parse stream", err)}
		}
	}()

	return out, nil
}

func (c *AnthropicClient) marshalRequest(messages []domain.ChatMessage, stream bool) ([]byte, error) {
	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    stream,
	}

	for _, m := range messages {
		// System turns go into the dedicated request field.
		if m.Role == "system" {
			for _, part := range m.Parts {
				if part.Type == "text" {
					req.System += part.Text
				}
			}
			continue
		}

		wire := anthropicMessage{Role: m.Role}
		for _, part := range m.Parts {
			switch part.Type {
			case "image":
				wire.Content = append(wire.Content, anthropicContent{
					Type: "image",
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: "image/png",
						Data:      base64.StdEncoding.EncodeToString(part.Image),
					},
				})
			default:
				wire.Content = append(wire.Content, anthropicContent{Type: "text", Text: part.Text})
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

func (c *AnthropicClient) send(ctx context.Context, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return domain.APIError("failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)

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
