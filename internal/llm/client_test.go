package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/page-reader/internal/domain"
)

func newTestClient(url string) *Client {
	c := NewClient(ClientConfig{
		URL:        url,
		APIKey:     "sk-test",
		Model:      "gpt-4o",
		MaxTokens:  256,
		MaxRetries: 2,
	})
	// Skip real backoff waits in tests.
	c.retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestClientInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"1","choices":[{"message":{"content":"full response"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Invoke(context.Background(), []domain.ChatMessage{
		domain.TextMessage("user", "hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "full response", got)
}

func TestClientStreamDeliversFragmentsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"one "}}]}

data: {"choices":[{"delta":{"content":"two "}}]}

data: {"choices":[{"delta":{"content":"three"}}]}

data: [DONE]
`))
	}))
	defer srv.Close()

	fragments, err := newTestClient(srv.URL).Stream(context.Background(), []domain.ChatMessage{
		domain.TextMessage("user", "hi"),
	})
	require.NoError(t, err)

	var sb strings.Builder
	for f := range fragments {
		require.NoError(t, f.Err)
		sb.WriteString(f.Text)
	}
	assert.Equal(t, "one two three", sb.String())
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		w.Write([]byte(`{"id":"1","choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Invoke(context.Background(), []domain.ChatMessage{
		domain.TextMessage("user", "hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestClientDoesNotRetryBadRequest(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"image too large"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Invoke(context.Background(), []domain.ChatMessage{
		domain.TextMessage("user", "hi"),
	})
	require.Error(t, err)
	assert.True(t, domain.IsRequest(err))
	assert.Contains(t, err.Error(), "image too large")
	assert.Equal(t, 1, attempts)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusTooManyRequests, domain.IsTransient},
		{http.StatusInternalServerError, domain.IsTransient},
		{http.StatusServiceUnavailable, domain.IsTransient},
		{http.StatusBadRequest, domain.IsRequest},
		{http.StatusRequestEntityTooLarge, domain.IsRequest},
		{http.StatusUnprocessableEntity, domain.IsRequest},
	}

	for _, tt := range tests {
		err := classifyStatus(tt.status, strings.NewReader(`{}`))
		assert.True(t, tt.check(err), "status %d classified as %v", tt.status, err)
	}
}

func TestClientSendsMultimodalContent(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Write([]byte(`{"id":"1","choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Invoke(context.Background(), []domain.ChatMessage{
		{
			Role: "user",
			Parts: []domain.MessagePart{
				{Type: "text", Text: "transcribe this"},
				{Type: "image", Image: []byte{0x89, 0x50, 0x4e, 0x47}},
			},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, body, `"type":"image_url"`)
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "transcribe this")
}
