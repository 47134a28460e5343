package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamParserReassemblesChunks(t *testing.T) {
	mockSSE := `data: {"id":"1","choices":[{"delta":{"content":"Hello"}}]}

data: {"id":"1","choices":[{"delta":{"content":" world"}}]}

data: {"id":"1","choices":[{"delta":{"content":"!"},"finish_reason":"stop"}]}

data: [DONE]
`
	parser := NewStreamParser(strings.NewReader(mockSSE))

	var sb strings.Builder
	for {
		chunk, err := parser.Next()
		require.NoError(t, err)
		sb.WriteString(chunk.Content)
		if chunk.Done {
			break
		}
	}

	assert.Equal(t, "Hello world!", sb.String())
}

func TestStreamParserSkipsNonDataLines(t *testing.T) {
	mockSSE := `: keepalive comment
event: ping

data: {"id":"1","choices":[{"delta":{"content":"text"}}]}

data: [DONE]
`
	parser := NewStreamParser(strings.NewReader(mockSSE))

	chunk, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "text", chunk.Content)
	assert.False(t, chunk.Done)

	chunk, err = parser.Next()
	require.NoError(t, err)
	assert.True(t, chunk.Done)
}

func TestStreamParserSkipsInvalidJSON(t *testing.T) {
	mockSSE := `data: {not valid json

data: {"id":"1","choices":[{"delta":{"content":"ok"}}]}

data: [DONE]
`
	parser := NewStreamParser(strings.NewReader(mockSSE))

	chunk, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "ok", chunk.Content)
}

func TestStreamParserHandlesTruncatedStream(t *testing.T) {
	// A stream that ends without [DONE] still terminates.
	mockSSE := `data: {"id":"1","choices":[{"delta":{"content":"partial"}}]}
`
	parser := NewStreamParser(strings.NewReader(mockSSE))

	chunk, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.Content)

	chunk, err = parser.Next()
	require.NoError(t, err)
	assert.True(t, chunk.Done)
}
