package explain

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/history"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// streamingStub emits fixed fragments, optionally ending with an error.
type streamingStub struct {
	fragments []string
	failAfter int // -1 means never fail
	inputs    []domain.ChatMessage
}

func (s *streamingStub) Invoke(context.Context, []domain.ChatMessage) (string, error) {
	panic("not used")
}

func (s *streamingStub) Stream(_ context.Context, messages []domain.ChatMessage) (<-chan domain.Fragment, error) {
	s.inputs = messages
	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		for i, text := range s.fragments {
			if s.failAfter >= 0 && i == s.failAfter {
				out <- domain.Fragment{Err: domain.TransientError("stream cut", nil)}
				return
			}
			out <- domain.Fragment{Text: text}
		}
	}()
	return out, nil
}

type fixedResolver struct {
	model domain.ChatModel
	err   error
}

func (r fixedResolver) Resolve(context.Context, domain.Role, int) (domain.ChatModel, error) {
	return r.model, r.err
}

func newTestStreamer(t *testing.T, model domain.ChatModel) (*Streamer, *history.Store) {
	t.Helper()
	store := history.NewStore(filepath.Join(t.TempDir(), "history.md"))
	return NewStreamer(fixedResolver{model: model}, store, 4096, observability.NopLogger()), store
}

func collect(t *testing.T, fragments <-chan domain.Fragment) (string, error) {
	t.Helper()
	var sb strings.Builder
	var streamErr error
	for f := range fragments {
		if f.Err != nil {
			streamErr = f.Err
			continue
		}
		sb.WriteString(f.Text)
	}
	return sb.String(), streamErr
}

func TestStreamReassemblyMatchesHistory(t *testing.T) {
	model := &streamingStub{fragments: []string{"The page ", "says ", "hello."}, failAfter: -1}
	streamer, store := newTestStreamer(t, model)

	fragments, err := streamer.StreamExplanation(context.Background(), "what is this?", "Hello world", false)
	require.NoError(t, err)

	got, streamErr := collect(t, fragments)
	require.NoError(t, streamErr)
	assert.Equal(t, "The page says hello.", got)

	stored, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "User: what is this?\n\nAgent: The page says hello.\n\n", stored)
}

func TestNonFollowUpClearsHistoryFirst(t *testing.T) {
	model := &streamingStub{fragments: []string{"fresh answer"}, failAfter: -1}
	streamer, store := newTestStreamer(t, model)

	require.NoError(t, store.Append("old prompt", "old answer"))

	fragments, err := streamer.StreamExplanation(context.Background(), "new prompt", "text", false)
	require.NoError(t, err)
	_, streamErr := collect(t, fragments)
	require.NoError(t, streamErr)

	stored, err := store.Read()
	require.NoError(t, err)
	assert.NotContains(t, stored, "old prompt")
	assert.Equal(t, "User: new prompt\n\nAgent: fresh answer\n\n", stored)
}

func TestFollowUpForwardsHistoryIntoChain(t *testing.T) {
	model := &streamingStub{fragments: []string{"follow-up answer"}, failAfter: -1}
	streamer, store := newTestStreamer(t, model)

	require.NoError(t, store.Append("first question", "first answer"))

	fragments, err := streamer.StreamExplanation(context.Background(), "second question", "text", true)
	require.NoError(t, err)
	_, streamErr := collect(t, fragments)
	require.NoError(t, streamErr)

	// Prior history was bound into the prompt.
	human := model.inputs[1].Parts[0].Text
	assert.Contains(t, human, "first question")
	assert.Contains(t, human, "first answer")

	// Both turns now stored, in order.
	stored, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t,
		"User: first question\n\nAgent: first answer\n\nUser: second question\n\nAgent: follow-up answer\n\n",
		stored)
}

func TestMidStreamErrorDoesNotCommitHistory(t *testing.T) {
	model := &streamingStub{fragments: []string{"partial ", "output ", "never sent"}, failAfter: 2}
	streamer, store := newTestStreamer(t, model)

	fragments, err := streamer.StreamExplanation(context.Background(), "prompt", "text", false)
	require.NoError(t, err)

	got, streamErr := collect(t, fragments)
	assert.Equal(t, "partial output ", got)
	require.Error(t, streamErr)

	stored, err := store.Read()
	require.NoError(t, err)
	assert.Empty(t, stored, "failed turn must not be persisted")
}

func TestResolveFailureSurfacesBeforeStreaming(t *testing.T) {
	store := history.NewStore(filepath.Join(t.TempDir(), "history.md"))
	streamer := NewStreamer(
		fixedResolver{err: domain.ConfigError("missing expert model", nil)},
		store, 4096, observability.NopLogger())

	_, err := streamer.StreamExplanation(context.Background(), "prompt", "text", true)
	require.Error(t, err)
	assert.True(t, domain.IsConfig(err))
}
