package explain

import (
	"context"
	"strings"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// Streamer drives the explanation chain for one request: it forwards streamed
// fragments to the caller in arrival order and, once the stream completes
// normally, commits the full turn to conversation history. This is the only
// place allowed to both forward and accumulate fragments.
type Streamer struct {
	resolver  domain.ModelResolver
	history   domain.HistoryStore
	maxTokens int
	logger    *observability.Logger
}

// NewStreamer creates a streaming orchestrator.
func NewStreamer(resolver domain.ModelResolver, history domain.HistoryStore, maxTokens int, logger *observability.Logger) *Streamer {
	return &Streamer{
		resolver:  resolver,
		history:   history,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// StreamExplanation resolves a fresh expert model, streams its explanation of
// the extracted text and appends the completed turn to history. When followUp
// is false the stored history is cleared first; otherwise it is loaded and
// bound into the prompt. History is never committed for a failed turn.
func (s *Streamer) StreamExplanation(ctx context.Context, prompt, extractedText string, followUp bool) (<-chan domain.Fragment, error) {
	var conversation string
	if followUp {
		var err error
		conversation, err = s.history.Read()
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.history.Clear(); err != nil {
			return nil, err
		}
	}

	model, err := s.resolver.Resolve(ctx, domain.RoleExpert, s.maxTokens)
	if err != nil {
		return nil, err
	}

	chain := NewChain(model)
	src, err := chain.Stream(ctx, Inputs{
		ParsedPage:          extractedText,
		Prompt:              prompt,
		ConversationHistory: conversation,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Bool("follow_up", followUp).Str("prompt", prompt).Msg("Streaming explanation")

	out := make(chan domain.Fragment)

	go func() {
		defer close(out)

		var response strings.Builder
		failed := false

		for fragment := range src {
			if fragment.Err != nil {
				failed = true
				s.logger.Error().Err(fragment.Err).Msg("Model stream failed mid-response")
				out <- fragment
				break
			}
			response.WriteString(fragment.Text)
			out <- fragment
		}

		if failed {
			return
		}

		if err := s.history.Append(prompt, response.String()); err != nil {
			s.logger.Error().Err(err).Msg("Failed to append conversation history")
		}
	}()

	return out, nil
}
