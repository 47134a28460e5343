// Package explain composes the expert prompt with a resolved model and
// streams the explanation while committing completed turns to history.
package explain

import (
	"context"

	"github.com/lectern-ai/page-reader/internal/domain"
)

// Chain binds the fixed explanation prompt template to a resolved expert
// model. The result of Stream is lazy, single-pass and forward-only; a
// restart requires re-invoking the chain.
type Chain struct {
	model domain.ChatModel
}

// NewChain creates an explanation chain over the given model.
func NewChain(model domain.ChatModel) *Chain {
	return &Chain{model: model}
}

// Stream renders the template with the inputs and streams the model's plain
// text response.
func (c *Chain) Stream(ctx context.Context, in Inputs) (<-chan domain.Fragment, error) {
	return c.model.Stream(ctx, buildMessages(in))
}
