package parser

import (
	"context"
	"strings"
	"time"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/llm"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// transcriptionPrompt is the fixed instruction sent alongside the page image.
const transcriptionPrompt = `You are a page transcription and OCR expert. You will be presented with an image of a PDF page. Your task is to transcribe the text on the page PERFECTLY. Transcription should be in the text's original language, do not translate. Ignore any image or structured content like tables.
Here is the image of a page:
`

const visionMaxAttempts = 3

// Vision extracts text by sending a rendered page image to the parsing-role
// model with a transcription instruction.
type Vision struct {
	rasterizer domain.Rasterizer
	resolver   domain.ModelResolver
	maxTokens  int
	retry      *llm.RetryPolicy
	logger     *observability.Logger
}

// NewVision creates a vision extraction parser. Transient model failures are
// retried with exponential backoff; malformed-request failures abort
// immediately.
func NewVision(rasterizer domain.Rasterizer, resolver domain.ModelResolver, maxTokens int, logger *observability.Logger) *Vision {
	return &Vision{
		rasterizer: rasterizer,
		resolver:   resolver,
		maxTokens:  maxTokens,
		retry: &llm.RetryPolicy{
			MaxAttempts: visionMaxAttempts,
			Backoff:     llm.ExponentialBackoff(2 * time.Second), // 2s, 4s
			Retryable:   llm.AllButRequestErrors,
		},
		logger: logger,
	}
}

// ProduceText rasterizes the PDF and transcribes the first page. The
// surrounding loop handles several images so multi-page extraction can slot
// in later; today only one message is ever built.
func (v *Vision) ProduceText(ctx context.Context, pdfBytes []byte) (string, error) {
	images, err := v.rasterizer.Rasterize(ctx, pdfBytes)
	if err != nil {
		return "", err
	}
	v.logger.Debug().Int("pages", len(images)).Msg("Pages available for vision parsing")

	page := images[0]
	if len(page.PNG) == 0 {
		// Not fatal: let the model call decide.
		v.logger.Warn().Int("page", page.PageNumber).Msg("Rasterized page image is empty")
	}

	model, err := v.resolver.Resolve(ctx, domain.RoleParsing, v.maxTokens)
	if err != nil {
		return "", err
	}

	messages := [][]domain.ChatMessage{buildTranscriptionMessages(page)}

	responses := make([]string, 0, len(messages))
	for i, message := range messages {
		var response string
		err := v.retry.Do(ctx, func() error {
			var invokeErr error
			response, invokeErr = model.Invoke(ctx, message)
			if invokeErr != nil {
				v.logger.Error().Int("message", i).Err(invokeErr).Msg("Vision extraction attempt failed")
			}
			return invokeErr
		})
		if err != nil {
			return "", err
		}
		responses = append(responses, response)
	}

	return strings.TrimSpace(strings.Join(responses, "\n\n")), nil
}

// buildTranscriptionMessages builds the single multimodal message for a page.
func buildTranscriptionMessages(page domain.PageImage) []domain.ChatMessage {
	return []domain.ChatMessage{
		{
			Role: "user",
			Parts: []domain.MessagePart{
				{Type: "text", Text: transcriptionPrompt},
				{Type: "image", Image: page.PNG},
			},
		},
	}
}
