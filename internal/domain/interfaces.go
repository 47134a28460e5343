package domain

import "context"

// CredentialSource reads stored provider credentials.
type CredentialSource interface {
	Get() (Credentials, error)
}

// Rasterizer converts PDF bytes into one rendered image per page.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfBytes []byte) ([]PageImage, error)
}

// TextExtractor produces extracted text from PDF bytes. Each parser variant
// implements this one capability.
type TextExtractor interface {
	ProduceText(ctx context.Context, pdfBytes []byte) (string, error)
}

// ChatModel is a resolved, ready-to-invoke model handle.
type ChatModel interface {
	// Invoke sends the messages and returns the full response text.
	Invoke(ctx context.Context, messages []ChatMessage) (string, error)

	// Stream sends the messages and returns a forward-only fragment stream.
	// The channel is closed when the stream ends; a fragment with Err set is
	// terminal.
	Stream(ctx context.Context, messages []ChatMessage) (<-chan Fragment, error)
}

// ModelResolver resolves provider, model and credentials into a ChatModel for
// a given role.
type ModelResolver interface {
	Resolve(ctx context.Context, role Role, maxTokens int) (ChatModel, error)
}

// HistoryStore persists the flat conversation transcript.
type HistoryStore interface {
	Append(prompt, response string) error
	Read() (string, error)
	Clear() error
}
