package domain

// AllowedProviders is the fixed set of supported LLM providers.
var AllowedProviders = []string{"openai", "anthropic", "gemini"}

// Role identifies which task a resolved model is used for.
type Role string

const (
	// RoleParsing is the vision/text-extraction model.
	RoleParsing Role = "parsing"
	// RoleExpert is the explanation-generation model.
	RoleExpert Role = "expert"
)

// Credentials holds the stored LLM provider configuration. Empty fields mean
// the value was never stored.
type Credentials struct {
	Provider     string
	APIKey       string
	ExpertModel  string
	ParsingModel string
}

// PageImage represents a single rasterized PDF page, rendered in memory.
type PageImage struct {
	PageNumber int
	PNG        []byte
	Width      int
	Height     int
}

// Fragment is one streamed piece of a model response. A Fragment with Err set
// is terminal; concatenating the Text of all non-error fragments in order
// reconstructs the full response.
type Fragment struct {
	Text string
	Err  error
}

// ChatMessage is a provider-neutral chat message. Clients translate it into
// their wire format.
type ChatMessage struct {
	Role  string // "system" or "user"
	Parts []MessagePart
}

// MessagePart is one part of a chat message, either text or an inline image.
type MessagePart struct {
	Type  string // "text" or "image"
	Text  string
	Image []byte // PNG bytes, base64-encoded by the client
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{
		Role:  role,
		Parts: []MessagePart{{Type: "text", Text: text}},
	}
}
