package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// maxTransientRetries is the retry ceiling built into every resolved handle.
const maxTransientRetries = 2

// Resolver turns stored credentials into ready-to-invoke chat model handles,
// one per role.
type Resolver struct {
	creds     domain.CredentialSource
	allowed   map[string]struct{}
	lookupEnv func(key string) string
	logger    *observability.Logger
}

// NewResolver creates a resolver over the given credential source.
func NewResolver(creds domain.CredentialSource, allowedProviders []string, logger *observability.Logger) *Resolver {
	allowed := make(map[string]struct{}, len(allowedProviders))
	for _, p := range allowedProviders {
		allowed[p] = struct{}{}
	}

	return &Resolver{
		creds:     creds,
		allowed:   allowed,
		lookupEnv: os.Getenv,
		logger:    logger,
	}
}

// Resolve loads credentials and returns a chat model handle for the role.
// There is no implicit default model: a missing model id for the role is a
// configuration error.
func (r *Resolver) Resolve(ctx context.Context, role domain.Role, maxTokens int) (domain.ChatModel, error) {
	creds, err := r.creds.Get()
	if err != nil {
		return nil, domain.ConfigError("failed to load credentials", err)
	}

	if _, ok := r.allowed[creds.Provider]; creds.Provider == "" || !ok {
		return nil, domain.ConfigError("provider must be one of: openai, anthropic, gemini", nil)
	}

	apiKey := creds.APIKey
	if apiKey == "" {
		apiKey = r.lookupEnv(strings.ToUpper(creds.Provider) + "_API_KEY")
	}
	if apiKey == "" {
		return nil, domain.ConfigError(fmt.Sprintf("missing API key for provider %q", creds.Provider), nil)
	}

	model := creds.ExpertModel
	if role == domain.RoleParsing {
		model = creds.ParsingModel
	}
	if model == "" {
		return nil, domain.ConfigError(
			fmt.Sprintf("missing %s model for provider %q; set it via /add-llm-keys", role, creds.Provider), nil)
	}

	r.logger.Debug().
		Str("provider", creds.Provider).
		Str("role", string(role)).
		Str("model", model).
		Str("api_key", maskKey(apiKey)).
		Msg("Resolved chat model")

	cfg := ClientConfig{
		APIKey:     apiKey,
		Model:      model,
		MaxTokens:  maxTokens,
		MaxRetries: maxTransientRetries,
		Logger:     r.logger,
	}

	switch creds.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "gemini":
		cfg.URL = geminiChatURL
		return NewClient(cfg), nil
	default:
		cfg.URL = openAIChatURL
		return NewClient(cfg), nil
	}
}

// maskKey renders an API key as its first and last 4 characters. The full
// secret is never logged.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
