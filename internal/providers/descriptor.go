// Package providers implements the Provider Abstraction: one contract —
// ListModels, Chat, ChatStream — over several cloud model APIs that differ
// in endpoint shape, auth header, request envelope, and streaming frame
// format. Each provider is described by a Descriptor (a plain record of
// callables), not a class hierarchy, so the set of providers stays open.
package providers

import (
	"context"
	"net/http"

	"github.com/agentrt/runtime/internal/models"
)

// Credential is a single provider's secret plus any endpoint override.
type Credential struct {
	APIKey   string
	Endpoint string
}

// StreamFrame is the normalized result of parsing one raw chunk of a
// provider's streaming response body.
type StreamFrame struct {
	Done  bool
	Token string
}

// Descriptor is the static, data-only definition of how to talk to one
// cloud model API. Implementations live in this package's per-provider
// files (openai.go, anthropic.go); Descriptor itself never grows provider-specific branches.
type Descriptor struct {
	Name string

	// BaseURL is the provider's API root.
	BaseURL string

	// ModelsPath is the models-listing endpoint path, or "" if the
	// provider does not support listing.
	ModelsPath string

	// ChatPath is the chat-completion endpoint path.
	ChatPath string

	// BuildHeaders constructs request headers from a credential.
	BuildHeaders func(cred Credential) http.Header

	// BuildChatRequest constructs the provider-specific request body.
	BuildChatRequest func(req models.ChatRequest, stream bool) ([]byte, error)

	// ParseChatResponse extracts the normalized response from a
	// non-streaming chat response body.
	ParseChatResponse func(body []byte) (models.ChatResponse, error)

	// ParseStreamLine parses one line of a streaming response body into a
	// StreamFrame. Malformed lines should return (StreamFrame{}, false) so
	// the caller skips them without aborting the stream.
	ParseStreamLine func(line []byte) (StreamFrame, bool)

	// ParseModelsResponse extracts model IDs from a models-listing response.
	ParseModelsResponse func(body []byte) ([]models.ModelInfo, error)
}

// Driver is the runtime-facing contract every provider satisfies, built on
// top of a Descriptor plus an HTTP client.
type Driver interface {
	Name() string
	ListModels(ctx context.Context, cred Credential) ([]models.ModelInfo, error)
	Chat(ctx context.Context, cred Credential, req models.ChatRequest) (models.ChatResponse, error)
	ChatStream(ctx context.Context, cred Credential, req models.ChatRequest, onToken func(string)) error
}

// NormalizeMessages applies the provider-agnostic message-shape rules: a
// provider that has no native system role gets its first system message
// extracted into systemPrompt; a provider that only accepts the last user
// turn with prior turns as history gets that split out too.
func NormalizeMessages(messages []models.Message) (systemPrompt string, history []models.Message, lastUser string) {
	userAt := 0 // position in history where the pending lastUser belongs
	for _, m := range messages {
		switch m.Role {
		case "system":
			if systemPrompt == "" {
				systemPrompt = m.Content
			}
		case "user":
			if lastUser != "" {
				prev := models.Message{Role: "user", Content: lastUser}
				history = append(history[:userAt], append([]models.Message{prev}, history[userAt:]...)...)
			}
			lastUser = m.Content
			userAt = len(history)
		default:
			history = append(history, m)
		}
	}
	return systemPrompt, history, lastUser
}
