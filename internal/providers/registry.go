package providers

import (
	"context"
	"sync"

	"github.com/agentrt/runtime/internal/models"
	"github.com/rs/zerolog/log"
)

// Registry holds the set of registered provider drivers, keyed by name.
// Mirrors the single contract every caller in the runtime uses: list
// models, chat, or chat-stream against a named provider, without knowing
// which concrete API it talks to.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry builds a registry with the three built-in drivers
// registered: openai, anthropic, ollama.
func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[string]Driver)}
	r.Register(NewOpenAIDriver())
	r.Register(NewAnthropicDriver())
	r.Register(NewOllamaDriver())
	return r
}

// Register adds or replaces a driver.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	r.drivers[d.Name()] = d
	r.mu.Unlock()
	log.Info().Str("provider", d.Name()).Msg("provider driver registered")
}

// Get returns the driver for a provider name, or nil if unregistered.
func (r *Registry) Get(name string) Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.drivers[name]
}

// List returns the names of all registered providers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		out = append(out, name)
	}
	return out
}

// ListModels lists the models available from a provider.
func (r *Registry) ListModels(ctx context.Context, provider string, cred Credential) ([]models.ModelInfo, error) {
	d := r.Get(provider)
	if d == nil {
		return nil, &UnknownProviderError{Provider: provider}
	}
	return d.ListModels(ctx, cred)
}

// Chat sends a non-streaming chat request to a provider.
func (r *Registry) Chat(ctx context.Context, provider string, cred Credential, req models.ChatRequest) (models.ChatResponse, error) {
	d := r.Get(provider)
	if d == nil {
		return models.ChatResponse{}, &UnknownProviderError{Provider: provider}
	}
	return d.Chat(ctx, cred, req)
}

// ChatStream sends a streaming chat request to a provider, invoking
// onToken for each emitted token.
func (r *Registry) ChatStream(ctx context.Context, provider string, cred Credential, req models.ChatRequest, onToken func(string)) error {
	d := r.Get(provider)
	if d == nil {
		return &UnknownProviderError{Provider: provider}
	}
	return d.ChatStream(ctx, cred, req, onToken)
}
