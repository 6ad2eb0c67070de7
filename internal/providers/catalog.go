package providers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Capability is the subset of model metadata the runtime needs to make
// routing decisions: context window for preflight size checks, and whether
// a model supports streaming token-by-token output.
type Capability struct {
	ModelID       string
	Provider      string
	ContextWindow int
	Streaming     bool
	Source        string // "builtin" or "discovery"
}

// Catalog is a thread-safe in-memory registry of known model capabilities,
// seeded with built-in defaults and refreshed by querying each provider's
// ListModels endpoint. It never calls out to a pricing/metadata service —
// only what the registered Drivers themselves report.
type Catalog struct {
	mu    sync.RWMutex
	known map[string]Capability
}

// NewCatalog builds a Catalog seeded with built-in capability entries for
// the models shipped as part of this runtime's default configuration.
func NewCatalog() *Catalog {
	c := &Catalog{known: make(map[string]Capability)}
	c.loadBuiltinDefaults()
	return c
}

func (c *Catalog) loadBuiltinDefaults() {
	defaults := []Capability{
		{ModelID: "gpt-4o", Provider: "openai", ContextWindow: 128000, Streaming: true, Source: "builtin"},
		{ModelID: "gpt-4o-mini", Provider: "openai", ContextWindow: 128000, Streaming: true, Source: "builtin"},
		{ModelID: "claude-sonnet-4-20250514", Provider: "anthropic", ContextWindow: 200000, Streaming: true, Source: "builtin"},
		{ModelID: "claude-3-5-haiku-20241022", Provider: "anthropic", ContextWindow: 200000, Streaming: true, Source: "builtin"},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range defaults {
		c.known[d.Provider+"/"+d.ModelID] = d
	}
}

// Lookup returns capability data for a provider-qualified model, or false
// if the catalog has no entry.
func (c *Catalog) Lookup(provider, modelID string) (Capability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cap, ok := c.known[provider+"/"+modelID]
	return cap, ok
}

// List returns every known capability entry.
func (c *Catalog) List() []Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Capability, 0, len(c.known))
	for _, cap := range c.known {
		out = append(out, cap)
	}
	return out
}

// Refresh queries a registered driver's ListModels and merges any models it
// doesn't already know about as discovery-sourced entries (no context-window
// data, since the raw models listing endpoint doesn't carry it).
func (c *Catalog) Refresh(ctx context.Context, registry *Registry, provider string, cred Credential) error {
	list, err := registry.ListModels(ctx, provider, cred)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range list {
		key := provider + "/" + m.ID
		if _, exists := c.known[key]; exists {
			continue
		}
		c.known[key] = Capability{ModelID: m.ID, Provider: provider, Source: "discovery"}
	}
	log.Debug().Str("provider", provider).Int("models", len(list)).Msg("catalog refreshed from discovery")
	return nil
}

// StartPeriodicRefresh runs Refresh on an interval until ctx is cancelled.
// Errors are logged, not returned, since a failed refresh leaves the
// catalog's existing (possibly stale) entries usable.
func (c *Catalog) StartPeriodicRefresh(ctx context.Context, registry *Registry, provider string, cred Credential, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, registry, provider, cred); err != nil {
				log.Warn().Err(err).Str("provider", provider).Msg("catalog refresh failed")
			}
		}
	}
}
