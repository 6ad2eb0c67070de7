package providers

import (
	"context"

	"github.com/agentrt/runtime/internal/models"
)

// CloudAdapter adapts a Registry + fixed provider/model/credential into
// the taskrouter.CloudExecutor shape (ChatStream(ctx, prompt, onToken)),
// so the Task Router never has to know about provider descriptors,
// registries, or credentials.
type CloudAdapter struct {
	Registry *Registry
	Provider string
	Model    string
	Cred     Credential
}

// ChatStream satisfies taskrouter.CloudExecutor.
func (a *CloudAdapter) ChatStream(ctx context.Context, prompt string, onToken func(string)) error {
	req := models.ChatRequest{
		Model:    a.Model,
		Messages: []models.Message{{Role: "user", Content: prompt}},
	}
	return a.Registry.ChatStream(ctx, a.Provider, a.Cred, req, onToken)
}
