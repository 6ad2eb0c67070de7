package providers

import (
	"context"
	"testing"

	"github.com/agentrt/runtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "anthropic")
	assert.Contains(t, names, "ollama")
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Chat(context.Background(), "nonexistent", Credential{}, models.ChatRequest{})
	require.Error(t, err)
	var uerr *UnknownProviderError
	require.ErrorAs(t, err, &uerr)
}
