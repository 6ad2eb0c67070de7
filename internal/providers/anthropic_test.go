package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentrt/runtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicDriver_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"hello"}]}`))
	}))
	defer srv.Close()

	d := NewAnthropicDriver()
	resp, err := d.Chat(context.Background(), Credential{APIKey: "test-key", Endpoint: srv.URL}, models.ChatRequest{
		Model:    "claude-3-5-haiku",
		Messages: []models.Message{{Role: "system", Content: "be terse"}, {Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
}

func TestAnthropicDriver_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"a\"}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"b\"}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	d := NewAnthropicDriver()
	var got string
	err := d.ChatStream(context.Background(), Credential{APIKey: "k", Endpoint: srv.URL}, models.ChatRequest{
		Model:    "claude-3-5-haiku",
		Messages: []models.Message{{Role: "user", Content: "hi"}},
	}, func(tok string) { got += tok })
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}
