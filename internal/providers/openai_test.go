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

func TestOpenAIDriver_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"abc","choices":[{"message":{"content":"hi there"}}]}`))
	}))
	defer srv.Close()

	d := NewOpenAIDriver()
	resp, err := d.Chat(context.Background(), Credential{APIKey: "test-key", Endpoint: srv.URL}, models.ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []models.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
}

func TestOpenAIDriver_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: not-json-garbage\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	d := NewOpenAIDriver()
	var got string
	err := d.ChatStream(context.Background(), Credential{APIKey: "k", Endpoint: srv.URL}, models.ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []models.Message{{Role: "user", Content: "hi"}},
	}, func(tok string) { got += tok })
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAIDriver_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	d := NewOpenAIDriver()
	ms, err := d.ListModels(context.Background(), Credential{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "gpt-4o", ms[0].ID)
}

func TestOpenAIDriver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	d := NewOpenAIDriver()
	_, err := d.Chat(context.Background(), Credential{APIKey: "bad", Endpoint: srv.URL}, models.ChatRequest{Model: "gpt-4o"})
	require.Error(t, err)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}
