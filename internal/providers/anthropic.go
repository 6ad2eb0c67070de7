package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentrt/runtime/internal/models"
)

const anthropicDefaultMaxTokens = 4096

type anthropicChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	System    string          `json:"system,omitempty"`
	MaxTokens int             `json:"max_tokens"`
	Stream    bool            `json:"stream,omitempty"`
}

type anthropicChatResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func anthropicDescriptor() Descriptor {
	return Descriptor{
		Name:     "anthropic",
		BaseURL:  "https://api.anthropic.com",
		ChatPath: "/v1/messages",
		BuildHeaders: func(cred Credential) http.Header {
			h := make(http.Header)
			h.Set("Content-Type", "application/json")
			h.Set("x-api-key", cred.APIKey)
			h.Set("anthropic-version", "2023-06-01")
			return h
		},
		BuildChatRequest: func(req models.ChatRequest, stream bool) ([]byte, error) {
			system, history, lastUser := NormalizeMessages(req.Messages)
			msgs := make([]openAIMessage, 0, len(history)+1)
			for _, m := range history {
				msgs = append(msgs, openAIMessage{Role: m.Role, Content: m.Content})
			}
			if lastUser != "" {
				msgs = append(msgs, openAIMessage{Role: "user", Content: lastUser})
			}
			return json.Marshal(anthropicChatRequest{
				Model:     req.Model,
				Messages:  msgs,
				System:    system,
				MaxTokens: anthropicDefaultMaxTokens,
				Stream:    stream,
			})
		},
		ParseChatResponse: func(body []byte) (models.ChatResponse, error) {
			var r anthropicChatResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return models.ChatResponse{}, fmt.Errorf("anthropic: decode response: %w", err)
			}
			content := ""
			for _, c := range r.Content {
				if c.Type == "text" {
					content += c.Text
				}
			}
			return models.ChatResponse{Provider: "anthropic", Content: content}, nil
		},
		ParseStreamLine: func(line []byte) (StreamFrame, bool) {
			data, ok := sseData(line)
			if !ok || data == "" {
				return StreamFrame{}, false
			}
			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return StreamFrame{}, false
			}
			switch ev.Type {
			case "message_stop":
				return StreamFrame{Done: true}, true
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" {
					return StreamFrame{Token: ev.Delta.Text}, true
				}
			}
			return StreamFrame{}, false
		},
	}
}

// NewAnthropicDriver builds the Anthropic provider driver.
func NewAnthropicDriver() Driver { return newDriver(anthropicDescriptor()) }
