package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentrt/runtime/internal/models"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func openAIDescriptor() Descriptor {
	return Descriptor{
		Name:       "openai",
		BaseURL:    "https://api.openai.com/v1",
		ModelsPath: "/models",
		ChatPath:   "/chat/completions",
		BuildHeaders: func(cred Credential) http.Header {
			h := make(http.Header)
			h.Set("Content-Type", "application/json")
			h.Set("Authorization", "Bearer "+cred.APIKey)
			return h
		},
		BuildChatRequest: func(req models.ChatRequest, stream bool) ([]byte, error) {
			msgs := make([]openAIMessage, len(req.Messages))
			for i, m := range req.Messages {
				msgs[i] = openAIMessage{Role: m.Role, Content: m.Content}
			}
			return json.Marshal(openAIChatRequest{Model: req.Model, Messages: msgs, Stream: stream})
		},
		ParseChatResponse: func(body []byte) (models.ChatResponse, error) {
			var r openAIChatResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return models.ChatResponse{}, fmt.Errorf("openai: decode response: %w", err)
			}
			content := ""
			if len(r.Choices) > 0 {
				content = r.Choices[0].Message.Content
			}
			return models.ChatResponse{Provider: "openai", Content: content}, nil
		},
		ParseStreamLine: func(line []byte) (StreamFrame, bool) {
			data, ok := sseData(line)
			if !ok {
				return StreamFrame{}, false
			}
			if data == "[DONE]" {
				return StreamFrame{Done: true}, true
			}
			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return StreamFrame{}, false
			}
			if len(chunk.Choices) == 0 {
				return StreamFrame{}, false
			}
			return StreamFrame{Token: chunk.Choices[0].Delta.Content}, true
		},
		ParseModelsResponse: func(body []byte) ([]models.ModelInfo, error) {
			var r struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, fmt.Errorf("openai: decode models: %w", err)
			}
			out := make([]models.ModelInfo, len(r.Data))
			for i, m := range r.Data {
				out[i] = models.ModelInfo{ID: m.ID, Provider: "openai"}
			}
			return out, nil
		},
	}
}

// NewOpenAIDriver builds the OpenAI provider driver.
func NewOpenAIDriver() Driver { return newDriver(openAIDescriptor()) }

// NewOllamaDriver builds a driver for a local Ollama instance, which
// speaks the OpenAI-compatible chat-completions shape on its own port.
func NewOllamaDriver() Driver {
	desc := openAIDescriptor()
	desc.Name = "ollama"
	desc.BaseURL = "http://localhost:11434/v1"
	desc.BuildHeaders = func(cred Credential) http.Header {
		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		return h
	}
	desc.ParseChatResponse = func(body []byte) (models.ChatResponse, error) {
		var r openAIChatResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return models.ChatResponse{}, fmt.Errorf("ollama: decode response: %w", err)
		}
		content := ""
		if len(r.Choices) > 0 {
			content = r.Choices[0].Message.Content
		}
		return models.ChatResponse{Provider: "ollama", Content: content}, nil
	}
	return newDriver(desc)
}
