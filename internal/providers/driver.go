package providers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentrt/runtime/internal/models"
)

// genericDriver implements Driver on top of a Descriptor. All three
// built-in providers (OpenAI, Anthropic, Ollama) are this same type with
// different descriptors; there is no per-provider struct hierarchy.
type genericDriver struct {
	desc   Descriptor
	client *http.Client
}

// newDriver builds a Driver from a descriptor, defaulting the HTTP client
// the way router.go's ModelRouter does (a single shared client with a
// generous timeout, since cloud completions can run long).
func newDriver(desc Descriptor) Driver {
	return &genericDriver{
		desc: desc,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (d *genericDriver) Name() string { return d.desc.Name }

func (d *genericDriver) ListModels(ctx context.Context, cred Credential) ([]models.ModelInfo, error) {
	if d.desc.ModelsPath == "" {
		return nil, nil
	}
	base := cred.Endpoint
	if base == "" {
		base = d.desc.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+d.desc.ModelsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build models request: %w", d.desc.Name, err)
	}
	req.Header = d.desc.BuildHeaders(cred)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: models request failed: %w", d.desc.Name, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: d.desc.Name, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return d.desc.ParseModelsResponse(body)
}

func (d *genericDriver) Chat(ctx context.Context, cred Credential, creq models.ChatRequest) (models.ChatResponse, error) {
	base := cred.Endpoint
	if base == "" {
		base = d.desc.BaseURL
	}
	body, err := d.desc.BuildChatRequest(creq, false)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("%s: build request: %w", d.desc.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+d.desc.ChatPath, bytes.NewReader(body))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("%s: build http request: %w", d.desc.Name, err)
	}
	httpReq.Header = d.desc.BuildHeaders(cred)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("%s: request failed: %w", d.desc.Name, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return models.ChatResponse{}, &ProviderError{Provider: d.desc.Name, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return d.desc.ParseChatResponse(respBody)
}

// ChatStream reads a server-sent-events style response line by line,
// handing each parsed token to onToken. Lines that don't parse as a
// recognizable frame are skipped rather than aborting the stream — a
// provider occasionally sends keep-alive or comment lines that carry no
// token.
func (d *genericDriver) ChatStream(ctx context.Context, cred Credential, creq models.ChatRequest, onToken func(string)) error {
	base := cred.Endpoint
	if base == "" {
		base = d.desc.BaseURL
	}
	body, err := d.desc.BuildChatRequest(creq, true)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", d.desc.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+d.desc.ChatPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build http request: %w", d.desc.Name, err)
	}
	httpReq.Header = d.desc.BuildHeaders(cred)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", d.desc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &ProviderError{Provider: d.desc.Name, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, ok := d.desc.ParseStreamLine(line)
		if !ok {
			continue
		}
		if frame.Done {
			return nil
		}
		if frame.Token != "" {
			onToken(frame.Token)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: stream read: %w", d.desc.Name, err)
	}
	return nil
}

// sseData strips a leading "data: " prefix from a raw SSE line, reporting
// whether the line carried one at all.
func sseData(line []byte) (string, bool) {
	s := strings.TrimSpace(string(line))
	const prefix = "data:"
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}
