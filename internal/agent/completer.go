// ABOUTME: Completer interface plus the OpenAI-compatible HTTP client and echo fallback.
// ABOUTME: The only place that talks to an LLM endpoint; everything else sees the interface.

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bluepigwx/agentlite/internal/store"
)

// Completer produces one assistant reply given the system prompt, prior
// history, and the new user message.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []store.Message, userMessage string) (string, error)
}

// EchoCompleter replies with the user's message. Lets the gateway run end to
// end without any model endpoint.
type EchoCompleter struct{}

// Complete implements Completer.
func (e *EchoCompleter) Complete(_ context.Context, _ string, _ []store.Message, userMessage string) (string, error) {
	return "echo: " + userMessage, nil
}

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint
// (vLLM, Ollama, LocalAI and friends speak the same dialect).
type OpenAICompleter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAICompleter creates a completer for the given endpoint and model.
func NewOpenAICompleter(baseURL, apiKey, model string) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, history []store.Message, userMessage string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: store.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: store.RoleUser, Content: userMessage})

	body, err := json.Marshal(chatRequest{Model: o.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding model response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model endpoint error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model endpoint returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
