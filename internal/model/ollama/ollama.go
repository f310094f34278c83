// Package ollama implements the model.Chat and model.Vision interfaces using
// self-hosted models.
//
// It speaks Ollama's native /api/chat endpoint by default and any
// OpenAI-compatible /v1/chat/completions endpoint (vLLM, llama.cpp server,
// LocalAI) when the configured endpoint ends in /v1.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
)

// Client talks to a self-hosted model server.
type Client struct {
	endpoint    string
	chatModel   string
	visionModel string
	compat      bool // OpenAI-compatible API instead of Ollama's native one
	client      *http.Client
}

// New creates a new Ollama client from config.
func New(cfg config.OllamaConfig) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "llama3.2:3b"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = "moondream"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint:    endpoint,
		chatModel:   chatModel,
		visionModel: visionModel,
		compat:      strings.HasSuffix(endpoint, "/v1"),
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns the backend identifier.
func (c *Client) Name() string { return "ollama" }

type chatMessage struct {
	Role    string   `json:"role"`
	Content any      `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Generate sends the system prompt and history to the chat model.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []message.Turn) (string, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: string(message.RoleSystem), Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	content, err := c.chat(ctx, c.chatModel, messages)
	if err != nil {
		return "", err
	}
	slog.Debug("chat generation complete", "model", c.chatModel, "turns", len(history), "reply_length", len(content))
	return content, nil
}

// GenerateFromImage asks the vision model about a JPEG image.
func (c *Client) GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	msg := chatMessage{Role: string(message.RoleUser), Content: prompt, Images: []string{encoded}}
	if c.compat {
		// OpenAI-compatible servers take images as data-URI content parts.
		msg = chatMessage{
			Role: string(message.RoleUser),
			Content: []map[string]any{
				{"type": "text", "text": prompt},
				{"type": "image_url", "image_url": map[string]string{"url": "data:image/jpeg;base64," + encoded}},
			},
		}
	}

	content, err := c.chat(ctx, c.visionModel, []chatMessage{msg})
	if err != nil {
		return "", err
	}
	slog.Debug("vision generation complete", "model", c.visionModel, "image_bytes", len(image))
	return content, nil
}

func (c *Client) chat(ctx context.Context, modelName string, messages []chatMessage) (string, error) {
	reqBody := map[string]any{
		"model":    modelName,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshalling request: %w", model.ErrModel, err)
	}

	endpoint := c.endpoint + "/api/chat"
	if c.compat {
		endpoint = c.endpoint + "/chat/completions"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", model.ErrModel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s request: %w", model.ErrModel, modelName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: %s failed (status %d): %s", model.ErrModel, modelName, resp.StatusCode, respBody)
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", model.ErrModel, err)
	}

	content := extractContent(respData)
	if content == "" {
		return "", fmt.Errorf("%w: empty response from %s", model.ErrModel, modelName)
	}
	return content, nil
}

// --- Internal helpers ---

func extractContent(data []byte) string {
	// Ollama format: {"message": {"content": "..."}}
	var ollamaResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Message.Content != "" {
		return strings.TrimSpace(ollamaResp.Message.Content)
	}

	// OpenAI-compatible format: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return strings.TrimSpace(chatResp.Choices[0].Message.Content)
	}

	return ""
}
