// Package gemini implements the model.Chat and model.Vision interfaces using
// Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
)

// Client uses the Gemini API for chat and image description.
type Client struct {
	client      *genai.Client
	chatModel   string
	visionModel string
}

// New creates a Gemini client from config.
func New(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api_key", config.ErrMissingCredential)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gemini-2.5-flash"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = chatModel
	}
	return &Client{client: client, chatModel: chatModel, visionModel: visionModel}, nil
}

// Name returns the backend identifier.
func (c *Client) Name() string { return "gemini" }

// Generate sends the conversation to the chat model with systemPrompt as the
// system instruction.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []message.Turn) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, Contents(history), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini %s: %w", model.ErrModel, c.chatModel, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", model.ErrModel, c.chatModel)
	}
	slog.Debug("gemini chat complete", "model", c.chatModel, "turns", len(history))
	return text, nil
}

// GenerateFromImage asks the vision model about a JPEG image.
func (c *Client) GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, "image/jpeg"),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.visionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini %s: %w", model.ErrModel, c.visionModel, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", model.ErrModel, c.visionModel)
	}
	return text, nil
}

// Contents converts conversation turns into Gemini contents. Assistant turns
// map to the "model" role.
func Contents(history []message.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == message.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, genai.Role(role)))
	}
	return contents
}
