// Package model defines the language model capabilities bmo relies on.
//
// Chat and vision are separate interfaces: a deployment can run a small chat
// model and a dedicated vision model, and a failure in one never affects the
// other. bmo ships two backends: Ollama (self-hosted, also any
// OpenAI-compatible server) and Gemini.
package model

import (
	"context"
	"errors"

	"github.com/nadzzz/bmo/internal/message"
)

// ErrModel wraps every backend failure.
var ErrModel = errors.New("model error")

// Chat produces the assistant's next turn in a conversation.
type Chat interface {
	// Generate returns a reply given a system prompt and the conversation so far.
	Generate(ctx context.Context, systemPrompt string, history []message.Turn) (string, error)
}

// Vision describes images.
type Vision interface {
	// GenerateFromImage returns the model's answer to prompt about a JPEG image.
	GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error)
}
