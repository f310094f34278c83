// Package chat implements bmo's conversational replies.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/bmo/internal/i18n"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
	"github.com/nadzzz/bmo/internal/session"
)

// Handler turns operator text into BMO's reply, keeping the session history.
type Handler struct {
	model   model.Chat
	session *session.State
}

// New creates a Handler.
func New(m model.Chat, s *session.State) *Handler {
	return &Handler{model: m, session: s}
}

// Reply records text as a user turn, asks the model for an answer in the
// session language, and records the answer. On failure the user turn stays
// in the history and the error wraps model.ErrModel.
func (h *Handler) Reply(ctx context.Context, text string) (string, error) {
	start := time.Now()
	h.session.Append(message.Turn{Role: message.RoleUser, Content: text})

	lang := h.session.Language()
	prompt := i18n.T(lang, i18n.KeyPersona, lang.String())

	reply, err := h.model.Generate(ctx, prompt, h.session.History())
	if err != nil {
		if !errors.Is(err, model.ErrModel) {
			err = fmt.Errorf("%w: %w", model.ErrModel, err)
		}
		return "", err
	}

	h.session.Append(message.Turn{Role: message.RoleAssistant, Content: reply})
	slog.Debug("chat reply generated", "language", lang, "reply_length", len(reply), "duration", time.Since(start))
	return reply, nil
}
