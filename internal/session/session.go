// Package session holds the operator-facing conversation state shared by the
// dispatcher, the chat handler and the patrol controller.
package session

import (
	"slices"
	"sync"

	"github.com/nadzzz/bmo/internal/i18n"
	"github.com/nadzzz/bmo/internal/message"
)

// DefaultHistoryLimit is the number of conversation turns retained.
const DefaultHistoryLimit = 10

// State is the single process-wide session. It is safe for concurrent use.
type State struct {
	operator int64
	limit    int

	mu       sync.RWMutex
	language i18n.Language
	history  []message.Turn
}

// New creates a session for the given authorized operator. A non-positive
// limit falls back to DefaultHistoryLimit.
func New(operator int64, limit int) *State {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &State{
		operator: operator,
		limit:    limit,
		language: i18n.Primary,
	}
}

// Operator returns the authorized operator id.
func (s *State) Operator() int64 {
	return s.operator
}

// Authorized reports whether sender is the authorized operator.
func (s *State) Authorized(sender int64) bool {
	return sender == s.operator
}

// Language returns the current display language.
func (s *State) Language() i18n.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// ToggleLanguage switches the display language and returns the new value.
func (s *State) ToggleLanguage() i18n.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = s.language.Toggle()
	return s.language
}

// Append adds a turn and drops the oldest turns beyond the limit.
func (s *State) Append(turn message.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
	if over := len(s.history) - s.limit; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
}

// History returns a copy of the retained turns, oldest first.
func (s *State) History() []message.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Reset clears the conversation history.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
