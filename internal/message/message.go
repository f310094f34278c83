// Package message defines the core data types flowing through the bmo pipeline.
package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Event is an inbound message from any channel.
type Event struct {
	// ID is a unique identifier for this event (UUID).
	ID string `json:"id"`

	// Channel names the channel that received the event (e.g., "telegram", "http").
	// Replies are sent back through the same channel.
	Channel string `json:"channel"`

	// SenderID identifies the user who sent the event.
	SenderID int64 `json:"sender_id"`

	// ChatID is the conversation the reply should be delivered to.
	ChatID int64 `json:"chat_id"`

	// Text is the raw message text, including the leading slash for commands.
	Text string `json:"text"`

	// IsCommand is true when the text is a bot command ("/patrol").
	IsCommand bool `json:"is_command"`

	// Timestamp is when the event was received by bmo.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an Event from raw text, detecting commands by their leading slash.
func NewEvent(channel string, senderID, chatID int64, text string) Event {
	return Event{
		ID:        uuid.NewString(),
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Text:      text,
		IsCommand: strings.HasPrefix(strings.TrimSpace(text), "/"),
		Timestamp: time.Now(),
	}
}

// Command returns the command name without the slash, bot suffix, or arguments.
// "/patrol@bmo_bot now" yields "patrol". Returns "" for non-command events.
func (e Event) Command() string {
	if !e.IsCommand {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(e.Text))
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// Outbound is a message bmo sends to the operator on channels that carry
// JSON payloads (HTTP, MQTT). Image is base64-encoded when marshalled.
type Outbound struct {
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text,omitempty"`
	Image     []byte    `json:"image,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound is the JSON body operator clients submit on HTTP and MQTT. It
// carries no sender: the channel authenticates the client and attributes
// the message to the operator.
type Inbound struct {
	Text string `json:"text"`
}

// Event converts the payload into an Event from operator, received on the
// named channel. Replies go to the operator's own chat.
func (in Inbound) Event(channel string, operator int64) Event {
	return NewEvent(channel, operator, operator, in.Text)
}
