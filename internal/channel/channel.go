// Package channel defines the interface for pluggable operator messaging channels.
//
// Each channel (Telegram, HTTP, MQTT) implements this interface. Channels only
// enqueue inbound events; the dispatcher consumes them one at a time and
// replies through the channel the event arrived on.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/bmo/internal/message"
)

// Sender pushes outbound messages to the operator.
type Sender interface {
	// SendText delivers a text message to chatID.
	SendText(ctx context.Context, chatID int64, text string) error

	// SendPhoto delivers a JPEG image with a caption to chatID.
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
}

// Channel is the interface that every messaging channel must implement.
type Channel interface {
	Sender

	// Name returns the channel identifier (e.g., "telegram", "http", "mqtt").
	Name() string

	// Listen receives operator messages and enqueues them on events.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, events chan<- message.Event) error

	// Close gracefully shuts down the channel.
	Close() error
}

// Typer is implemented by channels that can show a "typing…" indicator.
type Typer interface {
	SendTyping(ctx context.Context, chatID int64) error
}

// Broadcast sends every message through all of its senders. It is used for
// messages that are not replies, such as patrol alerts.
type Broadcast []Sender

// SendText delivers text through every sender and joins their errors.
func (b Broadcast) SendText(ctx context.Context, chatID int64, text string) error {
	var errs []error
	for _, s := range b {
		if err := s.SendText(ctx, chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nameOf(s), err))
		}
	}
	return errors.Join(errs...)
}

// SendPhoto delivers a photo through every sender and joins their errors.
func (b Broadcast) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	var errs []error
	for _, s := range b {
		if err := s.SendPhoto(ctx, chatID, image, caption); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nameOf(s), err))
		}
	}
	return errors.Join(errs...)
}

func nameOf(s Sender) string {
	if c, ok := s.(interface{ Name() string }); ok {
		return c.Name()
	}
	return fmt.Sprintf("%T", s)
}
