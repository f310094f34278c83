package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadzzz/bmo/internal/message"
)

func TestNewEvent(t *testing.T) {
	ev := message.NewEvent("http", 42, 99, "hello BMO")

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "http", ev.Channel)
	assert.Equal(t, int64(42), ev.SenderID)
	assert.Equal(t, int64(99), ev.ChatID)
	assert.False(t, ev.IsCommand)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEvent_Command(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/patrol", "patrol"},
		{"  /Patrol  ", "patrol"},
		{"/patrol@bmo_bot", "patrol"},
		{"/look now please", "look"},
		{"patrol", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ev := message.NewEvent("test", 1, 1, tt.text)
			assert.Equal(t, tt.want, ev.Command())
		})
	}
}

func TestInbound_Event(t *testing.T) {
	ev := message.Inbound{Text: "/status"}.Event("mqtt", 5)
	assert.Equal(t, int64(5), ev.SenderID)
	assert.Equal(t, int64(5), ev.ChatID)
	assert.Equal(t, "mqtt", ev.Channel)
	assert.True(t, ev.IsCommand)

	ev = message.Inbound{Text: "hi"}.Event("http", 8)
	assert.Equal(t, int64(8), ev.SenderID)
	assert.False(t, ev.IsCommand)
}
