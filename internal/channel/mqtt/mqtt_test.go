package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
)

func TestDecodeInbound(t *testing.T) {
	ch := New(config.MQTTConfig{Topic: "bmo", Token: "s3cret"}, 42)

	ev, err := ch.decodeInbound([]byte(`{"token":"s3cret","text":"/stop"}`))
	require.NoError(t, err)
	assert.Equal(t, "mqtt", ev.Channel)
	assert.Equal(t, int64(42), ev.SenderID)
	assert.Equal(t, int64(42), ev.ChatID)
	assert.Equal(t, "stop", ev.Command())

	for name, payload := range map[string]string{
		"not json":     `stop`,
		"missing text": `{"token":"s3cret"}`,
		"blank text":   `{"token":"s3cret","text":" "}`,
	} {
		_, err := ch.decodeInbound([]byte(payload))
		assert.Error(t, err, name)
	}
}

func TestDecodeInbound_RequiresToken(t *testing.T) {
	ch := New(config.MQTTConfig{Topic: "bmo", Token: "s3cret"}, 42)

	for name, payload := range map[string]string{
		"no token":      `{"sender_id":42,"text":"/patrol"}`,
		"wrong token":   `{"token":"guess","sender_id":42,"text":"/patrol"}`,
		"claimed owner": `{"token":"","sender_id":42,"text":"/patrol"}`,
	} {
		_, err := ch.decodeInbound([]byte(payload))
		assert.ErrorIs(t, err, ErrUnauthorized, name)
	}

	open := New(config.MQTTConfig{Topic: "bmo"}, 42)
	_, err := open.decodeInbound([]byte(`{"token":"","text":"/patrol"}`))
	assert.ErrorIs(t, err, ErrUnauthorized, "empty configured token")
}

func TestDecodeInbound_IgnoresClaimedSender(t *testing.T) {
	ch := New(config.MQTTConfig{Topic: "bmo", Token: "s3cret"}, 42)

	ev, err := ch.decodeInbound([]byte(`{"token":"s3cret","sender_id":7,"chat_id":7,"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), ev.SenderID)
	assert.Equal(t, int64(42), ev.ChatID)
}

func TestEncodeOutbound(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encodeOutbound(message.Outbound{ChatID: 42, Image: []byte("jpg"), Caption: "hi", Timestamp: ts})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "anBn", got["image"])
	assert.Equal(t, "hi", got["caption"])
	assert.NotContains(t, got, "text")
}

func TestSend_NotConnected(t *testing.T) {
	ch := New(config.MQTTConfig{Broker: "tcp://localhost:1", Topic: "bmo"}, 42)

	err := ch.SendText(context.Background(), 1, "hello")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, "bmo/in", ch.inTopic())
	assert.Equal(t, "bmo/out", ch.outTopic())
	assert.NoError(t, ch.Close())
}
