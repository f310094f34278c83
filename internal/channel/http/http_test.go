package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpchannel "github.com/nadzzz/bmo/internal/channel/http"
	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
)

const (
	operator = int64(42)
	token    = "s3cret"
)

func newChannel(outboxSize int) *httpchannel.Channel {
	return httpchannel.New(config.HTTPConfig{OutboxSize: outboxSize, Token: token}, operator)
}

func do(t *testing.T, method, url, bearer string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestPostMessage_Enqueues(t *testing.T) {
	ch := newChannel(10)
	events := make(chan message.Event, 1)
	srv := httptest.NewServer(ch.Handler(events))
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/messages", token, strings.NewReader(`{"text":"/patrol"}`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))

	ev := <-events
	assert.Equal(t, accepted.ID, ev.ID)
	assert.Equal(t, "http", ev.Channel)
	assert.Equal(t, operator, ev.SenderID)
	assert.Equal(t, operator, ev.ChatID)
	assert.Equal(t, "patrol", ev.Command())
}

func TestPostMessage_IgnoresClaimedSender(t *testing.T) {
	ch := newChannel(10)
	events := make(chan message.Event, 1)
	srv := httptest.NewServer(ch.Handler(events))
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/messages", token,
		strings.NewReader(`{"sender_id":7,"chat_id":7,"text":"hi"}`))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := <-events
	assert.Equal(t, operator, ev.SenderID)
	assert.Equal(t, operator, ev.ChatID)
}

func TestPostMessage_RequiresToken(t *testing.T) {
	ch := newChannel(10)
	events := make(chan message.Event, 1)
	srv := httptest.NewServer(ch.Handler(events))
	defer srv.Close()

	for name, bearer := range map[string]string{
		"no token":    "",
		"wrong token": "guess",
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/messages", bearer,
				strings.NewReader(`{"sender_id":42,"text":"/patrol"}`))
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
		})
	}
	assert.Empty(t, events)
}

func TestChannel_EmptyTokenRejectsAll(t *testing.T) {
	ch := httpchannel.New(config.HTTPConfig{}, operator)
	srv := httptest.NewServer(ch.Handler(make(chan message.Event, 1)))
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/messages", "", strings.NewReader(`{"text":"hi"}`))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostMessage_BadRequests(t *testing.T) {
	ch := newChannel(10)
	srv := httptest.NewServer(ch.Handler(make(chan message.Event, 1)))
	defer srv.Close()

	for name, body := range map[string]string{
		"invalid json": `{"text":`,
		"missing text": `{}`,
		"blank text":   `{"text":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/messages", token, strings.NewReader(body))
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetMessages_Drains(t *testing.T) {
	ch := newChannel(10)
	srv := httptest.NewServer(ch.Handler(make(chan message.Event)))
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, ch.SendText(ctx, operator, "WARNING: Intruder is still here!"))
	require.NoError(t, ch.SendPhoto(ctx, operator, []byte{1, 2, 3}, "a cat"))

	resp := do(t, http.MethodGet, srv.URL+"/messages", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []message.Outbound
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, "WARNING: Intruder is still here!", out[0].Text)
	assert.Equal(t, []byte{1, 2, 3}, out[1].Image)
	assert.Equal(t, "a cat", out[1].Caption)

	assert.Empty(t, ch.Drain())
}

func TestGetMessages_RequiresToken(t *testing.T) {
	ch := newChannel(10)
	srv := httptest.NewServer(ch.Handler(make(chan message.Event)))
	defer srv.Close()

	require.NoError(t, ch.SendText(context.Background(), operator, "Intruder alert!"))

	resp := do(t, http.MethodGet, srv.URL+"/messages", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	out := ch.Drain()
	require.Len(t, out, 1, "rejected drain must leave the outbox alone")
	assert.Equal(t, "Intruder alert!", out[0].Text)
}

func TestOutbox_DropsOldest(t *testing.T) {
	ch := newChannel(2)
	ctx := context.Background()
	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, ch.SendText(ctx, 1, s))
	}

	out := ch.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, "two", out[0].Text)
	assert.Equal(t, "three", out[1].Text)
}

func TestSwaggerDoc(t *testing.T) {
	ch := newChannel(10)
	srv := httptest.NewServer(ch.Handler(make(chan message.Event)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc["paths"], "/messages")
}
