package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
	"github.com/nadzzz/bmo/internal/model/ollama"
)

type capturedRequest struct {
	Model    string           `json:"model"`
	Stream   bool             `json:"stream"`
	Messages []map[string]any `json:"messages"`
}

func newServer(t *testing.T, path string, reply string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_Native(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, "/api/chat", `{"message":{"role":"assistant","content":" Hi admin! "}}`, &got)

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL, ChatModel: "llama3.2:3b"})
	reply, err := c.Generate(context.Background(), "You are BMO.", []message.Turn{
		{Role: message.RoleUser, Content: "hello"},
		{Role: message.RoleAssistant, Content: "hey"},
		{Role: message.RoleUser, Content: "how are you"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi admin!", reply)
	assert.Equal(t, "llama3.2:3b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0]["role"])
	assert.Equal(t, "You are BMO.", got.Messages[0]["content"])
	assert.Equal(t, "how are you", got.Messages[3]["content"])
}

func TestGenerateFromImage_Native(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, "/api/chat", `{"message":{"content":"A cozy room."}}`, &got)

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL, VisionModel: "moondream"})
	reply, err := c.GenerateFromImage(context.Background(), "Describe the room", []byte("jpeg"))

	require.NoError(t, err)
	assert.Equal(t, "A cozy room.", reply)
	assert.Equal(t, "moondream", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []any{"anBlZw=="}, got.Messages[0]["images"])
}

func TestGenerate_OpenAICompatible(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, "/v1/chat/completions", `{"choices":[{"message":{"content":"compat reply"}}]}`, &got)

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL + "/v1"})
	reply, err := c.Generate(context.Background(), "sys", []message.Turn{{Role: message.RoleUser, Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "compat reply", reply)
}

func TestGenerateFromImage_OpenAICompatible(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, "/v1/chat/completions", `{"choices":[{"message":{"content":"a desk"}}]}`, &got)

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL + "/v1"})
	_, err := c.GenerateFromImage(context.Background(), "what is this", []byte("jpeg"))

	require.NoError(t, err)
	parts, ok := got.Messages[0]["content"].([]any)
	require.True(t, ok, "content should be a list of parts")
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", img["url"])
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL})
	_, err := c.Generate(context.Background(), "sys", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "404")
}

func TestGenerate_EmptyReply(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, "/api/chat", `{"message":{"content":""}}`, &got)

	c := ollama.New(config.OllamaConfig{Endpoint: srv.URL})
	_, err := c.Generate(context.Background(), "sys", nil)

	assert.ErrorIs(t, err, model.ErrModel)
}
