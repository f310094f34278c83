package gemini_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model/gemini"
)

func TestContents_Roles(t *testing.T) {
	got := gemini.Contents([]message.Turn{
		{Role: message.RoleUser, Content: "hi"},
		{Role: message.RoleAssistant, Content: "hello admin"},
	})

	require.Len(t, got, 2)
	assert.EqualValues(t, genai.RoleUser, got[0].Role)
	assert.EqualValues(t, genai.RoleModel, got[1].Role)
	require.Len(t, got[1].Parts, 1)
	assert.Equal(t, "hello admin", got[1].Parts[0].Text)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := gemini.New(context.Background(), config.GeminiConfig{})

	assert.ErrorIs(t, err, config.ErrMissingCredential)
}
