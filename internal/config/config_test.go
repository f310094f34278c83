package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/bmo/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "ollama", cfg.Model.Backend)
	assert.Equal(t, "llama3.2:3b", cfg.Model.Ollama.ChatModel)
	assert.Equal(t, "moondream", cfg.Model.Ollama.VisionModel)
	assert.Equal(t, 5*time.Second, cfg.Patrol.SampleInterval)
	assert.Equal(t, 10*time.Second, cfg.Patrol.AlertInterval)
	assert.Equal(t, 10*time.Second, cfg.Patrol.ErrorBackoff)
	assert.Equal(t, []string{"okay, i'm back", "i am back", "it's me"}, cfg.Patrol.ConfirmPhrases)
	assert.Equal(t, []string{"admin.jpg"}, cfg.Vision.Enrolled)
	assert.Equal(t, 10, cfg.Session.HistoryLimit)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_ID", "123456789")
	t.Setenv("TELEGRAM_TOKEN", "tg-secret")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(123456789), cfg.Operator.ID)
	assert.Equal(t, "tg-secret", cfg.Channels.Telegram.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ADMIN_ID=42\nTELEGRAM_TOKEN=from-dotenv\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ADMIN_ID")
		os.Unsetenv("TELEGRAM_TOKEN")
	})

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Operator.ID)
	assert.Equal(t, "from-dotenv", cfg.Channels.Telegram.Token)
}

func TestLoad_FileAndPrefixedEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bmo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
operator:
  id: 7
channels:
  telegram:
    enabled: false
  http:
    enabled: true
    port: 9090
    token: ${TEST_HTTP_TOKEN}
model:
  backend: gemini
  gemini:
    api_key: ${TEST_GEMINI_KEY}
patrol:
  sample_interval: 2s
`), 0o600))
	t.Setenv("TEST_GEMINI_KEY", "gm-key")
	t.Setenv("TEST_HTTP_TOKEN", "http-secret")
	t.Setenv("BMO_PATROL_ALERT_INTERVAL", "3s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Operator.ID)
	assert.False(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, 9090, cfg.Channels.HTTP.Port)
	assert.Equal(t, "http-secret", cfg.Channels.HTTP.Token)
	assert.Equal(t, "gm-key", cfg.Model.Gemini.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Patrol.SampleInterval)
	assert.Equal(t, 3*time.Second, cfg.Patrol.AlertInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bmo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operator: ["), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func validConfig() config.Config {
	return config.Config{
		Operator: config.OperatorConfig{ID: 1},
		Channels: config.ChannelsConfig{Telegram: config.TelegramConfig{Enabled: true, Token: "t"}},
		Model:    config.ModelConfig{Backend: "ollama"},
		Patrol: config.PatrolConfig{
			SampleInterval: time.Second,
			AlertInterval:  time.Second,
			ErrorBackoff:   time.Second,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		credential bool
	}{
		{"missing operator", func(c *config.Config) { c.Operator.ID = 0 }, true},
		{"missing telegram token", func(c *config.Config) { c.Channels.Telegram.Token = "" }, true},
		{"gemini without key", func(c *config.Config) { c.Model.Backend = "gemini" }, true},
		{"http without token", func(c *config.Config) { c.Channels.HTTP.Enabled = true }, true},
		{"mqtt without token", func(c *config.Config) { c.Channels.MQTT.Enabled = true }, true},
		{"no channels", func(c *config.Config) { c.Channels.Telegram.Enabled = false }, false},
		{"unknown backend", func(c *config.Config) { c.Model.Backend = "gpt" }, false},
		{"zero interval", func(c *config.Config) { c.Patrol.AlertInterval = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.credential, errorIsCredential(err))
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func errorIsCredential(err error) bool {
	return errors.Is(err, config.ErrMissingCredential)
}
