// Package config handles loading and validating the bmo configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when a required startup credential is absent.
var ErrMissingCredential = errors.New("missing required credential")

// Config is the root configuration for the bmo daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Operator OperatorConfig `mapstructure:"operator"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Model    ModelConfig    `mapstructure:"model"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Patrol   PatrolConfig   `mapstructure:"patrol"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int        `mapstructure:"health_port"`
	GRPC       GRPCConfig `mapstructure:"grpc"`
}

// GRPCConfig configures the gRPC health service.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// OperatorConfig identifies the single authorized user.
type OperatorConfig struct {
	ID int64 `mapstructure:"id"`
}

// ChannelsConfig holds the configuration for each messaging channel.
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"` // long-poll seconds
	APIEndpoint string `mapstructure:"api_endpoint"` // e.g. a local Bot API server; format "<base>/bot%s/%s"
}

// HTTPConfig configures the local HTTP channel.
type HTTPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Port       int    `mapstructure:"port"`
	OutboxSize int    `mapstructure:"outbox_size"`
	Token      string `mapstructure:"token"` // bearer token required on every request
}

// MQTTConfig configures the MQTT channel.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"` // base topic; inbound on <topic>/in, outbound on <topic>/out
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"` // shared secret every inbound payload must carry
}

// ModelConfig selects and configures the language model backend.
type ModelConfig struct {
	Backend string       `mapstructure:"backend"` // "ollama" or "gemini"
	Ollama  OllamaConfig `mapstructure:"ollama"`
	Gemini  GeminiConfig `mapstructure:"gemini"`
}

// OllamaConfig holds self-hosted model settings.
type OllamaConfig struct {
	Endpoint    string        `mapstructure:"endpoint"` // base URL; ending in /v1 selects the OpenAI-compatible API
	ChatModel   string        `mapstructure:"chat_model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey      string `mapstructure:"api_key"`
	ChatModel   string `mapstructure:"chat_model"`
	VisionModel string `mapstructure:"vision_model"`
}

// CameraConfig configures still capture.
type CameraConfig struct {
	Command string        `mapstructure:"command"` // "rpicam-still" or "libcamera-still"
	Width   int           `mapstructure:"width"`
	Height  int           `mapstructure:"height"`
	Warmup  time.Duration `mapstructure:"warmup"`
	Dir     string        `mapstructure:"dir"`
}

// VisionConfig configures face recognition.
type VisionConfig struct {
	ModelsDir string   `mapstructure:"models_dir"`
	Enrolled  []string `mapstructure:"enrolled"` // image files of known faces
	Tolerance float64  `mapstructure:"tolerance"`
}

// PatrolConfig configures the security patrol.
type PatrolConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	AlertInterval  time.Duration `mapstructure:"alert_interval"`
	ErrorBackoff   time.Duration `mapstructure:"error_backoff"`
	ConfirmPhrases []string      `mapstructure:"confirm_phrases"`
}

// SessionConfig configures the conversation session.
type SessionConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from a .env file, config file, environment
// variables, and defaults. If configFile is non-empty it is used directly;
// otherwise the standard search order applies: ./bmo.yaml, ./configs/bmo.yaml,
// /etc/bmo/bmo.yaml.
func Load(configFile string) (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.grpc.enabled", false)
	v.SetDefault("server.grpc.port", 50051)
	v.SetDefault("operator.id", 0)
	v.SetDefault("channels.telegram.enabled", true)
	v.SetDefault("channels.telegram.token", "")
	v.SetDefault("channels.telegram.poll_timeout", 60)
	v.SetDefault("channels.telegram.api_endpoint", "")
	v.SetDefault("channels.http.enabled", false)
	v.SetDefault("channels.http.port", 8080)
	v.SetDefault("channels.http.outbox_size", 100)
	v.SetDefault("channels.http.token", "")
	v.SetDefault("channels.mqtt.enabled", false)
	v.SetDefault("channels.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("channels.mqtt.topic", "bmo")
	v.SetDefault("channels.mqtt.client_id", "bmo")
	v.SetDefault("channels.mqtt.username", "")
	v.SetDefault("channels.mqtt.password", "")
	v.SetDefault("channels.mqtt.token", "")
	v.SetDefault("model.backend", "ollama")
	v.SetDefault("model.ollama.endpoint", "http://localhost:11434")
	v.SetDefault("model.ollama.chat_model", "llama3.2:3b")
	v.SetDefault("model.ollama.vision_model", "moondream")
	v.SetDefault("model.ollama.timeout", "120s")
	v.SetDefault("model.gemini.api_key", "")
	v.SetDefault("model.gemini.chat_model", "gemini-2.5-flash")
	v.SetDefault("model.gemini.vision_model", "gemini-2.5-flash")
	v.SetDefault("camera.command", "rpicam-still")
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.warmup", "1s")
	v.SetDefault("camera.dir", "")
	v.SetDefault("vision.models_dir", "models")
	v.SetDefault("vision.enrolled", []string{"admin.jpg"})
	v.SetDefault("vision.tolerance", 0.6)
	v.SetDefault("patrol.sample_interval", "5s")
	v.SetDefault("patrol.alert_interval", "10s")
	v.SetDefault("patrol.error_backoff", "10s")
	v.SetDefault("patrol.confirm_phrases", []string{"okay, i'm back", "i am back", "it's me"})
	v.SetDefault("session.history_limit", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("bmo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bmo")
	}

	// Environment variables: BMO_OPERATOR_ID, BMO_MODEL_BACKEND, etc.
	v.SetEnvPrefix("BMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy .env names (TELEGRAM_TOKEN, ADMIN_ID) keep working.
	_ = v.BindEnv("operator.id", "BMO_OPERATOR_ID", "ADMIN_ID")
	_ = v.BindEnv("channels.telegram.token", "BMO_CHANNELS_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GEMINI_API_KEY}")
	cfg.Channels.Telegram.Token = resolveEnvRef(cfg.Channels.Telegram.Token)
	cfg.Channels.HTTP.Token = resolveEnvRef(cfg.Channels.HTTP.Token)
	cfg.Channels.MQTT.Password = resolveEnvRef(cfg.Channels.MQTT.Password)
	cfg.Channels.MQTT.Token = resolveEnvRef(cfg.Channels.MQTT.Token)
	cfg.Model.Gemini.APIKey = resolveEnvRef(cfg.Model.Gemini.APIKey)

	return &cfg, nil
}

// Validate checks the settings bmo cannot start without.
func (c *Config) Validate() error {
	if c.Operator.ID == 0 {
		return fmt.Errorf("%w: operator.id (ADMIN_ID)", ErrMissingCredential)
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		return fmt.Errorf("%w: channels.telegram.token (TELEGRAM_TOKEN)", ErrMissingCredential)
	}
	if c.Channels.HTTP.Enabled && c.Channels.HTTP.Token == "" {
		return fmt.Errorf("%w: channels.http.token", ErrMissingCredential)
	}
	if c.Channels.MQTT.Enabled && c.Channels.MQTT.Token == "" {
		return fmt.Errorf("%w: channels.mqtt.token", ErrMissingCredential)
	}
	if !c.Channels.Telegram.Enabled && !c.Channels.HTTP.Enabled && !c.Channels.MQTT.Enabled {
		return errors.New("no channels enabled: enable at least one in config")
	}

	switch c.Model.Backend {
	case "ollama":
	case "gemini":
		if c.Model.Gemini.APIKey == "" {
			return fmt.Errorf("%w: model.gemini.api_key", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}

	for name, d := range map[string]time.Duration{
		"patrol.sample_interval": c.Patrol.SampleInterval,
		"patrol.alert_interval":  c.Patrol.AlertInterval,
		"patrol.error_backoff":   c.Patrol.ErrorBackoff,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
