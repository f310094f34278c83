package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/bmo/internal/camera"
	"github.com/nadzzz/bmo/internal/channel"
	httpchannel "github.com/nadzzz/bmo/internal/channel/http"
	mqttchannel "github.com/nadzzz/bmo/internal/channel/mqtt"
	"github.com/nadzzz/bmo/internal/channel/telegram"
	"github.com/nadzzz/bmo/internal/chat"
	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/dispatch"
	"github.com/nadzzz/bmo/internal/health"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
	"github.com/nadzzz/bmo/internal/model/gemini"
	"github.com/nadzzz/bmo/internal/model/ollama"
	"github.com/nadzzz/bmo/internal/patrol"
	"github.com/nadzzz/bmo/internal/session"
	"github.com/nadzzz/bmo/internal/sysinfo"
	"github.com/nadzzz/bmo/internal/vision"
	"github.com/nadzzz/bmo/internal/vision/dlib"
)

const (
	eventQueueSize  = 16
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the BMO daemon",
	RunE:  runServe,
}

// loadConfig loads, validates and applies the logging configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)
	return cfg, nil
}

// models is a backend that serves both chat and vision.
type models interface {
	model.Chat
	model.Vision
	Name() string
}

func newModels(ctx context.Context, cfg config.ModelConfig) (models, error) {
	switch cfg.Backend {
	case "gemini":
		slog.Info("using Gemini models", "chat_model", cfg.Gemini.ChatModel, "vision_model", cfg.Gemini.VisionModel)
		c, err := gemini.New(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		slog.Info("using Ollama models",
			"endpoint", cfg.Ollama.Endpoint,
			"chat_model", cfg.Ollama.ChatModel,
			"vision_model", cfg.Ollama.VisionModel)
		return ollama.New(cfg.Ollama), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}

// newChannels builds the enabled channels. Messages on HTTP and MQTT carry
// no sender of their own; once authenticated they come from operator.
func newChannels(cfg config.ChannelsConfig, operator int64) ([]channel.Channel, error) {
	var channels []channel.Channel
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	if cfg.HTTP.Enabled {
		channels = append(channels, httpchannel.New(cfg.HTTP, operator))
	}
	if cfg.MQTT.Enabled {
		channels = append(channels, mqttchannel.New(cfg.MQTT, operator))
	}
	return channels, nil
}

// newFaces loads the face models and the enrolled set. Without models the
// daemon still runs: every patrol sample fails classification and backs off,
// and chat is unaffected.
func newFaces(ctx context.Context, cfg config.VisionConfig) (*vision.Adapter, func()) {
	recognizer, err := dlib.New(cfg.ModelsDir, cfg.Tolerance)
	if err != nil {
		slog.Error("face recognition unavailable, patrol samples will fail",
			"models_dir", cfg.ModelsDir, "error", err)
		return vision.NewAdapter(vision.Unavailable(err), vision.NewEnrolled()), func() {}
	}

	faces := vision.NewAdapter(recognizer, vision.LoadEnrolled(ctx, recognizer, cfg.Enrolled))
	slog.Info("face recognition ready", "enrolled", faces.Enrolled().Len(), "images", len(cfg.Enrolled))
	return faces, func() { _ = recognizer.Close() }
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("bmo starting", "version", version)

	// Root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	brain, err := newModels(ctx, cfg.Model)
	if err != nil {
		return err
	}
	slog.Info("model backend ready", "backend", brain.Name())

	faces, closeFaces := newFaces(ctx, cfg.Vision)
	defer closeFaces()

	cam := camera.New(camera.Config{
		Command: cfg.Camera.Command,
		Width:   cfg.Camera.Width,
		Height:  cfg.Camera.Height,
		Warmup:  cfg.Camera.Warmup,
		Dir:     cfg.Camera.Dir,
	})

	channels, err := newChannels(cfg.Channels, cfg.Operator.ID)
	if err != nil {
		return err
	}
	broadcast := make(channel.Broadcast, 0, len(channels))
	for _, c := range channels {
		broadcast = append(broadcast, c)
	}

	sess := session.New(cfg.Operator.ID, cfg.Session.HistoryLimit)
	guard := patrol.New(cam, faces, broadcast, sess, patrol.Config{
		ChatID:         sess.Operator(),
		SampleInterval: cfg.Patrol.SampleInterval,
		AlertInterval:  cfg.Patrol.AlertInterval,
		ErrorBackoff:   cfg.Patrol.ErrorBackoff,
	})

	dispatcher := dispatch.New(dispatch.Deps{
		Session:        sess,
		Patrol:         guard,
		Chat:           chat.New(brain, sess),
		Camera:         cam,
		Vision:         brain,
		Vitals:         sysinfo.New(""),
		Channels:       channels,
		ConfirmPhrases: cfg.Patrol.ConfirmPhrases,
	})

	healthServer := health.New(cfg.Server.HealthPort, guard)
	events := make(chan message.Event, eventQueueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	if cfg.Server.GRPC.Enabled {
		g.Go(func() error { return healthServer.ServeGRPC(gctx, cfg.Server.GRPC.Port) })
	}
	for _, c := range channels {
		g.Go(func() error {
			slog.Info("starting channel", "name", c.Name())
			if err := c.Listen(gctx, events); err != nil {
				slog.Error("channel failed", "name", c.Name(), "error", err)
			}
			return nil
		})
	}
	g.Go(func() error { return dispatcher.Run(gctx, events) })

	healthServer.SetReady(true)
	slog.Info("bmo ready",
		"channels", len(channels),
		"health_port", cfg.Server.HealthPort,
		"operator", sess.Operator())

	// Block until shutdown signal or a fatal component error.
	<-gctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	guard.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer waitCancel()
	if err := guard.Wait(waitCtx); err != nil {
		slog.Warn("patrol did not stop in time", "error", err)
	}

	for _, c := range channels {
		if err := c.Close(); err != nil {
			slog.Error("channel close error", "name", c.Name(), "error", err)
		}
	}

	err = g.Wait()
	slog.Info("bmo stopped")
	return err
}
