// Package dispatch implements the operator command router.
//
// The dispatcher consumes inbound events from every channel one at a time,
// drops anything not sent by the operator, and routes commands and chat
// text to their handlers. Replies always go back through the channel the
// event arrived on. Handler failures become a one-line reply; nothing a
// handler does can stop the event loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nadzzz/bmo/internal/camera"
	"github.com/nadzzz/bmo/internal/channel"
	"github.com/nadzzz/bmo/internal/i18n"
	"github.com/nadzzz/bmo/internal/message"
	"github.com/nadzzz/bmo/internal/model"
	"github.com/nadzzz/bmo/internal/patrol"
	"github.com/nadzzz/bmo/internal/session"
	"github.com/nadzzz/bmo/internal/sysinfo"
)

// Patrol is the part of the patrol controller the dispatcher drives.
type Patrol interface {
	Start(ctx context.Context) error
	Stop() bool
	ClearAlert() bool
}

// Chat produces conversational replies.
type Chat interface {
	Reply(ctx context.Context, text string) (string, error)
}

// Vitals reads host metrics for the status command.
type Vitals interface {
	Read(ctx context.Context) (sysinfo.Vitals, error)
}

// Deps are the collaborators a Dispatcher routes to.
type Deps struct {
	Session  *session.State
	Patrol   Patrol
	Chat     Chat
	Camera   camera.Source
	Vision   model.Vision
	Vitals   Vitals
	Channels []channel.Channel

	// ConfirmPhrases clear an active intruder alert when found in chat text.
	ConfirmPhrases []string
}

// Dispatcher is the central routing engine.
type Dispatcher struct {
	session  *session.State
	patrol   Patrol
	chat     Chat
	camera   camera.Source
	vision   model.Vision
	vitals   Vitals
	channels map[string]channel.Channel
	phrases  []string
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	cm := make(map[string]channel.Channel, len(deps.Channels))
	for _, c := range deps.Channels {
		cm[c.Name()] = c
	}
	phrases := make([]string, 0, len(deps.ConfirmPhrases))
	for _, p := range deps.ConfirmPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Dispatcher{
		session:  deps.Session,
		patrol:   deps.Patrol,
		chat:     deps.Chat,
		camera:   deps.Camera,
		vision:   deps.Vision,
		vitals:   deps.Vitals,
		channels: cm,
		phrases:  phrases,
	}
}

// Run handles events serially until ctx is cancelled or events is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan message.Event) error {
	slog.Info("dispatcher running", "channels", len(d.channels))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.Handle(ctx, ev)
		}
	}
}

// replyTo sends answers back to the chat an event came from.
type replyTo struct {
	ch     channel.Channel
	chatID int64
	logger *slog.Logger
}

func (r replyTo) text(ctx context.Context, text string) {
	if err := r.ch.SendText(ctx, r.chatID, text); err != nil {
		r.logger.Error("reply failed", "error", err)
	}
}

func (r replyTo) photo(ctx context.Context, image []byte, caption string) {
	if err := r.ch.SendPhoto(ctx, r.chatID, image, caption); err != nil {
		r.logger.Error("photo reply failed", "error", err)
	}
}

func (r replyTo) typing(ctx context.Context) {
	if t, ok := r.ch.(channel.Typer); ok {
		if err := t.SendTyping(ctx, r.chatID); err != nil {
			r.logger.Debug("typing indicator failed", "error", err)
		}
	}
}

// Handle processes a single event.
func (d *Dispatcher) Handle(ctx context.Context, ev message.Event) {
	start := time.Now()
	logger := slog.With("event_id", ev.ID, "channel", ev.Channel)

	if !d.session.Authorized(ev.SenderID) {
		logger.Debug("ignoring message from unauthorized sender", "sender_id", ev.SenderID)
		return
	}

	ch, ok := d.channels[ev.Channel]
	if !ok {
		logger.Warn("no channel to reply on")
		return
	}
	r := replyTo{ch: ch, chatID: ev.ChatID, logger: logger}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("handler panicked", "panic", p)
			r.text(ctx, fmt.Sprintf("BMO glitched: %v", p))
		}
	}()

	if ev.IsCommand {
		cmd := ev.Command()
		logger.Info("command received", "command", cmd)
		d.command(ctx, cmd, r)
	} else {
		d.text(ctx, ev.Text, r)
	}

	logger.Debug("event handled", "duration", time.Since(start))
}

func (d *Dispatcher) command(ctx context.Context, cmd string, r replyTo) {
	lang := d.session.Language()

	switch cmd {
	case "start":
		r.text(ctx, i18n.T(lang, i18n.KeyAwake))
	case "help":
		r.text(ctx, i18n.T(lang, i18n.KeyHelp))
	case "status":
		v, err := d.vitals.Read(ctx)
		if err != nil {
			r.logger.Warn("status failed", "error", err)
			r.text(ctx, i18n.T(lang, i18n.KeyStatusError, err))
			return
		}
		r.text(ctx, i18n.T(lang, i18n.KeyStatus, v.TempC, v.CPUPercent, v.RAMPercent))
	case "look":
		d.look(ctx, lang, r)
	case "patrol":
		d.togglePatrol(ctx, lang, r)
	case "joke":
		jokes := i18n.Jokes(lang)
		r.text(ctx, jokes[rand.IntN(len(jokes))])
	case "language":
		r.text(ctx, i18n.T(d.session.ToggleLanguage(), i18n.KeyLanguageSwitched))
	case "reset":
		d.session.Reset()
		r.text(ctx, i18n.T(lang, i18n.KeyMemoryCleared))
	default:
		r.text(ctx, i18n.T(lang, i18n.KeyUnknownCommand))
	}
}

// togglePatrol stops an active patrol or starts a new one.
func (d *Dispatcher) togglePatrol(ctx context.Context, lang i18n.Language, r replyTo) {
	if d.patrol.Stop() {
		r.text(ctx, i18n.T(lang, i18n.KeyPatrolStopping))
		return
	}
	if err := d.patrol.Start(ctx); err != nil {
		r.logger.Error("patrol start failed", "error", err)
		r.text(ctx, i18n.T(lang, i18n.KeyPatrolError, err))
	}
}

func (d *Dispatcher) look(ctx context.Context, lang i18n.Language, r replyTo) {
	r.text(ctx, i18n.T(lang, i18n.KeyLooking))

	img, err := d.camera.Capture(ctx)
	if err != nil {
		r.logger.Warn("look capture failed", "error", err)
		r.text(ctx, i18n.T(lang, i18n.KeyVisionError, err))
		return
	}

	desc, err := d.vision.GenerateFromImage(ctx, i18n.T(lang, i18n.KeyLookPrompt, lang.String()), img)
	if err != nil {
		r.logger.Warn("look description failed", "error", err)
		r.text(ctx, i18n.T(lang, i18n.KeyVisionError, err))
		return
	}

	r.photo(ctx, img, i18n.T(lang, i18n.KeyLookCaption, desc))
}

func (d *Dispatcher) text(ctx context.Context, text string, r replyTo) {
	if d.confirms(text) && d.patrol.ClearAlert() {
		r.logger.Info("intruder alert cleared by operator")
		r.text(ctx, i18n.T(d.session.Language(), i18n.KeyAlertCleared))
		return
	}

	r.typing(ctx)
	reply, err := d.chat.Reply(ctx, text)
	if err != nil {
		r.logger.Warn("chat failed", "error", err, "model_error", errors.Is(err, model.ErrModel))
		r.text(ctx, i18n.T(d.session.Language(), i18n.KeyModelError, err))
		return
	}
	r.text(ctx, reply)
}

// confirms reports whether text contains a confirmation-of-return phrase.
func (d *Dispatcher) confirms(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var _ Patrol = (*patrol.Controller)(nil)
