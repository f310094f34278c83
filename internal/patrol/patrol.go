// Package patrol implements bmo's security patrol.
//
// A patrol run repeatedly captures a still image and classifies the faces in
// it. A known face ends the run with a greeting; an unknown face raises the
// intruder alert, which repeats a warning until the operator clears it or the
// patrol is stopped. At most one run is active at a time.
package patrol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/bmo/internal/camera"
	"github.com/nadzzz/bmo/internal/channel"
	"github.com/nadzzz/bmo/internal/i18n"
	"github.com/nadzzz/bmo/internal/vision"
)

// ErrAlreadyPatrolling is returned by Start while a run is active.
var ErrAlreadyPatrolling = errors.New("patrol already running")

// Mode is whether a patrol run is active.
type Mode int

const (
	Idle Mode = iota
	Patrolling
)

func (m Mode) String() string {
	if m == Patrolling {
		return "patrolling"
	}
	return "idle"
}

// Alert is the intruder alert level.
type Alert int

const (
	AlertNone Alert = iota
	AlertIntruder
)

func (a Alert) String() string {
	if a == AlertIntruder {
		return "intruder"
	}
	return "none"
}

// Outcome records how the last run ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeResolvedOK means an enrolled face was recognized.
	OutcomeResolvedOK
	// OutcomeResolvedCleared means an intruder alert was cleared by the
	// operator or by Stop.
	OutcomeResolvedCleared
	// OutcomeStopped means the run was stopped before any face was seen.
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolvedOK:
		return "resolved-ok"
	case OutcomeResolvedCleared:
		return "resolved-cleared"
	case OutcomeStopped:
		return "stopped"
	default:
		return "none"
	}
}

// State is a consistent snapshot of the controller.
type State struct {
	Mode        Mode
	Alert       Alert
	RunID       string // empty when idle
	Runs        int    // runs started since process start
	LastOutcome Outcome
}

// Classifier reports which faces in an image belong to enrolled identities.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]vision.FaceMatch, error)
}

// Localizer provides the language outbound messages are written in.
type Localizer interface {
	Language() i18n.Language
}

// Config holds the patrol timings and the chat alerts are delivered to.
type Config struct {
	ChatID         int64
	SampleInterval time.Duration
	AlertInterval  time.Duration
	ErrorBackoff   time.Duration
}

// run is the handle of one patrol run.
type run struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the patrol state machine.
type Controller struct {
	camera camera.Source
	faces  Classifier
	out    channel.Sender
	lang   Localizer
	cfg    Config

	// sendMu serializes outbound messages with Stop, so nothing is sent for
	// a run once Stop has returned. Sends carry the run context; Stop cancels
	// it first, so an in-flight send unwinds instead of holding Stop.
	sendMu sync.Mutex

	mu       sync.Mutex
	mode     Mode
	alert    Alert
	current  *run
	lastDone chan struct{}
	runs     int
	outcome  Outcome
}

// New creates an idle Controller.
func New(cam camera.Source, faces Classifier, out channel.Sender, lang Localizer, cfg Config) *Controller {
	return &Controller{
		camera: cam,
		faces:  faces,
		out:    out,
		lang:   lang,
		cfg:    cfg,
	}
}

// Start begins a patrol run and returns immediately. The run lives until it
// resolves, Stop is called, or ctx is cancelled. Start announces the patrol
// to the operator.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.mode == Patrolling {
		c.mu.Unlock()
		return ErrAlreadyPatrolling
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{id: uuid.New(), cancel: cancel, done: make(chan struct{})}
	c.mode = Patrolling
	c.alert = AlertNone
	c.current = r
	c.lastDone = r.done
	c.runs++
	c.mu.Unlock()

	slog.Info("patrol started", "run_id", r.id)
	c.send(runCtx, r, i18n.KeyPatrolOnline)

	go c.loop(runCtx, r)
	return nil
}

// Stop ends the active run, if any, and reports whether one was stopped.
// It sends nothing. Once Stop returns no further messages are sent for the
// stopped run.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return false
	}

	r.cancel()
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.finish(r, OutcomeStopped)
}

// ClearAlert stops the active run only if the intruder alert is raised.
func (c *Controller) ClearAlert() bool {
	c.mu.Lock()
	r := c.current
	active := c.alert == AlertIntruder
	c.mu.Unlock()
	if r == nil || !active {
		return false
	}

	r.cancel()
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.finish(r, OutcomeResolvedCleared)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Mode:        c.mode,
		Alert:       c.alert,
		Runs:        c.runs,
		LastOutcome: c.outcome,
	}
	if c.current != nil {
		s.RunID = c.current.id.String()
	}
	return s
}

// Wait blocks until the most recent run's goroutine has exited or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.lastDone
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish moves the controller to idle if r is still the current run.
// mode and alert always change together here.
func (c *Controller) finish(r *run, outcome Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != r {
		return false
	}
	r.cancel()
	if outcome == OutcomeStopped && c.alert == AlertIntruder {
		outcome = OutcomeResolvedCleared
	}
	c.current = nil
	c.mode = Idle
	c.alert = AlertNone
	c.outcome = outcome
	slog.Info("patrol finished", "run_id", r.id, "outcome", outcome)
	return true
}

// raiseAlert enters the intruder alert if r is still the current run.
func (c *Controller) raiseAlert(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != r {
		return false
	}
	c.alert = AlertIntruder
	return true
}

func (c *Controller) isCurrent(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == r
}

// send delivers a localized message for run r unless the run has ended.
// The sender must honor ctx; a cancelled run aborts its pending send.
func (c *Controller) send(ctx context.Context, r *run, key i18n.Key) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if ctx.Err() != nil || !c.isCurrent(r) {
		return false
	}
	text := i18n.T(c.lang.Language(), key)
	if err := c.out.SendText(ctx, c.cfg.ChatID, text); err != nil {
		slog.Error("patrol message failed", "run_id", r.id, "key", key, "error", err)
	}
	return true
}

func (c *Controller) loop(ctx context.Context, r *run) {
	defer close(r.done)
	defer c.finish(r, OutcomeStopped)

	logger := slog.With("run_id", r.id)

	for {
		img, err := c.camera.Capture(ctx)
		if err != nil {
			if !c.backoff(ctx, logger, "capture", err) {
				return
			}
			continue
		}

		faces, err := c.faces.Classify(ctx, img)
		if err != nil {
			if !c.backoff(ctx, logger, "classify", err) {
				return
			}
			continue
		}

		switch decide(faces) {
		case sawEnrolled:
			logger.Info("patrol sample", "faces", len(faces), "decision", "recognized")
			c.send(ctx, r, i18n.KeyAdminRecognized)
			c.finish(r, OutcomeResolvedOK)
			return
		case sawStranger:
			logger.Warn("patrol sample", "faces", len(faces), "decision", "intruder")
			if c.raiseAlert(r) {
				c.alertLoop(ctx, r)
			}
			return
		default:
			logger.Debug("patrol sample", "faces", 0, "decision", "empty")
			if !sleep(ctx, c.cfg.SampleInterval) {
				return
			}
		}
	}
}

// alertLoop repeats the intruder warning until the run is cancelled.
func (c *Controller) alertLoop(ctx context.Context, r *run) {
	for {
		if !c.send(ctx, r, i18n.KeyIntruderAlert) {
			return
		}
		if !sleep(ctx, c.cfg.AlertInterval) {
			return
		}
	}
}

// backoff logs a transient failure and waits before the next attempt.
// It returns false if the run was cancelled.
func (c *Controller) backoff(ctx context.Context, logger *slog.Logger, stage string, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	transient := errors.Is(err, camera.ErrCapture) || errors.Is(err, vision.ErrClassification)
	logger.Warn("patrol step failed, backing off",
		"stage", stage, "error", err, "transient", transient, "backoff", c.cfg.ErrorBackoff)
	return sleep(ctx, c.cfg.ErrorBackoff)
}

type decision int

const (
	sawNothing decision = iota
	sawEnrolled
	sawStranger
)

// decide applies the precedence: any enrolled face wins over any stranger.
func decide(faces []vision.FaceMatch) decision {
	if len(faces) == 0 {
		return sawNothing
	}
	for _, f := range faces {
		if f.MatchesEnrolled {
			return sawEnrolled
		}
	}
	return sawStranger
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
