// Package camera captures still images from the Raspberry Pi camera.
//
// Each capture runs the libcamera still-capture tool once: the process opens
// the sensor, writes a single JPEG and releases the device on exit, so no
// camera handle is held between captures.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ErrCapture marks a failed capture. Callers treat it as transient.
var ErrCapture = errors.New("capture failed")

// Source produces a single still image on demand.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Config configures the still-capture command.
type Config struct {
	// Command is the capture binary ("rpicam-still" or "libcamera-still").
	Command string
	// Width and Height of the captured image in pixels. Zero keeps the sensor default.
	Width  int
	Height int
	// Warmup is how long the sensor runs before the frame is taken.
	Warmup time.Duration
	// Dir holds the transient capture files. Empty means os.TempDir().
	Dir string
}

// Still captures images by running the libcamera CLI.
type Still struct {
	cfg Config

	// The sensor can only be opened by one process at a time, so the patrol
	// loop and the look command take turns.
	mu sync.Mutex
}

// New creates a Still camera from config.
func New(cfg Config) *Still {
	if cfg.Command == "" {
		cfg.Command = "rpicam-still"
	}
	return &Still{cfg: cfg}
}

// Capture takes one JPEG still and returns its bytes.
func (s *Still) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.cfg.Dir, "bmo-capture-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: creating capture file: %w", ErrCapture, err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.Command, s.args(path)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCapture, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrCapture, s.cfg.Command, err, bytes.TrimSpace(stderr.Bytes()))
	}

	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading capture: %w", ErrCapture, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrCapture)
	}

	slog.Debug("camera capture complete", "bytes", len(img), "duration", time.Since(start))
	return img, nil
}

func (s *Still) args(path string) []string {
	args := []string{"--nopreview", "--encoding", "jpg", "--output", path}
	if s.cfg.Warmup > 0 {
		args = append(args, "--timeout", strconv.FormatInt(s.cfg.Warmup.Milliseconds(), 10))
	}
	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		args = append(args,
			"--width", strconv.Itoa(s.cfg.Width),
			"--height", strconv.Itoa(s.cfg.Height))
	}
	return args
}
