// Package http implements the local HTTP channel for bmo.
//
// Operators (or scripts on the LAN) POST messages to /messages and poll
// GET /messages for bmo's replies and patrol alerts. Both routes require the
// configured bearer token, and every accepted message is attributed to the
// operator. Outbound messages are held in a bounded outbox; when it is full
// the oldest entry is dropped.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/bmo/docs" // registers the generated OpenAPI document
	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
)

const defaultOutboxSize = 100

// Channel implements channel.Channel over plain HTTP.
type Channel struct {
	port     int
	limit    int
	token    string
	operator int64
	server   *http.Server

	mu     sync.Mutex // guards server and outbox
	outbox []message.Outbound
}

// New creates a new HTTP channel. Authenticated messages are attributed to
// operator.
func New(cfg config.HTTPConfig, operator int64) *Channel {
	limit := cfg.OutboxSize
	if limit <= 0 {
		limit = defaultOutboxSize
	}
	return &Channel{port: cfg.Port, limit: limit, token: cfg.Token, operator: operator}
}

// Name returns the channel identifier.
func (c *Channel) Name() string { return "http" }

// Handler returns the routes served by the channel. Accepted messages are
// enqueued on events.
func (c *Channel) Handler(events chan<- message.Event) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /messages", c.authorize(func(w http.ResponseWriter, r *http.Request) {
		c.handlePost(w, r, events)
	}))
	mux.HandleFunc("GET /messages", c.authorize(c.handleDrain))

	// Swagger UI for the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server. It blocks until the context is cancelled.
func (c *Channel) Listen(ctx context.Context, events chan<- message.Event) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.port),
		Handler:           c.Handler(events),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.mu.Lock()
	c.server = srv
	c.mu.Unlock()

	slog.Info("http channel listening", "port", c.port)

	go func() {
		<-ctx.Done()
		slog.Info("http channel shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// authorize rejects requests without the channel's bearer token. An empty
// configured token rejects everything.
func (c *Channel) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || c.token == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(c.token)) != 1 {
			slog.Warn("http request rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="bmo"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// acceptedResponse is returned once a message has been queued.
type acceptedResponse struct {
	ID string `json:"id"`
}

// handlePost processes a POST /messages request.
//
// @Summary     Send a message to BMO
// @Description Queues a text message or slash command from the operator. Replies are
// @Description delivered asynchronously and can be fetched with GET /messages.
// @Tags        messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       message  body      message.Inbound  true  "Operator message"
// @Success     202      {object}  acceptedResponse "Message queued"
// @Failure     400      {string}  string  "Invalid request body"
// @Failure     401      {string}  string  "Missing or wrong bearer token"
// @Failure     503      {string}  string  "BMO is shutting down"
// @Router      /messages [post]
func (c *Channel) handlePost(w http.ResponseWriter, r *http.Request, events chan<- message.Event) {
	var in message.Inbound
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&in); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	ev := in.Event(c.Name(), c.operator)
	select {
	case events <- ev:
	case <-r.Context().Done():
		http.Error(w, "not accepting messages", http.StatusServiceUnavailable)
		return
	}

	slog.Debug("http message queued", "event_id", ev.ID, "command", ev.Command())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(acceptedResponse{ID: ev.ID})
}

// handleDrain processes a GET /messages request.
//
// @Summary     Fetch BMO's messages
// @Description Returns and removes every queued outbound message, oldest first.
// @Tags        messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}   message.Outbound  "Outbound messages"
// @Failure     401  {string}  string  "Missing or wrong bearer token"
// @Router      /messages [get]
func (c *Channel) handleDrain(w http.ResponseWriter, _ *http.Request) {
	out := c.Drain()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Drain removes and returns all queued outbound messages.
func (c *Channel) Drain() []message.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outbox
	c.outbox = nil
	if out == nil {
		out = []message.Outbound{}
	}
	return out
}

func (c *Channel) push(m message.Outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) >= c.limit {
		slog.Warn("http outbox full, dropping oldest message", "limit", c.limit)
		c.outbox = c.outbox[1:]
	}
	c.outbox = append(c.outbox, m)
}

// SendText queues a text message for the operator.
func (c *Channel) SendText(_ context.Context, chatID int64, text string) error {
	c.push(message.Outbound{ChatID: chatID, Text: text, Timestamp: time.Now()})
	return nil
}

// SendPhoto queues a photo for the operator.
func (c *Channel) SendPhoto(_ context.Context, chatID int64, image []byte, caption string) error {
	c.push(message.Outbound{ChatID: chatID, Image: image, Caption: caption, Timestamp: time.Now()})
	return nil
}

// Close gracefully shuts down the HTTP server.
func (c *Channel) Close() error {
	c.mu.Lock()
	srv := c.server
	c.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}
