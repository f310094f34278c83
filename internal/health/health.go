// Package health provides the daemon's health endpoints.
//
// Docker, systemd watchdogs and Kubernetes probes use /healthz and /readyz.
// /readyz also reports the patrol state so a home dashboard can show when
// BMO is on guard. The same information is available through the standard
// gRPC health service, where "bmo.patrol" is NOT_SERVING while an intruder
// alert is active.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/bmo/internal/patrol"
)

// PatrolService is the gRPC health service name that tracks the intruder alert.
const PatrolService = "bmo.patrol"

const syncInterval = time.Second

// PatrolState exposes the patrol controller's state.
type PatrolState interface {
	Snapshot() patrol.State
}

// Server exposes HTTP and gRPC health checks.
type Server struct {
	port   int
	ready  atomic.Bool
	patrol PatrolState
	server *http.Server
	grpc   *grpchealth.Server
}

// New creates a new health check server.
func New(port int, p PatrolState) *Server {
	s := &Server{port: port, patrol: p, grpc: grpchealth.NewServer()}
	s.sync()
	return s
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	s.sync()
}

type statusResponse struct {
	Status      string `json:"status"`
	PatrolMode  string `json:"patrol_mode"`
	PatrolAlert string `json:"patrol_alert"`
	LastOutcome string `json:"last_outcome"`
	Runs        int    `json:"patrol_runs"`
}

// Handler returns the HTTP health routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeStatus(w)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		s.writeStatus(w)
	})

	return mux
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	snap := s.patrol.Snapshot()
	resp := statusResponse{
		Status:      "ok",
		PatrolMode:  snap.Mode.String(),
		PatrolAlert: snap.Alert.String(),
		LastOutcome: snap.LastOutcome.String(),
		Runs:        snap.Runs,
	}

	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		resp.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// ServeGRPC serves grpc.health.v1.Health on port until ctx is cancelled.
func (s *Server) ServeGRPC(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("grpc health listen: %w", err)
	}

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, s.grpc)

	slog.Info("grpc health server listening", "port", port)

	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.grpc.Shutdown()
				gs.GracefulStop()
				return
			case <-ticker.C:
				s.sync()
			}
		}
	}()

	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc health serve: %w", err)
	}
	return nil
}

// sync publishes readiness and the patrol alert to the gRPC health service.
func (s *Server) sync() {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ready.Load() {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	s.grpc.SetServingStatus("", overall)

	guard := healthpb.HealthCheckResponse_SERVING
	if s.patrol.Snapshot().Alert == patrol.AlertIntruder {
		guard = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.grpc.SetServingStatus(PatrolService, guard)
}
