package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"agendabot/internal/journal"
)

// LivenessBody is the static response of the keep-alive endpoint.
const LivenessBody = "agendabot is running\n"

const statusLimit = 10

// History lists recent notification cycles.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Cycle, error)
}

// Server answers liveness probes and exposes recent cycle history.
// It shares no mutable state with the notifier.
type Server struct {
	logger  *slog.Logger
	history History
	mux     *http.ServeMux
}

// NewServer constructs a new Server. history may be nil.
func NewServer(logger *slog.Logger, history History) *Server {
	s := &Server{
		logger:  logger,
		history: history,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/", s.handleLiveness)
}

// handleLiveness answers every method and path with 200.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LivenessBody))
}

type statusResponse struct {
	Cycles []journal.Cycle `json:"cycles"`
	Error  string          `json:"error,omitempty"`
}

// handleStatus reports recent cycles. It always answers 200 so uptime
// monitors pointed at it keep treating the process as alive.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Cycles: []journal.Cycle{}}
	if s.history != nil {
		cycles, err := s.history.Recent(r.Context(), statusLimit)
		if err != nil {
			s.logger.Error("Failed to read cycle history", "error", err)
			resp.Error = "history unavailable"
		} else if cycles != nil {
			resp.Cycles = cycles
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to write status response", "error", err)
	}
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server.", "listen", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("HTTP server stopped.")
		return nil
	}
}
