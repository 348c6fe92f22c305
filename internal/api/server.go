package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"socialscope/internal/logging"
	"socialscope/internal/safety"
	"socialscope/internal/store"
)

const maxBodyBytes = 1 << 20

// EventSink accepts raw capture payloads for fire-and-forget ingestion.
type EventSink interface {
	Ingest(ctx context.Context, raw []byte)
}

// AlertSink accepts crisis-flagged submissions for the safety fast path.
type AlertSink interface {
	Create(ctx context.Context, input safety.AlertInput) (*store.SafetyAlert, error)
}

// StatusFunc returns the agent's current status snapshot.
type StatusFunc func(ctx context.Context) (any, error)

// Server is the loopback HTTP bridge between the on-device capture
// surface and the agent. It binds to localhost only; the optional bearer
// token guards against other local processes.
type Server struct {
	bind   string
	token  string
	events EventSink
	alerts AlertSink
	status StatusFunc
	logger *slog.Logger

	httpServer *http.Server
	listener   net.Listener
}

// Options configures the bridge server.
type Options struct {
	Bind   string
	Token  string
	Events EventSink
	Alerts AlertSink
	Status StatusFunc
}

// NewServer creates the bridge server.
func NewServer(opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Bind == "" {
		return nil, errors.New("bind address required")
	}
	if opts.Events == nil {
		return nil, errors.New("event sink required")
	}
	return &Server{
		bind:   opts.Bind,
		token:  strings.TrimSpace(opts.Token),
		events: opts.Events,
		alerts: opts.Alerts,
		status: opts.Status,
		logger: logging.NewComponentLogger(logger, "api"),
	}, nil
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("api server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events", s.requireAuth(s.handleEvents))
	mux.HandleFunc("POST /api/alerts", s.requireAuth(s.handleAlerts))
	mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("bind api listener: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", logging.Error(err))
		}
	}()

	s.logger.Info("api bridge listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listener address, useful when binding port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.httpServer = nil
	s.listener = nil
	return err
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next(w, r)
	}
}

// handleEvents accepts one capture payload and acknowledges immediately.
// Malformed payloads are counted and dropped by the ingestor, never
// surfaced to the capture surface.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	s.events.Ingest(r.Context(), raw)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type alertRequest struct {
	TriggeredAt string          `json:"triggeredAt"`
	Responses   json.RawMessage `json:"responses"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert handling not configured")
		return
	}

	var req alertRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert payload")
		return
	}

	input := safety.AlertInput{ResponsesJSON: string(req.Responses)}
	if req.TriggeredAt != "" {
		if at, err := time.Parse(time.RFC3339, req.TriggeredAt); err == nil {
			input.TriggeredAt = at
		}
	}

	alert, err := s.alerts.Create(r.Context(), input)
	if err != nil {
		s.logger.Error("alert create failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "alert not persisted")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": alert.ID, "status": "accepted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status not configured")
		return
	}
	snapshot, err := s.status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
