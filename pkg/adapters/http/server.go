package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/quarry"
	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/adapters/csvsource"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/runner"
	"github.com/aretw0/quarry/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

// EventRequest is the body of POST /sessions/{sessionId}/events.
// Source names a CSV file or URL to load when an ingest event carries no ingestion.
type EventRequest struct {
	domain.Event
	Source string `json:"source,omitempty"`
}

// Server implements the generated ServerInterface over a session Manager.
type Server struct {
	Manager *session.Manager
	Streams *StreamManager
	Loader  runner.DatasetLoader
	Logger  *slog.Logger

	metrics     http.Handler
	streamDelay time.Duration
	validate    bool
}

var _ ServerInterface = (*Server)(nil)

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreamDelay sets the per-token delay of streamed replies.
func WithStreamDelay(d time.Duration) Option {
	return func(s *Server) {
		s.streamDelay = d
	}
}

// WithDatasetLoader overrides how ingest sources are read. The default reads
// relative paths under the working directory and refuses URLs.
func WithDatasetLoader(loader runner.DatasetLoader) Option {
	return func(s *Server) {
		if loader != nil {
			s.Loader = loader
		}
	}
}

// WithRequestValidation checks requests against the embedded API description.
func WithRequestValidation(enabled bool) Option {
	return func(s *Server) {
		s.validate = enabled
	}
}

// NewHandler creates a new HTTP handler for the manager.
func NewHandler(mgr *session.Manager, opts ...Option) (http.Handler, error) {
	s := &Server{
		Manager:     mgr,
		Loader:      csvsource.Sandbox{}.Load,
		Logger:      logging.NewNop(),
		streamDelay: runner.DefaultStreamDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.streamDelay, s.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	if s.validate {
		specRouter, err := newSpecRouter()
		if err != nil {
			return nil, err
		}
		r.Use(requestValidator(specRouter, s.Logger))
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		spec, err := rawSpec()
		if err != nil {
			s.Logger.Error("Failed to load OpenAPI spec", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to load spec")
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(spec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return HandlerWithOptions(s, ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, err.Error())
		},
	}), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "quarry-http",
		"version":     strings.TrimSpace(quarry.Version),
		"api_version": apiVersion,
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles POST /sessions. An existing ID resumes that session.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionJSONRequestBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	id := uuid.NewString()
	if body.SessionId != nil && *body.SessionId != "" {
		id = *body.SessionId
	}

	sess, err := s.Manager.LoadOrStart(r.Context(), id)
	if err != nil {
		s.fail(w, "CreateSession", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(sess))
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	sess, err := s.Manager.Load(r.Context(), sessionId)
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

// DeleteSession handles DELETE /sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	if err := s.Manager.Delete(r.Context(), sessionId); err != nil {
		s.fail(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendEvent handles POST /sessions/{sessionId}/events.
func (s *Server) SendEvent(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	var body SendEventJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.Logger.Warn("SendEvent: Invalid request body", "err", err)
		return
	}
	ev := body.Event

	// Sanitize Input (Global Policy)
	if ev.Text != "" {
		clean, err := runner.SanitizeInput(ev.Text)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
			s.Logger.Warn("SendEvent: Input rejected", "err", err, "size", len(ev.Text))
			return
		}
		ev.Text = clean
	}

	if ev.Type == domain.EventIngest && ev.Ingestion == nil && body.Source != "" {
		in, err := s.Loader(r.Context(), body.Source)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("could not load dataset: %v", err))
			return
		}
		ev.Ingestion = &in
	}
	if ev.Type == domain.EventIngest && ev.Ingestion == nil {
		writeError(w, http.StatusBadRequest, "ingest event requires ingestion or source")
		return
	}

	prev, next, err := s.Manager.Apply(r.Context(), sessionId, ev)
	if err != nil {
		s.fail(w, "SendEvent", err)
		return
	}
	s.Streams.Publish(prev, next)
	writeJSON(w, http.StatusOK, s.view(next))
}

// GetQuery handles GET /sessions/{sessionId}/query.
func (s *Server) GetQuery(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	sess, err := s.Manager.Load(r.Context(), sessionId)
	if err != nil {
		s.fail(w, "GetQuery", err)
		return
	}
	if sess.Document == nil {
		writeError(w, http.StatusConflict, "query not ready: session is in "+sess.Current())
		return
	}
	writeJSON(w, http.StatusOK, sess.Document)
}

// GetSuggestions handles GET /sessions/{sessionId}/suggestions.
func (s *Server) GetSuggestions(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	suggestions, err := s.Manager.Suggestions(r.Context(), sessionId)
	if err != nil {
		s.fail(w, "GetSuggestions", err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// StreamSession handles GET /sessions/{sessionId}/stream (SSE).
func (s *Server) StreamSession(w http.ResponseWriter, r *http.Request, sessionId SessionId) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.Streams.Subscribe(sessionId)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionId)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "session_id", sessionId)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) view(sess *domain.Session) SessionView {
	suggestions := s.Manager.Dispatcher().Suggestions(sess)
	if suggestions == nil {
		suggestions = []string{}
	}
	return SessionView{Session: *sess, Suggestions: suggestions}
}

// fail maps engine and store errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Debug(op+" rejected", "err", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor returns the HTTP status for an error returned by the session manager.
func StatusFor(err error) int {
	var formErr *domain.FormEntryError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInputDisabled):
		return http.StatusConflict
	case errors.As(err, &formErr):
		return http.StatusUnprocessableEntity
	case domain.IsRejection(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Error{Error: &msg})
}
