// Package http exposes the practice engine over a JSON API, plus a
// per-session SSE stream fed by the controller's change notifications.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/practice"
)

// Server routes API requests to the practice service.
type Server struct {
	svc    *practice.Service
	logger *slog.Logger
}

// ServerOption configures the handler.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the API handler. metricsHandler, when non-nil, is
// mounted at /metrics.
func NewHandler(svc *practice.Service, metricsHandler http.Handler, opts ...ServerOption) http.Handler {
	s := &Server{svc: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.health)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/levels", s.listLevels)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.closeSession)
			r.Post("/select", s.selectOption)
			r.Post("/advance", s.advanceSession)
			r.Post("/rate", s.rateFeedback)
			r.Post("/read", s.markRead)
			r.Get("/stream", s.streamSession)
		})
	})

	return r
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

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type levelInfo struct {
	Name        string `json:"name"`
	Agent       string `json:"agent"`
	Description string `json:"description"`
}

func (s *Server) listLevels(w http.ResponseWriter, _ *http.Request) {
	reg := s.svc.Levels()
	out := make([]levelInfo, 0)
	for _, name := range reg.Names() {
		lvl, err := reg.Get(name)
		if err != nil {
			continue
		}
		out = append(out, levelInfo{Name: lvl.Name, Agent: lvl.Agent, Description: lvl.Description})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Level  string `json:"level"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Level == "" {
		http.Error(w, "level is required", http.StatusBadRequest)
		return
	}

	rec, err := s.svc.Start(r.Context(), req.UserID, req.Level)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectOptionRequest struct {
	Index int `json:"index"`
}

func (s *Server) selectOption(w http.ResponseWriter, r *http.Request) {
	var req selectOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := s.svc.SelectOption(r.Context(), chi.URLParam(r, "sessionID"), req.Index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// advanceSession re-drives the script, recovering sessions stuck behind a
// failed generation call.
func (s *Server) advanceSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type rateRequest struct {
	Entry  int `json:"entry"`
	Rating int `json:"rating"`
}

func (s *Server) rateFeedback(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.svc.Rate(r.Context(), chi.URLParam(r, "sessionID"), req.Entry, req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.MarkRead(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamSession pushes a full record snapshot whenever the session changes.
// The first snapshot is sent immediately so clients do not need a separate
// GET to render.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := s.svc.Controller(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() bool {
		data, err := json.Marshal(ctrl.Read())
		if err != nil {
			s.logger.Error("stream: marshal snapshot", "session_id", sessionID, "err", err)
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	for {
		if err := ctrl.WaitForChange(r.Context()); err != nil {
			return
		}
		if !send() {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrLevelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, domain.ErrNoPendingOptions), errors.Is(err, domain.ErrStaleApply):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOptionOutOfRange):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), status)
}
