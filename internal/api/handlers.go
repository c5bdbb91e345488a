// Package api provides HTTP handlers for FixPipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fixpipe/fixpipe/internal/models"
)

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	// A fresh opaque session id is generated when the client has none yet.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		slog.Debug("Server.chatHandler: generated session id", "session_id", sessionID)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeScript
	}

	result := s.dispatcher.HandleQuery(r.Context(), req.Message, sessionID, mode)

	// The dispatch contract always yields a structured response; even type
	// "error" is a successful HTTP exchange.
	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		Response:  result.Response,
		Type:      result.Type,
		SessionID: sessionID,
		Options:   result.Options,
	})
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.reloadHandler: processing reload request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.provider.Reload(r.Context()); err != nil {
		slog.Error("Server.reloadHandler: catalog reload failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reload intents"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Intents reloaded", map[string]interface{}{
		"intents": s.provider.Current().Len(),
	}))
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessions.Snapshots()))
}

func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.Turn{}))
		return
	}
	turns, err := s.audit.GetTurns()
	if err != nil {
		slog.Error("Server.auditHandler: failed to read audit store", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read audit log"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"intents":  s.provider.Current().Len(),
		"sessions": s.sessions.Len(),
	}))
}
