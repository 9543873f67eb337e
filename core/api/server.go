// Package api exposes the coordinator over a JSON HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/orchestrator"
	"github.com/adalundhe/scriptorium/core/session"
)

// Server routes HTTP requests to the coordinator.
type Server struct {
	coordinator *orchestrator.Coordinator
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewServer builds the HTTP surface over a coordinator.
func NewServer(coordinator *orchestrator.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		coordinator: coordinator,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("PUT /sessions/{id}/category", s.handleSetCategory)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /embeddings/status", s.handleEmbeddingStatus)
	s.mux.HandleFunc("GET /scripts/search", s.handleScriptSearch)
	s.mux.HandleFunc("GET /scripts/{id}/similar", s.handleSimilarScripts)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)

	return s
}

// Handler returns the root handler for mounting.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
	Message   string `json:"message"`

	// BusyPolicy is "wait" (default) or "reject".
	BusyPolicy string `json:"busy_policy,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ClassInvalidRequest, "malformed request body", err))
		return
	}

	policy := orchestrator.BusyWait
	if req.BusyPolicy == "reject" {
		policy = orchestrator.BusyReject
	}

	result, err := s.coordinator.SendMessage(r.Context(), orchestrator.SendRequest{
		SessionID:  req.SessionID,
		AgentType:  req.AgentType,
		Content:    req.Message,
		BusyPolicy: policy,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.coordinator.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coordinator.GetHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ClassInvalidRequest, "malformed request body", err))
		return
	}

	if err := s.coordinator.SetCategory(r.Context(), r.PathValue("id"), req.Category); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := session.SearchQuery{
		Text:      r.URL.Query().Get("q"),
		Category:  r.URL.Query().Get("category"),
		AgentType: r.URL.Query().Get("agent_type"),
	}
	if r.URL.Query().Get("order") == "relevance" {
		query.Order = session.OrderRelevance
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}

	results, err := s.coordinator.SearchHistory(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coordinator.EmbeddingStatus())
}

func (s *Server) handleSimilarScripts(w http.ResponseWriter, r *http.Request) {
	k, minSimilarity := rankParams(r)

	matches, err := s.coordinator.SimilarScripts(r.Context(), r.PathValue("id"), k, minSimilarity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleScriptSearch(w http.ResponseWriter, r *http.Request) {
	k, minSimilarity := rankParams(r)

	matches, err := s.coordinator.SearchScripts(r.Context(), r.URL.Query().Get("q"), k, minSimilarity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func rankParams(r *http.Request) (int, float64) {
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			k = parsed
		}
	}
	minSimilarity := 0.0
	if raw := r.URL.Query().Get("min_similarity"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			minSimilarity = parsed
		}
	}
	return k, minSimilarity
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScriptContent string `json:"script_content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ClassInvalidRequest, "malformed request body", err))
		return
	}

	analysis, err := s.coordinator.AnalyzeScript(r.Context(), req.ScriptContent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the uniform error body: the class names what went
// wrong, the advice tells the client whether retrying can help.
type errorResponse struct {
	Error  string `json:"error"`
	Class  string `json:"class"`
	Advice string `json:"advice"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	class := errors.ClassOf(err)
	status := statusForClass(class)

	if status >= 500 {
		s.logger.Error("request failed", "class", class, "error", err)
	}

	s.writeJSON(w, status, errorResponse{
		Error:  err.Error(),
		Class:  class.String(),
		Advice: errors.AdviceFor(err).String(),
	})
}

func statusForClass(class errors.Class) int {
	switch class {
	case errors.ClassSessionNotFound:
		return http.StatusNotFound
	case errors.ClassSessionBusy:
		return http.StatusConflict
	case errors.ClassRateLimited:
		return http.StatusTooManyRequests
	case errors.ClassProviderUnavailable:
		return http.StatusBadGateway
	case errors.ClassTimeout:
		return http.StatusGatewayTimeout
	case errors.ClassContentPolicy:
		return http.StatusUnprocessableEntity
	case errors.ClassStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response not written", "error", err)
	}
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
