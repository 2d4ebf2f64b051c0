package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/routing"
	"github.com/soyeahso/ragrelay/internal/wechat"
)

// statusResponse is the body of every webhook and admin response.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Key     string `json:"key,omitempty"`
	Deleted *int   `json:"deleted,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) reqLog(r *http.Request) *logging.Logger {
	return logging.FromContext(r.Context(), s.log)
}

// handleReceive accepts one WeChat webhook delivery.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, statusResponse{Status: "error", Message: "request body too large"})
		return
	}

	evt, err := wechat.ParseEvent(body)
	if err != nil {
		s.reqLog(r).Warn().Err(err).Msg("malformed webhook")
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}

	// Only events the relay will act on are charged to the sender.
	if s.router.Addressed(evt) && !s.limiter.Allow(evt.Participant()) {
		s.reqLog(r).Warn().Str("sender", evt.Participant()).Msg("webhook rate limited")
		writeJSON(w, http.StatusTooManyRequests, statusResponse{Status: "error", Message: "too many requests"})
		return
	}

	if s.cfg.Async {
		ctx := context.WithoutCancel(r.Context())
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.router.HandleInbound(ctx, evt)
		}()
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "accepted"})
		return
	}

	out := s.router.HandleInbound(r.Context(), evt)
	status := http.StatusOK
	if out.Action == routing.ActionRejected {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, statusResponse{Status: out.Status(), Message: out.Message})
}

// handleClearSession drops the binding for one scope/participant pair.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	scope := domain.Scope(r.PathValue("scope"))
	participant := r.PathValue("participant")
	if !scope.Valid() || participant == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "unknown scope " + string(scope)})
		return
	}

	key := routing.IdentityKey(s.router.KeyPrefix(), scope, participant)
	existed, err := s.sessions.Clear(r.Context(), key)
	if err != nil {
		s.reqLog(r).Error().Err(err).Str("key", key).Msg("admin clear failed")
		writeJSON(w, errorStatus(err), statusResponse{Status: "error", Message: err.Error(), Key: key})
		return
	}

	s.reqLog(r).Info().Str("key", key).Bool("existed", existed).Msg("session cleared by admin")
	res := statusResponse{Status: "success", Key: key}
	if !existed {
		res.Status = "failed"
		res.Message = "no session bound"
	}
	writeJSON(w, http.StatusOK, res)
}

// handleClearAll drops every binding under the router's key prefix.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.sessions.ClearAllMatching(r.Context(), s.router.KeyPrefix()+":")
	if err != nil {
		s.reqLog(r).Error().Err(err).Int("deleted", n).Msg("admin clear all failed")
		writeJSON(w, errorStatus(err), statusResponse{Status: "error", Message: err.Error(), Deleted: &n})
		return
	}
	s.reqLog(r).Info().Int("deleted", n).Msg("all sessions cleared by admin")
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Deleted: &n})
}

// handleHealth reports whether the session store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.sessions.Ping(ctx); err != nil {
		s.reqLog(r).Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func errorStatus(err error) int {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
