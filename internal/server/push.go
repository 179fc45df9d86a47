package server

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/logging"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/validation"
)

const maxPushBody = 16 << 10

type apiResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	token, ok := s.sessionToken(w, r)
	if !ok {
		return
	}

	var sub storyapi.PushSubscription
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPushBody)).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: true, Message: "Invalid subscription"})
		return
	}
	if verr := validation.ValidateStruct(&sub); verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiResponse{Error: true, Message: verr.First()})
		return
	}

	if err := s.api.Subscribe(r.Context(), token, sub); err != nil {
		s.apiFailed(w, r, err, "subscribing to push")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Message: "Subscribed to push notifications"})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token, ok := s.sessionToken(w, r)
	if !ok {
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPushBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: true, Message: "Invalid subscription"})
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiResponse{Error: true, Message: verr.First()})
		return
	}

	if err := s.api.Unsubscribe(r.Context(), token, req.Endpoint); err != nil {
		s.apiFailed(w, r, err, "unsubscribing from push")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Message: "Unsubscribed from push notifications"})
}

// sessionToken returns the API token of the request's session. It writes
// 401 when the session is unknown or logged out.
func (s *Server) sessionToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, _, err := s.host.Lookup(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Error: true, Message: "Login required"})
		return "", false
	}
	token := s.auth.For(id).Token()
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Error: true, Message: "Login required"})
		return "", false
	}
	return token, true
}

func (s *Server) apiFailed(w http.ResponseWriter, r *http.Request, err error, op string) {
	logging.Ctx(r.Context()).Warn().Err(err).Msg(op)
	status := http.StatusBadGateway
	if storyapi.IsUnauthorized(err) {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, apiResponse{Error: true, Message: storyapi.Message(err)})
}

// handleLogout forgets the session's login and has the shell reload on
// the home page, so the navigation is rebuilt for a guest.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !hxnav.IsHTMX(r) {
		http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
		return
	}
	if id, _, err := s.host.Lookup(r); err == nil {
		if err := s.auth.For(id).DestroyAuth(); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("destroying auth record")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		logging.Ctx(r.Context()).Info().Str("session_id", id).Msg("logged out")
	}
	w.Header().Set("HX-Trigger", hxnav.BuildTriggerHeader(hxnav.Navigate("#/").Reload()))
	w.WriteHeader(http.StatusOK)
}
