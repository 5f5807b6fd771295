package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SessionView struct {
	Identity   string `json:"identity"`
	State      string `json:"state"`
	Registered bool   `json:"registered"`
	Attempt    int    `json:"attempt,omitempty"`
}

type SendMessageRequest struct {
	Target string `json:"target"`
	Text   string `json:"text"`
	Sender string `json:"sender,omitempty"`
}

type SendMessageResponse struct {
	Sender    string `json:"sender"`
	Target    string `json:"target"`
	MessageID string `json:"message_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	states := s.sessions.States()
	views := make([]SessionView, 0, len(states))
	for _, status := range states {
		views = append(views, SessionView{
			Identity:   string(status.Identity),
			State:      status.State.String(),
			Registered: status.Registered,
			Attempt:    status.Attempt,
		})
	}

	writeJSON(w, r, http.StatusOK, envelope{Success: true, Data: views})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := domain.NormalizeIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid identity")
		return
	}

	if err := s.sessions.Stop(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "session " + string(id) + " deleted"})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := s.relay.Send(r.Context(), application.SendRequest{
		Target: req.Target,
		Text:   req.Text,
		Sender: req.Sender,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, envelope{
		Success: true,
		Message: "message relayed",
		Data: SendMessageResponse{
			Sender:    string(receipt.Sender),
			Target:    string(receipt.Target),
			MessageID: receipt.MessageID,
		},
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity), errors.Is(err, domain.ErrEmptyMessage):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoActiveSessions), errors.Is(err, domain.ErrPairingInProgress):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "upstream failure")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	body.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
