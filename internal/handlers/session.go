package handlers

import (
	"net/http"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// --- GET /session ---

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getSession(r.Context()).View())
}

// --- DELETE /session/error ---

func (h *SessionHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	s.ClearError()
	writeJSON(w, http.StatusOK, s.View())
}
