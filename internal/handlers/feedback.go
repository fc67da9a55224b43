package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"feedback-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

type FeedbackHandler struct {
	upgrader websocket.Upgrader
}

func NewFeedbackHandler() *FeedbackHandler {
	return &FeedbackHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origins are already governed by the CORS policy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type FeedbackRequest struct {
	Text string `json:"text"`
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return "", false
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please enter feedback text"})
		return "", false
	}
	return req.Text, true
}

// --- GET /feedback ---

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	view := getSession(r.Context()).View()
	if view.Role == models.RoleAdmin {
		writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": view.All, "error": view.Error})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": view.Mine, "error": view.Error})
}

// --- GET /admin/feedback ---

func (h *FeedbackHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if !s.State().IsAdmin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}
	view := s.View()
	writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": view.All, "error": view.Error})
}

// --- POST /feedback ---

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	feedback, err := getSession(r.Context()).Create(r.Context(), text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "feedback submitted successfully",
		"feedback": feedback,
	})
}

// --- PATCH /feedback/{id} ---

func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	if err := getSession(r.Context()).Update(r.Context(), chi.URLParam(r, "id"), text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "feedback updated successfully"})
}

// --- DELETE /feedback/{id} ---

func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := getSession(r.Context()).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "feedback deleted"})
}

// --- GET /feedback/live ---
// Upgrades to a websocket and pushes the session view on every change.

func (h *FeedbackHandler) Live(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[live]%s upgrade error = %s\n", s.ID(), err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client never sends anything meaningful; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	views := s.Observe(ctx)
	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(view); err != nil {
				glog.V(1).Infof("[live]%s write error = %s\n", s.ID(), err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
