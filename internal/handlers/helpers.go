package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"feedback-backend/internal/identity"
	"feedback-backend/internal/middleware"
	"feedback-backend/internal/session"
)

type sessionKey struct{}

// withSession resolves the caller's session from the verified token claims.
func withSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.GetClaims(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			s, err := sessions.Lookup(r.Context(), claims)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
		})
	}
}

func getSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var authErr *identity.AuthError
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusForbidden
	case errors.As(err, &authErr):
		switch authErr.Code {
		case identity.CodeInvalidEmail, identity.CodeWeakPassword:
			return http.StatusBadRequest
		case identity.CodeEmailInUse:
			return http.StatusConflict
		default:
			return http.StatusUnauthorized
		}
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
